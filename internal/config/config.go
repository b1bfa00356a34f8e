package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Generator   GeneratorConfig   `mapstructure:"generator"`
	Publisher   PublisherConfig   `mapstructure:"publisher"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Publish     PublishConfig     `mapstructure:"publish"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORS           CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig configures the publication log database.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

// VectorStoreConfig selects and configures the idea vector store.
type VectorStoreConfig struct {
	Backend       string       `mapstructure:"backend"` // qdrant, bolt or memory
	MaxQueryLimit int          `mapstructure:"max_query_limit"`
	Qdrant        QdrantConfig `mapstructure:"qdrant"`
	Bolt          BoltConfig   `mapstructure:"bolt"`
}

type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
}

type BoltConfig struct {
	Path string `mapstructure:"path"`
}

// EngineConfig tunes the uniqueness gate and the selection algorithm.
type EngineConfig struct {
	TopK         int     `mapstructure:"top_k"`
	Threshold    float64 `mapstructure:"threshold"`
	RecentWindow int     `mapstructure:"recent_window"`
	Concurrency  int     `mapstructure:"concurrency"`
}

// GeneratorConfig configures the article generator.
type GeneratorConfig struct {
	Provider    string        `mapstructure:"provider"` // openai-compatible or gemini
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// PublisherConfig configures the publication platforms.
type PublisherConfig struct {
	Platforms []string      `mapstructure:"platforms"`
	Draft     bool          `mapstructure:"draft"`
	Timeout   time.Duration `mapstructure:"timeout"`
	DevTo     DevToConfig   `mapstructure:"devto"`
	Webhook   WebhookConfig `mapstructure:"webhook"`
}

type DevToConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type WebhookConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// StorageConfig configures the S3-compatible article archive.
type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // r2, s3 or s3compatible
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	Prefix    string `mapstructure:"prefix"`
}

type PublishConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from the YAML file, .env and the environment.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", configPath))
		}
	}

	// secrets and deployment-specific values
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("vector_store.backend", "VECTOR_STORE_BACKEND")
	v.BindEnv("vector_store.qdrant.host", "QDRANT_HOST")
	v.BindEnv("vector_store.qdrant.port", "QDRANT_PORT")
	v.BindEnv("vector_store.qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("embedding.api_key", "EMBEDDING_API_KEY")
	v.BindEnv("embedding.base_url", "EMBEDDING_BASE_URL")
	v.BindEnv("engine.threshold", "GATE_THRESHOLD")
	v.BindEnv("generator.api_key", "GENERATOR_API_KEY")
	v.BindEnv("generator.base_url", "GENERATOR_BASE_URL")
	v.BindEnv("generator.model", "GENERATOR_MODEL")
	v.BindEnv("publisher.devto.api_key", "DEVTO_API_KEY")
	v.BindEnv("publisher.webhook.url", "PUBLISH_WEBHOOK_URL")
	v.BindEnv("publisher.webhook.token", "PUBLISH_WEBHOOK_TOKEN")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.bucket", "STORAGE_BUCKET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal config")
	}

	cfg.Embedding.ResolveEnvVars()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/ideaforge.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("vector_store.backend", "bolt")
	v.SetDefault("vector_store.max_query_limit", 10000)
	v.SetDefault("vector_store.qdrant.host", "localhost")
	v.SetDefault("vector_store.qdrant.port", 6334)
	v.SetDefault("vector_store.qdrant.collection", "ideas")
	v.SetDefault("vector_store.bolt.path", "./data/ideas.bolt")

	v.SetDefault("embedding.provider", "jina")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.dimensions", 1024)
	v.SetDefault("embedding.cache_size", 512)

	v.SetDefault("engine.top_k", 5)
	v.SetDefault("engine.threshold", 0.85)
	v.SetDefault("engine.recent_window", 5)
	v.SetDefault("engine.concurrency", 4)

	v.SetDefault("generator.provider", "openai-compatible")
	v.SetDefault("generator.model", "gpt-4o-mini")
	v.SetDefault("generator.base_url", "https://api.openai.com/v1")
	v.SetDefault("generator.max_tokens", 2048)
	v.SetDefault("generator.temperature", 0.7)
	v.SetDefault("generator.timeout", 2*time.Minute)

	v.SetDefault("publisher.platforms", []string{"devto"})
	v.SetDefault("publisher.draft", true)
	v.SetDefault("publisher.timeout", 30*time.Second)
	v.SetDefault("publisher.devto.base_url", "https://dev.to/api")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.prefix", "articles")

	v.SetDefault("publish.timeout", 5*time.Minute)
}

// Validate checks cross-field settings.
func (c *Config) Validate() error {
	switch c.VectorStore.Backend {
	case "qdrant", "bolt", "memory":
	default:
		return goerr.New("unknown vector store backend", goerr.V("backend", c.VectorStore.Backend))
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return goerr.New("unknown database driver", goerr.V("driver", c.Database.Driver))
	}

	if c.Engine.Threshold <= 0 || c.Engine.Threshold > 1 {
		return goerr.New("engine.threshold must be in (0, 1]", goerr.V("threshold", c.Engine.Threshold))
	}
	if c.Engine.TopK <= 0 {
		return goerr.New("engine.top_k must be positive", goerr.V("top_k", c.Engine.TopK))
	}

	switch c.Generator.Provider {
	case "openai-compatible", "gemini":
	default:
		return goerr.New("unknown generator provider", goerr.V("provider", c.Generator.Provider))
	}

	return c.Embedding.Validate()
}
