package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
)

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"`     // jina, openai-compatible or gemini
	Model      string `mapstructure:"model"`        // provider model id
	APIKey     string `mapstructure:"api_key"`      // set directly or via APIKeyEnv
	APIKeyEnv  string `mapstructure:"api_key_env"`  // env var holding the API key
	BaseURL    string `mapstructure:"base_url"`     // OpenAI-compatible endpoints only
	BaseURLEnv string `mapstructure:"base_url_env"` // env var holding the base URL
	Dimensions int    `mapstructure:"dimensions"`
	CacheSize  int    `mapstructure:"cache_size"` // 0 disables the embedding cache
}

// ResolveEnvVars fills APIKey and BaseURL from their env var references.
// Direct values take precedence.
func (c *EmbeddingConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}
	if c.BaseURLEnv != "" && c.BaseURL == "" {
		if val := os.Getenv(c.BaseURLEnv); val != "" {
			c.BaseURL = val
		}
	}
}

// Validate checks that the embedding configuration is usable.
func (c *EmbeddingConfig) Validate() error {
	if c.Model == "" {
		return goerr.New("embedding: model is required", goerr.V("provider", c.Provider))
	}
	if c.Dimensions <= 0 {
		return goerr.New("embedding: dimensions must be positive", goerr.V("dimensions", c.Dimensions))
	}

	switch c.Provider {
	case "jina", "openai-compatible", "gemini":
	default:
		return goerr.New("embedding: unknown provider", goerr.V("provider", c.Provider))
	}

	if c.Provider == "openai-compatible" && c.BaseURL == "" {
		return goerr.New("embedding: base_url is required for openai-compatible providers")
	}
	return nil
}

// ValidateWithAPIKey also requires an API key. Use it when the provider
// will actually be called.
func (c *EmbeddingConfig) ValidateWithAPIKey() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return goerr.New("embedding: api_key is required", goerr.V("api_key_env", c.APIKeyEnv))
	}
	return nil
}
