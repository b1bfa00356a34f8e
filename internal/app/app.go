// Package app wires configuration into the services shared by the API
// server, the publish job and the operator CLI.
package app

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/config"
	"github.com/timmy/ideaforge/internal/logger"
	"github.com/timmy/ideaforge/internal/repository"
	"github.com/timmy/ideaforge/internal/service"
	"github.com/timmy/ideaforge/internal/storage"
)

// App holds the wired services. Close releases the stores.
type App struct {
	Config       *config.Config
	Ideas        *service.IdeaService
	Publish      *service.PublishService
	Publications *repository.PublicationRepository // nil when the database is disabled
	Embedder     service.EmbeddingProvider

	closers []func() error
}

// Options toggles the optional parts of the wiring.
type Options struct {
	// WithPublishing builds the generator, the platforms, the publication
	// log and the archive. The CLI's pool commands skip it.
	WithPublishing bool
}

// New builds an App from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg}

	embedder, err := NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		return nil, err
	}
	a.Embedder = embedder

	store, err := a.openVectorStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	ideaRepo := repository.NewIdeaRepository(store)
	selector := service.NewSelector(embedder,
		service.WithRecentWindow(cfg.Engine.RecentWindow),
		service.WithConcurrency(cfg.Engine.Concurrency),
	)
	gate := service.NewUniquenessGate(ideaRepo, cfg.Engine.TopK, cfg.Engine.Threshold)
	a.Ideas = service.NewIdeaService(ideaRepo, embedder, gate, selector)

	if !opts.WithPublishing {
		return a, nil
	}

	if err := a.wirePublishing(ctx, ideaRepo, selector); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// NewEmbedder creates the configured embedding provider, wrapped in the
// content-hash cache when cache_size is positive.
func NewEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (service.EmbeddingProvider, error) {
	if err := cfg.ValidateWithAPIKey(); err != nil {
		return nil, err
	}

	var (
		provider service.EmbeddingProvider
		err      error
	)
	switch cfg.Provider {
	case "gemini":
		provider, err = service.NewGeminiEmbeddingProvider(ctx, cfg.APIKey, cfg.Model, cfg.Dimensions)
	default:
		provider, err = service.NewHTTPEmbeddingProvider(&service.EmbeddingProviderConfig{
			Provider:   cfg.Provider,
			Model:      cfg.Model,
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding provider", goerr.V("provider", cfg.Provider))
	}

	return service.NewCachedEmbedder(provider, cfg.CacheSize), nil
}

func (a *App) openVectorStore(ctx context.Context) (repository.VectorStore, error) {
	cfg := a.Config
	dim := cfg.Embedding.Dimensions
	log := logger.GetDefault().WithField(logger.FieldComponent, "vector_store")

	switch cfg.VectorStore.Backend {
	case "qdrant":
		store, err := repository.NewQdrantStore(&repository.QdrantConnectionConfig{
			Host:            cfg.VectorStore.Qdrant.Host,
			Port:            cfg.VectorStore.Qdrant.Port,
			Collection:      cfg.VectorStore.Qdrant.Collection,
			APIKey:          cfg.VectorStore.Qdrant.APIKey,
			UseTLS:          cfg.VectorStore.Qdrant.UseTLS,
			VectorDimension: dim,
			MaxQueryLimit:   cfg.VectorStore.MaxQueryLimit,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		if err := store.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		log.Infof("Using Qdrant collection %s at %s:%d",
			cfg.VectorStore.Qdrant.Collection, cfg.VectorStore.Qdrant.Host, cfg.VectorStore.Qdrant.Port)
		return store, nil

	case "bolt":
		store, err := repository.NewBoltStore(cfg.VectorStore.Bolt.Path, dim)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		log.Infof("Using bolt store at %s", cfg.VectorStore.Bolt.Path)
		return store, nil

	case "memory":
		log.Warn("Using in-memory vector store, ideas are lost on exit")
		return repository.NewMemoryStore(dim), nil

	default:
		return nil, goerr.New("unknown vector store backend", goerr.V("backend", cfg.VectorStore.Backend))
	}
}

func (a *App) wirePublishing(ctx context.Context, ideaRepo *repository.IdeaRepository, selector *service.Selector) error {
	cfg := a.Config

	generator, err := service.NewContentGenerator(ctx, &service.GeneratorConfig{
		Provider:    cfg.Generator.Provider,
		Model:       cfg.Generator.Model,
		APIKey:      cfg.Generator.APIKey,
		BaseURL:     cfg.Generator.BaseURL,
		MaxTokens:   cfg.Generator.MaxTokens,
		Temperature: cfg.Generator.Temperature,
		Timeout:     cfg.Generator.Timeout,
	})
	if err != nil {
		return err
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	a.Publications = repository.NewPublicationRepository(db)

	svcCfg := &service.PublishServiceConfig{
		Ideas:            ideaRepo,
		Selector:         selector,
		Generator:        generator,
		Publisher:        service.NewPublisher(Platforms(&cfg.Publisher)...),
		Publications:     a.Publications,
		DefaultPlatforms: cfg.Publisher.Platforms,
		DefaultDraft:     cfg.Publisher.Draft,
	}

	if cfg.Storage.Enabled {
		objects, err := storage.NewStorage(&storage.S3Config{
			Type:      storage.StorageType(cfg.Storage.Type),
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			return goerr.Wrap(err, "failed to initialize article archive")
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return goerr.Wrap(err, "failed to prepare article archive bucket")
		}
		svcCfg.Archive = storage.NewArticleArchive(objects, cfg.Storage.Prefix)
	}

	a.Publish = service.NewPublishService(svcCfg)
	return nil
}

// Platforms builds the publication platforms that have credentials
// configured. Platforms without them are left out, so requesting them
// yields a "not configured" result.
func Platforms(cfg *config.PublisherConfig) []service.Platform {
	var platforms []service.Platform
	if cfg.DevTo.APIKey != "" {
		platforms = append(platforms, service.NewDevToPlatform(cfg.DevTo.APIKey, cfg.DevTo.BaseURL, cfg.Timeout))
	}
	if cfg.Webhook.URL != "" {
		platforms = append(platforms, service.NewWebhookPlatform(cfg.Webhook.URL, cfg.Webhook.Token, cfg.Timeout))
	}
	return platforms
}

// Close releases every opened store.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
