package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timmy/ideaforge/internal/app"
	"github.com/timmy/ideaforge/internal/config"
	"github.com/timmy/ideaforge/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			Path:        filepath.Join(dir, "ideaforge.db"),
			AutoMigrate: true,
		},
		VectorStore: config.VectorStoreConfig{
			Backend: "bolt",
			Bolt:    config.BoltConfig{Path: filepath.Join(dir, "ideas.bolt")},
		},
		Embedding: config.EmbeddingConfig{
			Provider:   "jina",
			Model:      "jina-embeddings-v3",
			APIKey:     "test-key",
			Dimensions: 8,
			CacheSize:  16,
		},
		Engine: config.EngineConfig{TopK: 5, Threshold: 0.85, RecentWindow: 5, Concurrency: 2},
		Generator: config.GeneratorConfig{
			Provider: "openai-compatible",
			Model:    "gpt-4o-mini",
			APIKey:   "gen-key",
			BaseURL:  "http://127.0.0.1:1",
		},
		Publisher: config.PublisherConfig{
			Platforms: []string{service.PlatformDevTo},
			Draft:     true,
			DevTo:     config.DevToConfig{APIKey: "devto-key"},
		},
	}
}

func TestNewPoolOnly(t *testing.T) {
	cfg := testConfig(t)

	a, err := app.New(context.Background(), cfg, app.Options{})
	gt.NoError(t, err)
	defer a.Close()

	gt.V(t, a.Ideas).NotNil()
	gt.True(t, a.Publish == nil)
	gt.True(t, a.Publications == nil)
	_, cached := a.Embedder.(*service.CachedEmbedder)
	gt.True(t, cached)

	stats, err := a.Ideas.Stats(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, stats.Total, 0)
	gt.Equal(t, stats.Dimension, 8)
}

func TestNewWithPublishing(t *testing.T) {
	cfg := testConfig(t)

	a, err := app.New(context.Background(), cfg, app.Options{WithPublishing: true})
	gt.NoError(t, err)
	gt.V(t, a.Publish).NotNil()
	gt.V(t, a.Publications).NotNil()

	pubs, err := a.Publications.List(context.Background(), 10, 0)
	gt.NoError(t, err)
	gt.A(t, pubs).Length(0)
	gt.NoError(t, a.Close())
}

func TestNewRequiresEmbeddingKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.APIKey = ""

	_, err := app.New(context.Background(), cfg, app.Options{})
	gt.Error(t, err)
}

func TestNewEmbedderWithoutCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Embedding.CacheSize = 0

	embedder, err := app.NewEmbedder(context.Background(), &cfg.Embedding)
	gt.NoError(t, err)
	_, isHTTP := embedder.(*service.HTTPEmbeddingProvider)
	gt.True(t, isHTTP)
	gt.Equal(t, embedder.Dimensions(), 8)
}

func TestPlatforms(t *testing.T) {
	testCases := []struct {
		name string
		cfg  config.PublisherConfig
		want []string
	}{
		{name: "none", cfg: config.PublisherConfig{}, want: []string{}},
		{name: "devto", cfg: config.PublisherConfig{DevTo: config.DevToConfig{APIKey: "k"}}, want: []string{"devto"}},
		{
			name: "both",
			cfg: config.PublisherConfig{
				DevTo:   config.DevToConfig{APIKey: "k"},
				Webhook: config.WebhookConfig{URL: "https://hooks.example.com/publish"},
			},
			want: []string{"devto", "webhook"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			names := []string{}
			for _, p := range app.Platforms(&tc.cfg) {
				names = append(names, p.Name())
			}
			gt.Equal(t, names, tc.want)
		})
	}
}
