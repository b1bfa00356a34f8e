package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/similarity"
)

func embeddingServer(t *testing.T, status int, body string, captured *embeddingRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/embeddings")
		gt.Equal(t, r.Header.Get("Authorization"), "Bearer test-key")
		if captured != nil {
			gt.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T, provider, baseURL string, dim int) *HTTPEmbeddingProvider {
	t.Helper()
	p, err := NewHTTPEmbeddingProvider(&EmbeddingProviderConfig{
		Provider:   provider,
		Model:      "test-model",
		APIKey:     "test-key",
		BaseURL:    baseURL,
		Dimensions: dim,
	})
	gt.NoError(t, err)
	return p
}

func TestHTTPEmbeddingProviderJina(t *testing.T) {
	var req embeddingRequest
	srv := embeddingServer(t, http.StatusOK, `{"data":[{"embedding":[0.1,0.2,0.3],"index":0}]}`, &req)
	p := newTestProvider(t, providerJina, srv.URL, 3)

	vec, err := p.Embed(context.Background(), "title\n\ndescription")
	gt.NoError(t, err)
	gt.Equal(t, vec, []float32{0.1, 0.2, 0.3})
	gt.Equal(t, req.Model, "test-model")
	gt.Equal(t, req.Input, []string{"title\n\ndescription"})
	gt.Equal(t, req.Task, jinaTaskPassage)
	gt.Equal(t, req.Dimensions, 3)
}

func TestHTTPEmbeddingProviderOpenAICompatible(t *testing.T) {
	var req embeddingRequest
	srv := embeddingServer(t, http.StatusOK, `{"data":[{"embedding":[1,0],"index":0}]}`, &req)
	p := newTestProvider(t, providerOpenAICompat, srv.URL+"/", 2)

	vec, err := p.Embed(context.Background(), "hello")
	gt.NoError(t, err)
	gt.Equal(t, vec, []float32{1, 0})
	gt.Equal(t, req.Task, "")
	gt.Equal(t, req.EmbeddingType, "")
}

func TestHTTPEmbeddingProviderErrors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
		dim    int
		want   error
	}{
		{name: "bad request", status: http.StatusBadRequest, body: `{"detail":"input too long"}`, dim: 2, want: domain.ErrInvalidInput},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":{"message":"bad key"}}`, dim: 2, want: domain.ErrProviderUnavailable},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, dim: 2, want: domain.ErrProviderUnavailable},
		{name: "server error", status: http.StatusBadGateway, body: `{}`, dim: 2, want: domain.ErrProviderUnavailable},
		{name: "empty data", status: http.StatusOK, body: `{"data":[]}`, dim: 2, want: domain.ErrProviderUnavailable},
		{name: "wrong length", status: http.StatusOK, body: `{"data":[{"embedding":[1,2,3],"index":0}]}`, dim: 2, want: similarity.ErrDimensionMismatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := embeddingServer(t, tc.status, tc.body, nil)
			p := newTestProvider(t, providerJina, srv.URL, tc.dim)

			_, err := p.Embed(context.Background(), "text")
			gt.True(t, errors.Is(err, tc.want))
		})
	}
}

func TestHTTPEmbeddingProviderTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := newTestProvider(t, providerJina, url, 2)
	_, err := p.Embed(context.Background(), "text")
	gt.True(t, errors.Is(err, domain.ErrProviderUnavailable))
}

func TestHTTPEmbeddingProviderEmptyText(t *testing.T) {
	p := newTestProvider(t, providerJina, "http://127.0.0.1:1", 2)
	_, err := p.Embed(context.Background(), "   ")
	gt.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestNewHTTPEmbeddingProviderConfig(t *testing.T) {
	_, err := NewHTTPEmbeddingProvider(&EmbeddingProviderConfig{Provider: providerOpenAICompat, Model: "m"})
	gt.Error(t, err)

	_, err = NewHTTPEmbeddingProvider(&EmbeddingProviderConfig{Provider: "word2vec", Model: "m"})
	gt.Error(t, err)
}

func TestCachedEmbedder(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.6,0.8],"index":0}]}`))
	}))
	defer srv.Close()

	cached := NewCachedEmbedder(newTestProvider(t, providerJina, srv.URL, 2), 2)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "a")
	gt.NoError(t, err)
	second, err := cached.Embed(ctx, "a")
	gt.NoError(t, err)
	gt.Equal(t, first, second)
	gt.Equal(t, hits.Load(), int64(1))

	// the returned slice is a copy
	second[0] = 42
	third, err := cached.Embed(ctx, "a")
	gt.NoError(t, err)
	gt.Equal(t, third[0], float32(0.6))

	_, err = cached.Embed(ctx, "b")
	gt.NoError(t, err)
	_, err = cached.Embed(ctx, "c")
	gt.NoError(t, err)
	gt.Equal(t, hits.Load(), int64(3))

	// "a" was evicted by "b" and "c"
	_, err = cached.Embed(ctx, "a")
	gt.NoError(t, err)
	gt.Equal(t, hits.Load(), int64(4))

	h, m := cached.(*CachedEmbedder).Stats()
	gt.Equal(t, h, int64(2))
	gt.Equal(t, m, int64(4))
}

func TestCachedEmbedderDoesNotCacheErrors(t *testing.T) {
	embedder := newFakeEmbedder(2)
	cached := NewCachedEmbedder(embedder, 8)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "Missing\n\nx")
	gt.Error(t, err)

	embedder.set("Missing", []float32{1, 0})
	vec, err := cached.Embed(ctx, "Missing\n\nx")
	gt.NoError(t, err)
	gt.Equal(t, vec, []float32{1, 0})
	gt.Equal(t, embedder.calls.Load(), int64(2))
}

func TestNewCachedEmbedderDisabled(t *testing.T) {
	embedder := newFakeEmbedder(2)
	gt.True(t, NewCachedEmbedder(embedder, 0) == EmbeddingProvider(embedder))
}
