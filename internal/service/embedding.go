package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/similarity"
)

const (
	jinaBaseURL           = "https://api.jina.ai/v1"
	defaultEmbedTimeout   = 30 * time.Second
	providerJina          = "jina"
	providerOpenAICompat  = "openai-compatible"
	providerGemini        = "gemini"
	jinaTaskPassage       = "retrieval.passage"
	jinaEmbeddingTypeFlat = "float"
)

// EmbeddingProvider maps text to a fixed-length vector. Failures wrap
// domain.ErrProviderUnavailable or domain.ErrInvalidInput.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimensions() int
}

// EmbeddingProviderConfig configures an HTTP embedding provider.
type EmbeddingProviderConfig struct {
	Provider   string // jina or openai-compatible
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration
}

// embeddingRequest covers both the Jina and the OpenAI embeddings APIs;
// the Jina-only fields are omitted when empty.
type embeddingRequest struct {
	Model         string   `json:"model"`
	Input         []string `json:"input"`
	Dimensions    int      `json:"dimensions,omitempty"`
	Task          string   `json:"task,omitempty"`
	EmbeddingType string   `json:"embedding_type,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type embeddingErrorResponse struct {
	Detail string `json:"detail,omitempty"`
	Error  struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (e *embeddingErrorResponse) message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error.Message
}

// HTTPEmbeddingProvider calls a Jina or OpenAI-compatible embeddings endpoint.
type HTTPEmbeddingProvider struct {
	client     *resty.Client
	provider   string
	model      string
	dimensions int
}

// NewHTTPEmbeddingProvider creates a provider for cfg.Provider.
func NewHTTPEmbeddingProvider(cfg *EmbeddingProviderConfig) (*HTTPEmbeddingProvider, error) {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	switch cfg.Provider {
	case providerJina:
		if baseURL == "" {
			baseURL = jinaBaseURL
		}
	case providerOpenAICompat:
		if baseURL == "" {
			return nil, goerr.New("base URL is required for openai-compatible embeddings")
		}
	default:
		return nil, goerr.New("unsupported embedding provider", goerr.V("provider", cfg.Provider))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultEmbedTimeout
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &HTTPEmbeddingProvider{
		client:     client,
		provider:   cfg.Provider,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Model returns the model name.
func (p *HTTPEmbeddingProvider) Model() string { return p.model }

// Dimensions returns the configured vector length.
func (p *HTTPEmbeddingProvider) Dimensions() int { return p.dimensions }

// Embed generates an embedding for text.
func (p *HTTPEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "empty embedding text")
	}

	req := embeddingRequest{
		Model:      p.model,
		Input:      []string{text},
		Dimensions: p.dimensions,
	}
	if p.provider == providerJina {
		req.Task = jinaTaskPassage
		req.EmbeddingType = jinaEmbeddingTypeFlat
	}

	var (
		resp    embeddingResponse
		errResp embeddingErrorResponse
	)
	httpResp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&errResp).
		Post("/embeddings")
	if err != nil {
		return nil, goerr.Wrap(domain.ProviderError(err), "embedding request failed",
			goerr.V("provider", p.provider), goerr.V("model", p.model))
	}

	if httpResp.IsError() {
		return nil, classifyProviderStatus(httpResp.StatusCode(), errResp.message(), p.provider)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, goerr.Wrap(domain.ProviderError(errors.New("empty response")), "no embedding returned",
			goerr.V("provider", p.provider))
	}

	vector := resp.Data[0].Embedding
	if p.dimensions > 0 && len(vector) != p.dimensions {
		return nil, goerr.Wrap(similarity.ErrDimensionMismatch, "embedding has unexpected length",
			goerr.V("expected", p.dimensions), goerr.V("got", len(vector)))
	}
	return vector, nil
}

// classifyProviderStatus maps an HTTP error status to the provider error
// taxonomy: rejected input is the caller's fault, everything else is
// treated as the provider being unavailable.
func classifyProviderStatus(status int, message, provider string) error {
	cause := errors.New(http.StatusText(status))
	if message != "" {
		cause = errors.New(message)
	}

	if status >= 400 && status < 500 && status != http.StatusTooManyRequests &&
		status != http.StatusUnauthorized && status != http.StatusForbidden {
		return goerr.Wrap(domain.ErrInvalidInput, "embedding input rejected",
			goerr.V("status", status), goerr.V("provider", provider), goerr.V("message", cause.Error()))
	}
	return goerr.Wrap(domain.ProviderError(cause), "embedding provider error",
		goerr.V("status", status), goerr.V("provider", provider))
}
