package service

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/similarity"
	"google.golang.org/genai"
)

// GeminiEmbeddingProvider embeds text with the Gemini API.
type GeminiEmbeddingProvider struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewGeminiEmbeddingProvider creates a Gemini API client authenticated with apiKey.
func NewGeminiEmbeddingProvider(ctx context.Context, apiKey, model string, dimensions int) (*GeminiEmbeddingProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	if model == "" {
		model = "gemini-embedding-001"
	}

	return &GeminiEmbeddingProvider{
		client:     client,
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Model returns the embedding model name.
func (p *GeminiEmbeddingProvider) Model() string { return p.model }

// Dimensions returns the requested output dimensionality.
func (p *GeminiEmbeddingProvider) Dimensions() int { return p.dimensions }

// Embed generates a document embedding for text.
func (p *GeminiEmbeddingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "empty embedding text")
	}

	cfg := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"}
	if p.dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(p.dimensions))
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, genai.Text(text), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == 400 {
			return nil, goerr.Wrap(domain.ErrInvalidInput, "gemini rejected embedding input",
				goerr.V("model", p.model), goerr.V("message", apiErr.Message))
		}
		return nil, goerr.Wrap(domain.ProviderError(err), "failed to embed content", goerr.V("model", p.model))
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.Wrap(domain.ProviderError(errors.New("empty response")), "no embedding returned",
			goerr.V("model", p.model))
	}

	vector := resp.Embeddings[0].Values
	if p.dimensions > 0 && len(vector) != p.dimensions {
		return nil, goerr.Wrap(similarity.ErrDimensionMismatch, "embedding has unexpected length",
			goerr.V("expected", p.dimensions), goerr.V("got", len(vector)))
	}
	return vector, nil
}
