package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/prompts"
	"google.golang.org/genai"
)

const (
	defaultGeneratorTimeout   = 2 * time.Minute
	defaultGeneratorMaxTokens = 2048
	defaultOpenAIBaseURL      = "https://api.openai.com/v1"
)

// ContentGenerator turns an idea into an article body. Failures wrap
// domain.ErrGenerationFailed.
type ContentGenerator interface {
	Generate(ctx context.Context, title, description string, tags []string) (string, error)
	Model() string
}

// GeneratorConfig configures a ContentGenerator.
type GeneratorConfig struct {
	Provider    string // openai-compatible or gemini
	Model       string
	APIKey      string
	BaseURL     string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// NewContentGenerator creates the generator selected by cfg.Provider.
func NewContentGenerator(ctx context.Context, cfg *GeneratorConfig) (ContentGenerator, error) {
	switch cfg.Provider {
	case providerOpenAICompat, "":
		return NewOpenAIGenerator(cfg), nil
	case providerGemini:
		return NewGeminiGenerator(ctx, cfg)
	default:
		return nil, goerr.New("unsupported generator provider", goerr.V("provider", cfg.Provider))
	}
}

// OpenAI-compatible chat completion request/response structures
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client      *resty.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAIGenerator creates an OpenAI-compatible generator.
func NewOpenAIGenerator(cfg *GeneratorConfig) *OpenAIGenerator {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGeneratorTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultGeneratorMaxTokens
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bearer "+cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &OpenAIGenerator{
		client:      client,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}
}

// Model returns the chat model name.
func (g *OpenAIGenerator) Model() string { return g.model }

// Generate writes an article for the idea.
func (g *OpenAIGenerator) Generate(ctx context.Context, title, description string, tags []string) (string, error) {
	req := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompts.ArticleSystemPrompt},
			{Role: "user", Content: prompts.ArticleUserPrompt(title, description, tags)},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	}

	var resp chatResponse
	httpResp, err := g.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post("/chat/completions")
	if err != nil {
		return "", goerr.Wrap(domain.ErrGenerationFailed, "chat completion request failed",
			goerr.V("model", g.model), goerr.V("cause", err.Error()))
	}

	if httpResp.IsError() {
		msg := httpResp.Status()
		if resp.Error != nil && resp.Error.Message != "" {
			msg = resp.Error.Message
		}
		return "", goerr.Wrap(domain.ErrGenerationFailed, "chat completion error",
			goerr.V("status", httpResp.StatusCode()), goerr.V("message", msg))
	}

	if len(resp.Choices) == 0 {
		return "", goerr.Wrap(domain.ErrGenerationFailed, "no choices returned", goerr.V("model", g.model))
	}
	return nonEmptyArticle(resp.Choices[0].Message.Content, g.model)
}

// GeminiGenerator writes articles with the Gemini API.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewGeminiGenerator creates a Gemini API generator.
func NewGeminiGenerator(ctx context.Context, cfg *GeneratorConfig) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultGeneratorMaxTokens
	}

	return &GeminiGenerator{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Model returns the Gemini model name.
func (g *GeminiGenerator) Model() string { return g.model }

// Generate writes an article for the idea.
func (g *GeminiGenerator) Generate(ctx context.Context, title, description string, tags []string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompts.ArticleSystemPrompt, genai.RoleUser),
		MaxOutputTokens:   int32(g.maxTokens),
		Temperature:       genai.Ptr(float32(g.temperature)),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(prompts.ArticleUserPrompt(title, description, tags)), config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", goerr.Wrap(domain.ErrGenerationFailed, "gemini api error",
				goerr.V("code", apiErr.Code), goerr.V("message", apiErr.Message))
		}
		return "", goerr.Wrap(domain.ErrGenerationFailed, "failed to generate content",
			goerr.V("model", g.model), goerr.V("cause", err.Error()))
	}

	return nonEmptyArticle(resp.Text(), g.model)
}

func nonEmptyArticle(text, model string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", goerr.Wrap(domain.ErrGenerationFailed, "generator returned empty content", goerr.V("model", model))
	}
	return text, nil
}
