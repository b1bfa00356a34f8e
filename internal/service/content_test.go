package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/prompts"
)

func chatServer(t *testing.T, status int, body string, captured *chatRequest) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/chat/completions")
		gt.Equal(t, r.Header.Get("Authorization"), "Bearer writer-key")
		if captured != nil {
			gt.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestOpenAIGeneratorGenerate(t *testing.T) {
	var req chatRequest
	url := chatServer(t, http.StatusOK,
		`{"choices":[{"message":{"content":"  # Article\n\nBody  "},"finish_reason":"stop"}]}`, &req)

	gen, err := NewContentGenerator(context.Background(), &GeneratorConfig{
		Provider:    "openai-compatible",
		Model:       "writer",
		APIKey:      "writer-key",
		BaseURL:     url,
		Temperature: 0.7,
	})
	gt.NoError(t, err)
	gt.Equal(t, gen.Model(), "writer")

	content, err := gen.Generate(context.Background(), "Title", "Description", []string{"go"})
	gt.NoError(t, err)
	gt.Equal(t, content, "# Article\n\nBody")

	gt.Equal(t, req.Model, "writer")
	gt.Equal(t, req.MaxTokens, defaultGeneratorMaxTokens)
	gt.A(t, req.Messages).Length(2)
	gt.Equal(t, req.Messages[0].Content, prompts.ArticleSystemPrompt)
	gt.Equal(t, req.Messages[1].Content, prompts.ArticleUserPrompt("Title", "Description", []string{"go"}))
}

func TestOpenAIGeneratorFailures(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "api error", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down","type":"rate_limit"}}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "blank content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"   "}}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gen := NewOpenAIGenerator(&GeneratorConfig{
				Model:   "writer",
				APIKey:  "writer-key",
				BaseURL: chatServer(t, tc.status, tc.body, nil),
			})
			_, err := gen.Generate(context.Background(), "T", "D", nil)
			gt.True(t, errors.Is(err, domain.ErrGenerationFailed))
		})
	}
}

func TestNewContentGeneratorUnknownProvider(t *testing.T) {
	_, err := NewContentGenerator(context.Background(), &GeneratorConfig{Provider: "markov"})
	gt.Error(t, err)
}
