package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timmy/ideaforge/internal/logger"
)

func TestDevToTags(t *testing.T) {
	testCases := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "lowercase", in: []string{"Go", "API"}, want: []string{"go", "api"}},
		{name: "strip punctuation", in: []string{"vector-search", "c++", "node.js"}, want: []string{"vectorsearch", "c", "nodejs"}},
		{name: "drop empties", in: []string{"!!!", "go"}, want: []string{"go"}},
		{name: "at most four", in: []string{"a", "b", "c", "d", "e"}, want: []string{"a", "b", "c", "d"}},
		{name: "nil", in: nil, want: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.Equal(t, DevToTags(tc.in), tc.want)
		})
	}
}

func TestDevToPlatformPublish(t *testing.T) {
	var got devToRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/api/articles")
		gt.Equal(t, r.Header.Get("api-key"), "devto-key")
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7,"url":"https://dev.to/me/vector-search-7"}`))
	}))
	defer srv.Close()

	platform := NewDevToPlatform("devto-key", srv.URL+"/api", 0)
	url, err := platform.Publish(context.Background(), &Article{
		IdeaID:  "i1",
		Title:   "Vector search",
		Content: "# Body",
		Tags:    []string{"Go", "vector-search"},
		Draft:   true,
	})
	gt.NoError(t, err)
	gt.Equal(t, url, "https://dev.to/me/vector-search-7")
	gt.Equal(t, got.Article.Title, "Vector search")
	gt.Equal(t, got.Article.BodyMarkdown, "# Body")
	gt.False(t, got.Article.Published)
	gt.Equal(t, got.Article.Tags, []string{"go", "vectorsearch"})
}

func TestDevToPlatformRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"Title can't be blank","status":422}`))
	}))
	defer srv.Close()

	platform := NewDevToPlatform("k", srv.URL, 0)
	_, err := platform.Publish(context.Background(), &Article{IdeaID: "i1"})
	gt.Error(t, err)
}

func TestWebhookPlatformPublish(t *testing.T) {
	var got Article
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.Header.Get("Authorization"), "Bearer hook-token")
		gt.Equal(t, r.Header.Get(HeaderRunID), "run-7")
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url":"https://blog.example.com/posts/1"}`))
	}))
	defer srv.Close()

	platform := NewWebhookPlatform(srv.URL+"/hook", "hook-token", 0)
	ctx := logger.SetRunID(context.Background(), "run-7")
	url, err := platform.Publish(ctx, &Article{
		IdeaID:  "i1",
		Title:   "T",
		Content: "C",
		Tags:    []string{"go"},
	})
	gt.NoError(t, err)
	gt.Equal(t, url, "https://blog.example.com/posts/1")
	gt.Equal(t, got.IdeaID, "i1")
	gt.Equal(t, got.Content, "C")
	gt.False(t, got.Draft)
}

func TestWebhookPlatformRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewWebhookPlatform(srv.URL, "", 0).Publish(context.Background(), &Article{})
	gt.Error(t, err)
}

func TestPublisherPublish(t *testing.T) {
	ok := &fakePlatform{name: "ok"}
	broken := &fakePlatform{name: "broken", err: errors.New("boom")}
	p := NewPublisher(ok, broken)

	gt.Equal(t, p.Platforms(), []string{"broken", "ok"})

	results := p.Publish(context.Background(), &Article{IdeaID: "i1"}, []string{"ok", "missing", "broken"})
	gt.A(t, results).Length(3)

	gt.True(t, results[0].Success)
	gt.Equal(t, results[0].URL, "https://ok.example.com/i1")

	gt.False(t, results[1].Success)
	gt.Equal(t, results[1].Platform, "missing")
	gt.Equal(t, results[1].Error, "platform not configured")

	gt.False(t, results[2].Success)
	gt.Equal(t, results[2].Error, "boom")
	gt.A(t, ok.published).Length(1)
}
