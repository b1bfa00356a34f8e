package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timmy/ideaforge/internal/domain"
)

// fakeEmbedder returns fixed vectors keyed by title. Texts are
// "title\n\ndescription", so the title is everything before the blank line.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	fail    map[string]error
	calls   atomic.Int64
	dim     int
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{}, fail: map[string]error{}, dim: dim}
}

func (f *fakeEmbedder) set(title string, vec []float32) *fakeEmbedder {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[title] = vec
	return f
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	title, _, _ := strings.Cut(text, "\n\n")

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[title]; ok {
		return nil, err
	}
	vec, ok := f.vectors[title]
	if !ok {
		return nil, domain.ProviderError(errors.New("no vector for " + title))
	}
	return vec, nil
}

func (f *fakeEmbedder) Model() string   { return "fake-model" }
func (f *fakeEmbedder) Dimensions() int { return f.dim }

func idea(id, title string) domain.Idea {
	return domain.Idea{
		ID:          id,
		Title:       title,
		Description: "Description for " + title + " long enough.",
		Tags:        []string{"go"},
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func usedIdea(id, title string, usedAt time.Time) domain.Idea {
	i := idea(id, title)
	i.Used = true
	at := usedAt.UTC()
	i.UsedAt = &at
	return i
}

type fakeGenerator struct {
	content string
	err     error
	calls   int
}

func (g *fakeGenerator) Generate(ctx context.Context, title, description string, tags []string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.content, nil
}

func (g *fakeGenerator) Model() string { return "fake-writer" }

type fakePlatform struct {
	name      string
	err       error
	published []*Article
}

func (p *fakePlatform) Name() string { return p.name }

func (p *fakePlatform) Publish(ctx context.Context, article *Article) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.published = append(p.published, article)
	return "https://" + p.name + ".example.com/" + article.IdeaID, nil
}

type fakePublicationLog struct {
	pubs []*domain.Publication
}

func (l *fakePublicationLog) CreateBatch(ctx context.Context, pubs []*domain.Publication) error {
	l.pubs = append(l.pubs, pubs...)
	return nil
}

type fakeArchive struct {
	keys map[string]string
	err  error
}

func (a *fakeArchive) Store(ctx context.Context, ideaID, content string, at time.Time) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	if a.keys == nil {
		a.keys = map[string]string{}
	}
	key := "articles/" + ideaID + ".md"
	a.keys[key] = content
	return key, nil
}

func (a *fakeArchive) URL(key string) string { return "https://cdn.example.com/" + key }
