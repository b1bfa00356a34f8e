package service

import (
	"context"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/logger"
	"github.com/timmy/ideaforge/internal/similarity"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRecentWindow       = 5
	defaultSelectorConcurrent = 4
)

// Selection is the idea chosen by SelectNext and how it was chosen.
type Selection struct {
	Idea          domain.Idea `json:"idea"`
	ColdStart     bool        `json:"cold_start"`
	MaxSimilarity float64     `json:"max_similarity"`
	RecentIDs     []string    `json:"recent_ids,omitempty"`
	Candidates    int         `json:"candidates"`
}

// Selector picks the unused idea least similar to recently used ones.
type Selector struct {
	embedder     EmbeddingProvider
	recentWindow int
	concurrency  int
	intn         func(n int) int
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithRecentWindow sets how many recently used ideas are compared against.
func WithRecentWindow(n int) SelectorOption {
	return func(s *Selector) {
		if n > 0 {
			s.recentWindow = n
		}
	}
}

// WithConcurrency bounds the number of embedding calls in flight.
func WithConcurrency(n int) SelectorOption {
	return func(s *Selector) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRandom replaces the cold-start random source. intn must return a
// value in [0, n).
func WithRandom(intn func(n int) int) SelectorOption {
	return func(s *Selector) {
		s.intn = intn
	}
}

// NewSelector creates a Selector that embeds ideas with embedder.
func NewSelector(embedder EmbeddingProvider, opts ...SelectorOption) *Selector {
	s := &Selector{
		embedder:     embedder,
		recentWindow: DefaultRecentWindow,
		concurrency:  defaultSelectorConcurrent,
		intn:         rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectNext returns the unused idea whose highest similarity to the
// recently used ideas is lowest. With no usage history it returns a random
// unused idea. Ties keep the earliest candidate in ideas. It does not
// modify anything.
func (s *Selector) SelectNext(ctx context.Context, ideas []domain.Idea) (*Selection, error) {
	var unused, history []domain.Idea
	for _, idea := range ideas {
		if idea.Used {
			history = append(history, idea)
		} else {
			unused = append(unused, idea)
		}
	}

	if len(unused) == 0 {
		return nil, goerr.Wrap(domain.ErrNoUnusedIdeas, "select next",
			goerr.V("pool", len(ideas)))
	}

	recent := mostRecentlyUsed(history, s.recentWindow)
	if len(recent) == 0 {
		pick := unused[s.intn(len(unused))]
		logger.With(logger.Fields{
			logger.FieldIdeaID: pick.ID,
			"candidates":       len(unused),
		}).Info(ctx, "Cold start, picked a random unused idea")
		return &Selection{Idea: pick, ColdStart: true, Candidates: len(unused)}, nil
	}

	start := time.Now()

	recentVecs, candidateVecs, err := s.embedAll(ctx, recent, unused)
	if err != nil {
		return nil, err
	}

	best := 0
	bestScore := 1.0
	for i, vec := range candidateVecs {
		maxSim, err := similarity.MaxCosine(vec, recentVecs)
		if err != nil {
			return nil, goerr.Wrap(err, "select next: similarity",
				goerr.V("candidate", unused[i].ID))
		}
		if maxSim < bestScore {
			best = i
			bestScore = maxSim
		}
	}

	recentIDs := make([]string, len(recent))
	for i, r := range recent {
		recentIDs[i] = r.ID
	}

	logger.With(logger.Fields{
		logger.FieldIdeaID:     unused[best].ID,
		logger.FieldScore:      bestScore,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		"candidates":           len(unused),
		"recent":               len(recent),
	}).Info(ctx, "Selected next idea")

	return &Selection{
		Idea:          unused[best],
		MaxSimilarity: bestScore,
		RecentIDs:     recentIDs,
		Candidates:    len(unused),
	}, nil
}

// embedAll embeds recent and candidates concurrently. Vectors are written
// by index, so the result is the same as embedding them in order.
func (s *Selector) embedAll(ctx context.Context, recent, candidates []domain.Idea) ([][]float32, [][]float32, error) {
	recentVecs := make([][]float32, len(recent))
	candidateVecs := make([][]float32, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	embedInto := func(dst [][]float32, i int, idea domain.Idea, role string) {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, idea.EmbeddingText())
			if err != nil {
				return goerr.Wrap(err, "select next: embed "+role, goerr.V("id", idea.ID))
			}
			dst[i] = vec
			return nil
		})
	}

	for i, idea := range recent {
		embedInto(recentVecs, i, idea, "recent idea")
	}
	for i, idea := range candidates {
		embedInto(candidateVecs, i, idea, "candidate")
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return recentVecs, candidateVecs, nil
}

// mostRecentlyUsed returns up to n used ideas, latest usedAt first. Ideas
// without a timestamp sort last.
func mostRecentlyUsed(history []domain.Idea, n int) []domain.Idea {
	sorted := make([]domain.Idea, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].UsedAt, sorted[j].UsedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
