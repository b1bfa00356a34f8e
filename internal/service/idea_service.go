package service

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/logger"
	"github.com/timmy/ideaforge/internal/repository"
)

// IdeaRepository is the idea pool as the services use it.
// *repository.IdeaRepository implements it.
type IdeaRepository interface {
	Create(ctx context.Context, idea *domain.Idea, embedding []float32) error
	Get(ctx context.Context, id string) (*domain.Idea, error)
	Query(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredIdea, error)
	ListAll(ctx context.Context) ([]domain.Idea, error)
	MarkUsed(ctx context.Context, id string) (*domain.Idea, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*repository.StoreStats, error)
}

// CreateResult is the outcome of IdeaService.Create. Idea is nil when the
// gate rejected the candidate.
type CreateResult struct {
	Idea *domain.Idea `json:"idea,omitempty"`
	Gate *GateResult  `json:"gate"`
}

// PoolStats summarises the idea pool.
type PoolStats struct {
	Total        int     `json:"total"`
	Used         int     `json:"used"`
	Unused       int     `json:"unused"`
	StoreRecords int64   `json:"store_records"`
	Dimension    int     `json:"dimension"`
	Threshold    float64 `json:"threshold"`
	TopK         int     `json:"top_k"`
}

// IdeaService implements idea creation, listing and selection on top of
// the repository, the embedding provider, the gate and the selector.
type IdeaService struct {
	repo     IdeaRepository
	embedder EmbeddingProvider
	gate     *UniquenessGate
	selector *Selector
	now      func() time.Time
}

// NewIdeaService creates an IdeaService.
func NewIdeaService(repo IdeaRepository, embedder EmbeddingProvider, gate *UniquenessGate, selector *Selector) *IdeaService {
	return &IdeaService{
		repo:     repo,
		embedder: embedder,
		gate:     gate,
		selector: selector,
		now:      time.Now,
	}
}

// Create validates, embeds and gate-checks a new idea, then stores it if
// the gate accepts. A rejection returns a result with a nil Idea and no
// error; nothing is written in that case.
func (s *IdeaService) Create(ctx context.Context, in domain.NewIdeaInput, opts *GateOptions) (*CreateResult, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	embedding, err := s.embedder.Embed(ctx, domain.EmbeddingText(in.Title, in.Description))
	if err != nil {
		return nil, goerr.Wrap(err, "create idea: embed")
	}

	gate, err := s.gate.Evaluate(ctx, embedding, opts)
	if err != nil {
		return nil, goerr.Wrap(err, "create idea: gate")
	}
	if !gate.Accepted {
		return &CreateResult{Gate: gate}, nil
	}

	idea := domain.NewIdea(in, s.now())
	if err := s.repo.Create(ctx, idea, embedding); err != nil {
		return nil, goerr.Wrap(err, "create idea: store", goerr.V("id", idea.ID))
	}

	logger.With(logger.Fields{
		logger.FieldIdeaID: idea.ID,
		logger.FieldScore:  gate.MaxScore,
	}).Info(ctx, "Idea created: %s", idea.Title)

	return &CreateResult{Idea: idea, Gate: gate}, nil
}

// List returns the pool newest first. A non-nil used filters by state.
func (s *IdeaService) List(ctx context.Context, used *bool) ([]domain.Idea, error) {
	ideas, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "list ideas")
	}

	out := make([]domain.Idea, 0, len(ideas))
	for _, idea := range ideas {
		if used != nil && idea.Used != *used {
			continue
		}
		out = append(out, idea)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Get returns one idea.
func (s *IdeaService) Get(ctx context.Context, id string) (*domain.Idea, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes one idea. Absent ids are not an error.
func (s *IdeaService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.With(logger.Fields{logger.FieldIdeaID: id}).Info(ctx, "Idea deleted")
	return nil
}

// MarkUsed marks one idea as used.
func (s *IdeaService) MarkUsed(ctx context.Context, id string) (*domain.Idea, error) {
	idea, err := s.repo.MarkUsed(ctx, id)
	if err != nil {
		return nil, err
	}
	logger.With(logger.Fields{logger.FieldIdeaID: id}).Info(ctx, "Idea marked used")
	return idea, nil
}

// Next previews the idea the selector would pick now.
func (s *IdeaService) Next(ctx context.Context) (*Selection, error) {
	ideas, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "next idea: list")
	}
	return s.selector.SelectNext(ctx, ideas)
}

// Stats counts the pool and reports the active gate settings.
func (s *IdeaService) Stats(ctx context.Context) (*PoolStats, error) {
	ideas, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "stats: list")
	}
	storeStats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "stats: store")
	}

	stats := &PoolStats{
		Total:        len(ideas),
		StoreRecords: storeStats.TotalRecords,
		Dimension:    storeStats.Dimension,
		Threshold:    s.gate.Threshold(),
		TopK:         s.gate.TopK(),
	}
	for _, idea := range ideas {
		if idea.Used {
			stats.Used++
		}
	}
	stats.Unused = stats.Total - stats.Used
	return stats, nil
}
