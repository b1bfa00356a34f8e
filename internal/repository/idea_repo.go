package repository

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/logger"
)

// IdeaRepository maps ideas onto a VectorStore. Callers see typed ideas;
// the string-encoded metadata stays inside this package.
type IdeaRepository struct {
	store VectorStore
	now   func() time.Time
}

// NewIdeaRepository creates an IdeaRepository over store.
func NewIdeaRepository(store VectorStore) *IdeaRepository {
	return &IdeaRepository{store: store, now: time.Now}
}

// Dimension returns the embedding length the underlying store accepts.
func (r *IdeaRepository) Dimension() int {
	return r.store.Dimension()
}

// Create stores idea under its id with the given embedding. It performs a
// single upsert, so a failure leaves nothing written.
func (r *IdeaRepository) Create(ctx context.Context, idea *domain.Idea, embedding []float32) error {
	md, err := encodeIdea(idea)
	if err != nil {
		return err
	}
	if err := r.store.Upsert(ctx, idea.ID, embedding, md); err != nil {
		return goerr.Wrap(err, "create idea: upsert", goerr.V("id", idea.ID))
	}
	return nil
}

// Get returns the idea stored under id.
func (r *IdeaRepository) Get(ctx context.Context, id string) (*domain.Idea, error) {
	rec, err := r.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeIdea(rec.ID, rec.Metadata)
}

// Query returns the topK ideas nearest to embedding, best first.
func (r *IdeaRepository) Query(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredIdea, error) {
	matches, err := r.store.Query(ctx, embedding, topK, true)
	if err != nil {
		return nil, goerr.Wrap(err, "query ideas", goerr.V("top_k", topK))
	}

	out := make([]domain.ScoredIdea, 0, len(matches))
	for _, m := range matches {
		idea, err := decodeIdea(m.ID, m.Metadata)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.ScoredIdea{Idea: *idea, Score: m.Score})
	}
	return out, nil
}

// ListAll returns the whole pool. Stores that can enumerate their records
// are scanned directly. Otherwise a zero-vector query with the store's
// maximum topK stands in for a scan; that result is bounded by the maximum,
// so a full page is logged as possibly truncated.
func (r *IdeaRepository) ListAll(ctx context.Context) ([]domain.Idea, error) {
	if lister, ok := r.store.(Lister); ok {
		records, err := lister.List(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "list ideas: scan")
		}
		ideas := make([]domain.Idea, 0, len(records))
		for _, rec := range records {
			idea, err := decodeIdea(rec.ID, rec.Metadata)
			if err != nil {
				return nil, err
			}
			ideas = append(ideas, *idea)
		}
		return ideas, nil
	}

	logger.CtxWarn(ctx, "Vector store cannot list records, falling back to a zero-vector query")
	limit := r.store.MaxQueryLimit()
	matches, err := r.store.Query(ctx, make([]float32, r.store.Dimension()), limit, true)
	if err != nil {
		return nil, goerr.Wrap(err, "list ideas: zero-vector query", goerr.V("top_k", limit))
	}
	if len(matches) >= limit {
		logger.With(logger.Fields{
			logger.FieldCount: len(matches),
			"max_query_limit": limit,
		}).Warn(ctx, "Idea listing reached the store query limit, pool may be truncated")
	}

	ideas := make([]domain.Idea, 0, len(matches))
	for _, m := range matches {
		idea, err := decodeIdea(m.ID, m.Metadata)
		if err != nil {
			return nil, err
		}
		ideas = append(ideas, *idea)
	}
	return ideas, nil
}

// MarkUsed sets used and a fresh usedAt on the stored idea and re-upserts it
// with its existing vector. Nothing is written when the id is absent or the
// idea is already used.
func (r *IdeaRepository) MarkUsed(ctx context.Context, id string) (*domain.Idea, error) {
	rec, err := r.fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	idea, err := decodeIdea(rec.ID, rec.Metadata)
	if err != nil {
		return nil, err
	}
	if err := idea.MarkUsed(r.now()); err != nil {
		return nil, err
	}

	md, err := encodeIdea(idea)
	if err != nil {
		return nil, err
	}
	if err := r.store.Upsert(ctx, id, rec.Vector, md); err != nil {
		return nil, goerr.Wrap(err, "mark used: upsert", goerr.V("id", id))
	}
	return idea, nil
}

// Delete removes id. Deleting an absent id succeeds.
func (r *IdeaRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrRecordNotFound) {
		return goerr.Wrap(err, "delete idea", goerr.V("id", id))
	}
	return nil
}

// Stats returns the store's record count and dimension.
func (r *IdeaRepository) Stats(ctx context.Context) (*StoreStats, error) {
	stats, err := r.store.Stats(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "store stats")
	}
	return stats, nil
}

func (r *IdeaRepository) fetch(ctx context.Context, id string) (*Record, error) {
	rec, err := r.store.Fetch(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, goerr.Wrap(domain.ErrIdeaNotFound, "fetch idea", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "fetch idea", goerr.V("id", id))
	}
	return rec, nil
}
