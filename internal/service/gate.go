package service

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/logger"
)

const (
	DefaultGateTopK      = 5
	DefaultGateThreshold = 0.85
	maxGateConflicts     = 3
)

// ideaQuerier is the nearest-neighbor lookup the gate needs.
type ideaQuerier interface {
	Query(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredIdea, error)
}

// GateOptions overrides the gate's defaults for one evaluation. Zero
// fields fall back to the gate's configured values.
type GateOptions struct {
	TopK      int
	Threshold float64
}

// GateResult is the outcome of a uniqueness check. Threshold and TopK are
// the values that were actually applied.
type GateResult struct {
	Accepted  bool              `json:"accepted"`
	Threshold float64           `json:"threshold"`
	TopK      int               `json:"top_k"`
	MaxScore  float64           `json:"max_score"`
	Conflicts []domain.Conflict `json:"conflicts,omitempty"`
}

// UniquenessGate rejects a candidate embedding whose nearest stored idea
// scores at or above the threshold.
type UniquenessGate struct {
	ideas     ideaQuerier
	topK      int
	threshold float64
}

// NewUniquenessGate creates a gate. Non-positive values take the defaults.
func NewUniquenessGate(ideas ideaQuerier, topK int, threshold float64) *UniquenessGate {
	if topK <= 0 {
		topK = DefaultGateTopK
	}
	if threshold <= 0 {
		threshold = DefaultGateThreshold
	}
	return &UniquenessGate{ideas: ideas, topK: topK, threshold: threshold}
}

// Threshold returns the configured default threshold.
func (g *UniquenessGate) Threshold() float64 { return g.threshold }

// TopK returns the configured default neighbor count.
func (g *UniquenessGate) TopK() int { return g.topK }

// Evaluate checks candidate against the pool. A rejection is a normal
// result, not an error; errors come only from the repository.
func (g *UniquenessGate) Evaluate(ctx context.Context, candidate []float32, opts *GateOptions) (*GateResult, error) {
	result := &GateResult{TopK: g.topK, Threshold: g.threshold}
	if opts != nil {
		if opts.TopK > 0 {
			result.TopK = opts.TopK
		}
		if opts.Threshold > 0 {
			result.Threshold = opts.Threshold
		}
	}

	neighbors, err := g.ideas.Query(ctx, candidate, result.TopK)
	if err != nil {
		return nil, goerr.Wrap(err, "uniqueness gate: query neighbors", goerr.V("top_k", result.TopK))
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Score > neighbors[j].Score
	})

	if len(neighbors) > 0 {
		result.MaxScore = neighbors[0].Score
	}

	for _, n := range neighbors {
		if n.Score < result.Threshold || len(result.Conflicts) == maxGateConflicts {
			break
		}
		result.Conflicts = append(result.Conflicts, domain.Conflict{
			ID:    n.Idea.ID,
			Title: n.Idea.Title,
			Score: n.Score,
		})
	}
	result.Accepted = len(result.Conflicts) == 0

	entry := logger.With(logger.Fields{
		logger.FieldThreshold: result.Threshold,
		logger.FieldScore:     result.MaxScore,
		logger.FieldCount:     len(neighbors),
		"top_k":               result.TopK,
		"accepted":            result.Accepted,
	})
	if result.Accepted {
		entry.Debug(ctx, "Uniqueness gate accepted candidate")
	} else {
		entry.Info(ctx, "Uniqueness gate rejected candidate with %d conflicts", len(result.Conflicts))
	}

	return result, nil
}
