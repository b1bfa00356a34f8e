// Package similarity scores embeddings against each other.
package similarity

import (
	"errors"
	"math"

	"github.com/m-mizutani/goerr/v2"
)

// ErrDimensionMismatch is returned when two vectors differ in length.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Cosine returns dot(a,b) / (|a|*|b|), in [-1, 1].
// A zero-magnitude vector scores 0 against everything, itself included.
// Accumulation is done in float64.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, goerr.Wrap(ErrDimensionMismatch, "cannot compare vectors",
			goerr.V("len_a", len(a)), goerr.V("len_b", len(b)))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push parallel vectors just past the bounds
	return math.Max(-1, math.Min(1, score)), nil
}

// MaxCosine returns the highest Cosine score of v against refs.
// An empty refs yields -1.
func MaxCosine(v []float32, refs [][]float32) (float64, error) {
	best := -1.0
	for _, ref := range refs {
		score, err := Cosine(v, ref)
		if err != nil {
			return 0, err
		}
		if score > best {
			best = score
		}
	}
	return best, nil
}
