package repository

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned by VectorStore.Fetch for an absent id.
var ErrRecordNotFound = errors.New("vector record not found")

// Record is one (id, vector, metadata) triple. Metadata values are plain
// strings; stores do not keep typed metadata.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Match is a query result. Metadata is nil unless requested.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// StoreStats reports the store's approximate size.
type StoreStats struct {
	TotalRecords int64 `json:"total_records"`
	Dimension    int   `json:"dimension"`
}

// VectorStore is the keyed vector storage the idea repository is built on.
// Implementations wrap transport failures with domain.ErrStoreUnavailable.
type VectorStore interface {
	// Upsert inserts or replaces the record stored under id.
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error

	// Query returns up to topK records ranked by cosine similarity, best first.
	Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]Match, error)

	// Fetch returns the record stored under id, or ErrRecordNotFound.
	Fetch(ctx context.Context, id string) (*Record, error)

	// Delete removes id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error

	// Stats returns the approximate record count.
	Stats(ctx context.Context) (*StoreStats, error)

	// Dimension is the vector length the store accepts.
	Dimension() int

	// MaxQueryLimit is the largest topK Query honours.
	MaxQueryLimit() int
}

// Lister is implemented by stores that can enumerate every record.
type Lister interface {
	List(ctx context.Context) ([]Record, error)
}

func copyMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
