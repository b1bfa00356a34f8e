package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/similarity"
)

const memoryMaxQueryLimit = 10000

// MemoryStore is an in-process VectorStore for local runs and tests.
// Search is brute-force cosine.
type MemoryStore struct {
	mu        sync.RWMutex
	records   map[string]Record
	dimension int
}

// NewMemoryStore creates an empty MemoryStore for vectors of the given length.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		records:   make(map[string]Record),
		dimension: dimension,
	}
}

// Upsert stores a copy of the record.
func (s *MemoryStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	if len(vector) != s.dimension {
		return goerr.Wrap(similarity.ErrDimensionMismatch, "upsert rejected",
			goerr.V("expected", s.dimension), goerr.V("got", len(vector)))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = Record{ID: id, Vector: copyVector(vector), Metadata: copyMetadata(metadata)}
	return nil
}

// Query ranks every record against vector.
func (s *MemoryStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return rankRecords(s.records, vector, topK, includeMetadata)
}

// Fetch returns a copy of the record.
func (s *MemoryStore) Fetch(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, goerr.Wrap(ErrRecordNotFound, "fetch", goerr.V("id", id))
	}
	return &Record{ID: rec.ID, Vector: copyVector(rec.Vector), Metadata: copyMetadata(rec.Metadata)}, nil
}

// Delete removes id.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// List returns every record, ordered by id.
func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, Record{ID: rec.ID, Vector: copyVector(rec.Vector), Metadata: copyMetadata(rec.Metadata)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Stats returns the record count.
func (s *MemoryStore) Stats(ctx context.Context) (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &StoreStats{TotalRecords: int64(len(s.records)), Dimension: s.dimension}, nil
}

// Dimension returns the accepted vector length.
func (s *MemoryStore) Dimension() int { return s.dimension }

// MaxQueryLimit returns the largest honoured topK.
func (s *MemoryStore) MaxQueryLimit() int { return memoryMaxQueryLimit }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// rankRecords scores records against vector, best first, ties broken by id.
func rankRecords(records map[string]Record, vector []float32, topK int, includeMetadata bool) ([]Match, error) {
	matches := make([]Match, 0, len(records))
	for _, rec := range records {
		score, err := similarity.Cosine(vector, rec.Vector)
		if err != nil {
			return nil, err
		}
		m := Match{ID: rec.ID, Score: score}
		if includeMetadata {
			m.Metadata = copyMetadata(rec.Metadata)
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}
