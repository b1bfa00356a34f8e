package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/similarity"
	"go.etcd.io/bbolt"
)

const boltMaxQueryLimit = 10000

var bucketIdeaVectors = []byte("idea_vectors")

type boltRecord struct {
	Vector   []float32         `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
}

// BoltStore is a VectorStore persisted in a single bbolt file. Records are
// mirrored in memory and searched brute-force, which suits a single
// operator's pool.
type BoltStore struct {
	db        *bbolt.DB
	dimension int

	mu      sync.RWMutex
	records map[string]Record
}

// NewBoltStore opens (or creates) the bbolt file at path.
func NewBoltStore(path string, dimension int) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, goerr.Wrap(err, "failed to create bolt directory", goerr.V("dir", dir))
		}
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, goerr.Wrap(domain.StoreError(err), "failed to open bolt db", goerr.V("path", path))
	}

	s := &BoltStore{
		db:        db,
		dimension: dimension,
		records:   make(map[string]Record),
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIdeaVectors)
		return err
	}); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to create bucket")
	}

	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIdeaVectors).ForEach(func(k, v []byte) error {
			var stored boltRecord
			if err := json.Unmarshal(v, &stored); err != nil {
				return goerr.Wrap(err, "corrupt bolt record", goerr.V("id", string(k)))
			}
			id := string(k)
			s.records[id] = Record{ID: id, Vector: stored.Vector, Metadata: stored.Metadata}
			return nil
		})
	})
}

// Upsert writes the record to disk, then to the in-memory mirror.
func (s *BoltStore) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	if len(vector) != s.dimension {
		return goerr.Wrap(similarity.ErrDimensionMismatch, "upsert rejected",
			goerr.V("expected", s.dimension), goerr.V("got", len(vector)))
	}

	data, err := json.Marshal(boltRecord{Vector: vector, Metadata: metadata})
	if err != nil {
		return goerr.Wrap(err, "failed to encode record", goerr.V("id", id))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIdeaVectors).Put([]byte(id), data)
	}); err != nil {
		return goerr.Wrap(domain.StoreError(err), "bolt put failed", goerr.V("id", id))
	}

	s.records[id] = Record{ID: id, Vector: copyVector(vector), Metadata: copyMetadata(metadata)}
	return nil
}

// Query ranks every record against vector.
func (s *BoltStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rankRecords(s.records, vector, topK, includeMetadata)
}

// Fetch returns the record stored under id.
func (s *BoltStore) Fetch(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, goerr.Wrap(ErrRecordNotFound, "fetch", goerr.V("id", id))
	}
	return &Record{ID: rec.ID, Vector: copyVector(rec.Vector), Metadata: copyMetadata(rec.Metadata)}, nil
}

// Delete removes id from disk and memory.
func (s *BoltStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIdeaVectors).Delete([]byte(id))
	}); err != nil {
		return goerr.Wrap(domain.StoreError(err), "bolt delete failed", goerr.V("id", id))
	}
	delete(s.records, id)
	return nil
}

// List returns every record in key order.
func (s *BoltStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIdeaVectors).ForEach(func(k, _ []byte) error {
			if rec, ok := s.records[string(k)]; ok {
				out = append(out, Record{ID: rec.ID, Vector: copyVector(rec.Vector), Metadata: copyMetadata(rec.Metadata)})
			}
			return nil
		})
	})
	if err != nil {
		return nil, goerr.Wrap(domain.StoreError(err), "bolt scan failed")
	}
	return out, nil
}

// Stats returns the record count.
func (s *BoltStore) Stats(ctx context.Context) (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &StoreStats{TotalRecords: int64(len(s.records)), Dimension: s.dimension}, nil
}

// Dimension returns the accepted vector length.
func (s *BoltStore) Dimension() int { return s.dimension }

// MaxQueryLimit returns the largest honoured topK.
func (s *BoltStore) MaxQueryLimit() int { return boltMaxQueryLimit }

// Close closes the bbolt file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
