package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/timmy/ideaforge/internal/domain"
)

// queryOnlyStore hides MemoryStore.List so the repository falls back to the
// zero-vector listing, and counts upserts.
type queryOnlyStore struct {
	inner   *MemoryStore
	upserts int
	limit   int
}

func newQueryOnlyStore(dim int) *queryOnlyStore {
	return &queryOnlyStore{inner: NewMemoryStore(dim), limit: memoryMaxQueryLimit}
}

func (s *queryOnlyStore) Upsert(ctx context.Context, id string, vector []float32, md map[string]string) error {
	s.upserts++
	return s.inner.Upsert(ctx, id, vector, md)
}

func (s *queryOnlyStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool) ([]Match, error) {
	return s.inner.Query(ctx, vector, topK, includeMetadata)
}

func (s *queryOnlyStore) Fetch(ctx context.Context, id string) (*Record, error) {
	return s.inner.Fetch(ctx, id)
}

func (s *queryOnlyStore) Delete(ctx context.Context, id string) error {
	return s.inner.Delete(ctx, id)
}

func (s *queryOnlyStore) Stats(ctx context.Context) (*StoreStats, error) {
	return s.inner.Stats(ctx)
}

func (s *queryOnlyStore) Dimension() int     { return s.inner.Dimension() }
func (s *queryOnlyStore) MaxQueryLimit() int { return s.limit }

type failingStore struct {
	queryOnlyStore
}

func (s *failingStore) Fetch(ctx context.Context, id string) (*Record, error) {
	return nil, domain.StoreError(errors.New("connection refused"))
}

func sampleIdea(id, title string) *domain.Idea {
	return &domain.Idea{
		ID:          id,
		Title:       title,
		Description: "A description that is long enough to pass validation.",
		Tags:        []string{"go", "vectors", "search"},
		CreatedAt:   time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.UTC),
	}
}

func TestIdeaCodecRoundTrip(t *testing.T) {
	usedAt := time.Date(2026, 4, 2, 12, 0, 0, 5, time.UTC)

	testCases := []struct {
		name string
		idea *domain.Idea
	}{
		{name: "unused", idea: sampleIdea("a", "Unused idea")},
		{name: "used", idea: func() *domain.Idea {
			i := sampleIdea("b", "Used idea")
			i.Used = true
			i.UsedAt = &usedAt
			return i
		}()},
		{name: "tag order", idea: func() *domain.Idea {
			i := sampleIdea("c", "Ordered tags")
			i.Tags = []string{"zeta", "alpha", "Mu", "alpha-2"}
			return i
		}()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			md, err := encodeIdea(tc.idea)
			gt.NoError(t, err)

			decoded, err := decodeIdea(tc.idea.ID, md)
			gt.NoError(t, err)
			gt.Equal(t, decoded.ID, tc.idea.ID)
			gt.Equal(t, decoded.Title, tc.idea.Title)
			gt.Equal(t, decoded.Description, tc.idea.Description)
			gt.Equal(t, decoded.Tags, tc.idea.Tags)
			gt.True(t, decoded.CreatedAt.Equal(tc.idea.CreatedAt))
			gt.Equal(t, decoded.Used, tc.idea.Used)
			gt.Equal(t, decoded.UsedAt == nil, tc.idea.UsedAt == nil)
			if tc.idea.UsedAt != nil {
				gt.True(t, decoded.UsedAt.Equal(*tc.idea.UsedAt))
			}
		})
	}
}

func TestIdeaCodecStringEncoding(t *testing.T) {
	md, err := encodeIdea(sampleIdea("a", "Encoding check"))
	gt.NoError(t, err)
	gt.Equal(t, md[metaTags], `["go","vectors","search"]`)
	gt.Equal(t, md[metaUsed], "false")
	gt.Equal(t, md[metaUsedAt], "")
}

func TestIdeaCodecRejectsCorruptMetadata(t *testing.T) {
	_, err := decodeIdea("a", map[string]string{metaTags: "not-json"})
	gt.Error(t, err)

	_, err = decodeIdea("a", map[string]string{metaUsed: "yes"})
	gt.Error(t, err)
}

func TestIdeaRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewIdeaRepository(NewMemoryStore(3))

	idea := sampleIdea("idea-1", "Stored idea")
	gt.NoError(t, repo.Create(ctx, idea, []float32{1, 0, 0}))

	got, err := repo.Get(ctx, "idea-1")
	gt.NoError(t, err)
	gt.Equal(t, got.Title, "Stored idea")
	gt.Equal(t, got.Tags, idea.Tags)
	gt.False(t, got.Used)

	_, err = repo.Get(ctx, "missing")
	gt.True(t, errors.Is(err, domain.ErrIdeaNotFound))
}

func TestIdeaRepositoryQuery(t *testing.T) {
	ctx := context.Background()
	repo := NewIdeaRepository(NewMemoryStore(2))

	gt.NoError(t, repo.Create(ctx, sampleIdea("x", "Along the x axis"), []float32{1, 0}))
	gt.NoError(t, repo.Create(ctx, sampleIdea("y", "Along the y axis"), []float32{0, 1}))

	results, err := repo.Query(ctx, []float32{1, 0.1}, 5)
	gt.NoError(t, err)
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0].Idea.ID, "x")
	gt.True(t, results[0].Score > results[1].Score)
}

func TestMarkUsedUnknownIDDoesNotUpsert(t *testing.T) {
	ctx := context.Background()
	store := newQueryOnlyStore(2)
	repo := NewIdeaRepository(store)

	_, err := repo.MarkUsed(ctx, "nope")
	gt.True(t, errors.Is(err, domain.ErrIdeaNotFound))
	gt.Equal(t, store.upserts, 0)
}

func TestMarkUsedThenListAll(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 5, 5, 8, 0, 0, 0, time.UTC)

	for name, store := range map[string]VectorStore{
		"native scan":       NewMemoryStore(2),
		"zero-vector query": newQueryOnlyStore(2),
	} {
		t.Run(name, func(t *testing.T) {
			repo := NewIdeaRepository(store)
			repo.now = func() time.Time { return fixed }

			gt.NoError(t, repo.Create(ctx, sampleIdea("a", "First idea"), []float32{1, 0}))
			gt.NoError(t, repo.Create(ctx, sampleIdea("b", "Second idea"), []float32{0, 1}))

			marked, err := repo.MarkUsed(ctx, "a")
			gt.NoError(t, err)
			gt.True(t, marked.Used)

			ideas, err := repo.ListAll(ctx)
			gt.NoError(t, err)
			gt.A(t, ideas).Length(2)

			for _, idea := range ideas {
				if idea.ID != "a" {
					gt.False(t, idea.Used)
					continue
				}
				gt.True(t, idea.Used)
				gt.V(t, idea.UsedAt).NotNil()
				gt.True(t, idea.UsedAt.Equal(fixed))
			}
		})
	}
}

func TestMarkUsedKeepsVector(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)
	repo := NewIdeaRepository(store)

	vector := []float32{0.2, 0.4, 0.6}
	gt.NoError(t, repo.Create(ctx, sampleIdea("a", "Vector stays"), vector))
	_, err := repo.MarkUsed(ctx, "a")
	gt.NoError(t, err)

	rec, err := store.Fetch(ctx, "a")
	gt.NoError(t, err)
	gt.Equal(t, rec.Vector, vector)
	gt.Equal(t, rec.Metadata[metaUsed], "true")
	gt.True(t, rec.Metadata[metaUsedAt] != "")
}

func TestMarkUsedTwiceFails(t *testing.T) {
	ctx := context.Background()
	store := newQueryOnlyStore(2)
	repo := NewIdeaRepository(store)

	gt.NoError(t, repo.Create(ctx, sampleIdea("a", "Only once"), []float32{1, 1}))
	first, err := repo.MarkUsed(ctx, "a")
	gt.NoError(t, err)

	_, err = repo.MarkUsed(ctx, "a")
	gt.True(t, errors.Is(err, domain.ErrIdeaAlreadyUsed))
	gt.Equal(t, store.upserts, 2)

	got, err := repo.Get(ctx, "a")
	gt.NoError(t, err)
	gt.True(t, got.UsedAt.Equal(*first.UsedAt))
}

func TestMarkUsedStoreFailure(t *testing.T) {
	store := &failingStore{queryOnlyStore: *newQueryOnlyStore(2)}
	repo := NewIdeaRepository(store)

	_, err := repo.MarkUsed(context.Background(), "a")
	gt.True(t, errors.Is(err, domain.ErrStoreUnavailable))
	gt.False(t, errors.Is(err, domain.ErrIdeaNotFound))
	gt.Equal(t, store.upserts, 0)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewIdeaRepository(NewMemoryStore(2))

	gt.NoError(t, repo.Create(ctx, sampleIdea("a", "Short lived"), []float32{1, 0}))
	gt.NoError(t, repo.Delete(ctx, "a"))
	gt.NoError(t, repo.Delete(ctx, "a"))

	_, err := repo.Get(ctx, "a")
	gt.True(t, errors.Is(err, domain.ErrIdeaNotFound))
}

func TestListAllShimIsBoundedByQueryLimit(t *testing.T) {
	ctx := context.Background()
	store := newQueryOnlyStore(2)
	store.limit = 2
	repo := NewIdeaRepository(store)

	for _, id := range []string{"a", "b", "c"} {
		gt.NoError(t, repo.Create(ctx, sampleIdea(id, "Idea "+id), []float32{1, 0}))
	}

	ideas, err := repo.ListAll(ctx)
	gt.NoError(t, err)
	gt.A(t, ideas).Length(2)
}
