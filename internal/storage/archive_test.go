package storage

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
)

type memoryObjects struct {
	objects map[string][]byte
	types   map[string]string
	fail    error
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryObjects) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if m.fail != nil {
		return m.fail
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryObjects) EnsureBucket(ctx context.Context) error { return nil }

func (m *memoryObjects) GetURL(key string) string { return "https://cdn.example.com/" + key }

func TestArticleKey(t *testing.T) {
	archive := NewArticleArchive(newMemoryObjects(), "")
	at := time.Date(2026, 2, 28, 23, 30, 0, 0, time.FixedZone("UTC-3", -3*3600))

	// 23:30 at UTC-3 is already March in UTC
	gt.Equal(t, archive.ArticleKey("idea-1", at), "articles/2026/03/idea-1.md")
	gt.Equal(t, archive.ArticleKey("idea-1", time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)), "articles/2026/03/idea-1.md")

	custom := NewArticleArchive(newMemoryObjects(), "blog/raw")
	gt.Equal(t, custom.ArticleKey("x", time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)), "blog/raw/2025/11/x.md")
}

func TestArticleArchiveStore(t *testing.T) {
	objects := newMemoryObjects()
	archive := NewArticleArchive(objects, "articles")

	key, err := archive.Store(context.Background(), "idea-9", "# Title\n\nBody", time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC))
	gt.NoError(t, err)
	gt.Equal(t, key, "articles/2026/07/idea-9.md")
	gt.Equal(t, string(objects.objects[key]), "# Title\n\nBody")
	gt.Equal(t, objects.types[key], markdownContentType)
	gt.Equal(t, archive.URL(key), "https://cdn.example.com/articles/2026/07/idea-9.md")
}

func TestArticleArchiveStoreFailure(t *testing.T) {
	objects := newMemoryObjects()
	objects.fail = errors.New("bucket gone")
	archive := NewArticleArchive(objects, "")

	_, err := archive.Store(context.Background(), "idea-9", "body", time.Now())
	gt.Error(t, err)
}

func TestDetectStorageType(t *testing.T) {
	gt.Equal(t, detectStorageType("https://abc.r2.cloudflarestorage.com"), StorageTypeR2)
	gt.Equal(t, detectStorageType("s3.eu-west-1.amazonaws.com"), StorageTypeS3)
	gt.Equal(t, detectStorageType("localhost:9000"), StorageTypeS3Compatible)
}

func TestNormalizeEndpoint(t *testing.T) {
	gt.Equal(t, normalizeEndpoint("https://minio.local:9000/bucket/x"), "minio.local:9000")
	gt.Equal(t, normalizeEndpoint("http://localhost:9000/"), "localhost:9000")
}
