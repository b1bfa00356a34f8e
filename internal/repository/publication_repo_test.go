package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/timmy/ideaforge/internal/config"
	"github.com/timmy/ideaforge/internal/domain"
)

func newTestDB(t *testing.T) *PublicationRepository {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "test.db"),
		AutoMigrate: true,
	})
	gt.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewPublicationRepository(db)
}

func TestPublicationRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestDB(t)

	base := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	pubs := []*domain.Publication{
		{ID: "p1", RunID: "r1", IdeaID: "i1", Title: "First", Tags: domain.StringArray{"go"}, Platform: "devto", Status: domain.PublicationStatusPublished, URL: "https://dev.to/x", CreatedAt: base},
		{ID: "p2", RunID: "r1", IdeaID: "i1", Title: "First", Tags: domain.StringArray{"go"}, Platform: "webhook", Status: domain.PublicationStatusFailed, Error: "timeout", CreatedAt: base},
		{ID: "p3", RunID: "r2", IdeaID: "i2", Title: "Second", Platform: "devto", Status: domain.PublicationStatusPublished, CreatedAt: base.Add(time.Hour)},
	}
	gt.NoError(t, repo.CreateBatch(ctx, pubs))
	gt.NoError(t, repo.CreateBatch(ctx, nil))

	all, err := repo.List(ctx, 10, 0)
	gt.NoError(t, err)
	gt.A(t, all).Length(3)
	gt.Equal(t, all[0].ID, "p3")

	page, err := repo.List(ctx, 1, 1)
	gt.NoError(t, err)
	gt.A(t, page).Length(1)

	byIdea, err := repo.ListByIdea(ctx, "i1")
	gt.NoError(t, err)
	gt.A(t, byIdea).Length(2)
	gt.Equal(t, []string(byIdea[0].Tags), []string{"go"})
}
