package service

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/repository"
)

type publishFixture struct {
	svc       *PublishService
	repo      *repository.IdeaRepository
	generator *fakeGenerator
	devto     *fakePlatform
	webhook   *fakePlatform
	log       *fakePublicationLog
	archive   *fakeArchive
}

func newPublishFixture(t *testing.T) *publishFixture {
	t.Helper()
	repo := repository.NewIdeaRepository(repository.NewMemoryStore(2))
	only := idea("only", "Only idea")
	gt.NoError(t, repo.Create(context.Background(), &only, []float32{1, 0}))

	f := &publishFixture{
		repo:      repo,
		generator: &fakeGenerator{content: "# Only idea\n\nBody"},
		devto:     &fakePlatform{name: PlatformDevTo},
		webhook:   &fakePlatform{name: PlatformWebhook},
		log:       &fakePublicationLog{},
		archive:   &fakeArchive{},
	}
	f.svc = NewPublishService(&PublishServiceConfig{
		Ideas:            repo,
		Selector:         NewSelector(newFakeEmbedder(2)),
		Generator:        f.generator,
		Publisher:        NewPublisher(f.devto, f.webhook),
		Publications:     f.log,
		Archive:          f.archive,
		DefaultPlatforms: []string{PlatformDevTo},
		DefaultDraft:     true,
	})
	return f
}

func TestPublishRunMarksUsedAndRecords(t *testing.T) {
	f := newPublishFixture(t)
	ctx := context.Background()

	result, err := f.svc.Run(ctx, PublishOptions{})
	gt.NoError(t, err)
	gt.Equal(t, result.Idea.ID, "only")
	gt.True(t, result.Draft)
	gt.True(t, result.MarkedUsed)
	gt.Equal(t, result.ArchiveKey, "articles/only.md")
	gt.Equal(t, result.ArchiveURL, "https://cdn.example.com/articles/only.md")
	gt.Equal(t, result.ContentSize, len("# Only idea\n\nBody"))
	gt.A(t, result.Platforms).Length(1)
	gt.True(t, result.Platforms[0].Success)

	gt.A(t, f.devto.published).Length(1)
	gt.True(t, f.devto.published[0].Draft)
	gt.A(t, f.webhook.published).Length(0)

	stored, err := f.repo.Get(ctx, "only")
	gt.NoError(t, err)
	gt.True(t, stored.Used)
	gt.V(t, stored.UsedAt).NotNil()

	gt.A(t, f.log.pubs).Length(1)
	gt.Equal(t, f.log.pubs[0].RunID, result.RunID)
	gt.Equal(t, f.log.pubs[0].Status, domain.PublicationStatusPublished)
	gt.Equal(t, f.log.pubs[0].URL, "https://devto.example.com/only")
}

func TestPublishRunPartialFailureStillMarksUsed(t *testing.T) {
	f := newPublishFixture(t)
	f.webhook.err = errors.New("receiver down")
	draft := false

	result, err := f.svc.Run(context.Background(), PublishOptions{
		Draft:     &draft,
		Platforms: []string{PlatformWebhook, PlatformDevTo},
	})
	gt.NoError(t, err)
	gt.True(t, result.MarkedUsed)
	gt.False(t, result.Draft)
	gt.False(t, f.devto.published[0].Draft)

	gt.A(t, f.log.pubs).Length(2)
	gt.Equal(t, f.log.pubs[0].Platform, PlatformWebhook)
	gt.Equal(t, f.log.pubs[0].Status, domain.PublicationStatusFailed)
	gt.Equal(t, f.log.pubs[0].Error, "receiver down")
	gt.Equal(t, f.log.pubs[0].ArchiveKey, "")
	gt.Equal(t, f.log.pubs[1].Status, domain.PublicationStatusPublished)
	gt.Equal(t, f.log.pubs[1].ArchiveKey, "articles/only.md")
}

func TestPublishRunAllPlatformsFail(t *testing.T) {
	f := newPublishFixture(t)
	f.devto.err = errors.New("401")
	ctx := context.Background()

	result, err := f.svc.Run(ctx, PublishOptions{})
	gt.True(t, errors.Is(err, domain.ErrPublishFailed))
	gt.V(t, result).NotNil()
	gt.False(t, result.MarkedUsed)

	stored, err := f.repo.Get(ctx, "only")
	gt.NoError(t, err)
	gt.False(t, stored.Used)

	gt.Equal(t, result.ArchiveKey, "")
	gt.Equal(t, len(f.archive.keys), 0)

	gt.A(t, f.log.pubs).Length(1)
	gt.Equal(t, f.log.pubs[0].Status, domain.PublicationStatusFailed)
	gt.Equal(t, f.log.pubs[0].ArchiveKey, "")
}

func TestPublishRunGenerationFailureLeavesIdeaUnused(t *testing.T) {
	f := newPublishFixture(t)
	f.generator.err = domain.ErrGenerationFailed
	ctx := context.Background()

	_, err := f.svc.Run(ctx, PublishOptions{})
	gt.True(t, errors.Is(err, domain.ErrGenerationFailed))

	stored, err := f.repo.Get(ctx, "only")
	gt.NoError(t, err)
	gt.False(t, stored.Used)
	gt.A(t, f.devto.published).Length(0)
	gt.A(t, f.log.pubs).Length(0)
}

func TestPublishRunDryRun(t *testing.T) {
	f := newPublishFixture(t)
	ctx := context.Background()

	result, err := f.svc.Run(ctx, PublishOptions{DryRun: true})
	gt.NoError(t, err)
	gt.True(t, result.DryRun)
	gt.Equal(t, result.Content, "# Only idea\n\nBody")
	gt.False(t, result.MarkedUsed)
	gt.A(t, f.devto.published).Length(0)
	gt.Equal(t, len(f.archive.keys), 0)

	stored, err := f.repo.Get(ctx, "only")
	gt.NoError(t, err)
	gt.False(t, stored.Used)
}

func TestPublishRunArchiveFailureIsNotFatal(t *testing.T) {
	f := newPublishFixture(t)
	f.archive.err = errors.New("bucket missing")

	result, err := f.svc.Run(context.Background(), PublishOptions{})
	gt.NoError(t, err)
	gt.True(t, result.MarkedUsed)
	gt.Equal(t, result.ArchiveKey, "")
}

func TestPublishRunNoUnusedIdeas(t *testing.T) {
	f := newPublishFixture(t)
	ctx := context.Background()

	_, err := f.svc.Run(ctx, PublishOptions{})
	gt.NoError(t, err)

	_, err = f.svc.Run(ctx, PublishOptions{})
	gt.True(t, errors.Is(err, domain.ErrNoUnusedIdeas))
	gt.Equal(t, f.generator.calls, 1)
}
