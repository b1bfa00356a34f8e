package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/logger"
)

// PublicationLog records per-platform publication attempts.
// *repository.PublicationRepository implements it.
type PublicationLog interface {
	CreateBatch(ctx context.Context, pubs []*domain.Publication) error
}

// Archiver stores generated article bodies. *storage.ArticleArchive implements it.
type Archiver interface {
	Store(ctx context.Context, ideaID, content string, at time.Time) (string, error)
	URL(key string) string
}

// PublishOptions controls one publish run. Nil Draft and empty Platforms
// use the service defaults.
type PublishOptions struct {
	Draft     *bool    `json:"draft,omitempty"`
	Platforms []string `json:"platforms,omitempty"`
	DryRun    bool     `json:"dry_run,omitempty"`
}

// PublishResult describes a publish run.
type PublishResult struct {
	RunID       string           `json:"run_id"`
	Idea        domain.Idea      `json:"idea"`
	Selection   *Selection       `json:"selection"`
	DryRun      bool             `json:"dry_run"`
	Draft       bool             `json:"draft"`
	Content     string           `json:"content,omitempty"`
	ContentSize int              `json:"content_size"`
	ArchiveKey  string           `json:"archive_key,omitempty"`
	ArchiveURL  string           `json:"archive_url,omitempty"`
	Platforms   []PlatformResult `json:"platforms,omitempty"`
	MarkedUsed  bool             `json:"marked_used"`
}

// PublishService runs select, generate, publish and mark-used.
type PublishService struct {
	ideas        IdeaRepository
	selector     *Selector
	generator    ContentGenerator
	publisher    *Publisher
	publications PublicationLog
	archive      Archiver

	defaultPlatforms []string
	defaultDraft     bool
	now              func() time.Time
}

// PublishServiceConfig wires a PublishService. Publications and Archive
// are optional.
type PublishServiceConfig struct {
	Ideas            IdeaRepository
	Selector         *Selector
	Generator        ContentGenerator
	Publisher        *Publisher
	Publications     PublicationLog
	Archive          Archiver
	DefaultPlatforms []string
	DefaultDraft     bool
}

// NewPublishService creates a PublishService.
func NewPublishService(cfg *PublishServiceConfig) *PublishService {
	return &PublishService{
		ideas:            cfg.Ideas,
		selector:         cfg.Selector,
		generator:        cfg.Generator,
		publisher:        cfg.Publisher,
		publications:     cfg.Publications,
		archive:          cfg.Archive,
		defaultPlatforms: cfg.DefaultPlatforms,
		defaultDraft:     cfg.DefaultDraft,
		now:              time.Now,
	}
}

// Run publishes the next idea. The idea is archived and marked used only
// after at least one platform accepted the article; a generation failure or
// a run where every platform failed leaves it unused. A dry run stops after
// generation.
func (s *PublishService) Run(ctx context.Context, opts PublishOptions) (*PublishResult, error) {
	runID := uuid.New().String()
	ctx = logger.SetRunID(ctx, runID)
	start := time.Now()

	result := &PublishResult{
		RunID:  runID,
		DryRun: opts.DryRun,
		Draft:  s.defaultDraft,
	}
	if opts.Draft != nil {
		result.Draft = *opts.Draft
	}
	platforms := opts.Platforms
	if len(platforms) == 0 {
		platforms = s.defaultPlatforms
	}

	ideas, err := s.ideas.ListAll(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "publish: list ideas", goerr.V("run_id", runID))
	}

	selection, err := s.selector.SelectNext(ctx, ideas)
	if err != nil {
		return nil, goerr.Wrap(err, "publish: select", goerr.V("run_id", runID))
	}
	idea := selection.Idea
	result.Idea = idea
	result.Selection = selection
	ctx = logger.SetIdeaID(ctx, idea.ID)

	content, err := s.generator.Generate(ctx, idea.Title, idea.Description, idea.Tags)
	if err != nil {
		return nil, goerr.Wrap(err, "publish: generate", goerr.V("run_id", runID), goerr.V("idea_id", idea.ID))
	}
	result.ContentSize = len(content)

	if opts.DryRun {
		result.Content = content
		logger.With(logger.Fields{
			logger.FieldSize:       len(content),
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Info(ctx, "Dry run finished, nothing published")
		return result, nil
	}

	if len(platforms) == 0 {
		return result, goerr.Wrap(domain.ErrPublishFailed, "publish: no platforms requested")
	}

	result.Platforms = s.publisher.Publish(ctx, &Article{
		IdeaID:  idea.ID,
		Title:   idea.Title,
		Content: content,
		Tags:    idea.Tags,
		Draft:   result.Draft,
	}, platforms)

	succeeded := 0
	for _, r := range result.Platforms {
		if r.Success {
			succeeded++
		}
	}

	var runErr error
	if succeeded > 0 {
		s.archiveArticle(ctx, result, content)
		if _, err := s.ideas.MarkUsed(ctx, idea.ID); err != nil {
			runErr = goerr.Wrap(err, "publish: mark used", goerr.V("run_id", runID), goerr.V("idea_id", idea.ID))
		} else {
			result.MarkedUsed = true
		}
	} else {
		runErr = goerr.Wrap(domain.ErrPublishFailed, "publish: every platform failed",
			goerr.V("run_id", runID), goerr.V("platforms", platforms))
	}

	s.recordPublications(ctx, result)

	status := "published"
	if runErr != nil {
		status = "failed"
	}
	logger.With(logger.Fields{logger.FieldIdeaID: idea.ID}).
		WithStatus(status).
		WithCount(succeeded).
		WithDuration(time.Since(start).Milliseconds()).
		Info(ctx, "Publish run finished: %d/%d platforms succeeded", succeeded, len(result.Platforms))

	return result, runErr
}

// archiveArticle stores the published body. Failures are logged only.
func (s *PublishService) archiveArticle(ctx context.Context, result *PublishResult, content string) {
	if s.archive == nil {
		return
	}
	key, err := s.archive.Store(ctx, result.Idea.ID, content, s.now())
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Article archive failed, continuing")
		return
	}
	result.ArchiveKey = key
	result.ArchiveURL = s.archive.URL(key)
}

func (s *PublishService) recordPublications(ctx context.Context, result *PublishResult) {
	if s.publications == nil {
		return
	}

	now := s.now().UTC()
	pubs := make([]*domain.Publication, 0, len(result.Platforms))
	for _, r := range result.Platforms {
		status := domain.PublicationStatusPublished
		archiveKey := result.ArchiveKey
		if !r.Success {
			status = domain.PublicationStatusFailed
			archiveKey = ""
		}
		pubs = append(pubs, &domain.Publication{
			ID:          uuid.New().String(),
			RunID:       result.RunID,
			IdeaID:      result.Idea.ID,
			Title:       result.Idea.Title,
			Tags:        domain.StringArray(result.Idea.Tags),
			Platform:    r.Platform,
			Status:      status,
			Draft:       result.Draft,
			URL:         r.URL,
			Error:       r.Error,
			ArchiveKey:  archiveKey,
			ContentSize: result.ContentSize,
			CreatedAt:   now,
		})
	}

	if err := s.publications.CreateBatch(ctx, pubs); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to record publications")
	}
}
