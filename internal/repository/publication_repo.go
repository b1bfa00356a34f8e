package repository

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timmy/ideaforge/internal/domain"
	"gorm.io/gorm"
)

// PublicationRepository handles the publication log.
type PublicationRepository struct {
	db *gorm.DB
}

// NewPublicationRepository creates a new PublicationRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *PublicationRepository: repository instance bound to db.
func NewPublicationRepository(db *gorm.DB) *PublicationRepository {
	return &PublicationRepository{db: db}
}

// CreateBatch inserts the per-platform records of one publish run.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - pubs: records to insert; an empty slice is a no-op.
// Returns:
//   - error: non-nil if the insert fails.
func (r *PublicationRepository) CreateBatch(ctx context.Context, pubs []*domain.Publication) error {
	if len(pubs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&pubs).Error; err != nil {
		return goerr.Wrap(err, "failed to insert publications", goerr.V("count", len(pubs)))
	}
	return nil
}

// List returns publications, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of rows.
//   - offset: number of rows to skip.
// Returns:
//   - []domain.Publication: page of publications.
//   - error: non-nil if the query fails.
func (r *PublicationRepository) List(ctx context.Context, limit, offset int) ([]domain.Publication, error) {
	var pubs []domain.Publication
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&pubs).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list publications")
	}
	return pubs, nil
}

// ListByIdea returns every publication attempt for one idea.
func (r *PublicationRepository) ListByIdea(ctx context.Context, ideaID string) ([]domain.Publication, error) {
	var pubs []domain.Publication
	err := r.db.WithContext(ctx).
		Where("idea_id = ?", ideaID).
		Order("created_at DESC").
		Find(&pubs).Error
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list publications by idea", goerr.V("idea_id", ideaID))
	}
	return pubs, nil
}
