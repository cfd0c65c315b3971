package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/logger"
)

type VideoRepo interface {
	Create(ctx context.Context, tx *gorm.DB, video *domain.Video) (*domain.Video, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Video, error)
	ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, skip, limit int) ([]*domain.Video, error)
	ListIDsByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]uuid.UUID, error)
	SetProbeInfo(ctx context.Context, tx *gorm.DB, id uuid.UUID, durationSeconds float64, resolution string) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, baseLog *logger.Logger) VideoRepo {
	return &videoRepo{db: db, log: baseLog.With("repo", "VideoRepo")}
}

func (r *videoRepo) Create(ctx context.Context, tx *gorm.DB, video *domain.Video) (*domain.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if video.ID == uuid.Nil {
		video.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(video).Error; err != nil {
		return nil, err
	}
	return video, nil
}

func (r *videoRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var video domain.Video
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &video, nil
}

func (r *videoRepo) ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, skip, limit int) ([]*domain.Video, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 20
	}
	var out []*domain.Video
	err := transaction.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Offset(skip).
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *videoRepo) ListIDsByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	err := transaction.WithContext(ctx).
		Model(&domain.Video{}).
		Where("owner_id = ?", ownerID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SetProbeInfo fills duration/resolution after the analyzer probes the source.
// This is the only mutation a video record ever receives.
func (r *videoRepo) SetProbeInfo(ctx context.Context, tx *gorm.DB, id uuid.UUID, durationSeconds float64, resolution string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&domain.Video{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"duration_seconds": durationSeconds,
			"resolution":       resolution,
		}).Error
}

func (r *videoRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Where("id = ?", id).Delete(&domain.Video{}).Error
}
