package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/logger"
)

type TranscriptRepo interface {
	Create(ctx context.Context, tx *gorm.DB, transcript *domain.Transcript) (*domain.Transcript, error)
	GetByVideoID(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) (*domain.Transcript, error)
}

type transcriptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTranscriptRepo(db *gorm.DB, baseLog *logger.Logger) TranscriptRepo {
	return &transcriptRepo{db: db, log: baseLog.With("repo", "TranscriptRepo")}
}

func (r *transcriptRepo) Create(ctx context.Context, tx *gorm.DB, transcript *domain.Transcript) (*domain.Transcript, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if transcript.ID == uuid.Nil {
		transcript.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(transcript).Error; err != nil {
		return nil, err
	}
	return transcript, nil
}

func (r *transcriptRepo) GetByVideoID(ctx context.Context, tx *gorm.DB, videoID uuid.UUID) (*domain.Transcript, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var transcript domain.Transcript
	err := transaction.WithContext(ctx).
		Where("video_id = ?", videoID).
		Order("id").
		First(&transcript).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &transcript, nil
}
