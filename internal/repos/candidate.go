package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/logger"
)

const (
	CandidateSortScore    = "score"
	CandidateSortDuration = "duration"
	CandidateSortStart    = "start"
)

type CandidateRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, candidates []*domain.Candidate) ([]*domain.Candidate, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*domain.Candidate, error)
	ListByVideo(ctx context.Context, tx *gorm.DB, videoID uuid.UUID, minScore *float64, sortBy string) ([]*domain.Candidate, error)
}

type candidateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCandidateRepo(db *gorm.DB, baseLog *logger.Logger) CandidateRepo {
	return &candidateRepo{db: db, log: baseLog.With("repo", "CandidateRepo")}
}

func (r *candidateRepo) CreateBatch(ctx context.Context, tx *gorm.DB, candidates []*domain.Candidate) ([]*domain.Candidate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(candidates) == 0 {
		return []*domain.Candidate{}, nil
	}
	for _, c := range candidates {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(ctx).Create(&candidates).Error; err != nil {
		return nil, err
	}
	return candidates, nil
}

func (r *candidateRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*domain.Candidate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*domain.Candidate
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *candidateRepo) ListByVideo(ctx context.Context, tx *gorm.DB, videoID uuid.UUID, minScore *float64, sortBy string) ([]*domain.Candidate, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Where("video_id = ?", videoID)
	if minScore != nil {
		q = q.Where("score >= ?", *minScore)
	}
	switch sortBy {
	case CandidateSortDuration:
		q = q.Order("(end_s - start_s) DESC")
	case CandidateSortStart:
		q = q.Order("start_s ASC")
	default:
		q = q.Order("score DESC")
	}
	var out []*domain.Candidate
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
