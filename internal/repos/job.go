package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/logger"
)

type JobFilter struct {
	VideoIDs []uuid.UUID
	VideoID  *uuid.UUID
	Kind     string
	Status   string
	Skip     int
	Limit    int
}

type JobRepo interface {
	Create(ctx context.Context, tx *gorm.DB, job *domain.Job) (*domain.Job, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Job, error)
	GetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID) (string, error)
	List(ctx context.Context, tx *gorm.DB, filter JobFilter) ([]*domain.Job, error)
	HasActive(ctx context.Context, tx *gorm.DB, videoID uuid.UUID, kind string) (bool, error)

	// ClaimPending is the pending -> processing CAS. It is the idempotency
	// guard for at-least-once delivery: the first worker to claim wins, any
	// redelivered message observes false and drops.
	ClaimPending(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)

	// UpdateUnlessTerminal applies updates only while the job is in a
	// non-terminal state, so completed/failed/cancelled are absorbing.
	// Returns false if the write was rejected.
	UpdateUnlessTerminal(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) (bool, error)

	// ListStuck returns ids sitting in the given status since before cutoff.
	// The requeue sweep uses it to redeliver lost pending jobs and to fail
	// runs that outlived the wall-clock limit.
	ListStuck(ctx context.Context, tx *gorm.DB, status string, cutoff time.Time) ([]uuid.UUID, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "JobRepo")}
}

func (r *jobRepo) Create(ctx context.Context, tx *gorm.DB, job *domain.Job) (*domain.Job, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	if err := transaction.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Job, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var job domain.Job
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) GetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID) (string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var status string
	err := transaction.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ?", id).
		Pluck("status", &status).Error
	if err != nil {
		return "", err
	}
	return status, nil
}

func (r *jobRepo) List(ctx context.Context, tx *gorm.DB, filter JobFilter) ([]*domain.Job, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&domain.Job{})
	if len(filter.VideoIDs) > 0 {
		q = q.Where("video_id IN ?", filter.VideoIDs)
	}
	if filter.VideoID != nil {
		q = q.Where("video_id = ?", *filter.VideoID)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	var out []*domain.Job
	err := q.Order("created_at DESC").Offset(filter.Skip).Limit(limit).Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobRepo) HasActive(ctx context.Context, tx *gorm.DB, videoID uuid.UUID, kind string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&domain.Job{}).
		Where("video_id = ? AND kind = ? AND status IN ?", videoID, kind,
			[]string{domain.JobStatusPending, domain.JobStatusProcessing}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *jobRepo) ListStuck(ctx context.Context, tx *gorm.DB, status string, cutoff time.Time) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	err := transaction.WithContext(ctx).
		Model(&domain.Job{}).
		Where("status = ? AND updated_at < ?", status, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *jobRepo) ClaimPending(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND status = ?", id, domain.JobStatusPending).
		Updates(map[string]interface{}{
			"status":     domain.JobStatusProcessing,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRepo) UpdateUnlessTerminal(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := transaction.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ? AND status NOT IN ?", id,
			[]string{domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCancelled}).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
