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

type RenderRepo interface {
	Create(ctx context.Context, tx *gorm.DB, render *domain.Render) (*domain.Render, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Render, error)
	ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, status string, skip, limit int) ([]*domain.Render, error)
	CountActiveForOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) (int64, error)
	ClaimPending(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	UpdateUnlessTerminal(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) (bool, error)
	GetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID) (string, error)
	ListStuck(ctx context.Context, tx *gorm.DB, status string, cutoff time.Time) ([]uuid.UUID, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type renderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRenderRepo(db *gorm.DB, baseLog *logger.Logger) RenderRepo {
	return &renderRepo{db: db, log: baseLog.With("repo", "RenderRepo")}
}

func (r *renderRepo) Create(ctx context.Context, tx *gorm.DB, render *domain.Render) (*domain.Render, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if render.ID == uuid.Nil {
		render.ID = uuid.New()
	}
	if render.Status == "" {
		render.Status = domain.JobStatusPending
	}
	if err := transaction.WithContext(ctx).Create(render).Error; err != nil {
		return nil, err
	}
	return render, nil
}

func (r *renderRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Render, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var render domain.Render
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&render).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &render, nil
}

func (r *renderRepo) ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, status string, skip, limit int) ([]*domain.Render, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 20
	}
	q := transaction.WithContext(ctx).Where("owner_id = ?", ownerID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []*domain.Render
	err := q.Order("created_at DESC").Offset(skip).Limit(limit).Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountActiveForOwner backs the concurrent-render admission cap. Callers run
// it inside the same transaction that inserts the new rows so a batch check
// is atomic.
func (r *renderRepo) CountActiveForOwner(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&domain.Render{}).
		Where("owner_id = ? AND status IN ?", ownerID,
			[]string{domain.JobStatusPending, domain.JobStatusProcessing}).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *renderRepo) ClaimPending(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&domain.Render{}).
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

func (r *renderRepo) UpdateUnlessTerminal(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) (bool, error) {
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
		Model(&domain.Render{}).
		Where("id = ? AND status NOT IN ?", id,
			[]string{domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCancelled}).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *renderRepo) GetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID) (string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var status string
	err := transaction.WithContext(ctx).
		Model(&domain.Render{}).
		Where("id = ?", id).
		Pluck("status", &status).Error
	if err != nil {
		return "", err
	}
	return status, nil
}

func (r *renderRepo) ListStuck(ctx context.Context, tx *gorm.DB, status string, cutoff time.Time) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []uuid.UUID
	err := transaction.WithContext(ctx).
		Model(&domain.Render{}).
		Where("status = ? AND updated_at < ?", status, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *renderRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Where("id = ?", id).Delete(&domain.Render{}).Error
}
