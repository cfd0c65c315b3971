package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/clipforge-backend/internal/apperr"
	"github.com/yungbote/clipforge-backend/internal/clients/gcp"
	"github.com/yungbote/clipforge-backend/internal/clients/redis"
	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/repos"
)

const (
	maxActiveRenders = 3
	maxBatchSize     = 5
	downloadURLTTL   = 24 * time.Hour
)

type CreateRenderInput struct {
	Params   domain.RenderParams
	Priority string
}

type RenderService interface {
	Create(ctx context.Context, ownerID uuid.UUID, in CreateRenderInput) (*domain.Render, error)
	CreateBatch(ctx context.Context, ownerID uuid.UUID, ins []CreateRenderInput) ([]*domain.Render, error)
	Get(ctx context.Context, ownerID, renderID uuid.UUID) (*domain.Render, error)
	List(ctx context.Context, ownerID uuid.UUID, status string, skip, limit int) ([]*domain.Render, error)
	Cancel(ctx context.Context, ownerID, renderID uuid.UUID) (*domain.Render, error)
	Delete(ctx context.Context, ownerID, renderID uuid.UUID) error
	DownloadURL(ctx context.Context, ownerID, renderID, candidateID uuid.UUID, aspect string) (string, error)
}

type renderService struct {
	log           *logger.Logger
	db            *gorm.DB
	renderRepo    repos.RenderRepo
	candidateRepo repos.CandidateRepo
	videoRepo     repos.VideoRepo
	bucket        gcp.BucketService
	queue         redis.JobQueue
}

func NewRenderService(
	log *logger.Logger,
	db *gorm.DB,
	renderRepo repos.RenderRepo,
	candidateRepo repos.CandidateRepo,
	videoRepo repos.VideoRepo,
	bucket gcp.BucketService,
	queue redis.JobQueue,
) RenderService {
	return &renderService{
		log:           log.With("service", "RenderService"),
		db:            db,
		renderRepo:    renderRepo,
		candidateRepo: candidateRepo,
		videoRepo:     videoRepo,
		bucket:        bucket,
		queue:         queue,
	}
}

func (s *renderService) Create(ctx context.Context, ownerID uuid.UUID, in CreateRenderInput) (*domain.Render, error) {
	renders, err := s.CreateBatch(ctx, ownerID, []CreateRenderInput{in})
	if err != nil {
		return nil, err
	}
	return renders[0], nil
}

// CreateBatch admits up to five renders in one shot, all or nothing. The
// per-owner active cap is checked inside the insert transaction so two
// concurrent batches cannot both squeeze under it.
func (s *renderService) CreateBatch(ctx context.Context, ownerID uuid.UUID, ins []CreateRenderInput) ([]*domain.Render, error) {
	if len(ins) == 0 {
		return nil, apperr.Validation(fmt.Errorf("at least one render is required"))
	}
	if len(ins) > maxBatchSize {
		return nil, apperr.Validation(fmt.Errorf("batch size exceeds maximum of %d", maxBatchSize))
	}

	priorities := make([]string, len(ins))
	for i, in := range ins {
		p, err := normalizePriority(in.Priority)
		if err != nil {
			return nil, err
		}
		priorities[i] = p
		if err := s.validateParams(ctx, ownerID, in.Params); err != nil {
			return nil, err
		}
	}

	var renders []*domain.Render
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.renderRepo.CountActiveForOwner(ctx, tx, ownerID)
		if err != nil {
			return apperr.Database(err)
		}
		if active+int64(len(ins)) > maxActiveRenders {
			return apperr.TooManyRequests(fmt.Errorf(
				"at most %d renders may be active at once (%d active)", maxActiveRenders, active))
		}
		renders = make([]*domain.Render, 0, len(ins))
		for _, in := range ins {
			render, err := s.renderRepo.Create(ctx, tx, &domain.Render{
				OwnerID: ownerID,
				Params:  normalizeParams(in.Params).JSON(),
				Status:  domain.JobStatusPending,
				Files:   domain.RenderFiles{}.JSON(),
			})
			if err != nil {
				return apperr.Database(err)
			}
			renders = append(renders, render)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	for i, render := range renders {
		if err := s.queue.Enqueue(ctx, redis.Message{
			JobID:    render.ID,
			Kind:     domain.JobKindRender,
			Priority: priorities[i],
		}); err != nil {
			s.log.Error("enqueue failed, sweep will redeliver", "render_id", render.ID, "error", err)
		}
	}
	return renders, nil
}

// validateParams checks the submission shape and verifies every referenced
// candidate exists and belongs to a video the caller owns.
func (s *renderService) validateParams(ctx context.Context, ownerID uuid.UUID, params domain.RenderParams) error {
	if len(params.CandidateIDs) == 0 {
		return apperr.Validation(fmt.Errorf("candidate_ids must not be empty"))
	}
	if !domain.ValidTemplate(params.Template) {
		return apperr.Validation(fmt.Errorf("unknown template %q", params.Template))
	}
	if len(params.Outputs) == 0 {
		return apperr.Validation(fmt.Errorf("outputs must not be empty"))
	}
	for _, aspect := range params.Outputs {
		if !domain.ValidAspect(aspect) {
			return apperr.Validation(fmt.Errorf("unknown aspect ratio %q", aspect))
		}
	}
	switch params.Captions {
	case "", "on", "off":
	default:
		return apperr.Validation(fmt.Errorf("captions must be on or off"))
	}
	if params.Loudness != "" {
		if _, err := strconv.ParseFloat(params.Loudness, 64); err != nil {
			return apperr.Validation(fmt.Errorf("loudness must be a number, got %q", params.Loudness))
		}
	}

	candidates, err := s.candidateRepo.GetByIDs(ctx, nil, params.CandidateIDs)
	if err != nil {
		return apperr.Database(err)
	}
	byID := make(map[uuid.UUID]*domain.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	videoOwned := map[uuid.UUID]bool{}
	for _, id := range params.CandidateIDs {
		cand, ok := byID[id]
		if !ok {
			return apperr.NotFound(fmt.Errorf("candidate %s not found", id))
		}
		owned, checked := videoOwned[cand.VideoID]
		if !checked {
			video, err := s.videoRepo.GetByID(ctx, nil, cand.VideoID)
			if err != nil {
				return apperr.Database(err)
			}
			owned = video != nil && video.OwnerID == ownerID
			videoOwned[cand.VideoID] = owned
		}
		if !owned {
			return apperr.Forbidden(fmt.Errorf("candidate %s does not belong to you", id))
		}
	}
	return nil
}

func (s *renderService) getOwned(ctx context.Context, ownerID, renderID uuid.UUID) (*domain.Render, error) {
	render, err := s.renderRepo.GetByID(ctx, nil, renderID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if render == nil || render.OwnerID != ownerID {
		return nil, apperr.NotFound(fmt.Errorf("render not found"))
	}
	return render, nil
}

func (s *renderService) Get(ctx context.Context, ownerID, renderID uuid.UUID) (*domain.Render, error) {
	return s.getOwned(ctx, ownerID, renderID)
}

func (s *renderService) List(ctx context.Context, ownerID uuid.UUID, status string, skip, limit int) ([]*domain.Render, error) {
	if status != "" && !validStatusFilter(status) {
		return nil, apperr.Validation(fmt.Errorf("invalid status %q", status))
	}
	renders, err := s.renderRepo.ListByOwner(ctx, nil, ownerID, status, skip, limit)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return renders, nil
}

func (s *renderService) Cancel(ctx context.Context, ownerID, renderID uuid.UUID) (*domain.Render, error) {
	render, err := s.getOwned(ctx, ownerID, renderID)
	if err != nil {
		return nil, err
	}
	if domain.IsTerminalStatus(render.Status) {
		return nil, apperr.Validation(fmt.Errorf("render is %s and cannot be cancelled", render.Status))
	}
	ok, err := s.renderRepo.UpdateUnlessTerminal(ctx, nil, render.ID, map[string]interface{}{
		"status": domain.JobStatusCancelled,
	})
	if err != nil {
		return nil, apperr.Database(err)
	}
	if !ok {
		return nil, apperr.Conflict(fmt.Errorf("render already finished"))
	}
	return s.renderRepo.GetByID(ctx, nil, render.ID)
}

// Delete removes the render row and sweeps its output prefix. Active renders
// must be cancelled first so a worker is not writing into a deleted prefix.
func (s *renderService) Delete(ctx context.Context, ownerID, renderID uuid.UUID) error {
	render, err := s.getOwned(ctx, ownerID, renderID)
	if err != nil {
		return err
	}
	if !domain.IsTerminalStatus(render.Status) {
		return apperr.Conflict(fmt.Errorf("render is %s, cancel it before deleting", render.Status))
	}
	if err := s.renderRepo.Delete(ctx, nil, render.ID); err != nil {
		return apperr.Database(err)
	}
	if err := s.bucket.DeletePrefix(ctx, domain.RenderPrefix(render.ID)); err != nil {
		s.log.Warn("render blob cleanup failed", "render_id", render.ID, "error", err)
	}
	return nil
}

// DownloadURL signs a 24 hour GET for one finished output.
func (s *renderService) DownloadURL(ctx context.Context, ownerID, renderID, candidateID uuid.UUID, aspect string) (string, error) {
	render, err := s.getOwned(ctx, ownerID, renderID)
	if err != nil {
		return "", err
	}
	if render.Status != domain.JobStatusCompleted {
		return "", apperr.Validation(fmt.Errorf("render is %s, downloads require completed", render.Status))
	}
	files := domain.ParseRenderFiles(render.Files)
	byAspect, ok := files[candidateID.String()]
	if !ok {
		return "", apperr.NotFound(fmt.Errorf("no output for candidate %s", candidateID))
	}
	key, ok := byAspect[aspect]
	if !ok {
		return "", apperr.NotFound(fmt.Errorf("no %s output for candidate %s", aspect, candidateID))
	}
	url, err := s.bucket.SignedDownloadURL(key, downloadURLTTL)
	if err != nil {
		return "", apperr.Storage(err)
	}
	return url, nil
}

func validStatusFilter(status string) bool {
	switch status {
	case domain.JobStatusPending, domain.JobStatusProcessing,
		domain.JobStatusCompleted, domain.JobStatusFailed, domain.JobStatusCancelled:
		return true
	default:
		return false
	}
}

// normalizeParams fills submission defaults before the params are frozen into
// the render row.
func normalizeParams(p domain.RenderParams) domain.RenderParams {
	if p.Captions == "" {
		p.Captions = "on"
	}
	if p.Loudness == "" {
		p.Loudness = "-14"
	}
	return p
}
