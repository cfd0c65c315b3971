package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/clipforge-backend/internal/apperr"
	"github.com/yungbote/clipforge-backend/internal/clients/redis"
	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/repos"
)

type SubmitAnalyzeInput struct {
	VideoID  uuid.UUID
	Priority string
	Config   *domain.AnalysisConfig
}

type JobListFilter struct {
	VideoID *uuid.UUID
	Kind    string
	Status  string
	Skip    int
	Limit   int
}

type JobService interface {
	SubmitAnalyze(ctx context.Context, ownerID uuid.UUID, in SubmitAnalyzeInput) (*domain.Job, error)
	Get(ctx context.Context, ownerID, jobID uuid.UUID) (*domain.Job, error)
	List(ctx context.Context, ownerID uuid.UUID, filter JobListFilter) ([]*domain.Job, error)
	Cancel(ctx context.Context, ownerID, jobID uuid.UUID) (*domain.Job, error)
	Retry(ctx context.Context, ownerID, jobID uuid.UUID, priority string) (*domain.Job, error)
}

type jobService struct {
	log       *logger.Logger
	db        *gorm.DB
	jobRepo   repos.JobRepo
	videoRepo repos.VideoRepo
	queue     redis.JobQueue
	defaults  domain.AnalysisConfig
}

// NewJobService takes the deployment's default analysis config; submissions
// without an explicit config get a copy of it.
func NewJobService(log *logger.Logger, db *gorm.DB, jobRepo repos.JobRepo, videoRepo repos.VideoRepo, queue redis.JobQueue, defaults domain.AnalysisConfig) JobService {
	return &jobService{
		log:       log.With("service", "JobService"),
		db:        db,
		jobRepo:   jobRepo,
		videoRepo: videoRepo,
		queue:     queue,
		defaults:  defaults,
	}
}

// SubmitAnalyze admits one analyze job per video at a time. The active check
// and the insert share a transaction so two concurrent submissions cannot
// both pass the gate.
func (s *jobService) SubmitAnalyze(ctx context.Context, ownerID uuid.UUID, in SubmitAnalyzeInput) (*domain.Job, error) {
	priority, err := normalizePriority(in.Priority)
	if err != nil {
		return nil, err
	}

	video, err := s.videoRepo.GetByID(ctx, nil, in.VideoID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if video == nil || video.OwnerID != ownerID {
		return nil, apperr.NotFound(fmt.Errorf("video not found"))
	}

	cfg := s.defaults
	if in.Config != nil {
		cfg = *in.Config
	}
	if err := validateAnalysisConfig(cfg); err != nil {
		return nil, err
	}

	var job *domain.Job
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.jobRepo.HasActive(ctx, tx, video.ID, domain.JobKindAnalyze)
		if err != nil {
			return apperr.Database(err)
		}
		if active {
			return apperr.Conflict(fmt.Errorf("an analysis job is already active for this video"))
		}
		logs := domain.JobLogs{Config: &cfg}
		job, err = s.jobRepo.Create(ctx, tx, &domain.Job{
			VideoID: video.ID,
			Kind:    domain.JobKindAnalyze,
			Status:  domain.JobStatusPending,
			Logs:    logs.JSON(),
		})
		if err != nil {
			return apperr.Database(err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	// Enqueue after commit. If this fails the row stays pending and the
	// requeue sweep redelivers it.
	if err := s.queue.Enqueue(ctx, redis.Message{
		JobID:    job.ID,
		Kind:     domain.JobKindAnalyze,
		Priority: priority,
	}); err != nil {
		s.log.Error("enqueue failed, sweep will redeliver", "job_id", job.ID, "error", err)
	}
	return job, nil
}

func (s *jobService) Get(ctx context.Context, ownerID, jobID uuid.UUID) (*domain.Job, error) {
	return s.getOwned(ctx, ownerID, jobID)
}

func (s *jobService) getOwned(ctx context.Context, ownerID, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.jobRepo.GetByID(ctx, nil, jobID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if job == nil {
		return nil, apperr.NotFound(fmt.Errorf("job not found"))
	}
	video, err := s.videoRepo.GetByID(ctx, nil, job.VideoID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	if video == nil || video.OwnerID != ownerID {
		return nil, apperr.NotFound(fmt.Errorf("job not found"))
	}
	return job, nil
}

func (s *jobService) List(ctx context.Context, ownerID uuid.UUID, filter JobListFilter) ([]*domain.Job, error) {
	repoFilter := repos.JobFilter{
		Kind:   filter.Kind,
		Status: filter.Status,
		Skip:   filter.Skip,
		Limit:  filter.Limit,
	}
	if filter.VideoID != nil {
		video, err := s.videoRepo.GetByID(ctx, nil, *filter.VideoID)
		if err != nil {
			return nil, apperr.Database(err)
		}
		if video == nil || video.OwnerID != ownerID {
			return nil, apperr.NotFound(fmt.Errorf("video not found"))
		}
		repoFilter.VideoID = filter.VideoID
	} else {
		ids, err := s.videoRepo.ListIDsByOwner(ctx, nil, ownerID)
		if err != nil {
			return nil, apperr.Database(err)
		}
		if len(ids) == 0 {
			return []*domain.Job{}, nil
		}
		repoFilter.VideoIDs = ids
	}

	jobs, err := s.jobRepo.List(ctx, nil, repoFilter)
	if err != nil {
		return nil, apperr.Database(err)
	}
	return jobs, nil
}

// Cancel flips a pending or processing job to cancelled. The worker observes
// the status at its next checkpoint and stops; a job already terminal is
// rejected here because terminal states are absorbing.
func (s *jobService) Cancel(ctx context.Context, ownerID, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.getOwned(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}
	if domain.IsTerminalStatus(job.Status) {
		return nil, apperr.Validation(fmt.Errorf("job is %s and cannot be cancelled", job.Status))
	}

	logs := domain.ParseJobLogs(job.Logs)
	logs.CancelledBy = "user"
	ok, err := s.jobRepo.UpdateUnlessTerminal(ctx, nil, job.ID, map[string]interface{}{
		"status": domain.JobStatusCancelled,
		"logs":   logs.JSON(),
	})
	if err != nil {
		return nil, apperr.Database(err)
	}
	if !ok {
		// Reached a terminal state between the read and the write.
		return nil, apperr.Conflict(fmt.Errorf("job already finished"))
	}
	return s.jobRepo.GetByID(ctx, nil, job.ID)
}

// Retry clones a failed job's config into a fresh pending job. The failed row
// is left untouched as the audit record.
func (s *jobService) Retry(ctx context.Context, ownerID, jobID uuid.UUID, priority string) (*domain.Job, error) {
	prio, err := normalizePriority(priority)
	if err != nil {
		return nil, err
	}
	job, err := s.getOwned(ctx, ownerID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusFailed {
		return nil, apperr.Validation(fmt.Errorf("only failed jobs can be retried, job is %s", job.Status))
	}

	oldLogs := domain.ParseJobLogs(job.Logs)
	cfg := oldLogs.Config
	if cfg == nil {
		d := s.defaults
		cfg = &d
	}
	retriedFrom := job.ID
	logs := domain.JobLogs{
		RetriedFrom: &retriedFrom,
		Config:      cfg,
	}

	var fresh *domain.Job
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := s.jobRepo.HasActive(ctx, tx, job.VideoID, job.Kind)
		if err != nil {
			return apperr.Database(err)
		}
		if active {
			return apperr.Conflict(fmt.Errorf("an analysis job is already active for this video"))
		}
		fresh, err = s.jobRepo.Create(ctx, tx, &domain.Job{
			VideoID: job.VideoID,
			Kind:    job.Kind,
			Status:  domain.JobStatusPending,
			Logs:    logs.JSON(),
		})
		if err != nil {
			return apperr.Database(err)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if err := s.queue.Enqueue(ctx, redis.Message{
		JobID:    fresh.ID,
		Kind:     fresh.Kind,
		Priority: prio,
	}); err != nil {
		s.log.Error("enqueue failed, sweep will redeliver", "job_id", fresh.ID, "error", err)
	}
	return fresh, nil
}

func normalizePriority(p string) (string, error) {
	if p == "" {
		return redis.PriorityNormal, nil
	}
	if !redis.ValidPriority(p) {
		return "", apperr.Validation(fmt.Errorf("invalid priority %q", p))
	}
	return p, nil
}

func validateAnalysisConfig(cfg domain.AnalysisConfig) error {
	if cfg.ClipMinS <= 0 || cfg.ClipMaxS <= 0 || cfg.ClipMinS > cfg.ClipMaxS {
		return apperr.Validation(fmt.Errorf("clip bounds require 0 < clip_min_s <= clip_max_s"))
	}
	if cfg.TargetS < cfg.ClipMinS || cfg.TargetS > cfg.ClipMaxS {
		return apperr.Validation(fmt.Errorf("target_s must lie within [clip_min_s, clip_max_s]"))
	}
	if cfg.MaxCandidates <= 0 {
		return apperr.Validation(fmt.Errorf("max_candidates must be positive"))
	}
	return nil
}
