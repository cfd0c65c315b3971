package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/clipforge-backend/internal/clients/redis"
	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/jobs/runtime"
	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/repos"
	"github.com/yungbote/clipforge-backend/internal/utils"
)

const (
	// jobHardTimeout bounds one run's wall clock; jobWarnAfter logs before
	// the limit trips so operators see slow runs coming.
	jobHardTimeout = 65 * time.Minute
	jobWarnAfter   = 60 * time.Minute

	dequeueWait = 5 * time.Second

	// pendingRedeliverAfter is how long a pending row may sit before the
	// sweep assumes its queue message was lost and enqueues a fresh one.
	pendingRedeliverAfter = 5 * time.Minute
	sweepInterval         = time.Minute
)

// Worker drains the job queue with a fixed goroutine pool and runs a
// background sweep that redelivers lost messages and fails runs stuck past
// the wall-clock limit.
type Worker struct {
	log        *logger.Logger
	queue      redis.JobQueue
	registry   *runtime.Registry
	jobRepo    repos.JobRepo
	renderRepo repos.RenderRepo
}

func NewWorker(baseLog *logger.Logger, queue redis.JobQueue, registry *runtime.Registry, jobRepo repos.JobRepo, renderRepo repos.RenderRepo) *Worker {
	return &Worker{
		log:        baseLog.With("component", "JobWorker"),
		queue:      queue,
		registry:   registry,
		jobRepo:    jobRepo,
		renderRepo: renderRepo,
	}
}

func (w *Worker) Start(ctx context.Context) {
	concurrency := utils.GetEnvAsInt("WORKER_CONCURRENCY", 4, w.log)
	if concurrency < 1 {
		concurrency = 1
	}
	w.log.Info("Starting job worker pool", "concurrency", concurrency)

	for i := 0; i < concurrency; i++ {
		workerID := i + 1
		go w.runLoop(ctx, workerID)
	}
	go w.sweepLoop(ctx)
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	kinds := w.registry.Kinds()
	for {
		if ctx.Err() != nil {
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		}

		msg, ok, err := w.queue.Dequeue(ctx, kinds, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.Warn("Dequeue failed", "worker_id", workerID, "error", err)
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			continue
		}

		w.runOne(ctx, workerID, msg)
	}
}

func (w *Worker) runOne(ctx context.Context, workerID int, msg redis.Message) {
	h, ok := w.registry.Get(msg.Kind)
	if !ok {
		w.log.Warn("No handler registered for kind",
			"worker_id", workerID, "kind", msg.Kind, "job_id", msg.JobID)
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, jobHardTimeout)
	defer cancel()

	jc := runtime.NewContext(runCtx, w.log, msg.JobID, msg.Kind, h.Store())

	// The pending -> processing CAS is the at-least-once idempotency
	// guard: a redelivered message whose job is already claimed drops here.
	claimed, err := jc.Claim()
	if err != nil {
		w.log.Warn("Claim failed", "worker_id", workerID, "job_id", msg.JobID, "error", err)
		return
	}
	if !claimed {
		w.log.Debug("Dropping redelivered message", "worker_id", workerID, "job_id", msg.JobID)
		return
	}

	warnTimer := time.AfterFunc(jobWarnAfter, func() {
		w.log.Warn("Job approaching wall-clock limit",
			"worker_id", workerID, "job_id", msg.JobID, "kind", msg.Kind)
	})
	defer warnTimer.Stop()

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic",
					"worker_id", workerID, "job_id", msg.JobID, "kind", msg.Kind, "panic", r)
				jc.Fail(map[string]interface{}{})
			}
		}()

		if runErr := h.Run(jc); runErr != nil {
			// Pipelines persist their own failure detail; this is the
			// safety net for errors that escaped.
			w.log.Error("Job failed", "worker_id", workerID, "job_id", msg.JobID, "error", runErr)
			jc.Fail(map[string]interface{}{})
		}
	}()
}

func (w *Worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

// sweepOnce redelivers pending rows whose message never arrived and fails
// processing rows past the hard timeout, for both pipelines.
func (w *Worker) sweepOnce(ctx context.Context) {
	pendingCutoff := time.Now().Add(-pendingRedeliverAfter)

	if ids, err := w.jobRepo.ListStuck(ctx, nil, domain.JobStatusPending, pendingCutoff); err != nil {
		w.log.Warn("Pending sweep query failed", "kind", domain.JobKindAnalyze, "error", err)
	} else {
		w.redeliverPending(ctx, domain.JobKindAnalyze, ids)
	}
	if ids, err := w.renderRepo.ListStuck(ctx, nil, domain.JobStatusPending, pendingCutoff); err != nil {
		w.log.Warn("Pending sweep query failed", "kind", domain.JobKindRender, "error", err)
	} else {
		w.redeliverPending(ctx, domain.JobKindRender, ids)
	}

	w.failOverdue(ctx, domain.JobKindAnalyze)
	w.failOverdue(ctx, domain.JobKindRender)
}

func (w *Worker) redeliverPending(ctx context.Context, kind string, ids []uuid.UUID) {
	for _, id := range ids {
		msg := redis.Message{JobID: id, Kind: kind, Priority: redis.PriorityLow}
		if err := w.queue.Enqueue(ctx, msg); err != nil {
			w.log.Warn("Pending redelivery failed", "kind", kind, "job_id", id, "error", err)
		} else {
			w.log.Info("Redelivered stale pending job", "kind", kind, "job_id", id)
		}
	}
}

func (w *Worker) failOverdue(ctx context.Context, kind string) {
	cutoff := time.Now().Add(-jobHardTimeout)
	var store runtime.StatusStore
	var ids []uuid.UUID
	var err error
	if kind == domain.JobKindAnalyze {
		store = w.jobRepo
		ids, err = w.jobRepo.ListStuck(ctx, nil, domain.JobStatusProcessing, cutoff)
	} else {
		store = w.renderRepo
		ids, err = w.renderRepo.ListStuck(ctx, nil, domain.JobStatusProcessing, cutoff)
	}
	if err != nil {
		w.log.Warn("Overdue sweep query failed", "kind", kind, "error", err)
		return
	}
	for _, id := range ids {
		updates := map[string]interface{}{"status": domain.JobStatusFailed}
		if kind == domain.JobKindAnalyze {
			// Merge the error into the existing logs: the stored config must
			// survive so a retry clones it instead of falling back to defaults.
			logs := domain.JobLogs{}
			if job, gerr := w.jobRepo.GetByID(ctx, nil, id); gerr == nil && job != nil {
				logs = domain.ParseJobLogs(job.Logs)
			}
			logs.Error = fmt.Sprintf("exceeded %s wall-clock limit", jobHardTimeout)
			updates["logs"] = logs.JSON()
		}
		if _, uerr := store.UpdateUnlessTerminal(ctx, nil, id, updates); uerr != nil {
			w.log.Warn("Overdue fail write rejected", "kind", kind, "job_id", id, "error", uerr)
		} else {
			w.log.Warn("Failed overdue job", "kind", kind, "job_id", id)
		}
	}
}
