package app

import (
	"github.com/yungbote/clipforge-backend/internal/jobs/pipeline/analyze"
	"github.com/yungbote/clipforge-backend/internal/jobs/pipeline/render"
	"github.com/yungbote/clipforge-backend/internal/jobs/runtime"
	"github.com/yungbote/clipforge-backend/internal/jobs/worker"
	"github.com/yungbote/clipforge-backend/internal/logger"
)

// wireWorker registers both pipelines and returns the worker pool that
// drains them.
func wireWorker(log *logger.Logger, r Repos, c Clients) *worker.Worker {
	log.Info("Wiring job worker...")

	registry := runtime.NewRegistry()
	if err := registry.Register(analyze.NewPipeline(
		log, r.Job, r.Video, r.Transcript, r.Candidate, c.Tools, c.Bucket, c.Speech,
	)); err != nil {
		log.Fatal("Register analyze pipeline", "error", err)
	}
	if err := registry.Register(render.NewPipeline(
		log, r.Render, r.Video, r.Candidate, r.Transcript, c.Tools, c.Bucket,
	)); err != nil {
		log.Fatal("Register render pipeline", "error", err)
	}

	return worker.NewWorker(log, c.Queue, registry, r.Job, r.Render)
}
