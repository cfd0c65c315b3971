package app

import (
	"context"
	"fmt"

	"github.com/yungbote/clipforge-backend/internal/clients/gcp"
	"github.com/yungbote/clipforge-backend/internal/clients/redis"
	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/media"
)

type Clients struct {
	Bucket gcp.BucketService
	Speech gcp.Speech
	Queue  redis.JobQueue
	Tools  media.Tools
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init bucket service: %w", err)
	}
	speech, err := gcp.NewSpeech(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init speech client: %w", err)
	}
	queue, err := redis.NewJobQueue(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init job queue: %w", err)
	}

	tools := media.New(log)
	if err := tools.AssertReady(context.Background()); err != nil {
		// The API can serve without ffmpeg; workers will refuse to start.
		log.Warn("Media toolchain not available", "error", err)
	}

	return Clients{Bucket: bucket, Speech: speech, Queue: queue, Tools: tools}, nil
}
