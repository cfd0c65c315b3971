package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/services"
)

type Services struct {
	Auth   services.AuthService
	Video  services.VideoService
	Job    services.JobService
	Render services.RenderService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients) Services {
	log.Info("Wiring services...")
	return Services{
		Auth:   services.NewAuthService(log, r.User),
		Video:  services.NewVideoService(log, r.Video, r.Candidate, c.Bucket),
		Job:    services.NewJobService(log, db, r.Job, r.Video, c.Queue, cfg.AnalysisDefault),
		Render: services.NewRenderService(log, db, r.Render, r.Candidate, r.Video, c.Bucket, c.Queue),
	}
}
