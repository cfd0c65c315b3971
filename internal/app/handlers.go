package app

import (
	"github.com/yungbote/clipforge-backend/internal/handlers"
	"github.com/yungbote/clipforge-backend/internal/logger"
)

type Handlers struct {
	Auth   *handlers.AuthHandler
	Video  *handlers.VideoHandler
	Job    *handlers.JobHandler
	Render *handlers.RenderHandler
}

func wireHandlers(log *logger.Logger, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Auth:   handlers.NewAuthHandler(s.Auth),
		Video:  handlers.NewVideoHandler(s.Video),
		Job:    handlers.NewJobHandler(s.Job),
		Render: handlers.NewRenderHandler(s.Render),
	}
}
