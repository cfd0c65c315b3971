package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/clipforge-backend/internal/server"
)

func wireRouter(h Handlers, m Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AuthHandler:    h.Auth,
		AuthMiddleware: m.Auth,
		VideoHandler:   h.Video,
		JobHandler:     h.Job,
		RenderHandler:  h.Render,
	})
}
