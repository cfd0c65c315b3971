package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/clipforge-backend/internal/handlers"
	"github.com/yungbote/clipforge-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler    *handlers.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
	VideoHandler   *handlers.VideoHandler
	JobHandler     *handlers.JobHandler
	RenderHandler  *handlers.RenderHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	// Videos
	api.POST("/videos/upload/init", cfg.VideoHandler.InitUpload)
	api.GET("/videos", cfg.VideoHandler.List)
	api.GET("/videos/:id", cfg.VideoHandler.Get)
	api.DELETE("/videos/:id", cfg.VideoHandler.Delete)
	api.GET("/videos/:id/candidates", cfg.VideoHandler.ListCandidates)

	// Analysis jobs
	api.POST("/jobs/analyze", cfg.JobHandler.SubmitAnalyze)
	api.GET("/jobs", cfg.JobHandler.List)
	api.GET("/jobs/:id", cfg.JobHandler.Get)
	api.POST("/jobs/:id/cancel", cfg.JobHandler.Cancel)
	api.POST("/jobs/:id/retry", cfg.JobHandler.Retry)

	// Renders
	api.POST("/renders", cfg.RenderHandler.Create)
	api.POST("/renders/batch", cfg.RenderHandler.CreateBatch)
	api.GET("/renders", cfg.RenderHandler.List)
	api.GET("/renders/:id", cfg.RenderHandler.Get)
	api.POST("/renders/:id/cancel", cfg.RenderHandler.Cancel)
	api.DELETE("/renders/:id", cfg.RenderHandler.Delete)
	api.GET("/renders/:id/download/:candidate_id", cfg.RenderHandler.Download)

	return router
}
