package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/middleware"
	"github.com/yungbote/clipforge-backend/internal/services"
)

type JobHandler struct {
	jobService services.JobService
}

func NewJobHandler(jobService services.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

func (jh *JobHandler) SubmitAnalyze(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	var req struct {
		VideoID  uuid.UUID              `json:"video_id"`
		Priority string                 `json:"priority"`
		Config   *domain.AnalysisConfig `json:"config"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid request body"))
		return
	}
	if req.VideoID == uuid.Nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("video_id is required"))
		return
	}
	job, err := jh.jobService.SubmitAnalyze(c.Request.Context(), userID, services.SubmitAnalyzeInput{
		VideoID:  req.VideoID,
		Priority: req.Priority,
		Config:   req.Config,
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, job)
}

func (jh *JobHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid job id"))
		return
	}
	job, err := jh.jobService.Get(c.Request.Context(), userID, jobID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, job)
}

func (jh *JobHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	skip, limit := pagination(c)
	filter := services.JobListFilter{
		Kind:   c.Query("kind"),
		Status: c.Query("status"),
		Skip:   skip,
		Limit:  limit,
	}
	if raw := c.Query("video_id"); raw != "" {
		videoID, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid video_id"))
			return
		}
		filter.VideoID = &videoID
	}
	jobs, err := jh.jobService.List(c.Request.Context(), userID, filter)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"jobs": jobs, "count": len(jobs)})
}

func (jh *JobHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid job id"))
		return
	}
	job, err := jh.jobService.Cancel(c.Request.Context(), userID, jobID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, job)
}

func (jh *JobHandler) Retry(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid job id"))
		return
	}
	var req struct {
		Priority string `json:"priority"`
	}
	_ = c.ShouldBindJSON(&req)
	job, err := jh.jobService.Retry(c.Request.Context(), userID, jobID, req.Priority)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, job)
}
