package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/middleware"
	"github.com/yungbote/clipforge-backend/internal/services"
)

type VideoHandler struct {
	videoService services.VideoService
}

func NewVideoHandler(videoService services.VideoService) *VideoHandler {
	return &VideoHandler{videoService: videoService}
}

// InitUpload creates the video record and returns a signed PUT URL. The
// client uploads the file straight to the object store; nothing streams
// through this API.
func (vh *VideoHandler) InitUpload(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	var req struct {
		Title       string `json:"title"`
		Filename    string `json:"filename"`
		Filesize    int64  `json:"filesize"`
		ContentType string `json:"content_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid request body"))
		return
	}
	init, err := vh.videoService.InitUpload(c.Request.Context(), userID, req.Title, req.Filename, req.ContentType, req.Filesize)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, gin.H{
		"video_id":   init.Video.ID,
		"upload_url": init.UploadURL,
		"expires_in": init.ExpiresIn,
	})
}

func (vh *VideoHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid video id"))
		return
	}
	video, err := vh.videoService.Get(c.Request.Context(), userID, videoID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, video)
}

func (vh *VideoHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	skip, limit := pagination(c)
	videos, err := vh.videoService.List(c.Request.Context(), userID, skip, limit)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"videos": videos, "count": len(videos)})
}

func (vh *VideoHandler) Delete(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid video id"))
		return
	}
	if err := vh.videoService.Delete(c.Request.Context(), userID, videoID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

type candidateResponse struct {
	*domain.Candidate
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

func (vh *VideoHandler) ListCandidates(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	videoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid video id"))
		return
	}
	var minScore *float64
	if raw := c.Query("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid min_score"))
			return
		}
		minScore = &v
	}
	views, err := vh.videoService.ListCandidates(c.Request.Context(), userID, videoID, minScore, c.Query("sort_by"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	out := make([]candidateResponse, 0, len(views))
	for _, v := range views {
		out = append(out, candidateResponse{Candidate: v.Candidate, ThumbnailURL: v.ThumbURL})
	}
	RespondOK(c, gin.H{"candidates": out, "count": len(out)})
}

func pagination(c *gin.Context) (skip, limit int) {
	skip, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return skip, limit
}
