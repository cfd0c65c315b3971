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

type RenderHandler struct {
	renderService services.RenderService
}

func NewRenderHandler(renderService services.RenderService) *RenderHandler {
	return &RenderHandler{renderService: renderService}
}

type renderRequest struct {
	CandidateIDs []uuid.UUID `json:"candidate_ids"`
	Template     string      `json:"template"`
	Outputs      []string    `json:"outputs"`
	Watermark    string      `json:"watermark"`
	Loudness     string      `json:"loudness"`
	Captions     string      `json:"captions"`
	Priority     string      `json:"priority"`
}

func (r renderRequest) toInput() services.CreateRenderInput {
	return services.CreateRenderInput{
		Params: domain.RenderParams{
			CandidateIDs: r.CandidateIDs,
			Template:     r.Template,
			Outputs:      r.Outputs,
			Watermark:    r.Watermark,
			Loudness:     r.Loudness,
			Captions:     r.Captions,
		},
		Priority: r.Priority,
	}
}

func (rh *RenderHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid request body"))
		return
	}
	render, err := rh.renderService.Create(c.Request.Context(), userID, req.toInput())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, render)
}

// CreateBatch submits up to five renders atomically: either every render in
// the batch is admitted or none are.
func (rh *RenderHandler) CreateBatch(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	var req struct {
		Renders []renderRequest `json:"renders"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid request body"))
		return
	}
	ins := make([]services.CreateRenderInput, 0, len(req.Renders))
	for _, r := range req.Renders {
		ins = append(ins, r.toInput())
	}
	renders, err := rh.renderService.CreateBatch(c.Request.Context(), userID, ins)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, gin.H{"renders": renders, "count": len(renders)})
}

func (rh *RenderHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	renderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid render id"))
		return
	}
	render, err := rh.renderService.Get(c.Request.Context(), userID, renderID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, render)
}

func (rh *RenderHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	skip, limit := pagination(c)
	renders, err := rh.renderService.List(c.Request.Context(), userID, c.Query("status"), skip, limit)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"renders": renders, "count": len(renders)})
}

func (rh *RenderHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	renderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid render id"))
		return
	}
	render, err := rh.renderService.Cancel(c.Request.Context(), userID, renderID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, render)
}

func (rh *RenderHandler) Delete(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	renderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid render id"))
		return
	}
	if err := rh.renderService.Delete(c.Request.Context(), userID, renderID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// Download returns a signed GET URL for one output of a completed render.
func (rh *RenderHandler) Download(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		RespondError(c, http.StatusUnauthorized, "unauthorized", fmt.Errorf("missing user"))
		return
	}
	renderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid render id"))
		return
	}
	candidateID, err := uuid.Parse(c.Param("candidate_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid candidate id"))
		return
	}
	aspect := c.Query("aspect")
	if aspect == "" {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("aspect is required"))
		return
	}
	url, err := rh.renderService.DownloadURL(c.Request.Context(), userID, renderID, candidateID, aspect)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"download_url": url, "expires_in": 24 * 3600})
}
