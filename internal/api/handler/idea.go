package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/service"
)

// IdeaHandler handles the idea pool endpoints.
type IdeaHandler struct {
	ideas *service.IdeaService
}

// NewIdeaHandler creates a new idea handler.
// Parameters:
//   - ideas: idea service instance.
// Returns:
//   - *IdeaHandler: initialized handler.
func NewIdeaHandler(ideas *service.IdeaService) *IdeaHandler {
	return &IdeaHandler{ideas: ideas}
}

// CreateIdeaRequest is the body of POST /api/v1/ideas.
type CreateIdeaRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Tags        []string `json:"tags" binding:"required"`
	// Threshold overrides the gate threshold for this request.
	Threshold *float64 `json:"threshold,omitempty" binding:"omitempty,gt=0,lte=1"`
}

// RejectedIdeaResponse is returned with 409 when the gate rejects an idea.
type RejectedIdeaResponse struct {
	Error     string            `json:"error"`
	Threshold float64           `json:"threshold"`
	TopK      int               `json:"top_k"`
	Conflicts []domain.Conflict `json:"conflicts"`
}

// Create handles POST /api/v1/ideas.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes 201 with the idea, or 409 with the conflicts).
func (h *IdeaHandler) Create(c *gin.Context) {
	var req CreateIdeaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	var opts *service.GateOptions
	if req.Threshold != nil {
		opts = &service.GateOptions{Threshold: *req.Threshold}
	}

	result, err := h.ideas.Create(c.Request.Context(), domain.NewIdeaInput{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	}, opts)
	if err != nil {
		writeError(c, err)
		return
	}

	if !result.Gate.Accepted {
		c.JSON(http.StatusConflict, RejectedIdeaResponse{
			Error:     "idea is too similar to existing ideas",
			Threshold: result.Gate.Threshold,
			TopK:      result.Gate.TopK,
			Conflicts: result.Gate.Conflicts,
		})
		return
	}

	c.JSON(http.StatusCreated, result.Idea)
}

// List handles GET /api/v1/ideas.
func (h *IdeaHandler) List(c *gin.Context) {
	var used *bool
	if raw := c.Query("used"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "Query parameter 'used' must be true or false")
			return
		}
		used = &v
	}

	ideas, err := h.ideas.List(c.Request.Context(), used)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ideas": ideas,
		"total": len(ideas),
	})
}

// Get handles GET /api/v1/ideas/:id.
func (h *IdeaHandler) Get(c *gin.Context) {
	idea, err := h.ideas.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

// Delete handles DELETE /api/v1/ideas/:id. Unknown ids also answer 204.
func (h *IdeaHandler) Delete(c *gin.Context) {
	if err := h.ideas.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkUsed handles POST /api/v1/ideas/:id/used.
func (h *IdeaHandler) MarkUsed(c *gin.Context) {
	idea, err := h.ideas.MarkUsed(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

// Next handles GET /api/v1/ideas/next. Nothing is marked used.
func (h *IdeaHandler) Next(c *gin.Context) {
	selection, err := h.ideas.Next(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, selection)
}

// Stats handles GET /api/v1/stats.
func (h *IdeaHandler) Stats(c *gin.Context) {
	stats, err := h.ideas.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
