package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/service"
)

const (
	defaultPublicationLimit = 20
	maxPublicationLimit     = 200
)

// PublicationLister reads the publication log.
// *repository.PublicationRepository implements it.
type PublicationLister interface {
	List(ctx context.Context, limit, offset int) ([]domain.Publication, error)
	ListByIdea(ctx context.Context, ideaID string) ([]domain.Publication, error)
}

// PublishHandler triggers publish runs and serves the publication log.
type PublishHandler struct {
	publish      *service.PublishService
	publications PublicationLister

	running atomic.Bool
}

// NewPublishHandler creates a new publish handler. publications may be nil
// when no database is configured.
func NewPublishHandler(publish *service.PublishService, publications PublicationLister) *PublishHandler {
	return &PublishHandler{publish: publish, publications: publications}
}

// PublishRequest is the body of POST /api/v1/publish. Every field is optional.
type PublishRequest struct {
	Draft     *bool    `json:"draft,omitempty"`
	Platforms []string `json:"platforms,omitempty"`
	DryRun    bool     `json:"dry_run,omitempty"`
}

// Publish handles POST /api/v1/publish. Only one run is in flight at a time;
// a concurrent request gets 409.
func (h *PublishHandler) Publish(c *gin.Context) {
	var req PublishRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request: "+err.Error())
			return
		}
	}

	if !h.running.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "a publish run is already in progress"})
		return
	}
	defer h.running.Store(false)

	result, err := h.publish.Run(c.Request.Context(), service.PublishOptions{
		Draft:     req.Draft,
		Platforms: req.Platforms,
		DryRun:    req.DryRun,
	})
	if err != nil {
		// every platform failed: report the per-platform outcome with the error
		if result != nil && errors.Is(err, domain.ErrPublishFailed) {
			status, message := statusFor(err)
			c.JSON(status, gin.H{"error": message, "result": result})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListPublications handles GET /api/v1/publications.
func (h *PublishHandler) ListPublications(c *gin.Context) {
	if h.publications == nil {
		c.JSON(http.StatusOK, gin.H{"publications": []domain.Publication{}, "total": 0})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPublicationLimit)))
	if err != nil || limit <= 0 {
		badRequest(c, "Query parameter 'limit' must be a positive integer")
		return
	}
	if limit > maxPublicationLimit {
		limit = maxPublicationLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		badRequest(c, "Query parameter 'offset' must be a non-negative integer")
		return
	}

	pubs, err := h.publications.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"publications": pubs,
		"total":        len(pubs),
		"limit":        limit,
		"offset":       offset,
	})
}

// ListIdeaPublications handles GET /api/v1/ideas/:id/publications.
func (h *PublishHandler) ListIdeaPublications(c *gin.Context) {
	id := c.Param("id")
	if h.publications == nil {
		c.JSON(http.StatusOK, gin.H{"idea_id": id, "publications": []domain.Publication{}, "total": 0})
		return
	}

	pubs, err := h.publications.ListByIdea(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"idea_id": id, "publications": pubs, "total": len(pubs)})
}
