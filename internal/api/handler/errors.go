package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/ideaforge/internal/domain"
	"github.com/timmy/ideaforge/internal/logger"
	"github.com/timmy/ideaforge/internal/similarity"
)

var errorStatuses = []struct {
	err     error
	status  int
	message string
}{
	{domain.ErrInvalidIdea, http.StatusBadRequest, ""},
	{domain.ErrInvalidInput, http.StatusBadRequest, ""},
	{domain.ErrIdeaNotFound, http.StatusNotFound, "idea not found"},
	{domain.ErrNoUnusedIdeas, http.StatusNotFound, "nothing to publish"},
	{domain.ErrIdeaAlreadyUsed, http.StatusConflict, "idea already used"},
	{domain.ErrProviderUnavailable, http.StatusServiceUnavailable, "embedding provider unavailable"},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, "vector store unavailable"},
	{domain.ErrGenerationFailed, http.StatusBadGateway, "content generation failed"},
	{domain.ErrPublishFailed, http.StatusBadGateway, "publication failed on every platform"},
	{similarity.ErrDimensionMismatch, http.StatusInternalServerError, "embedding dimension mismatch"},
}

// statusFor maps a service error to an HTTP status and a client message. An
// empty configured message passes the error text through, which is only done
// for validation errors.
func statusFor(err error) (int, string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			if e.message == "" {
				return e.status, err.Error()
			}
			return e.status, e.message
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeError(c *gin.Context, err error) {
	status, message := statusFor(err)
	if status < http.StatusInternalServerError {
		logger.CtxInfo(c.Request.Context(), "Request rejected with %d: %v", status, err)
		c.JSON(status, gin.H{"error": message})
		return
	}
	ctx := c.Request.Context()
	logger.FromContext(ctx).WithError(err).Error("Request failed")
	c.JSON(status, gin.H{"error": message, "request_id": logger.GetRequestID(ctx)})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}
