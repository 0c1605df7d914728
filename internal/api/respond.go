package api

import (
	"errors"
	"log"
	"net/http"

	"ai-health-navigator/internal/llm"
	"ai-health-navigator/internal/recovery"
	"ai-health-navigator/internal/shared"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the error object of every failed response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// writeError maps planner errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		vErr  *shared.ValidationError
		pErr  *shared.PersistenceError
		gErr  *recovery.GenerationFailedError
		rErr  *llm.RemoteServiceError
		ncErr *llm.NoCandidatesError
	)

	switch {
	case errors.As(err, &vErr):
		abortWithError(c, http.StatusBadRequest, "invalid_input", vErr.Message)
	case errors.Is(err, recovery.ErrInvalidDay):
		abortWithError(c, http.StatusBadRequest, "invalid_day", err.Error())
	case errors.Is(err, recovery.ErrNotFound), errors.Is(err, recovery.ErrNoActivePlan):
		abortWithError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, recovery.ErrGenerationInProgress):
		abortWithError(c, http.StatusConflict, "in_progress", err.Error())
	case errors.As(err, &gErr), errors.As(err, &rErr), errors.As(err, &ncErr):
		log.Printf("Model call failed for %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		abortWithError(c, http.StatusBadGateway, "model_unavailable", "AI service is unavailable, please try later")
	case errors.As(err, &pErr):
		log.Printf("Persistence failure for %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		abortWithError(c, http.StatusInternalServerError, "persistence", "failed to save your data")
	default:
		log.Printf("Unexpected error for %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		abortWithError(c, http.StatusInternalServerError, "internal", "unexpected server error")
	}
}
