package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/retail-planner/internal/pkg/httputil"
	"github.com/ignite/retail-planner/internal/pkg/logger"
	"github.com/ignite/retail-planner/internal/recommendation"
	"github.com/ignite/retail-planner/internal/service/plan"
)

// stateConflict is the detail body of a 409.
type stateConflict struct {
	Current  string `json:"current"`
	Required string `json:"required"`
	Action   string `json:"action"`
}

// respondServiceError maps service errors onto HTTP statuses. 5xx bodies
// never carry the internal error text.
func respondServiceError(w http.ResponseWriter, err error) {
	var stateErr *plan.StateError
	var validationErr *plan.ValidationError

	switch {
	case errors.Is(err, plan.ErrNotFound), errors.Is(err, plan.ErrItemNotFound),
		errors.Is(err, recommendation.ErrStoreNotFound):
		httputil.NotFound(w, err.Error())
	case errors.As(err, &validationErr):
		httputil.Error(w, http.StatusBadRequest, "validation_failed", validationErr.Error(),
			map[string]string{"field": validationErr.Field, "reason": validationErr.Reason})
	case errors.Is(err, plan.ErrValidation), errors.Is(err, recommendation.ErrInvalidConfig):
		httputil.Error(w, http.StatusBadRequest, "validation_failed", err.Error(), nil)
	case errors.As(err, &stateErr):
		httputil.Error(w, http.StatusConflict, "state_conflict", stateErr.Error(), stateConflict{
			Current:  string(stateErr.Current),
			Required: string(stateErr.Required),
			Action:   stateErr.Action,
		})
	case errors.Is(err, plan.ErrLocked):
		httputil.Error(w, http.StatusLocked, "locked", "plan is being modified, retry shortly", nil)
	default:
		logger.Error("request failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal", safeErrorMessage(err), nil)
	}
}

// safeErrorMessage maps common internal error patterns to public-safe messages.
func safeErrorMessage(err error) string {
	if err == nil {
		return "An internal error occurred"
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "dial tcp"):
		return "Service temporarily unavailable"
	case strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "context canceled"):
		return "Request timed out"
	case strings.Contains(msg, "pq:") ||
		strings.Contains(msg, "sql") ||
		strings.Contains(msg, "snowflake"):
		return "A database error occurred"
	default:
		return "An internal error occurred"
	}
}
