package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	cursordomain "github.com/zonekeeper/registro/internal/cursor/domain"
	"github.com/zonekeeper/registro/internal/expansion"
	premiumdomain "github.com/zonekeeper/registro/internal/premium/domain"
	pricingdomain "github.com/zonekeeper/registro/internal/pricing/domain"
	restoredomain "github.com/zonekeeper/registro/internal/restore/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) {
		return vErr
	}
	return nil
}

func mapError(err error) (int, errorPayload) {
	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, pricingdomain.ErrNonPositiveYears),
		errors.Is(err, pricingdomain.ErrUnknownTLD),
		errors.Is(err, premiumdomain.ErrUnknownTLD),
		errors.Is(err, expansion.ErrInvalidWindow):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}
	case errors.Is(err, pricingdomain.ErrTokenInvalidForPremiumName),
		errors.Is(err, restoredomain.ErrNotEligibleForRestore):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "not_allowed",
			Message: err.Error(),
		}
	case errors.Is(err, restoredomain.ErrFeeMismatch):
		return http.StatusConflict, errorPayload{
			Type:    "fee_mismatch",
			Message: err.Error(),
		}
	case errors.Is(err, cursordomain.ErrCursorMismatch):
		return http.StatusConflict, errorPayload{
			Type:    "cursor_mismatch",
			Message: err.Error(),
		}
	case errors.Is(err, restoredomain.ErrNotAuthorized):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: err.Error(),
		}
	case errors.Is(err, restoredomain.ErrDomainNotFound),
		errors.Is(err, cursordomain.ErrCursorNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
