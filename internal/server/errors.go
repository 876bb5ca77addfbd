package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/portflow/portflow/internal/audit/domain"
	debitnotedomain "github.com/portflow/portflow/internal/debitnote/domain"
	taskrecorddomain "github.com/portflow/portflow/internal/taskrecord/domain"
	"gorm.io/gorm"
)

// Response is the legacy envelope the wider ERP expects from every endpoint.
type Response struct {
	Result  int    `json:"result"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Result: 1, Message: "success", Data: data})
}

var ErrInvalidRequest = errors.New("invalid_request")

// ErrorHandlingMiddleware translates domain sentinel errors into the legacy
// failure envelope once the handler chain has finished.
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

		status, message := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, Response{Result: 0, Message: message})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal server error"
	case isValidationError(err):
		return http.StatusBadRequest, err.Error()
	case isNotFoundError(err):
		return http.StatusNotFound, err.Error()
	case isConflictError(err):
		return http.StatusConflict, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, auditdomain.ErrInvalidTarget) ||
		errors.Is(err, taskrecorddomain.ErrInvalidID) ||
		errors.Is(err, taskrecorddomain.ErrInvalidJobOrder) ||
		errors.Is(err, taskrecorddomain.ErrInvalidTaskType) ||
		errors.Is(err, taskrecorddomain.ErrInvalidCharge) ||
		errors.Is(err, taskrecorddomain.ErrInvalidGLAccount) ||
		errors.Is(err, taskrecorddomain.ErrInvalidQuantity) ||
		errors.Is(err, debitnotedomain.ErrEmptySelection) ||
		errors.Is(err, debitnotedomain.ErrInvalidID) ||
		errors.Is(err, debitnotedomain.ErrInvalidJobOrder) ||
		errors.Is(err, debitnotedomain.ErrInvalidTaskType)
}

func isNotFoundError(err error) bool {
	return errors.Is(err, taskrecorddomain.ErrNotFound) ||
		errors.Is(err, debitnotedomain.ErrNotFound) ||
		errors.Is(err, debitnotedomain.ErrTaskRecordMissing) ||
		errors.Is(err, gorm.ErrRecordNotFound)
}

func isConflictError(err error) bool {
	return errors.Is(err, taskrecorddomain.ErrVersionConflict) ||
		errors.Is(err, taskrecorddomain.ErrRecordBilled) ||
		errors.Is(err, debitnotedomain.ErrVersionConflict)
}

func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case isValidationError(err):
		return "validation_error", err.Error()
	case isNotFoundError(err):
		return "not_found", err.Error()
	case isConflictError(err):
		return "conflict", err.Error()
	default:
		return "internal_error", "internal_error"
	}
}
