package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleettrack/internal/service"
)

const timeLayout = time.RFC3339

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	status := mapErrorToHTTPStatus(err)

	var e *service.Error
	if errors.As(err, &e) {
		c.JSON(status, ErrorResponse{Code: e.Code, Message: e.Message})
		return
	}

	_ = c.Error(err)
	c.JSON(status, ErrorResponse{Code: "INTERNAL", Message: "internal server error"})
}

// respondBadRequest sends a 400 for malformed input detected in the handler.
func respondBadRequest(c *gin.Context, err *service.Error, message string) {
	if message == "" {
		message = err.Message
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: err.Code, Message: message})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps classified service errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch service.KindOf(err) {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindPreconditionFailed:
		return http.StatusConflict
	case service.KindInvalidArgument:
		return http.StatusBadRequest
	case service.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
