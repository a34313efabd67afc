package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagelens/internal/domain/export"
	"github.com/GriffinCanCode/pagelens/internal/domain/inspector"
	"github.com/GriffinCanCode/pagelens/internal/domain/pentest"
	"github.com/GriffinCanCode/pagelens/internal/domain/session"
	"github.com/GriffinCanCode/pagelens/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/pagelens/internal/providers/clipboard"
	"github.com/GriffinCanCode/pagelens/internal/providers/fetch"
	"github.com/GriffinCanCode/pagelens/internal/service"
)

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrEntryNotFound),
		errors.Is(err, service.ErrNodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotCapturing),
		errors.Is(err, session.ErrTooManySessions):
		return http.StatusConflict
	case errors.Is(err, inspector.ErrNotElement):
		return http.StatusUnprocessableEntity
	case errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, export.ErrUnsupportedVersion),
		errors.Is(err, service.ErrInvalidSource):
		return http.StatusBadRequest
	case errors.Is(err, pentest.ErrOutOfScope):
		return http.StatusForbidden
	case errors.Is(err, service.ErrLiveUnavailable),
		errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.Is(err, clipboard.ErrCopyFailed),
		errors.Is(err, fetch.ErrServerStatus):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError answers with the mapped status and logs server-side failures.
func (h *Handlers) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
