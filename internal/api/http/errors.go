package http

import (
	"errors"
	"net/http"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/domain/synchronized"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/termsync/internal/providers/terminal"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, terminal.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, terminal.ErrSessionClosed),
		errors.Is(err, synchronized.ErrTerminalClosed),
		errors.Is(err, synchronized.ErrDisposed):
		return http.StatusGone
	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, resilience.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
