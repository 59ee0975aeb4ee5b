package httpapi

import (
	"context"
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"taskpilot/internal/assistant"
	"taskpilot/internal/daemon"
	"taskpilot/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// requestError is a caller mistake detected by the service.
type requestError struct{ msg string }

func (e requestError) Error() string   { return e.msg }
func (e requestError) StatusCode() int { return http.StatusBadRequest }

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case errors.Is(err, assistant.ErrModelNotInstalled):
		return http.StatusNotFound
	case daemon.IsModelDiscovery(err):
		return http.StatusBadGateway
	case errors.Is(err, assistant.ErrUnreachable),
		errors.Is(err, assistant.ErrNoModels),
		errors.Is(err, assistant.ErrNotReady),
		assistant.IsVerificationFailure(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	writeJSONError(w, statusFor(err), err.Error())
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
