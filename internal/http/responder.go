package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/amenity-booking/internal/application"
)

var (
	errBadRequestBody   = errors.New("request body is not valid JSON")
	errMissingPathParam = errors.New("path parameter is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError answers a request the handler itself rejected, before any
// service call.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).InfoContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusCode(status), Message: message})
}

// handleServiceError maps a service error to its status code and stable body.
// Infrastructure errors are logged here and never echoed to the caller.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	kind := application.ErrorKind(err)
	status := statusForKind(kind)
	body := errorResponse{
		ErrorCode: kind,
		Message:   application.RejectionMessage(err),
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) && len(vErr.FieldErrors) > 0 {
		body.Errors = vErr.FieldErrors
	}

	if status >= http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}
	r.writeJSON(ctx, w, status, body)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

// operationLogger tags the request logger with the handler operation.
func (r responder) operationLogger(ctx context.Context, handler, operation string) *slog.Logger {
	return r.loggerFor(ctx).With("handler", handler, "operation", operation)
}

func statusForKind(kind string) int {
	switch kind {
	case "time_conflict":
		return http.StatusConflict
	case "user_restricted", "not_owner", "insufficient_capability":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "validation", "space_not_reservable", "booking_in_past", "outside_operating_hours":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "unexpected"
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
