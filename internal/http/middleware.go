package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/amenity-booking/internal/application"
)

// Identity headers set by the upstream gateway.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderRequestID = "X-Request-ID"
)

var errInvalidRole = errors.New("unknown role in X-User-Role header")

// Identity resolves the caller from the gateway headers and stores it in the
// request context. Requests without X-User-ID are anonymous; services decide
// what anonymous callers may do. A user id without a role is a resident.
func Identity(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
			principal := application.Principal{UserID: userID}

			if userID != "" {
				principal.Role = application.RoleResident
				if value := r.Header.Get(HeaderUserRole); strings.TrimSpace(value) != "" {
					role, ok := application.ParseRole(value)
					if !ok {
						responder.writeError(r.Context(), w, http.StatusUnauthorized, errInvalidRole)
						return
					}
					principal.Role = role
				}
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// statusRecorder captures the status written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// RequestLogger attaches a request scoped logger carrying the request id,
// method and path, and logs each request once it completes. An incoming
// X-Request-ID is reused; otherwise a new one is generated and echoed back.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)

			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", loggablePath(r.URL.Path),
			)

			ctx := ContextWithLogger(r.Context(), logger)
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.InfoContext(ctx, "request completed", "status", status, "duration", time.Since(start))
		})
	}
}

const feedPathPrefix = "/feeds/"

// loggablePath hides the secret segment of calendar feed URLs.
func loggablePath(path string) string {
	rest, ok := strings.CutPrefix(path, feedPathPrefix)
	if !ok {
		return path
	}
	feedID, secret, found := strings.Cut(rest, "/")
	if !found || secret == "" {
		return path
	}
	return feedPathPrefix + feedID + "/REDACTED"
}

// Recover turns a handler panic into a 500 response.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					responder.loggerFor(r.Context()).ErrorContext(r.Context(), "handler panicked", "panic", rec)
					responder.writeJSON(r.Context(), w, http.StatusInternalServerError, errorResponse{
						ErrorCode: "unexpected",
						Message:   application.RejectionMessage(errors.New("panic")),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
