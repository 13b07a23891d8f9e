package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/amenity-booking/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// logOutcome records the result of an operation. Rejections are normal traffic
// and go to info; anything else is an error.
func logOutcome(ctx context.Context, logger *slog.Logger, err error, failure, success string, attrs ...any) {
	if err == nil {
		logger.InfoContext(ctx, success, attrs...)
		return
	}
	pairs := append([]any{"error", err, "error_kind", ErrorKind(err)}, attrs...)
	if IsRejection(err) {
		logger.InfoContext(ctx, failure, pairs...)
		return
	}
	logger.ErrorContext(ctx, failure, pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUserRestricted):
		return "user_restricted"
	case errors.Is(err, ErrSpaceNotReservable):
		return "space_not_reservable"
	case errors.Is(err, ErrBookingInPast):
		return "booking_in_past"
	case errors.Is(err, ErrOutsideOperatingHours):
		return "outside_operating_hours"
	case errors.Is(err, ErrTimeConflict):
		return "time_conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrInsufficientCapability):
		return "insufficient_capability"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
