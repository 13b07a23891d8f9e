package application

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"start_time": "x", "end_time": "y"}}
	if got := withFields.Error(); got != "validation failed: end_time, start_time" {
		t.Fatalf("expected sorted field list, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if (&ValidationError{}).HasErrors() {
		t.Fatalf("expected HasErrors to report false for empty error")
	}
	if !NewValidationError("field", "bad").HasErrors() {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddKeepsFirstMessage(t *testing.T) {
	t.Parallel()

	v := &ValidationError{}
	v.add("end_time", "end time is required")
	v.add("end_time", "end time must be after start time")
	if got := v.FieldErrors["end_time"]; got != "end time is required" {
		t.Fatalf("expected first message to win, got %q", got)
	}
}

func TestRejectionClassification(t *testing.T) {
	t.Parallel()

	rejections := []error{
		ErrUserRestricted,
		ErrSpaceNotReservable,
		ErrBookingInPast,
		ErrOutsideOperatingHours,
		ErrTimeConflict,
		ErrNotFound,
		ErrNotOwner,
		ErrInsufficientCapability,
		NewValidationError("space_id", "required"),
	}

	seen := make(map[string]error)
	for _, err := range rejections {
		wrapped := fmt.Errorf("context: %w", err)
		if !IsRejection(wrapped) {
			t.Fatalf("expected %v to be a rejection", err)
		}
		msg := RejectionMessage(wrapped)
		if msg == "" {
			t.Fatalf("expected message for %v", err)
		}
		if prev, ok := seen[msg]; ok {
			t.Fatalf("message %q shared by %v and %v", msg, prev, err)
		}
		seen[msg] = err
	}

	infra := errors.New("connection reset")
	if IsRejection(infra) {
		t.Fatalf("infrastructure errors are not rejections")
	}
	if got := RejectionMessage(infra); got != "Something went wrong. Please try again." {
		t.Fatalf("unexpected generic message %q", got)
	}
	if RejectionMessage(nil) != "" || IsRejection(nil) {
		t.Fatalf("nil error must not classify")
	}
}
