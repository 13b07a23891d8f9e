package application

import (
	"errors"
	"sort"
	"strings"
)

// Booking rejections. Each one is deterministic for a given input and state.
var (
	// ErrUserRestricted is returned when the user has an active block on the space.
	ErrUserRestricted = errors.New("application: user restricted from space")
	// ErrSpaceNotReservable is returned when the space does not accept bookings.
	ErrSpaceNotReservable = errors.New("application: space not reservable")
	// ErrBookingInPast is returned when the booking does not start strictly in the future.
	ErrBookingInPast = errors.New("application: booking starts in the past")
	// ErrOutsideOperatingHours is returned when the interval leaves the space opening hours.
	ErrOutsideOperatingHours = errors.New("application: outside operating hours")
	// ErrTimeConflict is returned when the interval overlaps a confirmed booking.
	ErrTimeConflict = errors.New("application: time conflict")
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrNotOwner is returned when a caller acts on a booking that belongs to someone else.
	ErrNotOwner = errors.New("application: not owner")
	// ErrInsufficientCapability is returned when the caller's role is below what the operation needs.
	ErrInsufficientCapability = errors.New("application: insufficient capability")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}

var rejectionMessages = []struct {
	err     error
	message string
}{
	{ErrUserRestricted, "You are restricted from booking this space."},
	{ErrSpaceNotReservable, "This space is not available for booking."},
	{ErrBookingInPast, "Bookings must start in the future."},
	{ErrOutsideOperatingHours, "The requested time is outside the space's operating hours."},
	{ErrTimeConflict, "The requested time overlaps an existing booking."},
	{ErrNotFound, "The requested resource was not found."},
	{ErrNotOwner, "Only the owner of this booking can do that."},
	{ErrInsufficientCapability, "You do not have permission to do that."},
}

// RejectionMessage returns the stable user-facing message for err. Errors that
// are not rejections get a generic message.
func RejectionMessage(err error) string {
	if err == nil {
		return ""
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "The request is invalid."
	}
	for _, entry := range rejectionMessages {
		if errors.Is(err, entry.err) {
			return entry.message
		}
	}
	return "Something went wrong. Please try again."
}

// IsRejection reports whether err is a deterministic rejection of the request
// as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	if err == nil {
		return false
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return true
	}
	for _, entry := range rejectionMessages {
		if errors.Is(err, entry.err) {
			return true
		}
	}
	return false
}
