package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrConflict is returned when a write violates a uniqueness rule.
	ErrConflict = errors.New("persistence: conflict")
	// ErrSerialization is returned when the store aborted a transaction because a
	// concurrent writer touched the same rows. The caller may retry.
	ErrSerialization = errors.New("persistence: serialization failure")
	// ErrConstraintViolation is returned when a write breaks a check or foreign key constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
