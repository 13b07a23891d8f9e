package migration

import (
	"errors"
	"fmt"
)

var (
	ErrMigrationFailed      = errors.New("migration failed")
	ErrInvalidMigrationFile = errors.New("invalid migration file")
	// ErrVersionConflict is returned when schema_migrations lists a version no file provides.
	ErrVersionConflict  = errors.New("migration version conflict")
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrChecksumMismatch is returned when an applied file was edited afterwards.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// StepError reports which step of which migration failed. File is empty for
// failures that happen against the database rather than a migration file.
type StepError struct {
	Version string
	File    string
	Step    string
	Err     error
}

func (e *StepError) Error() string {
	subject := "schema"
	switch {
	case e.Version != "" && e.File != "":
		subject = fmt.Sprintf("migration %s (%s)", e.Version, e.File)
	case e.Version != "":
		subject = "migration " + e.Version
	case e.File != "":
		subject = e.File
	}
	return fmt.Sprintf("%s: %s: %v", subject, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func fileError(version, file, step string, err error) *StepError {
	return &StepError{Version: version, File: file, Step: step, Err: err}
}

func dbError(version, step string, err error) *StepError {
	return &StepError{Version: version, Step: step, Err: err}
}
