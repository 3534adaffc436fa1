package classload

import (
	"errors"
	"strings"
)

// Sentinel errors for the failure classes of a load run.
// Callers distinguish them with errors.Is().
//
// Example usage:
//
//	_, err := loader.Load(ctx, config)
//	if errors.Is(err, classload.ErrConnectionFailed) {
//	    // database unreachable, nothing was modified
//	}
var (
	// ErrUsage indicates the command line was invoked with the wrong arguments.
	ErrUsage = errors.New("usage error")

	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates the input CSV is missing, unreadable,
	// malformed, or lacks a required column.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConnectionFailed indicates the database could not be reached
	// or rejected the credentials.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrStatementFailed indicates a SQL statement failed during the load.
	ErrStatementFailed = errors.New("statement failed")
)

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrUsage):
		return ExitUsageError
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrInvalidInput):
		return ExitInputError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrStatementFailed):
		return ExitStatementFailed
	}

	// Cobra reports flag problems as plain errors
	errStr := err.Error()
	if strings.HasPrefix(errStr, "unknown flag") ||
		strings.HasPrefix(errStr, "unknown shorthand flag") ||
		strings.HasPrefix(errStr, "invalid argument") {
		return ExitUsageError
	}

	return ExitGeneralError
}
