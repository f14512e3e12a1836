package caseload

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTemplate          = errors.New("unknown template")
	ErrUnknownCategory          = errors.New("unknown sort category")
	ErrParameterCountMismatch   = errors.New("parameter count mismatch")
	ErrMalformedTemplate        = errors.New("malformed template")
	ErrProjectionSplice         = errors.New("projection splice failure")
	ErrInvalidSortDirection     = errors.New("invalid sort direction")
	ErrInvalidPage              = errors.New("invalid page bounds")
	ErrParameterBindingMismatch = errors.New("parameter binding mismatch")
	ErrExecution                = errors.New("query execution failed")
)

// IsInputError reports whether err was caused by the request rather than the
// catalog or the database.
func IsInputError(err error) bool {
	return errors.Is(err, ErrUnknownTemplate) ||
		errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrParameterCountMismatch) ||
		errors.Is(err, ErrInvalidSortDirection) ||
		errors.Is(err, ErrInvalidPage)
}

// IsConfigError reports whether err points at a broken catalog entry.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrMalformedTemplate) ||
		errors.Is(err, ErrProjectionSplice) ||
		errors.Is(err, ErrParameterBindingMismatch)
}

// IsExecutionError reports whether err came from the storage engine.
func IsExecutionError(err error) bool {
	return errors.Is(err, ErrExecution)
}

func executionError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExecution, op, err)
}
