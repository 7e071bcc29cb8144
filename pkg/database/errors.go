package database

import (
	"errors"
	"fmt"
)

// StaleColumnError reports that a query referenced a computed column that
// only ever existed as a derived expression in a previous answer, not as a
// real ledger column. The SQL resolution stage retries exactly once on it.
type StaleColumnError struct {
	Column string
	Err    error
}

func (e *StaleColumnError) Error() string {
	return fmt.Sprintf("query references computed column %q from previous conversation: %v", e.Column, e.Err)
}

func (e *StaleColumnError) Unwrap() error { return e.Err }

// IsStaleColumn reports whether err carries a *StaleColumnError.
func IsStaleColumn(err error) bool {
	var sce *StaleColumnError
	return errors.As(err, &sce)
}

// ExecutionError wraps any other failure of a ledger query.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("failed to execute query: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
