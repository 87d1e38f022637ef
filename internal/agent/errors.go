package agent

import (
	"errors"
	"fmt"
)

// ConfigurationError marks an agent that cannot be constructed: no schema
// source, no completion backend. There is no recovery beyond fixing the
// deployment.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "agent configuration: " + e.Reason
}

// MissingContextError is returned when repair or answer generation is invoked
// without an explicit argument and the session holds no fallback for it.
type MissingContextError struct {
	Field string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("no %s available: pass one explicitly or generate a query first", e.Field)
}

func IsMissingContext(err error) bool {
	var missingErr *MissingContextError
	return errors.As(err, &missingErr)
}

// RetryExhaustedError carries the full diagnostic state of a failed ask: how
// many execution attempts were spent, the last query tried, and the last
// database error text.
type RetryExhaustedError struct {
	Attempts  int
	LastQuery string
	LastError string
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("query could not be executed after %d attempts, last query: %s, error: %s",
		e.Attempts, e.LastQuery, e.LastError)
}

func IsRetryExhausted(err error) bool {
	var exhaustedErr *RetryExhaustedError
	return errors.As(err, &exhaustedErr)
}
