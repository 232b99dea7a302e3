package core

import "errors"

// Predefined errors returned by Memora database operations.
var (
	// ErrNoRows is returned when a query that expects rows returns no results.
	ErrNoRows = errors.New("no rows in result set")
	// ErrUndeclaredOperation is returned when Apply references an operation
	// name that was never declared on the source.
	ErrUndeclaredOperation = errors.New("operation not declared on source")
	// ErrUnsupportedDialect is returned when an unsupported database dialect is specified.
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
	// ErrRowsClosed is returned when iterating a row sequence that has been closed.
	ErrRowsClosed = errors.New("row sequence already closed")
)

// DeclarationError reports a cacheable operation declared with dynamic
// (bind-carrying) arguments. Declarations fail before any query runs.
type DeclarationError struct {
	Op     string
	Reason string
}

func (e *DeclarationError) Error() string {
	return "memora: declare " + e.Op + ": " + e.Reason
}

// ShapeMismatchError reports an internal invariant violation: two builders
// with equal cache keys were found to have unequal fragment sequences.
// It should never occur while declaration rules are enforced.
type ShapeMismatchError struct {
	Key string
}

func (e *ShapeMismatchError) Error() string {
	return "memora: builder cache corrupted for key " + e.Key
}

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
