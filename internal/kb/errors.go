package kb

import (
	"errors"
	"fmt"
)

var (
	// ErrNameAlreadyExists is returned when a class, parameter or relation
	// name is already taken in its namespace.
	ErrNameAlreadyExists = errors.New("name already exists")

	// ErrBadCode is returned when a relation body does not compile or load,
	// its signature cannot be parsed, or it declares no arguments.
	ErrBadCode = errors.New("bad relation code")

	// ErrArgCount is returned when a rule's argument list does not match the
	// arity of its relation.
	ErrArgCount = errors.New("argument count does not match relation")

	// ErrSolve marks a parameter that could not be resolved during a solve.
	ErrSolve = errors.New("no way to derive value")

	// ErrInvalidName is returned for empty names or names containing the
	// path separator.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidValue is returned when a value is not JSON-compatible.
	ErrInvalidValue = errors.New("value is not JSON-compatible")

	// ErrNotFound is returned when a path or relation is not part of the
	// knowledge base.
	ErrNotFound = errors.New("not found")
)

// CodeError carries the compiler or parser diagnostic for a rejected
// relation body.
type CodeError struct {
	Source string
	Err    error
}

func (e *CodeError) Error() string {
	return fmt.Sprintf("%s: %v", ErrBadCode, e.Err)
}

func (e *CodeError) Unwrap() error {
	return e.Err
}

// Is reports ErrBadCode so callers can use errors.Is without unwrapping the
// diagnostic.
func (e *CodeError) Is(target error) bool {
	return target == ErrBadCode
}

func badCode(source string, format string, args ...any) error {
	return &CodeError{Source: source, Err: fmt.Errorf(format, args...)}
}
