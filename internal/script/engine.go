// Package script is the evaluator boundary for relation bodies. The core
// only needs to compile a body and later call it by name with JSON-compatible
// positional arguments; Engine is that capability and nothing more.
package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownFunction is returned when a program has no function with the
	// requested name.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrUndefined is returned when a function returns no value.
	ErrUndefined = errors.New("function returned undefined")

	// ErrNotJSON is returned when a function returns something outside the
	// JSON value domain, such as a promise or a function.
	ErrNotJSON = errors.New("function returned a non-JSON value")

	// ErrNotDeclared is returned when a body does not bind its name to a
	// function.
	ErrNotDeclared = errors.New("function not declared")
)

// Unit is a compiled relation body bound to the function name it declares.
type Unit interface {
	Name() string
	Source() string
}

// Program is a set of linked units that can be invoked by function name.
type Program interface {
	Call(ctx context.Context, name string, args []any) (any, error)
}

// Engine compiles relation bodies and links them into callable programs.
type Engine interface {
	// Compile validates source, runs its top-level code once and checks
	// that it declares a function called name. It fails loudly on syntax
	// and load errors.
	Compile(name, source string) (Unit, error)
	// Link combines units into one evaluation unit. Each unit is callable
	// only under its own name.
	Link(ctx context.Context, units []Unit) (Program, error)
}

// EvalError wraps a failure raised while invoking a function.
type EvalError struct {
	Function string
	Err      error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("eval %s: %v", e.Function, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// Normalize maps v onto the JSON value domain: float64, string, bool, nil,
// []any and map[string]any.
func Normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
