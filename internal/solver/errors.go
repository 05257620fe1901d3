package solver

import (
	"errors"
	"fmt"
	"strings"

	"mivar/internal/kb"
)

// ErrMaxDepth aborts a solve whose derivation chain is deeper than the
// configured limit.
var ErrMaxDepth = errors.New("derivation depth limit exceeded")

// ErrNotLinked is returned for a graph with rules but no program.
var ErrNotLinked = errors.New("graph has no linked program")

// SolveError reports why a parameter could not be resolved. It is local to
// one node and never aborts the solve.
type SolveError struct {
	Parameter string
	// Attempts holds one reason per alternative tried, in order.
	Attempts []error
}

func (e *SolveError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("%s: %v: no rules and no default", e.Parameter, kb.ErrSolve)
	}
	reasons := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		reasons[i] = a.Error()
	}
	return fmt.Sprintf("%s: %v: %s", e.Parameter, kb.ErrSolve, strings.Join(reasons, "; "))
}

func (e *SolveError) Is(target error) bool {
	return target == kb.ErrSolve
}

func (e *SolveError) Unwrap() []error {
	return e.Attempts
}
