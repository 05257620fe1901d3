package kb

import "mivar/internal/script"

// Relation is a named, fixed-arity pure function usable in rules.
type Relation struct {
	name        string
	description string
	argCount    int
	source      string
	unit        script.Unit
}

func (r *Relation) Name() string { return r.name }
func (r *Relation) Description() string { return r.description }

// ArgCount is the arity declared by the function signature.
func (r *Relation) ArgCount() int { return r.argCount }

// Source returns the function text the relation was registered with.
func (r *Relation) Source() string { return r.source }

// Unit returns the compiled body, ready to be linked into a program.
func (r *Relation) Unit() script.Unit { return r.unit }

// SignatureParser extracts a function's name and argument count from its
// source text.
type SignatureParser interface {
	ParseSignature(source string) (name string, argCount int, ok bool)
}
