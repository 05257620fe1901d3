package kb

import (
	"fmt"
	"strings"

	"mivar/internal/script"
	"mivar/internal/signature"
)

// KnowledgeBase owns the class tree, the relation registry and the ordered
// rule list.
//
// Construction is NOT safe for concurrent use. Once built, a knowledge base
// is only read by solves, so any number of solves may share it.
type KnowledgeBase struct {
	engine script.Engine
	parser SignatureParser

	classes       map[string]*Class
	classOrder    []*Class
	relations     map[string]*Relation
	relationOrder []*Relation
	rules         []*Rule
}

// Option configures a KnowledgeBase.
type Option func(*KnowledgeBase)

// WithSignatureParser replaces the default tree-sitter signature parser.
func WithSignatureParser(p SignatureParser) Option {
	return func(k *KnowledgeBase) {
		k.parser = p
	}
}

// New creates an empty knowledge base whose relation bodies are compiled by
// engine.
func New(engine script.Engine, opts ...Option) *KnowledgeBase {
	k := &KnowledgeBase{
		engine:    engine,
		classes:   make(map[string]*Class),
		relations: make(map[string]*Relation),
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.parser == nil {
		k.parser = signature.NewParser()
	}
	return k
}

// Engine returns the evaluator that compiled the relations.
func (k *KnowledgeBase) Engine() script.Engine { return k.engine }

// NewClass creates a root class.
func (k *KnowledgeBase) NewClass(name, description string) (*Class, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if _, exists := k.classes[name]; exists {
		return nil, fmt.Errorf("class %q: %w", name, ErrNameAlreadyExists)
	}
	c := newClass(nil, name, description)
	k.classes[name] = c
	k.classOrder = append(k.classOrder, c)
	return c, nil
}

// NewRelation reads the signature of source, compiles it under the declared
// function name and registers it. Compiling runs the body's top-level code
// once, so a body that fails or never finishes loading is rejected here
// rather than at solve time.
func (k *KnowledgeBase) NewRelation(source, description string) (*Relation, error) {
	name, argCount, ok := k.parser.ParseSignature(source)
	if !ok {
		return nil, badCode(source, "failed to parse name and args of function")
	}
	if argCount == 0 {
		return nil, badCode(source, "relation %q takes no arguments", name)
	}
	if _, exists := k.relations[name]; exists {
		return nil, fmt.Errorf("relation %q: %w", name, ErrNameAlreadyExists)
	}
	unit, err := k.engine.Compile(name, source)
	if err != nil {
		return nil, &CodeError{Source: source, Err: err}
	}
	r := &Relation{
		name:        name,
		description: description,
		argCount:    argCount,
		source:      source,
		unit:        unit,
	}
	k.relations[name] = r
	k.relationOrder = append(k.relationOrder, r)
	return r, nil
}

// NewRule appends a rule. Rule order is the priority of alternative
// derivations for the same target.
func (k *KnowledgeBase) NewRule(name, description string, relation *Relation, args []*Parameter, target *Parameter) (*Rule, error) {
	if relation == nil || k.relations[relation.name] != relation {
		return nil, fmt.Errorf("rule %q: relation: %w", name, ErrNotFound)
	}
	if target == nil {
		return nil, fmt.Errorf("rule %q: target: %w", name, ErrNotFound)
	}
	if len(args) != relation.argCount {
		return nil, fmt.Errorf("rule %q: %s wants %d, got %d: %w",
			name, relation.name, relation.argCount, len(args), ErrArgCount)
	}
	for i, a := range args {
		if a == nil {
			return nil, fmt.Errorf("rule %q: argument %d: %w", name, i, ErrNotFound)
		}
	}
	r := &Rule{
		name:        name,
		description: description,
		relation:    relation,
		args:        append([]*Parameter(nil), args...),
		target:      target,
	}
	k.rules = append(k.rules, r)
	return r, nil
}

// Classes returns root classes in creation order.
func (k *KnowledgeBase) Classes() []*Class {
	return append([]*Class(nil), k.classOrder...)
}

// Relations returns relations in registration order.
func (k *KnowledgeBase) Relations() []*Relation {
	return append([]*Relation(nil), k.relationOrder...)
}

// Relation looks up a relation by name.
func (k *KnowledgeBase) Relation(name string) (*Relation, bool) {
	r, ok := k.relations[name]
	return r, ok
}

// Rules returns rules in registration order.
func (k *KnowledgeBase) Rules() []*Rule {
	return append([]*Rule(nil), k.rules...)
}

// Parameters returns every parameter, depth-first in creation order.
func (k *KnowledgeBase) Parameters() []*Parameter {
	var out []*Parameter
	for _, c := range k.classOrder {
		c.walkParameters(func(p *Parameter) {
			out = append(out, p)
		})
	}
	return out
}

// Class resolves a class path such as "Triangle/Sides".
func (k *KnowledgeBase) Class(path string) (*Class, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, fmt.Errorf("class %q: %w", path, ErrNotFound)
	}
	c, ok := k.classes[segs[0]]
	if !ok {
		return nil, fmt.Errorf("class %q: %w", path, ErrNotFound)
	}
	for _, s := range segs[1:] {
		if c, ok = c.classes[s]; !ok {
			return nil, fmt.Errorf("class %q: %w", path, ErrNotFound)
		}
	}
	return c, nil
}

// Parameter resolves a fully-qualified parameter name such as
// "Triangle/Sides/a".
func (k *KnowledgeBase) Parameter(path string) (*Parameter, error) {
	i := strings.LastIndex(path, Separator)
	if i <= 0 {
		return nil, fmt.Errorf("parameter %q: %w", path, ErrNotFound)
	}
	c, err := k.Class(path[:i])
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", path, ErrNotFound)
	}
	p, ok := c.params[path[i+1:]]
	if !ok {
		return nil, fmt.Errorf("parameter %q: %w", path, ErrNotFound)
	}
	return p, nil
}

func splitPath(path string) []string {
	path = strings.Trim(path, Separator)
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}
