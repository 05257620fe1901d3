package kb

import (
	"fmt"
	"strings"

	"mivar/internal/script"
)

// Separator joins class and parameter names into fully-qualified names.
const Separator = "/"

// Class is a namespace node grouping parameters and sub-classes.
type Class struct {
	name        string
	description string
	fullName    string
	parent      *Class

	classes    map[string]*Class
	classOrder []*Class
	params     map[string]*Parameter
	paramOrder []*Parameter
}

func newClass(parent *Class, name, description string) *Class {
	full := name
	if parent != nil {
		full = parent.fullName + Separator + name
	}
	return &Class{
		name:        name,
		description: description,
		fullName:    full,
		parent:      parent,
		classes:     make(map[string]*Class),
		params:      make(map[string]*Parameter),
	}
}

func (c *Class) Name() string { return c.name }
func (c *Class) Description() string { return c.description }

// FullName returns the class path from its root class, e.g. "Triangle/Sides".
func (c *Class) FullName() string { return c.fullName }

// Parent returns the owning class, or nil for a root class.
func (c *Class) Parent() *Class { return c.parent }

// Classes returns child classes in creation order.
func (c *Class) Classes() []*Class {
	return append([]*Class(nil), c.classOrder...)
}

// Parameters returns the class's own parameters in creation order.
func (c *Class) Parameters() []*Parameter {
	return append([]*Parameter(nil), c.paramOrder...)
}

// NewClass creates a child class. Child class names are unique within c.
func (c *Class) NewClass(name, description string) (*Class, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if _, exists := c.classes[name]; exists {
		return nil, fmt.Errorf("class %q in %q: %w", name, c.fullName, ErrNameAlreadyExists)
	}
	child := newClass(c, name, description)
	c.classes[name] = child
	c.classOrder = append(c.classOrder, child)
	return child, nil
}

// ParameterOption configures a parameter at creation.
type ParameterOption func(*Parameter)

// WithDefault declares the value a parameter falls back to when it cannot be
// derived.
func WithDefault(v any) ParameterOption {
	return func(p *Parameter) {
		p.def = v
		p.hasDefault = true
	}
}

// NewParameter creates a parameter owned by c. Parameter names are unique
// within c.
func (c *Class) NewParameter(name, description string, opts ...ParameterOption) (*Parameter, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if _, exists := c.params[name]; exists {
		return nil, fmt.Errorf("parameter %q in %q: %w", name, c.fullName, ErrNameAlreadyExists)
	}
	p := &Parameter{
		name:        name,
		description: description,
		class:       c,
		fullName:    c.fullName + Separator + name,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.hasDefault {
		v, err := script.Normalize(p.def)
		if err != nil {
			return nil, fmt.Errorf("parameter %q default: %w: %v", p.fullName, ErrInvalidValue, err)
		}
		p.def = v
	}
	c.params[name] = p
	c.paramOrder = append(c.paramOrder, p)
	return p, nil
}

func (c *Class) walkParameters(fn func(*Parameter)) {
	for _, p := range c.paramOrder {
		fn(p)
	}
	for _, child := range c.classOrder {
		child.walkParameters(fn)
	}
}

// Parameter is a named, optionally defaulted value slot owned by one class.
type Parameter struct {
	name        string
	description string
	fullName    string
	class       *Class
	def         any
	hasDefault  bool
}

func (p *Parameter) Name() string { return p.name }
func (p *Parameter) Description() string { return p.description }

// FullName is the parameter's identity for solving, e.g. "Triangle/Sides/a".
func (p *Parameter) FullName() string { return p.fullName }

// Class returns the owning class.
func (p *Parameter) Class() *Class { return p.class }

// Default returns the declared default and whether one was declared.
func (p *Parameter) Default() (any, bool) { return p.def, p.hasDefault }

func (p *Parameter) String() string { return p.fullName }

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.Contains(name, Separator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, Separator)
	}
	return nil
}
