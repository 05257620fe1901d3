// Package kbfile reads and writes declarative knowledge-base documents and
// query documents in YAML or JSON.
package kbfile

import (
	"fmt"

	"mivar/internal/kb"
	"mivar/internal/script"
)

// Document describes a whole knowledge base. Rules refer to relations by
// name and to parameters by fully-qualified path.
type Document struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Classes     []Class    `json:"classes,omitempty" yaml:"classes,omitempty"`
	Relations   []Relation `json:"relations,omitempty" yaml:"relations,omitempty"`
	Rules       []Rule     `json:"rules,omitempty" yaml:"rules,omitempty"`
}

type Class struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Classes     []Class     `json:"classes,omitempty" yaml:"classes,omitempty"`
}

// Parameter declares a value slot. A null or missing default means the
// parameter has none.
type Parameter struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
}

type Relation struct {
	Source      string `json:"source" yaml:"source"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type Rule struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Relation    string   `json:"relation" yaml:"relation"`
	Args        []string `json:"args" yaml:"args"`
	Target      string   `json:"target" yaml:"target"`
}

// Build replays the document through the knowledge-base construction API,
// so every construction error surfaces unchanged.
func (d *Document) Build(engine script.Engine, opts ...kb.Option) (*kb.KnowledgeBase, error) {
	k := kb.New(engine, opts...)

	for _, c := range d.Classes {
		root, err := k.NewClass(c.Name, c.Description)
		if err != nil {
			return nil, err
		}
		if err := buildClass(root, c); err != nil {
			return nil, err
		}
	}

	for i, r := range d.Relations {
		if _, err := k.NewRelation(r.Source, r.Description); err != nil {
			return nil, fmt.Errorf("relation %d: %w", i, err)
		}
	}

	for _, r := range d.Rules {
		rel, ok := k.Relation(r.Relation)
		if !ok {
			return nil, fmt.Errorf("rule %q: relation %q: %w", r.Name, r.Relation, kb.ErrNotFound)
		}
		args := make([]*kb.Parameter, len(r.Args))
		for i, path := range r.Args {
			p, err := k.Parameter(path)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.Name, err)
			}
			args[i] = p
		}
		target, err := k.Parameter(r.Target)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		if _, err := k.NewRule(r.Name, r.Description, rel, args, target); err != nil {
			return nil, err
		}
	}
	return k, nil
}

func buildClass(c *kb.Class, doc Class) error {
	for _, p := range doc.Parameters {
		var opts []kb.ParameterOption
		if p.Default != nil {
			opts = append(opts, kb.WithDefault(p.Default))
		}
		if _, err := c.NewParameter(p.Name, p.Description, opts...); err != nil {
			return err
		}
	}
	for _, child := range doc.Classes {
		cc, err := c.NewClass(child.Name, child.Description)
		if err != nil {
			return err
		}
		if err := buildClass(cc, child); err != nil {
			return err
		}
	}
	return nil
}

// Export describes k as a document named name.
func Export(k *kb.KnowledgeBase, name string) *Document {
	d := &Document{Name: name}
	for _, c := range k.Classes() {
		d.Classes = append(d.Classes, exportClass(c))
	}
	for _, r := range k.Relations() {
		d.Relations = append(d.Relations, Relation{Source: r.Source(), Description: r.Description()})
	}
	for _, r := range k.Rules() {
		args := r.Args()
		paths := make([]string, len(args))
		for i, a := range args {
			paths[i] = a.FullName()
		}
		d.Rules = append(d.Rules, Rule{
			Name:        r.Name(),
			Description: r.Description(),
			Relation:    r.Relation().Name(),
			Args:        paths,
			Target:      r.Target().FullName(),
		})
	}
	return d
}

func exportClass(c *kb.Class) Class {
	out := Class{Name: c.Name(), Description: c.Description()}
	for _, p := range c.Parameters() {
		def, _ := p.Default()
		out.Parameters = append(out.Parameters, Parameter{
			Name:        p.Name(),
			Description: p.Description(),
			Default:     def,
		})
	}
	for _, child := range c.Classes() {
		out.Classes = append(out.Classes, exportClass(child))
	}
	return out
}
