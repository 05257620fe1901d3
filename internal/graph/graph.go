// Package graph builds the solve-time dependency graph: one node per
// parameter reachable from the rules or the query, each carrying the
// alternative ways to derive its value.
package graph

import (
	"context"
	"fmt"
	"sort"

	"mivar/internal/kb"
	"mivar/internal/script"
)

// NodeID indexes a node in the graph arena.
type NodeID int

// WayToGet is one alternative derivation of a node: a relation applied to
// ordered argument nodes.
type WayToGet struct {
	Rule     *kb.Rule
	Relation string
	Args     []NodeID
}

// Node is a vertex in the dependency graph.
type Node struct {
	ID    NodeID
	Param *kb.Parameter
	Ways  []WayToGet

	// Known is set when the caller supplied Value.
	Known bool
	Value any
}

// Name returns the fully-qualified name of the node's parameter.
func (n *Node) Name() string { return n.Param.FullName() }

// Graph is the arena of nodes for one solve. It is discarded once the solve
// returns.
type Graph struct {
	Nodes   []*Node
	Targets []NodeID

	// Program holds every relation referenced by a way, linked once.
	Program script.Program

	index     map[string]NodeID
	relations []*kb.Relation
}

func newGraph() *Graph {
	return &Graph{index: make(map[string]NodeID)}
}

// Build assembles the graph for a query and links the referenced relations
// with the knowledge base's engine. Linking stops when ctx ends.
func Build(ctx context.Context, k *kb.KnowledgeBase, known []kb.Known, targets []*kb.Parameter) (*Graph, error) {
	g, err := Assemble(k, known, targets)
	if err != nil {
		return nil, err
	}
	if err := g.Link(ctx, k.Engine()); err != nil {
		return nil, err
	}
	return g, nil
}

// Assemble builds the node arena without linking a program. Every rule in
// the knowledge base contributes a way, in registration order.
func Assemble(k *kb.KnowledgeBase, known []kb.Known, targets []*kb.Parameter) (*Graph, error) {
	g := newGraph()

	for i, kv := range known {
		if kv.Param == nil {
			return nil, fmt.Errorf("known value %d: parameter: %w", i, kb.ErrNotFound)
		}
		v, err := script.Normalize(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("known value for %s: %w: %v", kv.Param.FullName(), kb.ErrInvalidValue, err)
		}
		n := g.node(kv.Param)
		n.Known = true
		n.Value = v
	}

	for i, p := range targets {
		if p == nil {
			return nil, fmt.Errorf("target %d: %w", i, kb.ErrNotFound)
		}
		g.Targets = append(g.Targets, g.node(p).ID)
	}

	seen := make(map[string]bool)
	for _, r := range k.Rules() {
		target := g.node(r.Target())
		args := r.Args()
		way := WayToGet{
			Rule:     r,
			Relation: r.Relation().Name(),
			Args:     make([]NodeID, len(args)),
		}
		for i, a := range args {
			way.Args[i] = g.node(a).ID
		}
		target.Ways = append(target.Ways, way)

		if !seen[way.Relation] {
			seen[way.Relation] = true
			g.relations = append(g.relations, r.Relation())
		}
	}
	return g, nil
}

// Link combines the referenced relations into one program.
func (g *Graph) Link(ctx context.Context, engine script.Engine) error {
	units := make([]script.Unit, len(g.relations))
	for i, r := range g.relations {
		units[i] = r.Unit()
	}
	prog, err := engine.Link(ctx, units)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &kb.CodeError{Err: fmt.Errorf("link relations: %w", err)}
	}
	g.Program = prog
	return nil
}

// node fetches or creates the node for p. Identity is the fully-qualified
// name, so every reference to p shares one node.
func (g *Graph) node(p *kb.Parameter) *Node {
	if id, ok := g.index[p.FullName()]; ok {
		return g.Nodes[id]
	}
	n := &Node{ID: NodeID(len(g.Nodes)), Param: p}
	g.Nodes = append(g.Nodes, n)
	g.index[p.FullName()] = n.ID
	return n
}

// Lookup returns the node for a fully-qualified parameter name.
func (g *Graph) Lookup(name string) (*Node, bool) {
	id, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.Nodes[id], true
}

// Relations returns the relations referenced by the graph's ways.
func (g *Graph) Relations() []*kb.Relation {
	return append([]*kb.Relation(nil), g.relations...)
}

// Dependencies returns the nodes some way of id reads, sorted by name.
func (g *Graph) Dependencies(id NodeID) []*Node {
	set := make(map[NodeID]bool)
	for _, w := range g.Nodes[id].Ways {
		for _, a := range w.Args {
			set[a] = true
		}
	}
	return g.sorted(set)
}

// Dependents returns the nodes with a way that reads id, sorted by name.
func (g *Graph) Dependents(id NodeID) []*Node {
	set := make(map[NodeID]bool)
	for _, n := range g.Nodes {
		for _, w := range n.Ways {
			for _, a := range w.Args {
				if a == id {
					set[n.ID] = true
				}
			}
		}
	}
	return g.sorted(set)
}

func (g *Graph) sorted(set map[NodeID]bool) []*Node {
	out := make([]*Node, 0, len(set))
	for id := range set {
		out = append(out, g.Nodes[id])
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name() < out[j].Name()
	})
	return out
}
