// Package analysis answers structural questions about a rule graph without
// evaluating any relation.
package analysis

import (
	"sort"

	"mivar/internal/graph"
	"mivar/internal/kb"
)

// Report lists the parameters reachable from Root, grouped by distance.
type Report struct {
	Root    string
	MaxHops int
	// Direct holds parameters one rule away from Root.
	Direct []string
	// Indirect holds parameters two or more rules away.
	Indirect []string
	// Hops maps every reported parameter to its shortest distance.
	Hops map[string]int
}

// All returns Direct followed by Indirect.
func (r *Report) All() []string {
	return append(append([]string(nil), r.Direct...), r.Indirect...)
}

// Analyzer walks the rule graph of a knowledge base.
type Analyzer struct {
	k *kb.KnowledgeBase
	g *graph.Graph
}

// NewAnalyzer assembles the rule graph of k.
func NewAnalyzer(k *kb.KnowledgeBase) (*Analyzer, error) {
	g, err := graph.Assemble(k, nil, nil)
	if err != nil {
		return nil, err
	}
	return &Analyzer{k: k, g: g}, nil
}

// Requirements lists the parameters some derivation of path may read.
// maxHops < 1 means no limit.
func (a *Analyzer) Requirements(path string, maxHops int) (*Report, error) {
	return a.walk(path, maxHops, a.g.Dependencies)
}

// Impact lists the parameters whose derivation may read path.
// maxHops < 1 means no limit.
func (a *Analyzer) Impact(path string, maxHops int) (*Report, error) {
	return a.walk(path, maxHops, a.g.Dependents)
}

type queueItem struct {
	id    graph.NodeID
	depth int
}

func (a *Analyzer) walk(path string, maxHops int, next func(graph.NodeID) []*graph.Node) (*Report, error) {
	p, err := a.k.Parameter(path)
	if err != nil {
		return nil, err
	}
	if maxHops < 0 {
		maxHops = 0
	}
	report := &Report{Root: p.FullName(), MaxHops: maxHops, Hops: map[string]int{}}

	root, ok := a.g.Lookup(p.FullName())
	if !ok {
		// No rule mentions the parameter.
		return report, nil
	}

	visited := map[graph.NodeID]int{root.ID: 0}
	queue := []queueItem{{id: root.ID, depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if maxHops > 0 && cur.depth >= maxHops {
			continue
		}
		for _, n := range next(cur.id) {
			if _, seen := visited[n.ID]; seen {
				continue
			}
			visited[n.ID] = cur.depth + 1
			queue = append(queue, queueItem{id: n.ID, depth: cur.depth + 1})
		}
	}

	for id, depth := range visited {
		if id == root.ID {
			continue
		}
		name := a.g.Nodes[id].Name()
		report.Hops[name] = depth
		if depth == 1 {
			report.Direct = append(report.Direct, name)
		} else {
			report.Indirect = append(report.Indirect, name)
		}
	}
	sort.Strings(report.Direct)
	sort.Strings(report.Indirect)
	return report, nil
}
