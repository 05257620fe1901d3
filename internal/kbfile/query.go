package kbfile

import (
	"fmt"
	"sort"

	"mivar/internal/kb"
)

// Query names the known values and targets of one solve.
type Query struct {
	Known   map[string]any `json:"known,omitempty" yaml:"known,omitempty"`
	Targets []string       `json:"targets" yaml:"targets"`
}

// Resolve looks up every path in k. Known values are returned sorted by
// path.
func (q *Query) Resolve(k *kb.KnowledgeBase) ([]kb.Known, []*kb.Parameter, error) {
	paths := make([]string, 0, len(q.Known))
	for path := range q.Known {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	known := make([]kb.Known, 0, len(paths))
	for _, path := range paths {
		p, err := k.Parameter(path)
		if err != nil {
			return nil, nil, fmt.Errorf("known: %w", err)
		}
		known = append(known, kb.Known{Param: p, Value: q.Known[path]})
	}

	targets := make([]*kb.Parameter, 0, len(q.Targets))
	for _, path := range q.Targets {
		p, err := k.Parameter(path)
		if err != nil {
			return nil, nil, fmt.Errorf("target: %w", err)
		}
		targets = append(targets, p)
	}
	return known, targets, nil
}
