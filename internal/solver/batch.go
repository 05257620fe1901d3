package solver

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"mivar/internal/kb"
)

// Query is one independent solve request.
type Query struct {
	Known   []kb.Known
	Targets []*kb.Parameter
}

// SolveBatch runs queries concurrently against one knowledge base, each on
// its own graph. At most limit queries run at once; limit < 1 means no
// limit. Results are returned in query order. The first failing query
// cancels the rest.
func (s *Solver) SolveBatch(ctx context.Context, k *kb.KnowledgeBase, queries []Query, limit int) ([]*Result, error) {
	results := make([]*Result, len(queries))

	g, gCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, q := range queries {
		g.Go(func() error {
			res, err := s.Solve(gCtx, k, q.Known, q.Targets)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
