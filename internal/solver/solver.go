// Package solver resolves target parameters over a dependency graph.
//
// Evaluation is depth-first, alternative by alternative and argument by
// argument, driven by an explicit stack instead of recursion. Every node
// moves Unresolved -> InProgress -> Resolved or Failed exactly once per solve.
// Reaching a node that is still InProgress fails the argument that reached
// it, which is how cycles terminate.
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mivar/internal/graph"
	"mivar/internal/kb"
)

// DefaultMaxDepth bounds the explicit evaluation stack.
const DefaultMaxDepth = 10000

// Solver evaluates graphs. A Solver holds no per-solve state and may be
// shared between goroutines.
type Solver struct {
	maxDepth int
	logger   logrus.FieldLogger
}

// Option configures a Solver.
type Option func(*Solver)

// WithMaxDepth limits how many nodes may be in progress at once. Values
// below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(s *Solver) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// WithLogger sets the logger. nil means the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Solver) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a solver.
func New(opts ...Option) *Solver {
	s := &Solver{
		maxDepth: DefaultMaxDepth,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is the outcome of one solve.
type Result struct {
	SessionID string
	// Values maps the fully-qualified name of every resolved target to its
	// value. Unresolved targets are absent.
	Values map[string]any
	// Unresolved lists absent targets in query order.
	Unresolved []string
	// Failures explains every node that failed during the solve, keyed by
	// fully-qualified name.
	Failures map[string]*SolveError
	Duration time.Duration
}

// Solve builds a graph for the query and evaluates it.
func (s *Solver) Solve(ctx context.Context, k *kb.KnowledgeBase, known []kb.Known, targets []*kb.Parameter) (*Result, error) {
	g, err := graph.Build(ctx, k, known, targets)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	return s.Go(ctx, g)
}

// Go evaluates every target of g. It fails only when ctx ends or the depth
// limit is exceeded; unresolvable targets are reported in the result.
// g itself is not modified, so evaluating it again yields the same result.
func (s *Solver) Go(ctx context.Context, g *graph.Graph) (*Result, error) {
	if g.Program == nil && g.Stats().Ways > 0 {
		return nil, ErrNotLinked
	}
	start := time.Now()
	sessionID := uuid.NewString()
	stats := g.Stats()

	ctx, span := tracer.Start(ctx, "mivar.Solve",
		trace.WithAttributes(
			attribute.String("mivar.session_id", sessionID),
			attribute.Int("mivar.node_count", stats.Nodes),
			attribute.Int("mivar.way_count", stats.Ways),
			attribute.Int("mivar.target_count", stats.Targets),
		),
	)
	defer span.End()

	log := s.logger.WithField("session", sessionID)
	r := newRun(g, s.maxDepth, log)

	for _, id := range g.Targets {
		if err := r.resolve(ctx, id); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.WithError(err).Warn("solve aborted")
			return nil, err
		}
	}

	res := &Result{
		SessionID: sessionID,
		Values:    make(map[string]any, len(g.Targets)),
		Failures:  r.failures,
	}
	for _, id := range g.Targets {
		name := g.Nodes[id].Name()
		if r.state[id] == resolved {
			res.Values[name] = r.values[id]
		} else if !contains(res.Unresolved, name) {
			res.Unresolved = append(res.Unresolved, name)
		}
	}
	res.Duration = time.Since(start)

	recordSolve(ctx, res.Duration, len(res.Unresolved))
	span.SetAttributes(
		attribute.Int("mivar.resolved_count", len(res.Values)),
		attribute.Int("mivar.unresolved_count", len(res.Unresolved)),
		attribute.Int("mivar.invocations", r.invocations),
	)
	span.SetStatus(codes.Ok, "")

	log.WithFields(logrus.Fields{
		"targets":     len(g.Targets),
		"resolved":    len(res.Values),
		"unresolved":  len(res.Unresolved),
		"invocations": r.invocations,
		"duration":    res.Duration,
	}).Info("solve finished")

	return res, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
