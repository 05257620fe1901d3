package solver

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mivar/internal/graph"
)

type nodeState uint8

const (
	unresolved nodeState = iota
	inProgress
	resolved
	failed
)

// frame is a node under evaluation: which way is being tried and which of
// its arguments comes next.
type frame struct {
	node     graph.NodeID
	way      int
	arg      int
	attempts []error
}

// run holds the transient state of one evaluation of a graph.
type run struct {
	g        *graph.Graph
	maxDepth int
	log      logrus.FieldLogger

	state    []nodeState
	values   []any
	stack    []frame
	failures map[string]*SolveError

	invocations int
}

func newRun(g *graph.Graph, maxDepth int, log logrus.FieldLogger) *run {
	r := &run{
		g:        g,
		maxDepth: maxDepth,
		log:      log,
		state:    make([]nodeState, len(g.Nodes)),
		values:   make([]any, len(g.Nodes)),
		failures: make(map[string]*SolveError),
	}
	for _, n := range g.Nodes {
		if n.Known {
			r.state[n.ID] = resolved
			r.values[n.ID] = n.Value
		}
	}
	return r
}

// resolve evaluates root and everything it needs. Resolved and Failed nodes
// are never evaluated again.
func (r *run) resolve(ctx context.Context, root graph.NodeID) error {
	if r.state[root] != unresolved {
		return nil
	}
	if err := r.push(root); err != nil {
		return err
	}

	for len(r.stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		top := &r.stack[len(r.stack)-1]
		n := r.g.Nodes[top.node]

		if top.way >= len(n.Ways) {
			r.exhausted(ctx, top)
			continue
		}
		way := n.Ways[top.way]

		if top.arg < len(way.Args) {
			arg := way.Args[top.arg]
			switch r.state[arg] {
			case resolved:
				top.arg++
			case failed:
				r.reject(top, fmt.Errorf("%s: argument %s unresolved", way.Relation, r.g.Nodes[arg].Name()))
			case inProgress:
				r.reject(top, fmt.Errorf("%s: argument %s depends on itself", way.Relation, r.g.Nodes[arg].Name()))
			case unresolved:
				if err := r.push(arg); err != nil {
					return err
				}
			}
			continue
		}

		args := make([]any, len(way.Args))
		for i, a := range way.Args {
			args[i] = r.values[a]
		}
		v, err := r.invoke(ctx, n, way, args)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.reject(top, err)
			continue
		}
		r.log.WithFields(logrus.Fields{
			"node":     n.Name(),
			"relation": way.Relation,
		}).Debug("node resolved")
		r.settle(top.node, resolved, v)
	}
	return nil
}

func (r *run) push(id graph.NodeID) error {
	if len(r.stack) >= r.maxDepth {
		return fmt.Errorf("%w: %d nodes in progress at %s", ErrMaxDepth, len(r.stack), r.g.Nodes[id].Name())
	}
	r.state[id] = inProgress
	r.stack = append(r.stack, frame{node: id})
	return nil
}

// settle records the final state of the top frame's node and pops it.
func (r *run) settle(id graph.NodeID, st nodeState, v any) {
	r.state[id] = st
	r.values[id] = v
	r.stack = r.stack[:len(r.stack)-1]
}

// reject fails the current way of f and moves on to the next one.
func (r *run) reject(f *frame, reason error) {
	f.attempts = append(f.attempts, reason)
	f.way++
	f.arg = 0
}

// exhausted settles a node whose ways have all failed, falling back to the
// parameter's default.
func (r *run) exhausted(ctx context.Context, f *frame) {
	n := r.g.Nodes[f.node]
	if def, ok := n.Param.Default(); ok {
		recordDefaultUsed(ctx)
		r.log.WithFields(logrus.Fields{
			"node":     n.Name(),
			"attempts": len(f.attempts),
		}).Debug("node resolved from default")
		r.settle(f.node, resolved, def)
		return
	}

	serr := &SolveError{Parameter: n.Name(), Attempts: f.attempts}
	r.failures[n.Name()] = serr
	r.log.WithField("node", n.Name()).WithError(serr).Debug("node failed")
	r.settle(f.node, failed, nil)
}

func (r *run) invoke(ctx context.Context, n *graph.Node, way graph.WayToGet, args []any) (any, error) {
	ctx, span := tracer.Start(ctx, "mivar.Invoke",
		trace.WithAttributes(
			attribute.String("mivar.relation", way.Relation),
			attribute.String("mivar.target", n.Name()),
		),
	)
	defer span.End()

	r.invocations++
	v, err := r.g.Program.Call(ctx, way.Relation, args)
	recordInvocation(ctx, way.Relation, err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return v, nil
}
