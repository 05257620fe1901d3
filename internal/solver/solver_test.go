package solver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mivar/internal/graph"
	"mivar/internal/kb"
	"mivar/internal/kbtest"
	"mivar/internal/script"
)

var (
	spans   = tracetest.NewSpanRecorder()
	metrics = sdkmetric.NewManualReader()
)

func TestMain(m *testing.M) {
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(metrics)))
	os.Exit(m.Run())
}

func quietSolver(opts ...Option) *Solver {
	logger, _ := logtest.NewNullLogger()
	return New(append([]Option{WithLogger(logger)}, opts...)...)
}

// fixture is a single class C holding parameters created on demand.
type fixture struct {
	t *testing.T
	k *kb.KnowledgeBase
	c *kb.Class
}

func newFixture(t *testing.T) *fixture {
	k := kb.New(script.NewGojaEngine())
	c, err := k.NewClass("C", "")
	require.NoError(t, err)
	return &fixture{t: t, k: k, c: c}
}

func (f *fixture) param(name string, opts ...kb.ParameterOption) *kb.Parameter {
	p, err := f.c.NewParameter(name, "", opts...)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) relation(source string) *kb.Relation {
	r, err := f.k.NewRelation(source, "")
	require.NoError(f.t, err)
	return r
}

func (f *fixture) rule(rel *kb.Relation, target *kb.Parameter, args ...*kb.Parameter) {
	_, err := f.k.NewRule(fmt.Sprintf("%s->%s", rel.Name(), target.Name()), "", rel, args, target)
	require.NoError(f.t, err)
}

func TestSolve_Triangle(t *testing.T) {
	k := kbtest.Triangle(t)

	res, err := quietSolver().Solve(context.Background(), k,
		[]kb.Known{
			kbtest.Known(t, k, kbtest.SideA, 3),
			kbtest.Known(t, k, kbtest.SideB, 4),
			kbtest.Known(t, k, kbtest.SideC, 5),
		},
		[]*kb.Parameter{kbtest.Param(t, k, kbtest.Area), kbtest.Param(t, k, kbtest.Perimeter)},
	)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		kbtest.Perimeter: float64(12),
		kbtest.Area:      float64(6),
	}, res.Values)
	assert.Empty(t, res.Unresolved)
	assert.NotEmpty(t, res.SessionID)
}

func TestSolve_MissingInput(t *testing.T) {
	k := kbtest.Triangle(t)

	res, err := quietSolver().Solve(context.Background(), k,
		[]kb.Known{
			kbtest.Known(t, k, kbtest.SideA, 3),
			kbtest.Known(t, k, kbtest.SideB, 4),
		},
		[]*kb.Parameter{kbtest.Param(t, k, kbtest.Area)},
	)
	require.NoError(t, err)

	assert.Empty(t, res.Values)
	assert.Equal(t, []string{kbtest.Area}, res.Unresolved)
	serr, ok := res.Failures[kbtest.Area]
	require.True(t, ok)
	assert.ErrorIs(t, serr, kb.ErrSolve)
	assert.Contains(t, res.Failures, kbtest.SideC)
}

func TestSolve_KnownWins(t *testing.T) {
	k := kbtest.Triangle(t)

	res, err := quietSolver().Solve(context.Background(), k,
		[]kb.Known{
			kbtest.Known(t, k, kbtest.SideA, 3),
			kbtest.Known(t, k, kbtest.SideB, 4),
			kbtest.Known(t, k, kbtest.SideC, 5),
			kbtest.Known(t, k, kbtest.Perimeter, 100),
		},
		[]*kb.Parameter{kbtest.Param(t, k, kbtest.Perimeter), kbtest.Param(t, k, kbtest.HalfPer)},
	)
	require.NoError(t, err)
	assert.Equal(t, float64(100), res.Values[kbtest.Perimeter])
	assert.Equal(t, float64(50), res.Values[kbtest.HalfPer])
}

func TestSolve_FirstSuccess(t *testing.T) {
	t.Run("first alternative with resolvable arguments wins", func(t *testing.T) {
		f := newFixture(t)
		x, target := f.param("x"), f.param("t")
		plusOne := f.relation("function plus_one(a) { return a + 1 }")
		plusTwo := f.relation("function plus_two(a) { return a + 2 }")
		f.rule(plusOne, target, x)
		f.rule(plusTwo, target, x)

		res, err := quietSolver().Solve(context.Background(), f.k,
			[]kb.Known{{Param: x, Value: 10}}, []*kb.Parameter{target})
		require.NoError(t, err)
		assert.Equal(t, float64(11), res.Values["C/t"])
	})

	t.Run("unresolvable arguments skip the alternative", func(t *testing.T) {
		f := newFixture(t)
		x, y, target := f.param("x"), f.param("y"), f.param("t")
		plusOne := f.relation("function plus_one(a) { return a + 1 }")
		plusTwo := f.relation("function plus_two(a) { return a + 2 }")
		f.rule(plusTwo, target, y)
		f.rule(plusOne, target, x)

		res, err := quietSolver().Solve(context.Background(), f.k,
			[]kb.Known{{Param: x, Value: 10}}, []*kb.Parameter{target})
		require.NoError(t, err)
		assert.Equal(t, float64(11), res.Values["C/t"])
	})

	t.Run("invocation failure falls through to the next alternative", func(t *testing.T) {
		f := newFixture(t)
		x, target := f.param("x"), f.param("t")
		boom := f.relation(`function boom(a) { throw new Error("no") }`)
		nothing := f.relation("function nothing(a) { }")
		plusOne := f.relation("function plus_one(a) { return a + 1 }")
		f.rule(boom, target, x)
		f.rule(nothing, target, x)
		f.rule(plusOne, target, x)

		res, err := quietSolver().Solve(context.Background(), f.k,
			[]kb.Known{{Param: x, Value: 1}}, []*kb.Parameter{target})
		require.NoError(t, err)
		assert.Equal(t, float64(2), res.Values["C/t"])
		assert.Empty(t, res.Failures)
	})

	t.Run("promise result falls through to the next alternative", func(t *testing.T) {
		f := newFixture(t)
		x, target := f.param("x"), f.param("t")
		later := f.relation("async function later(a) { return a + 1 }")
		plusTwo := f.relation("function plus_two(a) { return a + 2 }")
		f.rule(later, target, x)
		f.rule(plusTwo, target, x)

		res, err := quietSolver().Solve(context.Background(), f.k,
			[]kb.Known{{Param: x, Value: 1}}, []*kb.Parameter{target})
		require.NoError(t, err)
		assert.Equal(t, float64(3), res.Values["C/t"])
	})
}

func TestSolve_RelationsAreIsolated(t *testing.T) {
	f := newFixture(t)
	x, y := f.param("x"), f.param("y")
	id := f.relation("function id(v) { return v }")
	f.rule(id, y, x)

	_, err := f.k.NewRelation("function bad(v) { return v }\nnoSuchThing.field = 1", "")
	require.ErrorIs(t, err, kb.ErrBadCode)

	// A second declaration of id inside another body does not replace it.
	f.relation("function other(v) { return 0 }\nfunction id(v) { return 'hijacked' }")

	res, err := quietSolver().Solve(context.Background(), f.k,
		[]kb.Known{{Param: x, Value: "x"}}, []*kb.Parameter{y})
	require.NoError(t, err)
	assert.Equal(t, "x", res.Values["C/y"])
}

func TestSolve_Cycle(t *testing.T) {
	f := newFixture(t)
	a, b := f.param("A"), f.param("B")
	id := f.relation("function id(v) { return v }")
	f.rule(id, a, b)
	f.rule(id, b, a)

	res, err := quietSolver().Solve(context.Background(), f.k, nil, []*kb.Parameter{a, b})
	require.NoError(t, err)
	assert.Empty(t, res.Values)
	assert.Equal(t, []string{"C/A", "C/B"}, res.Unresolved)
	assert.ErrorIs(t, res.Failures["C/A"], kb.ErrSolve)
	assert.ErrorIs(t, res.Failures["C/B"], kb.ErrSolve)
}

func TestSolve_CycleWithEscape(t *testing.T) {
	f := newFixture(t)
	a, b, seed := f.param("A"), f.param("B"), f.param("seed")
	id := f.relation("function id(v) { return v }")
	f.rule(id, a, b)
	f.rule(id, b, a)
	f.rule(id, a, seed)

	res, err := quietSolver().Solve(context.Background(), f.k,
		[]kb.Known{{Param: seed, Value: "s"}}, []*kb.Parameter{a})
	require.NoError(t, err)
	assert.Equal(t, "s", res.Values["C/A"])
}

func TestSolve_Default(t *testing.T) {
	t.Run("no rules", func(t *testing.T) {
		f := newFixture(t)
		d := f.param("d", kb.WithDefault("fallback"))

		res, err := quietSolver().Solve(context.Background(), f.k, nil, []*kb.Parameter{d})
		require.NoError(t, err)
		assert.Equal(t, "fallback", res.Values["C/d"])
	})

	t.Run("all alternatives fail", func(t *testing.T) {
		f := newFixture(t)
		x := f.param("x")
		d := f.param("d", kb.WithDefault(7))
		double := f.relation("function double(v) { return v * 2 }")
		f.rule(double, d, x)

		res, err := quietSolver().Solve(context.Background(), f.k, nil, []*kb.Parameter{d})
		require.NoError(t, err)
		assert.Equal(t, float64(7), res.Values["C/d"])
	})

	t.Run("dependents use the default", func(t *testing.T) {
		f := newFixture(t)
		d := f.param("d", kb.WithDefault(7))
		out := f.param("out")
		double := f.relation("function double(v) { return v * 2 }")
		f.rule(double, out, d)

		res, err := quietSolver().Solve(context.Background(), f.k, nil, []*kb.Parameter{out})
		require.NoError(t, err)
		assert.Equal(t, float64(14), res.Values["C/out"])
	})
}

func TestSolve_DefaultIsNotModified(t *testing.T) {
	f := newFixture(t)
	d := f.param("d", kb.WithDefault(map[string]any{"n": 1}))
	out := f.param("out")
	f.rule(f.relation("function bump(o) { o.n = o.n + 1; return o.n }"), out, d)

	s := quietSolver()
	for i := 0; i < 3; i++ {
		res, err := s.Solve(context.Background(), f.k, nil, []*kb.Parameter{out})
		require.NoError(t, err)
		assert.Equal(t, float64(2), res.Values["C/out"])
	}
	def, ok := d.Default()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"n": float64(1)}, def)
}

func TestGo_Deterministic(t *testing.T) {
	k := kbtest.Triangle(t)
	g, err := graph.Build(context.Background(), k,
		[]kb.Known{
			kbtest.Known(t, k, kbtest.SideA, 3),
			kbtest.Known(t, k, kbtest.SideB, 4),
			kbtest.Known(t, k, kbtest.SideC, 5),
		},
		[]*kb.Parameter{kbtest.Param(t, k, kbtest.Area)},
	)
	require.NoError(t, err)

	s := quietSolver()
	first, err := s.Go(context.Background(), g)
	require.NoError(t, err)
	second, err := s.Go(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, first.Values, second.Values)
	assert.NotEqual(t, first.SessionID, second.SessionID)
}

func TestGo_NotLinked(t *testing.T) {
	k := kbtest.Triangle(t)
	g, err := graph.Assemble(k, nil, []*kb.Parameter{kbtest.Param(t, k, kbtest.Area)})
	require.NoError(t, err)

	_, err = quietSolver().Go(context.Background(), g)
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestSolve_MaxDepth(t *testing.T) {
	f := newFixture(t)
	chain := make([]*kb.Parameter, 6)
	for i := range chain {
		chain[i] = f.param(fmt.Sprintf("p%d", i))
	}
	next := f.relation("function next(v) { return v + 1 }")
	for i := 1; i < len(chain); i++ {
		f.rule(next, chain[i], chain[i-1])
	}
	known := []kb.Known{{Param: chain[0], Value: 0}}
	target := []*kb.Parameter{chain[5]}

	_, err := quietSolver(WithMaxDepth(3)).Solve(context.Background(), f.k, known, target)
	assert.ErrorIs(t, err, ErrMaxDepth)

	res, err := quietSolver(WithMaxDepth(5)).Solve(context.Background(), f.k, known, target)
	require.NoError(t, err)
	assert.Equal(t, float64(5), res.Values["C/p5"])
}

func TestSolve_ContextCanceled(t *testing.T) {
	k := kbtest.Triangle(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := quietSolver().Solve(ctx, k,
		[]kb.Known{kbtest.Known(t, k, kbtest.SideA, 3)},
		[]*kb.Parameter{kbtest.Param(t, k, kbtest.Area)},
	)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSolve_Logging(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	k := kbtest.Triangle(t)

	res, err := New(WithLogger(logger)).Solve(context.Background(), k,
		[]kb.Known{
			kbtest.Known(t, k, kbtest.SideA, 3),
			kbtest.Known(t, k, kbtest.SideB, 4),
			kbtest.Known(t, k, kbtest.SideC, 5),
		},
		[]*kb.Parameter{kbtest.Param(t, k, kbtest.Area)},
	)
	require.NoError(t, err)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "solve finished", last.Message)
	assert.Equal(t, res.SessionID, last.Data["session"])
	assert.Equal(t, 3, last.Data["invocations"])
}

func TestSolve_Spans(t *testing.T) {
	k := kbtest.Triangle(t)
	res, err := quietSolver().Solve(context.Background(), k,
		[]kb.Known{
			kbtest.Known(t, k, kbtest.SideA, 3),
			kbtest.Known(t, k, kbtest.SideB, 4),
			kbtest.Known(t, k, kbtest.SideC, 5),
		},
		[]*kb.Parameter{kbtest.Param(t, k, kbtest.Perimeter)},
	)
	require.NoError(t, err)

	var solveSpan sdktrace.ReadOnlySpan
	for _, s := range spans.Ended() {
		if s.Name() != "mivar.Solve" {
			continue
		}
		for _, a := range s.Attributes() {
			if a.Key == "mivar.session_id" && a.Value.AsString() == res.SessionID {
				solveSpan = s
			}
		}
	}
	require.NotNil(t, solveSpan)

	invokes := 0
	for _, s := range spans.Ended() {
		if s.Name() == "mivar.Invoke" && s.Parent().SpanID() == solveSpan.SpanContext().SpanID() {
			invokes++
		}
	}
	assert.Equal(t, 1, invokes)
}

func TestSolve_Metrics(t *testing.T) {
	f := newFixture(t)
	x, d, out, missing := f.param("x"), f.param("d", kb.WithDefault(2)), f.param("out"), f.param("missing")
	f.rule(f.relation("function mul(a, b) { return a * b }"), out, x, d)

	_, err := quietSolver().Solve(context.Background(), f.k,
		[]kb.Known{{Param: x, Value: 3}}, []*kb.Parameter{out, missing})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, metrics.Collect(context.Background(), &rm))
	names := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	for _, name := range []string{
		"mivar_solve_duration_seconds",
		"mivar_relation_invocations_total",
		"mivar_unresolved_targets_total",
		"mivar_defaults_used_total",
	} {
		assert.True(t, names[name], name)
	}
}

func TestSolveBatch(t *testing.T) {
	k := kbtest.Triangle(t)
	sides := func(a, b, c float64) []kb.Known {
		return []kb.Known{
			kbtest.Known(t, k, kbtest.SideA, a),
			kbtest.Known(t, k, kbtest.SideB, b),
			kbtest.Known(t, k, kbtest.SideC, c),
		}
	}
	targets := []*kb.Parameter{kbtest.Param(t, k, kbtest.Perimeter)}

	results, err := quietSolver().SolveBatch(context.Background(), k, []Query{
		{Known: sides(3, 4, 5), Targets: targets},
		{Known: sides(1, 1, 1), Targets: targets},
		{Known: sides(2, 2, 2), Targets: targets},
	}, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, float64(12), results[0].Values[kbtest.Perimeter])
	assert.Equal(t, float64(3), results[1].Values[kbtest.Perimeter])
	assert.Equal(t, float64(6), results[2].Values[kbtest.Perimeter])
}
