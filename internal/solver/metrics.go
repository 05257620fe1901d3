package solver

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("mivar.solver")
	meter  = otel.Meter("mivar.solver")
)

var (
	solveLatency      metric.Float64Histogram
	invocationsTotal  metric.Int64Counter
	unresolvedTotal   metric.Int64Counter
	defaultsUsedTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		solveLatency, err = meter.Float64Histogram(
			"mivar_solve_duration_seconds",
			metric.WithDescription("Duration of solve calls"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		invocationsTotal, err = meter.Int64Counter(
			"mivar_relation_invocations_total",
			metric.WithDescription("Relation invocations by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		unresolvedTotal, err = meter.Int64Counter(
			"mivar_unresolved_targets_total",
			metric.WithDescription("Targets omitted from solve results"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		defaultsUsedTotal, err = meter.Int64Counter(
			"mivar_defaults_used_total",
			metric.WithDescription("Nodes resolved from a declared default"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordSolve(ctx context.Context, d time.Duration, unresolved int) {
	if err := initMetrics(); err != nil {
		return
	}
	solveLatency.Record(ctx, d.Seconds())
	if unresolved > 0 {
		unresolvedTotal.Add(ctx, int64(unresolved))
	}
}

func recordInvocation(ctx context.Context, relation string, ok bool) {
	if err := initMetrics(); err != nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	invocationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("relation", relation),
		attribute.String("outcome", outcome),
	))
}

func recordDefaultUsed(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	defaultsUsedTotal.Add(ctx, 1)
}
