package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts API requests by route and status code.
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mivar_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mivar_http_request_duration_seconds",
		Help:    "HTTP request duration by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// solveTargets counts requested targets by outcome: "resolved" or
	// "unresolved".
	solveTargets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mivar_solve_targets_total",
		Help: "Targets requested through the API by outcome",
	}, []string{"outcome"})
)
