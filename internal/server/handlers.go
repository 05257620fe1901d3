// Package server exposes a knowledge base over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mivar/internal/analysis"
	"mivar/internal/kb"
	"mivar/internal/kbfile"
	"mivar/internal/solver"
	"mivar/internal/storage"
)

// Handlers serves one knowledge base. The knowledge base is never modified,
// so requests are handled concurrently, each solve on its own graph.
type Handlers struct {
	kb         *kb.KnowledgeBase
	document   string
	solver     *solver.Solver
	analyzer   *analysis.Analyzer
	runs       storage.RunStore
	batchLimit int
	logger     logrus.FieldLogger
}

// Option configures Handlers.
type Option func(*Handlers)

// WithRunStore records every solve in store.
func WithRunStore(store storage.RunStore) Option {
	return func(h *Handlers) {
		h.runs = store
	}
}

// WithBatchLimit bounds how many queries of one batch run at once.
func WithBatchLimit(n int) Option {
	return func(h *Handlers) {
		h.batchLimit = n
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(h *Handlers) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandlers serves k under the name document.
func NewHandlers(k *kb.KnowledgeBase, document string, s *solver.Solver, opts ...Option) (*Handlers, error) {
	a, err := analysis.NewAnalyzer(k)
	if err != nil {
		return nil, err
	}
	h := &Handlers{
		kb:       k,
		document: document,
		solver:   s,
		analyzer: a,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "healthy",
		Document:   h.document,
		Parameters: len(h.kb.Parameters()),
		Rules:      len(h.kb.Rules()),
	})
}

// HandleSolve handles POST /v1/solve with a query document as body.
func (h *Handlers) HandleSolve(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}
	q, err := kbfile.ParseQuery(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "INVALID_QUERY"})
		return
	}

	resp, err := h.solve(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSolveBatch handles POST /v1/solve/batch.
func (h *Handlers) HandleSolveBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	parsed := make([]*kbfile.Query, len(req.Queries))
	queries := make([]solver.Query, len(req.Queries))
	for i, raw := range req.Queries {
		q, err := kbfile.ParseQuery(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("query %d: %v", i, err), Code: "INVALID_QUERY"})
			return
		}
		known, targets, err := q.Resolve(h.kb)
		if err != nil {
			h.fail(c, err)
			return
		}
		parsed[i] = q
		queries[i] = solver.Query{Known: known, Targets: targets}
	}

	results, err := h.solver.SolveBatch(c.Request.Context(), h.kb, queries, h.batchLimit)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := BatchResponse{Results: make([]SolveResponse, len(results))}
	for i, res := range results {
		resp.Results[i] = h.record(c.Request.Context(), parsed[i], res)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) solve(ctx context.Context, q *kbfile.Query) (*SolveResponse, error) {
	known, targets, err := q.Resolve(h.kb)
	if err != nil {
		return nil, err
	}
	res, err := h.solver.Solve(ctx, h.kb, known, targets)
	if err != nil {
		return nil, err
	}
	resp := h.record(ctx, q, res)
	return &resp, nil
}

// record converts res and stores it when a run store is configured.
func (h *Handlers) record(ctx context.Context, q *kbfile.Query, res *solver.Result) SolveResponse {
	resp := SolveResponse{
		SessionID:  res.SessionID,
		Values:     res.Values,
		Unresolved: res.Unresolved,
		DurationMs: res.Duration.Milliseconds(),
	}
	solveTargets.WithLabelValues("resolved").Add(float64(len(res.Values)))
	solveTargets.WithLabelValues("unresolved").Add(float64(len(res.Unresolved)))

	for _, name := range res.Unresolved {
		if serr, ok := res.Failures[name]; ok {
			if resp.Failures == nil {
				resp.Failures = make(map[string]string)
			}
			resp.Failures[name] = serr.Error()
		}
	}

	if h.runs != nil {
		run := &storage.Run{
			Document:   h.document,
			SessionID:  res.SessionID,
			Query:      *q,
			Values:     res.Values,
			Unresolved: res.Unresolved,
			Duration:   res.Duration,
		}
		if err := h.runs.RecordRun(ctx, run); err != nil {
			h.logger.WithError(err).WithField("session", res.SessionID).Warn("Failed to record run")
		} else {
			resp.RunID = run.ID
		}
	}
	return resp
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "SOLVE_FAILED"
	switch {
	case errors.Is(err, kb.ErrNotFound):
		status, code = http.StatusBadRequest, "UNKNOWN_PARAMETER"
	case errors.Is(err, kb.ErrInvalidValue):
		status, code = http.StatusBadRequest, "INVALID_VALUE"
	case errors.Is(err, solver.ErrMaxDepth):
		status, code = http.StatusUnprocessableEntity, "DEPTH_EXCEEDED"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status, code = http.StatusGatewayTimeout, "SOLVE_TIMEOUT"
	}
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("Solve failed")
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func (h *Handlers) HandleParameters(c *gin.Context) {
	params := h.kb.Parameters()
	out := make([]ParameterInfo, len(params))
	for i, p := range params {
		def, ok := p.Default()
		out[i] = ParameterInfo{
			Name:        p.FullName(),
			Description: p.Description(),
			Default:     def,
			HasDefault:  ok,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) HandleRules(c *gin.Context) {
	c.JSON(http.StatusOK, kbfile.Export(h.kb, h.document).Rules)
}

func (h *Handlers) HandleRequirements(c *gin.Context) {
	h.report(c, h.analyzer.Requirements)
}

func (h *Handlers) HandleImpact(c *gin.Context) {
	h.report(c, h.analyzer.Impact)
}

func (h *Handlers) report(c *gin.Context, walk func(string, int) (*analysis.Report, error)) {
	param := c.Query("param")
	if param == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "param is required", Code: "INVALID_REQUEST"})
		return
	}
	hops, err := strconv.Atoi(c.DefaultQuery("hops", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "hops must be an integer", Code: "INVALID_REQUEST"})
		return
	}

	r, err := walk(param, hops)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "UNKNOWN_PARAMETER"})
		return
	}
	c.JSON(http.StatusOK, ReportResponse{
		Root:     r.Root,
		MaxHops:  r.MaxHops,
		Direct:   nonNil(r.Direct),
		Indirect: nonNil(r.Indirect),
		Hops:     r.Hops,
	})
}

// HandleRuns handles GET /v1/runs?limit=N.
func (h *Handlers) HandleRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "run history is disabled", Code: "NO_STORE"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be an integer", Code: "INVALID_REQUEST"})
		return
	}

	runs, err := h.runs.ListRuns(c.Request.Context(), h.document, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list runs")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORAGE_FAILED"})
		return
	}
	out := make([]RunInfo, len(runs))
	for i, r := range runs {
		out[i] = RunInfo{
			ID:         r.ID,
			SessionID:  r.SessionID,
			Query:      r.Query,
			Values:     r.Values,
			Unresolved: r.Unresolved,
			DurationMs: r.Duration.Milliseconds(),
			CreatedAt:  r.CreatedAt.Format(time.RFC3339Nano),
		}
	}
	c.JSON(http.StatusOK, out)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
