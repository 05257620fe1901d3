package server

import (
	"encoding/json"

	"mivar/internal/kbfile"
)

// SolveResponse is the result of POST /v1/solve.
type SolveResponse struct {
	RunID      string            `json:"run_id,omitempty"`
	SessionID  string            `json:"session_id"`
	Values     map[string]any    `json:"values"`
	Unresolved []string          `json:"unresolved,omitempty"`
	Failures   map[string]string `json:"failures,omitempty"`
	DurationMs int64             `json:"duration_ms"`
}

// BatchRequest is the body of POST /v1/solve/batch. Each query is checked
// against the query schema like a single solve.
type BatchRequest struct {
	Queries []json.RawMessage `json:"queries" binding:"required,min=1"`
}

// BatchResponse holds one result per query, in request order.
type BatchResponse struct {
	Results []SolveResponse `json:"results"`
}

// ParameterInfo describes one parameter for GET /v1/parameters.
type ParameterInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
	HasDefault  bool   `json:"has_default"`
}

// ReportResponse is the result of the analysis endpoints.
type ReportResponse struct {
	Root     string         `json:"root"`
	MaxHops  int            `json:"max_hops"`
	Direct   []string       `json:"direct"`
	Indirect []string       `json:"indirect"`
	Hops     map[string]int `json:"hops"`
}

// HealthResponse is the result of GET /healthz.
type HealthResponse struct {
	Status     string `json:"status"`
	Document   string `json:"document"`
	Parameters int    `json:"parameters"`
	Rules      int    `json:"rules"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// RunInfo is one entry of GET /v1/runs.
type RunInfo struct {
	ID         string         `json:"id"`
	SessionID  string         `json:"session_id"`
	Query      kbfile.Query   `json:"query"`
	Values     map[string]any `json:"values"`
	Unresolved []string       `json:"unresolved,omitempty"`
	DurationMs int64          `json:"duration_ms"`
	CreatedAt  string         `json:"created_at"`
}
