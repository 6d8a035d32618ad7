package api

import (
	"github.com/MJE43/rotor-replay-go/internal/analysis"
	"github.com/MJE43/rotor-replay-go/internal/calibrate"
	"github.com/MJE43/rotor-replay-go/internal/campaign"
	"github.com/MJE43/rotor-replay-go/internal/coverage"
	"github.com/MJE43/rotor-replay-go/internal/engine"
	"github.com/MJE43/rotor-replay-go/internal/exploit"
	"github.com/MJE43/rotor-replay-go/internal/slot"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

const (
	// Input validation errors
	ErrTypeInvalidParams = "invalid_params"
	ErrTypeValidation    = "validation_error"
	ErrTypeMalformed     = "malformed_outcome"

	// Domain errors
	ErrTypeUnresolved = "unresolved_state"
	ErrTypeDuplicate  = "duplicate_outcome"
	ErrTypeNotFound   = "not_found"

	// System errors
	ErrTypeTimeout  = "timeout"
	ErrTypeInternal = "internal_error"
)

// VersionInfo contains engine version information
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// HealthResponse reports liveness and store reachability.
type HealthResponse struct {
	Status   string      `json:"status"`
	Version  VersionInfo `json:"version"`
	Uptime   string      `json:"uptime"`
	Outcomes int         `json:"outcomes"`
}

// OffsetResponse is one advance vector.
type OffsetResponse struct {
	Vector      [3]int `json:"vector"`
	Probability string `json:"probability"`
}

// ModelResponse describes the configured machine.
type ModelResponse struct {
	Rotors     [][]int          `json:"rotors"`
	Offsets    []OffsetResponse `json:"offsets"`
	StateCount int              `json:"state_count"`
	Symbols    []string         `json:"symbols"`
}

// OutcomeInput is one spin in a JSON ingest request.
type OutcomeInput struct {
	Seq  int64 `json:"seq"`
	Grid []int `json:"grid"`
}

// IngestRequest carries spins as JSON. CSV bodies are accepted as text/csv.
type IngestRequest struct {
	Outcomes []OutcomeInput `json:"outcomes"`
}

type IngestResponse struct {
	Imported int `json:"imported"`
	Total    int `json:"total"`
}

// CoverageRequest configures a coverage run. Seeds make it reproducible.
type CoverageRequest struct {
	Budget int          `json:"budget"`
	Seeds  engine.Seeds `json:"seeds"`
}

type CoverageResponse struct {
	RunID string `json:"run_id,omitempty"`
	coverage.Report
	Coverage float64 `json:"coverage"`
}

type FrequenciesResponse struct {
	Frequencies analysis.Frequencies `json:"frequencies"`
}

// PayoutRequest names a payout table by symbol; empty means the exploit table.
type PayoutRequest struct {
	Payouts map[string]int64 `json:"payouts"`
}

type ProfitResponse struct {
	RunID  string           `json:"run_id,omitempty"`
	Table  map[string]int64 `json:"table"`
	Profit analysis.Profit  `json:"profit"`
}

// CalibrateRequest overrides parts of the configured calibration search.
type CalibrateRequest struct {
	Candidates map[string][]int64 `json:"candidates,omitempty"`
	Order      []string           `json:"order,omitempty"`
	Fixed      map[string]int64   `json:"fixed,omitempty"`
	Bands      []calibrate.Band   `json:"bands,omitempty"`
}

type CalibrateResponse struct {
	RunID   string            `json:"run_id,omitempty"`
	Results []CalibratedTable `json:"results"`
	Count   int               `json:"count"`
}

type CalibratedTable struct {
	Table  map[string]int64 `json:"table"`
	Profit analysis.Profit  `json:"profit"`
}

// EvaluateRequest holds the visible grid b1..b9.
type EvaluateRequest struct {
	Grid []int `json:"grid"`
}

type EvaluateResponse struct {
	State       slot.State          `json:"state"`
	Expectation exploit.Expectation `json:"expectation"`
	Bet         slot.Tier           `json:"bet"`
}

type CampaignResponse struct {
	RunID string `json:"run_id,omitempty"`
	campaign.Result
}
