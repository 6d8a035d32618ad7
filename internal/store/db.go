package store

import (
	"context"
	"errors"
	"time"

	"github.com/MJE43/rotor-replay-go/internal/slot"
)

var (
	ErrRunNotFound       = errors.New("run not found")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	ErrDuplicateOutcome  = errors.New("duplicate outcome sequence")
)

// OutcomeSource is the read side the analyses depend on.
type OutcomeSource interface {
	// Outcomes returns every recorded spin in recorded order.
	Outcomes(ctx context.Context) ([]slot.Outcome, error)
	// OutcomesWinningLine returns the spins on which the line wins.
	OutcomesWinningLine(ctx context.Context, line slot.Line) ([]slot.Outcome, error)
	// OutcomesWithCloverPair returns the spins showing two vertically adjacent clovers.
	OutcomesWithCloverPair(ctx context.Context) ([]slot.Outcome, error)
}

// DB represents the database interface
type DB interface {
	OutcomeSource
	Close() error
	Migrate(ctx context.Context) error
	SaveOutcomes(ctx context.Context, outcomes []slot.Outcome) error
	CountOutcomes(ctx context.Context) (int, error)
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, query RunsQuery) (*RunsList, error)
}

// Run is a persisted analysis invocation.
type Run struct {
	ID            string    `json:"id" db:"id"`
	Kind          string    `json:"kind" db:"kind"`
	ParamsJSON    string    `json:"params_json" db:"params_json"`
	ResultJSON    string    `json:"result_json" db:"result_json"`
	OutcomeCount  int       `json:"outcome_count" db:"outcome_count"`
	EngineVersion string    `json:"engine_version" db:"engine_version"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Run kinds.
const (
	KindCoverage    = "coverage"
	KindFrequencies = "frequencies"
	KindProfit      = "profit"
	KindCalibrate   = "calibrate"
	KindCampaign    = "campaign"
)

// RunsQuery represents query parameters for listing runs
type RunsQuery struct {
	Kind    string `json:"kind,omitempty"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

// RunsList represents paginated runs response
type RunsList struct {
	Runs       []Run `json:"runs"`
	TotalCount int   `json:"totalCount"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalPages int   `json:"totalPages"`
}

func (q RunsQuery) normalize() RunsQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 50
	}
	if q.PerPage > 500 {
		q.PerPage = 500
	}
	return q
}

func totalPages(total, perPage int) int {
	return (total + perPage - 1) / perPage
}
