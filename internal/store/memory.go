package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/rotor-replay-go/internal/slot"
)

// MemoryDB keeps everything in process. Predicates are evaluated with the slot
// package directly.
type MemoryDB struct {
	mu       sync.RWMutex
	outcomes []slot.Outcome
	seqs     map[int64]struct{}
	runs     map[string]Run
}

// NewMemoryDB returns an empty in-memory store.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		seqs: make(map[int64]struct{}),
		runs: make(map[string]Run),
	}
}

func (m *MemoryDB) Close() error                      { return nil }
func (m *MemoryDB) Migrate(ctx context.Context) error { return nil }

// SaveOutcomes validates and appends spins, keeping sequence order.
func (m *MemoryDB) SaveOutcomes(ctx context.Context, outcomes []slot.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make(map[int64]struct{}, len(outcomes))
	for _, o := range outcomes {
		if err := o.Grid.Validate(); err != nil {
			return fmt.Errorf("spin %d: %w", o.Seq, err)
		}
		_, stored := m.seqs[o.Seq]
		_, repeated := batch[o.Seq]
		if stored || repeated {
			return fmt.Errorf("%w: %d", ErrDuplicateOutcome, o.Seq)
		}
		batch[o.Seq] = struct{}{}
	}
	for _, o := range outcomes {
		m.seqs[o.Seq] = struct{}{}
		m.outcomes = append(m.outcomes, o)
	}
	sort.SliceStable(m.outcomes, func(i, j int) bool {
		return m.outcomes[i].Seq < m.outcomes[j].Seq
	})
	return nil
}

func (m *MemoryDB) CountOutcomes(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.outcomes), nil
}

func (m *MemoryDB) filter(keep func(slot.Outcome) bool) []slot.Outcome {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []slot.Outcome
	for _, o := range m.outcomes {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}

func (m *MemoryDB) Outcomes(ctx context.Context) ([]slot.Outcome, error) {
	return m.filter(func(slot.Outcome) bool { return true }), nil
}

func (m *MemoryDB) OutcomesWinningLine(ctx context.Context, line slot.Line) ([]slot.Outcome, error) {
	return m.filter(func(o slot.Outcome) bool { return o.Grid.Win(line) != 0 }), nil
}

func (m *MemoryDB) OutcomesWithCloverPair(ctx context.Context) ([]slot.Outcome, error) {
	return m.filter(func(o slot.Outcome) bool { return o.Grid.CloverPair() }), nil
}

func (m *MemoryDB) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *MemoryDB) GetRun(ctx context.Context, id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return &run, nil
}

func (m *MemoryDB) ListRuns(ctx context.Context, query RunsQuery) (*RunsList, error) {
	query = query.normalize()

	m.mu.RLock()
	runs := make([]Run, 0, len(m.runs))
	for _, r := range m.runs {
		if query.Kind == "" || r.Kind == query.Kind {
			runs = append(runs, r)
		}
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})

	total := len(runs)
	start := min((query.Page-1)*query.PerPage, total)
	end := min(start+query.PerPage, total)
	return &RunsList{
		Runs:       runs[start:end],
		TotalCount: total,
		Page:       query.Page,
		PerPage:    query.PerPage,
		TotalPages: totalPages(total, query.PerPage),
	}, nil
}
