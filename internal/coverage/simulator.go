// Package coverage measures how quickly random offset draws reach every rotor state.
package coverage

import (
	"go.uber.org/zap"

	"github.com/MJE43/rotor-replay-go/internal/slot"
)

// Source yields uniform draws in [0, 1). *rand.Rand and engine.Stream both qualify.
type Source interface {
	Float64() float64
}

// Report is the outcome of a coverage run.
type Report struct {
	// Spins is the spin on which the last unseen state was reached, or the
	// budget when coverage did not complete.
	Spins    int  `json:"spins"`
	Complete bool `json:"complete"`
	Visited  int  `json:"visited"`
	Total    int  `json:"total"`
}

// Coverage is the visited fraction of the state space.
func (r Report) Coverage() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Visited) / float64(r.Total)
}

// Simulator walks the state space by drawing offsets.
type Simulator struct {
	model      *slot.Model
	src        Source
	cumulative []float64
	logger     *zap.Logger
}

// NewSimulator builds a simulator. A nil logger disables logging.
func NewSimulator(model *slot.Model, src Source, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cum := make([]float64, len(model.Offsets))
	acc := 0.0
	for i, o := range model.Offsets {
		acc += o.Probability.InexactFloat64()
		cum[i] = acc
	}
	return &Simulator{model: model, src: src, cumulative: cum, logger: logger}
}

// pick selects an offset by cumulative probability in model order.
func (s *Simulator) pick(u float64) slot.Offset {
	for i, c := range s.cumulative {
		if u < c {
			return s.model.Offsets[i]
		}
	}
	return s.model.Offsets[len(s.model.Offsets)-1]
}

// Run spins from state (0,0,0) until every state has been visited or the budget
// is spent. The start state counts as visited only once a spin lands on it.
func (s *Simulator) Run(budget int) Report {
	total := s.model.StateCount()
	seen := make([]bool, total)
	visited := 0
	var state slot.State

	for spin := 1; spin <= budget; spin++ {
		state = s.model.Advance(state, s.pick(s.src.Float64()))
		idx := s.model.Index(state)
		if seen[idx] {
			continue
		}
		seen[idx] = true
		visited++
		if visited == total {
			s.logger.Debug("coverage complete", zap.Int("spins", spin), zap.Int("states", total))
			return Report{Spins: spin, Complete: true, Visited: visited, Total: total}
		}
	}

	s.logger.Debug("coverage budget exhausted",
		zap.Int("budget", budget),
		zap.Int("visited", visited),
		zap.Int("states", total))
	return Report{Spins: budget, Visited: visited, Total: total}
}
