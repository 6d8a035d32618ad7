// Package exploit recovers the hidden rotor state from a visible spin and
// prices the next spin at each bet tier.
package exploit

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MJE43/rotor-replay-go/internal/slot"
)

// Expectation is the expected payout of the next spin, index 0 for tier 1.
type Expectation [3]decimal.Decimal

// Heuristic forecasts the next spin from the current one.
type Heuristic struct {
	model  *slot.Model
	table  slot.PayoutTable
	window int
}

// Option configures a Heuristic.
type Option func(*Heuristic)

// WithSearchWindow limits how many rotor positions Locate reads while
// scanning. The default, rotor length + 2, tries every start position.
func WithSearchWindow(n int) Option {
	return func(h *Heuristic) {
		h.window = n
	}
}

// NewHeuristic creates a heuristic for model priced with table.
func NewHeuristic(model *slot.Model, table slot.PayoutTable, opts ...Option) (*Heuristic, error) {
	h := &Heuristic{model: model, table: table, window: model.RotorLen() + 2}
	for _, opt := range opts {
		opt(h)
	}
	if h.window < 3 || h.window > model.RotorLen()+2 {
		return nil, fmt.Errorf("search window %d outside [3, %d]", h.window, model.RotorLen()+2)
	}
	return h, nil
}

// Forecast sums probability times payout over every offset the machine may
// draw next. The middle row pays at all tiers, top and bottom from tier 2,
// diagonals at tier 3 only.
func (h *Heuristic) Forecast(st slot.State) Expectation {
	e := Expectation{decimal.Zero, decimal.Zero, decimal.Zero}
	for _, o := range h.model.Offsets {
		g := h.model.Grid(h.model.Advance(st, o))
		for _, line := range slot.Lines() {
			win := g.Win(line)
			if win == 0 {
				continue
			}
			v := o.Probability.Mul(decimal.NewFromInt(h.table.Get(win)))
			for t := slot.MinTier(line); t <= slot.Tier3; t++ {
				e[t-1] = e[t-1].Add(v)
			}
		}
	}
	return e
}

// Evaluate locates the state showing o and forecasts the following spin.
func (h *Heuristic) Evaluate(o slot.Outcome) (Expectation, error) {
	st, err := h.Locate(o)
	if err != nil {
		return Expectation{}, err
	}
	return h.Forecast(st), nil
}

// Decide picks the bet size: tier 1 when all three expectations are equal,
// tier 2 when tier 3 adds nothing over tier 2, otherwise tier 3.
func Decide(e Expectation) slot.Tier {
	if e[1].Equal(e[2]) {
		if e[0].Equal(e[1]) {
			return slot.Tier1
		}
		return slot.Tier2
	}
	return slot.Tier3
}
