package slot

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ReelCount is the number of rotors.
const ReelCount = 3

// Rotor is a cyclic strip of symbols.
type Rotor []Symbol

// At returns the symbol at index i, wrapping around the rotor.
func (r Rotor) At(i int) Symbol {
	n := len(r)
	return r[((i%n)+n)%n]
}

// Offset is one of the advance vectors the machine draws on each spin.
type Offset struct {
	Vector      [ReelCount]int  `json:"vector"`
	Probability decimal.Decimal `json:"probability"`
}

// State is the hidden position of each rotor.
type State [ReelCount]int

// Model describes a machine: its rotors and the offset distribution.
type Model struct {
	Rotors  [ReelCount]Rotor
	Offsets []Offset
}

var (
	ErrInvalidModel = errors.New("invalid rotor model")
)

func symbolsOf(codes ...int) Rotor {
	r := make(Rotor, len(codes))
	for i, c := range codes {
		r[i] = Symbol(c)
	}
	return r
}

// DefaultModel returns the deployed machine.
func DefaultModel() *Model {
	return &Model{
		Rotors: [ReelCount]Rotor{
			symbolsOf(4, 1, 2, 3, 0, 1, 1, 3, 2, 4, 5, 1, 1, 2, 1, 7, 7, 3, 6, 2),
			symbolsOf(2, 3, 1, 1, 0, 1, 2, 5, 4, 7, 7, 2, 3, 6, 2, 1, 7, 7, 3, 4),
			symbolsOf(2, 4, 1, 3, 1, 0, 2, 6, 3, 1, 4, 1, 7, 7, 2, 1, 3, 2, 5, 1),
		},
		Offsets: []Offset{
			{Vector: [ReelCount]int{5, 7, 12}, Probability: decimal.RequireFromString("0.125")},
			{Vector: [ReelCount]int{5, 7, 10}, Probability: decimal.RequireFromString("0.125")},
			{Vector: [ReelCount]int{5, 12, 13}, Probability: decimal.RequireFromString("0.25")},
			{Vector: [ReelCount]int{7, 11, 13}, Probability: decimal.RequireFromString("0.5")},
		},
	}
}

// Validate checks rotor shape, symbol codes and the offset distribution.
func (m *Model) Validate() error {
	n := len(m.Rotors[0])
	if n < 3 {
		return fmt.Errorf("%w: rotor length %d is below 3", ErrInvalidModel, n)
	}
	for i, r := range m.Rotors {
		if len(r) != n {
			return fmt.Errorf("%w: rotor %d has length %d, want %d", ErrInvalidModel, i, len(r), n)
		}
		for j, s := range r {
			if !s.Valid() {
				return fmt.Errorf("%w: rotor %d position %d has code %d", ErrInvalidModel, i, j, s)
			}
		}
	}
	if len(m.Offsets) == 0 {
		return fmt.Errorf("%w: no offsets", ErrInvalidModel)
	}
	total := decimal.Zero
	for i, o := range m.Offsets {
		for _, v := range o.Vector {
			if v <= 0 {
				return fmt.Errorf("%w: offset %d has non-positive component %d", ErrInvalidModel, i, v)
			}
		}
		if o.Probability.Sign() < 0 {
			return fmt.Errorf("%w: offset %d has negative probability", ErrInvalidModel, i)
		}
		total = total.Add(o.Probability)
	}
	if !total.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: offset probabilities sum to %s", ErrInvalidModel, total)
	}
	return nil
}

// RotorLen returns the common rotor length.
func (m *Model) RotorLen() int {
	return len(m.Rotors[0])
}

// StateCount is the size of the state space.
func (m *Model) StateCount() int {
	n := m.RotorLen()
	return n * n * n
}

// Advance applies an offset to a state.
func (m *Model) Advance(s State, o Offset) State {
	n := m.RotorLen()
	var next State
	for i := range s {
		next[i] = (s[i] + o.Vector[i]) % n
	}
	return next
}

// Grid reads the visible window: rotor i shows positions s[i], s[i]+1, s[i]+2
// as the top, middle and bottom cells of column i.
func (m *Model) Grid(s State) Grid {
	var g Grid
	for reel, r := range m.Rotors {
		for row := 0; row < 3; row++ {
			g[3*row+reel] = r.At(s[reel] + row)
		}
	}
	return g
}

// Index flattens a state into [0, StateCount).
func (m *Model) Index(s State) int {
	n := m.RotorLen()
	return (s[0]*n+s[1])*n + s[2]
}
