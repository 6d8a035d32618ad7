package slot

import (
	"errors"
	"fmt"
)

// ErrMalformedOutcome is returned for records that are not nine valid symbol codes.
var ErrMalformedOutcome = errors.New("malformed outcome record")

// GridSize is the number of visible cells of a spin.
const GridSize = 9

// Grid is the visible 3x3 window in row-major order (b1..b9).
// Row 0 is the top row; column r is reel r.
type Grid [GridSize]Symbol

// Outcome is one observed spin.
type Outcome struct {
	Seq  int64 `json:"seq"`
	Grid Grid  `json:"grid"`
}

// NewOutcome validates raw cell codes and builds an Outcome.
func NewOutcome(seq int64, cells []int) (Outcome, error) {
	if len(cells) != GridSize {
		return Outcome{}, fmt.Errorf("%w: want %d cells, got %d", ErrMalformedOutcome, GridSize, len(cells))
	}
	o := Outcome{Seq: seq}
	for i, c := range cells {
		if c < 0 || c >= SymbolCount {
			return Outcome{}, fmt.Errorf("%w: cell b%d has code %d", ErrMalformedOutcome, i+1, c)
		}
		o.Grid[i] = Symbol(c)
	}
	return o, nil
}

// Validate checks every cell code.
func (g Grid) Validate() error {
	for i, s := range g {
		if !s.Valid() {
			return fmt.Errorf("%w: cell b%d has code %d", ErrMalformedOutcome, i+1, s)
		}
	}
	return nil
}

// Column returns the three visible symbols of reel r, top to bottom.
func (g Grid) Column(r int) [3]Symbol {
	return [3]Symbol{g[r], g[r+3], g[r+6]}
}

// Cells returns the symbols lying on a scoring line.
func (g Grid) Cells(l Line) [3]Symbol {
	idx := l.Indices()
	return [3]Symbol{g[idx[0]], g[idx[1]], g[idx[2]]}
}

// Ints returns the grid as plain integer codes.
func (g Grid) Ints() []int {
	out := make([]int, GridSize)
	for i, s := range g {
		out[i] = int(s)
	}
	return out
}
