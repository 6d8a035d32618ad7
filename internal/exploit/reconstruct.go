package exploit

import (
	"errors"
	"fmt"

	"github.com/MJE43/rotor-replay-go/internal/slot"
)

// ErrUnresolved is returned when an observed column does not occur on its rotor.
var ErrUnresolved = errors.New("rotor position unresolved")

// UnresolvedError names the reel whose position could not be recovered.
type UnresolvedError struct {
	Reel   int
	Column [3]slot.Symbol
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%v: reel %d shows %v", ErrUnresolved, e.Reel, e.Column)
}

func (e *UnresolvedError) Unwrap() error {
	return ErrUnresolved
}

// locate returns the first start position s, scanning a window of the given
// length, for which the rotor reads col at s, s+1, s+2.
func locate(r slot.Rotor, col [3]slot.Symbol, window int) (int, bool) {
	n := len(r)
	for s := 0; s+2 < window && s < n; s++ {
		if r.At(s) == col[0] && r.At(s+1) == col[1] && r.At(s+2) == col[2] {
			return s, true
		}
	}
	return 0, false
}

// Locate recovers the rotor state that displays the outcome.
func (h *Heuristic) Locate(o slot.Outcome) (slot.State, error) {
	var st slot.State
	for reel, r := range h.model.Rotors {
		col := o.Grid.Column(reel)
		pos, ok := locate(r, col, h.window)
		if !ok {
			return slot.State{}, &UnresolvedError{Reel: reel, Column: col}
		}
		st[reel] = pos
	}
	return st, nil
}
