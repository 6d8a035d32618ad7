package slot

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

func TestMatchLine(t *testing.T) {
	tests := []struct {
		name string
		x    [3]Symbol
		want Symbol
	}{
		{"three of a kind", [3]Symbol{2, 2, 2}, 2},
		{"blank first", [3]Symbol{0, 3, 3}, 3},
		{"blank middle", [3]Symbol{5, 0, 5}, 5},
		{"single symbol", [3]Symbol{0, 0, 4}, 4},
		{"all blank", [3]Symbol{0, 0, 0}, 0},
		{"mixed", [3]Symbol{1, 2, 1}, 0},
		{"clover voids", [3]Symbol{7, 7, 7}, 0},
		{"clover with match", [3]Symbol{1, 1, 7}, 0},
		{"clover with blanks", [3]Symbol{0, 7, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MatchLine(tt.x[0], tt.x[1], tt.x[2])
			if got != tt.want {
				t.Errorf("MatchLine(%v) = %d, want %d", tt.x, got, tt.want)
			}
		})
	}
}

func TestMatchLineProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := Symbol(rapid.IntRange(0, 6).Draw(t, "a"))
		if a != 0 && MatchLine(a, a, a) != a {
			t.Fatalf("MatchLine(%d,%d,%d) should win with %d", a, a, a, a)
		}
		if MatchLine(0, a, a) != a || MatchLine(a, 0, a) != a || MatchLine(a, a, 0) != a {
			t.Fatalf("blank cell should not break a line of %d", a)
		}

		x := [3]Symbol{
			Symbol(rapid.IntRange(0, 7).Draw(t, "x1")),
			Symbol(rapid.IntRange(0, 7).Draw(t, "x2")),
			Symbol(rapid.IntRange(0, 7).Draw(t, "x3")),
		}
		got := MatchLine(x[0], x[1], x[2])
		if got == Clover {
			t.Fatalf("clover must never win a line")
		}
		for _, c := range x {
			if c == Clover && got != 0 {
				t.Fatalf("line %v with a clover won %d", x, got)
			}
		}
		// result is invariant under permutation
		if MatchLine(x[2], x[0], x[1]) != got || MatchLine(x[1], x[0], x[2]) != got {
			t.Fatalf("MatchLine not symmetric for %v", x)
		}
	})
}

func TestModelGrid(t *testing.T) {
	m := DefaultModel()
	if err := m.Validate(); err != nil {
		t.Fatalf("default model invalid: %v", err)
	}

	g := m.Grid(State{0, 0, 0})
	want := Grid{4, 2, 2, 1, 3, 4, 2, 1, 1}
	if g != want {
		t.Errorf("Expected grid %v, got %v", want, g)
	}

	// wrap-around at the end of the rotors
	g = m.Grid(State{19, 19, 19})
	want = Grid{2, 4, 1, 4, 2, 2, 1, 3, 4}
	if g != want {
		t.Errorf("Expected wrapped grid %v, got %v", want, g)
	}
}

func TestModelAdvance(t *testing.T) {
	m := DefaultModel()
	got := m.Advance(State{18, 15, 10}, m.Offsets[3])
	want := State{5, 6, 3}
	if got != want {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestModelValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Model)
	}{
		{"short rotor", func(m *Model) { m.Rotors[1] = m.Rotors[1][:19] }},
		{"bad symbol", func(m *Model) { m.Rotors[0][3] = 9 }},
		{"no offsets", func(m *Model) { m.Offsets = nil }},
		{"zero component", func(m *Model) { m.Offsets[0].Vector[1] = 0 }},
		{"probabilities", func(m *Model) { m.Offsets[3].Probability = decimal.RequireFromString("0.4") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := DefaultModel()
			tt.mutate(m)
			err := m.Validate()
			if !errors.Is(err, ErrInvalidModel) {
				t.Errorf("Expected ErrInvalidModel, got %v", err)
			}
		})
	}
}

func TestNewOutcome(t *testing.T) {
	if _, err := NewOutcome(1, []int{1, 2, 3, 4, 1, 6, 7, 0, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := [][]int{
		{1, 2, 3},
		{1, 2, 3, 4, 1, 6, 7, 8, 9},
		{1, 2, 3, 4, 1, 6, 7, 0, -1},
	}
	for _, cells := range bad {
		if _, err := NewOutcome(1, cells); !errors.Is(err, ErrMalformedOutcome) {
			t.Errorf("NewOutcome(%v): expected ErrMalformedOutcome, got %v", cells, err)
		}
	}
}

func TestGridLines(t *testing.T) {
	g := Grid{
		3, 1, 0,
		0, 3, 0,
		0, 6, 3,
	}
	tests := []struct {
		line Line
		want Symbol
	}{
		{Top, 0},
		{Mid, 3},
		{Bot, 0},
		{Diag1, 3},
		{Diag2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.line.String(), func(t *testing.T) {
			if got := g.Win(tt.line); got != tt.want {
				t.Errorf("Win(%s) = %d, want %d", tt.line, got, tt.want)
			}
		})
	}
}

func TestCloverPair(t *testing.T) {
	tests := []struct {
		name string
		g    Grid
		want bool
	}{
		{"top pair", Grid{7, 0, 0, 7, 0, 0, 1, 1, 1}, true},
		{"bottom pair", Grid{0, 0, 1, 0, 0, 7, 0, 0, 7}, true},
		{"split", Grid{7, 0, 0, 1, 0, 0, 7, 0, 0}, false},
		{"horizontal", Grid{7, 7, 7, 0, 0, 0, 1, 1, 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.CloverPair(); got != tt.want {
				t.Errorf("CloverPair() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTierLines(t *testing.T) {
	prev := 0
	for _, tier := range Tiers() {
		lines := tier.Lines()
		if len(lines) <= prev {
			t.Errorf("tier %d should activate more lines than the tier below", tier)
		}
		prev = len(lines)
		for _, l := range lines {
			if MinTier(l) > tier {
				t.Errorf("line %s active at tier %d but pays from tier %d", l, tier, MinTier(l))
			}
		}
	}
	if Tier1.CountsClover() || !Tier2.CountsClover() {
		t.Errorf("clover tally should start at tier 2")
	}
}

func TestPayoutTableFromNames(t *testing.T) {
	p, err := PayoutTableFromNames(map[string]int64{"iron": 2, "Raw Gold": 8, "3": 20, "diamond": 64})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != ExploitPayouts {
		t.Errorf("Expected %v, got %v", ExploitPayouts, p)
	}
	if _, err := PayoutTableFromNames(map[string]int64{"ruby": 1}); err == nil {
		t.Error("expected error for unknown symbol")
	}
	if _, err := PayoutTableFromNames(map[string]int64{"gold": -1}); err == nil {
		t.Error("expected error for negative payout")
	}
}
