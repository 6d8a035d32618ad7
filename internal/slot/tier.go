package slot

import "fmt"

// Tier is a bet size, 1 to 3 units.
type Tier int

const (
	Tier1 Tier = 1
	Tier2 Tier = 2
	Tier3 Tier = 3
)

// Tiers lists every bet tier in ascending order.
func Tiers() []Tier {
	return []Tier{Tier1, Tier2, Tier3}
}

// Valid reports whether t is a known bet tier.
func (t Tier) Valid() bool {
	return t >= Tier1 && t <= Tier3
}

// Lines returns the scoring lines active at this tier.
func (t Tier) Lines() []Line {
	switch t {
	case Tier1:
		return []Line{Mid}
	case Tier2:
		return []Line{Mid, Top, Bot}
	case Tier3:
		return []Line{Mid, Top, Bot, Diag1, Diag2}
	}
	return nil
}

// CountsClover reports whether clover pairs are tallied at this tier.
func (t Tier) CountsClover() bool {
	return t > Tier1
}

// MinTier returns the lowest tier at which line l pays.
func MinTier(l Line) Tier {
	switch {
	case l == Mid:
		return Tier1
	case l.Diagonal():
		return Tier3
	default:
		return Tier2
	}
}

// ParseTier converts an integer to a Tier.
func ParseTier(n int) (Tier, error) {
	t := Tier(n)
	if !t.Valid() {
		return 0, fmt.Errorf("invalid bet tier %d", n)
	}
	return t, nil
}

func (t Tier) String() string {
	return fmt.Sprintf("tier%d", int(t))
}
