package slot

import "fmt"

// Line is a scoring line of the 3x3 grid.
type Line int

const (
	Mid Line = iota
	Top
	Bot
	Diag1 // b1 b5 b9
	Diag2 // b7 b5 b3
)

var lineIndices = map[Line][3]int{
	Top:   {0, 1, 2},
	Mid:   {3, 4, 5},
	Bot:   {6, 7, 8},
	Diag1: {0, 4, 8},
	Diag2: {6, 4, 2},
}

var lineLabels = map[Line]string{
	Mid:   "mid",
	Top:   "top",
	Bot:   "bot",
	Diag1: "di1",
	Diag2: "di2",
}

// Lines lists every scoring line.
func Lines() []Line {
	return []Line{Mid, Top, Bot, Diag1, Diag2}
}

// Indices returns the zero-based grid positions of the line.
func (l Line) Indices() [3]int {
	return lineIndices[l]
}

func (l Line) String() string {
	if s, ok := lineLabels[l]; ok {
		return s
	}
	return fmt.Sprintf("line(%d)", int(l))
}

// Diagonal reports whether the line is one of the two diagonals.
func (l Line) Diagonal() bool {
	return l == Diag1 || l == Diag2
}

// MatchLine returns the winning symbol of a line, or 0 when the line does not win.
// A line wins when it holds no clover and its non-blank cells are one single symbol.
func MatchLine(x1, x2, x3 Symbol) Symbol {
	var win Symbol
	for _, x := range [3]Symbol{x1, x2, x3} {
		switch {
		case x == Clover:
			return 0
		case x == Amethyst:
		case win == 0:
			win = x
		case x != win:
			return 0
		}
	}
	return win
}

// Win returns the winning symbol of line l on the grid, or 0.
func (g Grid) Win(l Line) Symbol {
	c := g.Cells(l)
	return MatchLine(c[0], c[1], c[2])
}

// CloverPair reports whether some reel shows two vertically adjacent clovers.
func (g Grid) CloverPair() bool {
	for r := 0; r < 3; r++ {
		c := g.Column(r)
		if (c[0] == Clover && c[1] == Clover) || (c[1] == Clover && c[2] == Clover) {
			return true
		}
	}
	return false
}
