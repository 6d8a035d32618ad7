package store

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/MJE43/rotor-replay-go/internal/slot"
)

func column(idx int) string {
	return cellColumns[idx]
}

// linePredicate is the SQL form of slot.MatchLine for the cells of line:
// no clover, at least one non-blank cell, and every pair of non-blank cells equal.
func linePredicate(line slot.Line) sq.Sqlizer {
	idx := line.Indices()
	a, b, c := column(idx[0]), column(idx[1]), column(idx[2])
	clover := int(slot.Clover)
	pair := func(x, y string) sq.Sqlizer {
		return sq.Or{sq.Eq{x: 0}, sq.Eq{y: 0}, sq.Expr(fmt.Sprintf("%s = %s", x, y))}
	}
	return sq.And{
		sq.NotEq{a: clover},
		sq.NotEq{b: clover},
		sq.NotEq{c: clover},
		sq.Expr(fmt.Sprintf("%s + %s + %s > 0", a, b, c)),
		pair(a, b),
		pair(a, c),
		pair(b, c),
	}
}

// cloverPairPredicate matches a reel showing clovers in two adjacent rows.
func cloverPairPredicate() sq.Sqlizer {
	clover := int(slot.Clover)
	var clauses sq.Or
	for reel := 0; reel < slot.ReelCount; reel++ {
		for row := 0; row < 2; row++ {
			upper := column(3*row + reel)
			lower := column(3*(row+1) + reel)
			clauses = append(clauses, sq.Eq{upper: clover, lower: clover})
		}
	}
	return clauses
}
