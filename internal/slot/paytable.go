package slot

import (
	"fmt"
	"sort"
)

// PayoutTable maps each symbol to its payout in credits. Amethyst never pays.
type PayoutTable [SymbolCount]int64

// ExploitPayouts is the payout table the exploit heuristic is evaluated with.
var ExploitPayouts = PayoutTable{
	Iron:    2,
	RawGold: 8,
	Gold:    20,
	Diamond: 64,
}

// Get returns the payout for s.
func (p PayoutTable) Get(s Symbol) int64 {
	if s == Amethyst || !s.Valid() {
		return 0
	}
	return p[s]
}

// With returns a copy of p with s set to v.
func (p PayoutTable) With(s Symbol, v int64) PayoutTable {
	p[s] = v
	return p
}

// Names returns the table keyed by symbol name, skipping amethyst.
func (p PayoutTable) Names() map[string]int64 {
	out := make(map[string]int64, SymbolCount-1)
	for _, s := range Symbols()[1:] {
		out[s.String()] = p[s]
	}
	return out
}

// PayoutTableFromNames builds a table from symbol names or codes. Missing symbols pay 0.
func PayoutTableFromNames(m map[string]int64) (PayoutTable, error) {
	var p PayoutTable
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s, err := ParseSymbol(k)
		if err != nil {
			return PayoutTable{}, err
		}
		if s == Amethyst {
			return PayoutTable{}, fmt.Errorf("amethyst cannot carry a payout")
		}
		if m[k] < 0 {
			return PayoutTable{}, fmt.Errorf("negative payout %d for %s", m[k], s)
		}
		p[s] = m[k]
	}
	return p, nil
}
