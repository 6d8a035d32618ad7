package slot

import (
	"fmt"
	"strings"
)

// Symbol is the code of a single reel cell.
type Symbol uint8

const (
	Amethyst Symbol = iota // blank for line matching
	Iron
	RawGold
	Gold
	Emerald
	Diamond
	Netherite
	Clover
)

// SymbolCount is the number of distinct symbol codes.
const SymbolCount = 8

var symbolNames = [SymbolCount]string{
	"amethyst",
	"iron",
	"raw_gold",
	"gold",
	"emerald",
	"diamond",
	"netherite",
	"clover",
}

// Valid reports whether s is a known symbol code.
func (s Symbol) Valid() bool {
	return s < SymbolCount
}

func (s Symbol) String() string {
	if !s.Valid() {
		return fmt.Sprintf("symbol(%d)", uint8(s))
	}
	return symbolNames[s]
}

// ParseSymbol accepts either a symbol name ("raw_gold", "raw gold", "Raw-Gold")
// or its numeric code.
func ParseSymbol(v string) (Symbol, error) {
	key := strings.ToLower(strings.TrimSpace(v))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	for i, name := range symbolNames {
		if key == name {
			return Symbol(i), nil
		}
	}
	if len(key) == 1 && key[0] >= '0' && key[0] <= '7' {
		return Symbol(key[0] - '0'), nil
	}
	return 0, fmt.Errorf("unknown symbol %q", v)
}

// Symbols returns every symbol code in order.
func Symbols() []Symbol {
	out := make([]Symbol, SymbolCount)
	for i := range out {
		out[i] = Symbol(i)
	}
	return out
}
