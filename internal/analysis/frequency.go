// Package analysis derives payout frequencies and static profit estimates from
// the recorded spin history.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/MJE43/rotor-replay-go/internal/slot"
	"github.com/MJE43/rotor-replay-go/internal/store"
)

// Frequencies holds the payout counts of one bet tier.
type Frequencies struct {
	Tier slot.Tier
	// Symbols counts line wins per winning symbol; index 7 is the clover pair tally.
	Symbols [slot.SymbolCount]int64
	// Lines counts winning spins per active scoring line.
	Lines map[slot.Line]int64
}

func (f Frequencies) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Tier   slot.Tier        `json:"tier"`
		Counts map[string]int64 `json:"counts"`
	}{f.Tier, f.Labels()})
}

// Labels flattens the counts into "1".."7" and the line labels.
func (f Frequencies) Labels() map[string]int64 {
	out := make(map[string]int64, slot.SymbolCount-1+len(f.Lines))
	for s := 1; s < slot.SymbolCount; s++ {
		out[strconv.Itoa(s)] = f.Symbols[s]
	}
	for l, n := range f.Lines {
		out[l.String()] = n
	}
	return out
}

// FrequencyAnalyzer counts payouts over an outcome store.
type FrequencyAnalyzer struct {
	src    store.OutcomeSource
	logger *zap.Logger
}

// NewFrequencyAnalyzer creates an analyzer. A nil logger disables logging.
func NewFrequencyAnalyzer(src store.OutcomeSource, logger *zap.Logger) *FrequencyAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrequencyAnalyzer{src: src, logger: logger}
}

// Frequencies counts, for each line active at tier, the spins that win it and
// credits the winning symbol once per such spin. From tier 2 on, symbol 7
// holds the number of spins with a clover pair.
func (a *FrequencyAnalyzer) Frequencies(ctx context.Context, tier slot.Tier) (Frequencies, error) {
	if !tier.Valid() {
		return Frequencies{}, fmt.Errorf("invalid bet tier %d", tier)
	}
	f := Frequencies{Tier: tier, Lines: make(map[slot.Line]int64)}

	for _, line := range tier.Lines() {
		wins, err := a.src.OutcomesWinningLine(ctx, line)
		if err != nil {
			return Frequencies{}, fmt.Errorf("line %s: %w", line, err)
		}
		f.Lines[line] = int64(len(wins))
		for _, o := range wins {
			f.Symbols[o.Grid.Win(line)]++
		}
	}

	if tier.CountsClover() {
		pairs, err := a.src.OutcomesWithCloverPair(ctx)
		if err != nil {
			return Frequencies{}, fmt.Errorf("clover pairs: %w", err)
		}
		f.Symbols[slot.Clover] = int64(len(pairs))
	}

	a.logger.Debug("frequencies computed", zap.Int("tier", int(tier)), zap.Any("counts", f.Labels()))
	return f, nil
}

// TierFrequencies computes the frequencies of all three tiers.
func (a *FrequencyAnalyzer) TierFrequencies(ctx context.Context) ([3]Frequencies, error) {
	var out [3]Frequencies
	for i, tier := range slot.Tiers() {
		f, err := a.Frequencies(ctx, tier)
		if err != nil {
			return out, err
		}
		out[i] = f
	}
	return out, nil
}
