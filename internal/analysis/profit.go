package analysis

import (
	"context"

	"github.com/MJE43/rotor-replay-go/internal/slot"
)

// DefaultStakePerTier is the credits wagered per bet unit across the sample.
const DefaultStakePerTier = 1000

// Profit is the machine's net profit per tier, index 0 for tier 1.
type Profit [3]int64

// ProfitEstimator turns frequencies and a payout table into machine profit.
type ProfitEstimator struct {
	freq         *FrequencyAnalyzer
	StakePerTier int64
}

// NewProfitEstimator creates an estimator over the analyzer's store.
func NewProfitEstimator(freq *FrequencyAnalyzer) *ProfitEstimator {
	return &ProfitEstimator{freq: freq, StakePerTier: DefaultStakePerTier}
}

// Estimate computes profit for every tier from freshly counted frequencies.
func (e *ProfitEstimator) Estimate(ctx context.Context, table slot.PayoutTable) (Profit, error) {
	freqs, err := e.freq.TierFrequencies(ctx)
	if err != nil {
		return Profit{}, err
	}
	return e.ProfitFrom(table, freqs), nil
}

// ProfitFrom is stake*t minus the payouts owed at tier t. Symbols 1 through 7
// are charged: the clover tally is billed at table[Clover], so a non-zero
// clover payout lowers the tier 2 and tier 3 profit. Every shipped table pays
// 0 for clover, which reduces the sum to symbols 1 through 6.
func (e *ProfitEstimator) ProfitFrom(table slot.PayoutTable, freqs [3]Frequencies) Profit {
	var p Profit
	for i := range freqs {
		paid := int64(0)
		for s := 1; s < slot.SymbolCount; s++ {
			paid += table.Get(slot.Symbol(s)) * freqs[i].Symbols[s]
		}
		p[i] = e.StakePerTier*int64(i+1) - paid
	}
	return p
}

// TierFrequencies counts the frequencies estimates are based on.
func (e *ProfitEstimator) TierFrequencies(ctx context.Context) ([3]Frequencies, error) {
	return e.freq.TierFrequencies(ctx)
}
