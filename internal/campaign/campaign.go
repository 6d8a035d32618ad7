// Package campaign replays the recorded history betting with the exploit
// heuristic and reports the player's profit.
package campaign

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MJE43/rotor-replay-go/internal/analysis"
	"github.com/MJE43/rotor-replay-go/internal/exploit"
	"github.com/MJE43/rotor-replay-go/internal/slot"
	"github.com/MJE43/rotor-replay-go/internal/store"
)

// Result summarizes a campaign.
type Result struct {
	// Profit is the player's profit: the machine's tier 3 profit under the
	// payout table, negated, plus the savings from betting below tier 3.
	Profit int64 `json:"profit"`
	// Savings is 3 per evaluated spin minus what was actually staked.
	Savings   int64 `json:"savings"`
	Cost      int64 `json:"cost"`
	Evaluated int   `json:"evaluated"`
	// MachineProfit is the static estimate the profit is based on.
	MachineProfit analysis.Profit `json:"machine_profit"`
	// Bets counts decisions per tier, index 0 for tier 1.
	Bets [3]int `json:"bets"`
	// Skipped lists the spins whose rotor position could not be recovered.
	Skipped []int64 `json:"skipped"`
}

// Simulator runs the exploit over a history store.
type Simulator struct {
	src       store.OutcomeSource
	heuristic *exploit.Heuristic
	estimator *analysis.ProfitEstimator
	table     slot.PayoutTable
	logger    *zap.Logger
}

// NewSimulator creates a campaign simulator. The heuristic and the estimate
// both use table.
func NewSimulator(src store.OutcomeSource, model *slot.Model, table slot.PayoutTable, logger *zap.Logger, opts ...exploit.Option) (*Simulator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h, err := exploit.NewHeuristic(model, table, opts...)
	if err != nil {
		return nil, err
	}
	return &Simulator{
		src:       src,
		heuristic: h,
		estimator: analysis.NewProfitEstimator(analysis.NewFrequencyAnalyzer(src, logger)),
		table:     table,
		logger:    logger,
	}, nil
}

// WithStakePerTier overrides the stake used for the machine's profit estimate.
func (s *Simulator) WithStakePerTier(stake int64) *Simulator {
	s.estimator.StakePerTier = stake
	return s
}

// Run replays every recorded spin in order.
func (s *Simulator) Run(ctx context.Context) (Result, error) {
	outcomes, err := s.src.Outcomes(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load outcomes: %w", err)
	}
	return s.RunOutcomes(ctx, outcomes)
}

// RunOutcomes replays the given spins. Spins that cannot be located are
// skipped and do not count towards the evaluated total.
func (s *Simulator) RunOutcomes(ctx context.Context, outcomes []slot.Outcome) (Result, error) {
	res := Result{Skipped: []int64{}}
	for _, o := range outcomes {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		e, err := s.heuristic.Evaluate(o)
		if errors.Is(err, exploit.ErrUnresolved) {
			s.logger.Warn("skipping unresolved spin", zap.Int64("seq", o.Seq), zap.Error(err))
			res.Skipped = append(res.Skipped, o.Seq)
			continue
		}
		if err != nil {
			return Result{}, err
		}
		bet := exploit.Decide(e)
		res.Bets[bet-1]++
		res.Cost += int64(bet)
		res.Evaluated++
	}
	res.Savings = 3*int64(res.Evaluated) - res.Cost

	machine, err := s.estimator.Estimate(ctx, s.table)
	if err != nil {
		return Result{}, fmt.Errorf("failed to estimate machine profit: %w", err)
	}
	res.MachineProfit = machine
	res.Profit = -machine[2] + res.Savings

	s.logger.Info("campaign finished",
		zap.Int("evaluated", res.Evaluated),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int64("cost", res.Cost),
		zap.Int64("profit", res.Profit))
	return res, nil
}
