// Package calibrate searches candidate payout tables for ones whose estimated
// machine profit falls inside a target band at every bet tier.
package calibrate

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/rotor-replay-go/internal/analysis"
	"github.com/MJE43/rotor-replay-go/internal/slot"
)

var ErrInvalidRequest = errors.New("invalid calibration request")

// MaxCombinations bounds the number of tables a single request may search.
const MaxCombinations = 1 << 22

// Band is an inclusive profit range.
type Band struct {
	Low  int64 `json:"low" yaml:"low"`
	High int64 `json:"high" yaml:"high"`
}

// Contains reports whether Low <= v <= High.
func (b Band) Contains(v int64) bool {
	return v >= b.Low && v <= b.High
}

// Candidates lists the payouts to try for one symbol.
type Candidates struct {
	Symbol slot.Symbol `json:"symbol"`
	Values []int64     `json:"values"`
}

// Request describes a calibration search.
type Request struct {
	// Free symbols are varied over their candidate values.
	Free []Candidates `json:"free"`
	// Fixed supplies the payout of every symbol not listed in Free.
	Fixed slot.PayoutTable `json:"fixed"`
	// Bands holds the accepted profit range per tier.
	Bands [3]Band `json:"bands"`
}

// DefaultRequest is the search the machine was tuned with. Emerald,
// netherite and clover stay at 0.
func DefaultRequest() Request {
	return Request{
		Free: []Candidates{
			{Symbol: slot.Iron, Values: []int64{2, 4, 8}},
			{Symbol: slot.RawGold, Values: []int64{4, 8, 12}},
			{Symbol: slot.Gold, Values: []int64{12, 16, 20}},
			{Symbol: slot.Diamond, Values: []int64{32, 48, 64}},
		},
		Bands: [3]Band{{200, 500}, {500, 900}, {800, 1300}},
	}
}

func (r Request) dims() [][]int64 {
	dims := make([][]int64, len(r.Free))
	for i, c := range r.Free {
		dims[i] = c.Values
	}
	return dims
}

// Combinations validates r and returns the number of tables it searches.
func (r Request) Combinations() (int, error) {
	seen := make(map[slot.Symbol]bool)
	for _, c := range r.Free {
		if c.Symbol == slot.Amethyst || !c.Symbol.Valid() {
			return 0, fmt.Errorf("%w: symbol %s cannot carry a payout", ErrInvalidRequest, c.Symbol)
		}
		if seen[c.Symbol] {
			return 0, fmt.Errorf("%w: symbol %s listed twice", ErrInvalidRequest, c.Symbol)
		}
		seen[c.Symbol] = true
		for _, v := range c.Values {
			if v < 0 {
				return 0, fmt.Errorf("%w: negative payout %d for %s", ErrInvalidRequest, v, c.Symbol)
			}
		}
	}
	for i, b := range r.Bands {
		if b.Low > b.High {
			return 0, fmt.Errorf("%w: tier %d band [%d, %d] is empty", ErrInvalidRequest, i+1, b.Low, b.High)
		}
	}
	total, err := Size(r.dims())
	if err != nil || total > MaxCombinations {
		return 0, fmt.Errorf("%w: search exceeds %d combinations", ErrInvalidRequest, MaxCombinations)
	}
	return total, nil
}

// Result is an accepted payout table and its profit per tier.
type Result struct {
	Table  slot.PayoutTable `json:"table"`
	Profit analysis.Profit  `json:"profit"`
}

// Calibrator evaluates candidate tables on a bounded worker pool.
type Calibrator struct {
	estimator *analysis.ProfitEstimator
	workers   int
	chunkSize int
	logger    *zap.Logger

	// Progress, when set, is called from worker goroutines with the number of
	// combinations evaluated so far.
	Progress func(done, total int)
}

// NewCalibrator creates a calibrator using GOMAXPROCS workers.
func NewCalibrator(estimator *analysis.ProfitEstimator, logger *zap.Logger) *Calibrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calibrator{
		estimator: estimator,
		workers:   runtime.GOMAXPROCS(0),
		chunkSize: 64,
		logger:    logger,
	}
}

// WithWorkers overrides the worker count.
func (c *Calibrator) WithWorkers(n int) *Calibrator {
	if n > 0 {
		c.workers = n
	}
	return c
}

// Calibrate returns, in nested-iteration order, every candidate table whose
// profit lies inside the band of each tier. Frequencies are counted once.
func (c *Calibrator) Calibrate(ctx context.Context, req Request) ([]Result, error) {
	total, err := req.Combinations()
	if err != nil {
		return nil, err
	}
	dims := req.dims()
	if total == 0 {
		return []Result{}, nil
	}

	freqs, err := c.estimator.TierFrequencies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count frequencies: %w", err)
	}

	accepted := make([]*Result, total)
	var evaluated atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for start := 0; start < total; start += c.chunkSize {
		end := min(start+c.chunkSize, total)
		g.Go(func() error {
			combo := make([]int64, len(dims))
			for idx := start; idx < end; idx++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				combo = Combination(dims, idx, combo)
				table := req.Fixed
				for i, cand := range req.Free {
					table[cand.Symbol] = combo[i]
				}
				profit := c.estimator.ProfitFrom(table, freqs)
				if inBands(profit, req.Bands) {
					accepted[idx] = &Result{Table: table, Profit: profit}
				}
			}
			done := evaluated.Add(int64(end - start))
			if c.Progress != nil {
				c.Progress(int(done), total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]Result, 0)
	for _, r := range accepted {
		if r != nil {
			results = append(results, *r)
		}
	}
	c.logger.Info("calibration finished",
		zap.Int("combinations", total),
		zap.Int("accepted", len(results)),
		zap.Int("workers", c.workers))
	return results, nil
}

func inBands(p analysis.Profit, bands [3]Band) bool {
	for i := range p {
		if !bands[i].Contains(p[i]) {
			return false
		}
	}
	return true
}
