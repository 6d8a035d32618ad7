package main

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MJE43/rotor-replay-go/internal/analysis"
	"github.com/MJE43/rotor-replay-go/internal/api"
	"github.com/MJE43/rotor-replay-go/internal/calibrate"
	"github.com/MJE43/rotor-replay-go/internal/campaign"
	"github.com/MJE43/rotor-replay-go/internal/config"
	"github.com/MJE43/rotor-replay-go/internal/coverage"
	"github.com/MJE43/rotor-replay-go/internal/engine"
	"github.com/MJE43/rotor-replay-go/internal/exploit"
	"github.com/MJE43/rotor-replay-go/internal/ingest"
	"github.com/MJE43/rotor-replay-go/internal/slot"
)

func (a *app) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			// setup already migrated
			fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			return nil
		},
	}
}

func (a *app) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE.csv",
		Short: "Import labeled spins (s,b1..b9) into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			n, err := ingest.NewImporter(a.db, a.logger).Import(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s spins\n", humanize.Comma(int64(n)))
			return nil
		},
	}
}

func (a *app) coverageCommand() *cobra.Command {
	var budget int
	var seeds engine.Seeds
	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Simulate random spins until every rotor state is reached",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.cfg.BuildModel()
			if err != nil {
				return err
			}
			var src coverage.Source = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
			if seeds.Server != "" {
				src = engine.NewStream(seeds)
			}
			rep := coverage.NewSimulator(model, src, a.logger).Run(budget)
			out := cmd.OutOrStdout()
			if rep.Complete {
				fmt.Fprintf(out, "all %s states reached after %s spins\n",
					humanize.Comma(int64(rep.Total)), humanize.Comma(int64(rep.Spins)))
				return nil
			}
			fmt.Fprintf(out, "visited %s of %s states (%.2f%%) in %s spins\n",
				humanize.Comma(int64(rep.Visited)), humanize.Comma(int64(rep.Total)),
				100*rep.Coverage(), humanize.Comma(int64(budget)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&budget, "budget", "n", 2_000_000, "maximum number of spins")
	cmd.Flags().StringVar(&seeds.Server, "server-seed", "", "server seed for a reproducible run")
	cmd.Flags().StringVar(&seeds.Client, "client-seed", "", "client seed for a reproducible run")
	cmd.Flags().Uint64Var(&seeds.Nonce, "nonce", 0, "nonce for a reproducible run")
	return cmd
}

func (a *app) frequenciesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "frequencies [TIER]",
		Short: "Count payouts per symbol and line for each bet tier",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tiers := slot.Tiers()
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid tier %q", args[0])
				}
				t, err := slot.ParseTier(n)
				if err != nil {
					return err
				}
				tiers = []slot.Tier{t}
			}
			fa := analysis.NewFrequencyAnalyzer(a.db, a.logger)
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, t := range tiers {
				f, err := fa.Frequencies(cmd.Context(), t)
				if err != nil {
					return err
				}
				if err := enc.Encode(f); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) estimator() *analysis.ProfitEstimator {
	est := analysis.NewProfitEstimator(analysis.NewFrequencyAnalyzer(a.db, a.logger))
	if a.cfg.Analysis.StakePerTier > 0 {
		est.StakePerTier = a.cfg.Analysis.StakePerTier
	}
	return est
}

func (a *app) profitCommand() *cobra.Command {
	var interactive bool
	var payouts []string
	cmd := &cobra.Command{
		Use:   "profit",
		Short: "Estimate the machine's profit per tier for a payout table",
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := a.cfg.ExploitTable()
			if err != nil {
				return err
			}
			if len(payouts) > 0 {
				if table, err = parsePayouts(payouts); err != nil {
					return err
				}
			}
			if interactive {
				if table, err = config.NewPayoutPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).Prompt(table); err != nil {
					return err
				}
			}
			p, err := a.estimator().Estimate(cmd.Context(), table)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, v := range p {
				fmt.Fprintf(out, "bet %d: %s\n", i+1, humanize.Comma(v))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for each symbol's payout")
	cmd.Flags().StringSliceVarP(&payouts, "payout", "p", nil, "symbol=value, repeatable (replaces the exploit table)")
	return cmd
}

func parsePayouts(pairs []string) (slot.PayoutTable, error) {
	m := make(map[string]int64, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return slot.PayoutTable{}, fmt.Errorf("payout %q is not symbol=value", pair)
		}
		v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return slot.PayoutTable{}, fmt.Errorf("payout %q: %w", pair, err)
		}
		m[strings.TrimSpace(name)] = v
	}
	return slot.PayoutTableFromNames(m)
}

func (a *app) calibrateCommand() *cobra.Command {
	var progress bool
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Search candidate payout tables for ones inside the target profit bands",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := a.cfg.CalibrationRequest()
			if err != nil {
				return err
			}
			c := calibrate.NewCalibrator(a.estimator(), a.logger).WithWorkers(a.cfg.Calibration.Workers)
			total, err := req.Combinations()
			if err != nil {
				return err
			}
			if progress {
				bar := pb.StartNew(total)
				c.Progress = func(done, total int) { bar.SetCurrent(int64(done)) }
				defer bar.Finish()
			}
			results, err := c.Calibrate(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				var parts []string
				for _, f := range req.Free {
					parts = append(parts, fmt.Sprintf("%s=%d", f.Symbol, r.Table[f.Symbol]))
				}
				fmt.Fprintf(out, "%s  profit %v\n", strings.Join(parts, " "), r.Profit)
			}
			fmt.Fprintf(out, "%s tables accepted\n", humanize.Comma(int64(len(results))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false, "show a progress bar")
	return cmd
}

func (a *app) heuristicOptions() []exploit.Option {
	if a.cfg.Model.SearchWindow > 0 {
		return []exploit.Option{exploit.WithSearchWindow(a.cfg.Model.SearchWindow)}
	}
	return nil
}

func (a *app) evaluateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate b1 b2 b3 b4 b5 b6 b7 b8 b9",
		Short: "Recover the rotor state from a visible grid and pick a bet",
		Args:  cobra.ExactArgs(slot.GridSize),
		RunE: func(cmd *cobra.Command, args []string) error {
			cells := make([]int, len(args))
			for i, arg := range args {
				if n, err := strconv.Atoi(arg); err == nil {
					cells[i] = n
					continue
				}
				s, err := slot.ParseSymbol(arg)
				if err != nil {
					return err
				}
				cells[i] = int(s)
			}
			o, err := slot.NewOutcome(0, cells)
			if err != nil {
				return err
			}
			model, err := a.cfg.BuildModel()
			if err != nil {
				return err
			}
			table, err := a.cfg.ExploitTable()
			if err != nil {
				return err
			}
			h, err := exploit.NewHeuristic(model, table, a.heuristicOptions()...)
			if err != nil {
				return err
			}
			st, err := h.Locate(o)
			if err != nil {
				return err
			}
			e := h.Forecast(st)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state %v\n", st)
			for i, v := range e {
				fmt.Fprintf(out, "bet %d expects %s\n", i+1, v.StringFixed(4))
			}
			fmt.Fprintf(out, "bet %d\n", exploit.Decide(e))
			return nil
		},
	}
}

func (a *app) campaignCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "campaign",
		Short: "Replay the recorded spins betting with the exploit heuristic",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.cfg.BuildModel()
			if err != nil {
				return err
			}
			table, err := a.cfg.ExploitTable()
			if err != nil {
				return err
			}
			sim, err := campaign.NewSimulator(a.db, model, table, a.logger, a.heuristicOptions()...)
			if err != nil {
				return err
			}
			if a.cfg.Analysis.StakePerTier > 0 {
				sim.WithStakePerTier(a.cfg.Analysis.StakePerTier)
			}
			res, err := sim.Run(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "spins evaluated: %s (skipped %d)\n", humanize.Comma(int64(res.Evaluated)), len(res.Skipped))
			fmt.Fprintf(out, "bets: %d x1, %d x2, %d x3\n", res.Bets[0], res.Bets[1], res.Bets[2])
			fmt.Fprintf(out, "cost %s, savings %s\n", humanize.Comma(res.Cost), humanize.Comma(res.Savings))
			fmt.Fprintf(out, "profit %s\n", humanize.Comma(res.Profit))
			return nil
		},
	}
}

func (a *app) serveCommand() *cobra.Command {
	var addr string
	var origins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.cfg.BuildModel()
			if err != nil {
				return err
			}
			table, err := a.cfg.ExploitTable()
			if err != nil {
				return err
			}
			req, err := a.cfg.CalibrationRequest()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.HTTP.Address
			}
			srv := api.NewServer(a.db, api.Options{
				Model:          model,
				ExploitTable:   table,
				StakePerTier:   a.cfg.Analysis.StakePerTier,
				Calibration:    req,
				Workers:        a.cfg.Calibration.Workers,
				AllowedOrigins: origins,
				Heuristic:      a.heuristicOptions(),
			}, a.logger)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to http.address)")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "allowed CORS origins")
	return cmd
}
