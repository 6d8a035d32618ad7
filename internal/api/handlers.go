package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MJE43/rotor-replay-go/internal/analysis"
	"github.com/MJE43/rotor-replay-go/internal/calibrate"
	"github.com/MJE43/rotor-replay-go/internal/campaign"
	"github.com/MJE43/rotor-replay-go/internal/coverage"
	"github.com/MJE43/rotor-replay-go/internal/engine"
	"github.com/MJE43/rotor-replay-go/internal/exploit"
	"github.com/MJE43/rotor-replay-go/internal/ingest"
	"github.com/MJE43/rotor-replay-go/internal/slot"
	"github.com/MJE43/rotor-replay-go/internal/store"
)

const (
	defaultCoverageBudget = 2_000_000
	maxCoverageBudget     = 50_000_000
	maxBodyBytes          = 32 << 20
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: GetVersionInfo(),
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	}
	status := http.StatusOK
	n, err := s.db.CountOutcomes(r.Context())
	if err != nil {
		s.logger.Warn("health check: store unavailable", zap.Error(err))
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	resp.Outcomes = n
	s.writeJSON(w, status, resp)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	m := s.opts.Model
	resp := ModelResponse{StateCount: m.StateCount()}
	for _, rotor := range m.Rotors {
		row := make([]int, len(rotor))
		for i, sym := range rotor {
			row[i] = int(sym)
		}
		resp.Rotors = append(resp.Rotors, row)
	}
	for _, o := range m.Offsets {
		resp.Offsets = append(resp.Offsets, OffsetResponse{Vector: o.Vector, Probability: o.Probability.String()})
	}
	for _, sym := range slot.Symbols() {
		resp.Symbols = append(resp.Symbols, sym.String())
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCountOutcomes(w http.ResponseWriter, r *http.Request) {
	n, err := s.db.CountOutcomes(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var outcomes []slot.Outcome
	if mediaType == "text/csv" {
		var err error
		if outcomes, err = ingest.ReadCSV(body); err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
	} else {
		var req IngestRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			s.errorHandler.HandleValidationError(w, r, "body", "Invalid JSON format")
			return
		}
		for i, in := range req.Outcomes {
			o, err := slot.NewOutcome(in.Seq, in.Grid)
			if err != nil {
				s.errorHandler.HandleError(w, r, fmt.Errorf("outcome %d: %w", i, err))
				return
			}
			outcomes = append(outcomes, o)
		}
	}
	if len(outcomes) == 0 {
		s.errorHandler.HandleValidationError(w, r, "outcomes", "no outcomes supplied")
		return
	}

	if err := s.db.SaveOutcomes(r.Context(), outcomes); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	total, err := s.db.CountOutcomes(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, IngestResponse{Imported: len(outcomes), Total: total})
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	var req CoverageRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	if req.Budget == 0 {
		req.Budget = defaultCoverageBudget
	}
	if req.Budget < 0 || req.Budget > maxCoverageBudget {
		s.errorHandler.HandleValidationError(w, r, "budget", fmt.Sprintf("budget must be between 1 and %d", maxCoverageBudget))
		return
	}

	var src coverage.Source
	if req.Seeds.Server != "" {
		src = engine.NewStream(req.Seeds)
	} else {
		src = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	rep := coverage.NewSimulator(s.opts.Model, src, s.logger).Run(req.Budget)

	resp := CoverageResponse{Report: rep, Coverage: rep.Coverage()}
	// only seeded runs can be replayed, so only those are recorded
	if req.Seeds.Server != "" {
		resp.RunID = s.recordRun(r.Context(), store.KindCoverage, req, rep)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFrequencies(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "tier"))
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "tier", "tier must be 1, 2 or 3")
		return
	}
	tier, err := slot.ParseTier(n)
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "tier", err.Error())
		return
	}
	f, err := analysis.NewFrequencyAnalyzer(s.db, s.logger).Frequencies(r.Context(), tier)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FrequenciesResponse{Frequencies: f})
}

func (s *Server) payoutTable(req PayoutRequest) (slot.PayoutTable, error) {
	if len(req.Payouts) == 0 {
		return s.opts.ExploitTable, nil
	}
	table, err := slot.PayoutTableFromNames(req.Payouts)
	if err != nil {
		return table, fmt.Errorf("%w: %v", calibrate.ErrInvalidRequest, err)
	}
	return table, nil
}

func (s *Server) estimator() *analysis.ProfitEstimator {
	est := analysis.NewProfitEstimator(analysis.NewFrequencyAnalyzer(s.db, s.logger))
	if s.opts.StakePerTier > 0 {
		est.StakePerTier = s.opts.StakePerTier
	}
	return est
}

func (s *Server) handleProfit(w http.ResponseWriter, r *http.Request) {
	var req PayoutRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	table, err := s.payoutTable(req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	profit, err := s.estimator().Estimate(r.Context(), table)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	resp := ProfitResponse{Table: table.Names(), Profit: profit}
	resp.RunID = s.recordRun(r.Context(), store.KindProfit, resp.Table, profit)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) calibrationRequest(req CalibrateRequest) (calibrate.Request, error) {
	out := s.opts.Calibration
	if req.Candidates != nil {
		order := req.Order
		if len(order) == 0 {
			for _, sym := range slot.Symbols() {
				if _, ok := req.Candidates[sym.String()]; ok {
					order = append(order, sym.String())
				}
			}
		}
		if len(order) != len(req.Candidates) {
			return out, fmt.Errorf("%w: order must list every candidate symbol by name", calibrate.ErrInvalidRequest)
		}
		out.Free = nil
		for _, name := range order {
			values, ok := req.Candidates[name]
			if !ok {
				return out, fmt.Errorf("%w: no candidates for %q", calibrate.ErrInvalidRequest, name)
			}
			sym, err := slot.ParseSymbol(name)
			if err != nil {
				return out, fmt.Errorf("%w: %v", calibrate.ErrInvalidRequest, err)
			}
			out.Free = append(out.Free, calibrate.Candidates{Symbol: sym, Values: values})
		}
	}
	if req.Fixed != nil {
		fixed, err := slot.PayoutTableFromNames(req.Fixed)
		if err != nil {
			return out, fmt.Errorf("%w: %v", calibrate.ErrInvalidRequest, err)
		}
		out.Fixed = fixed
	}
	if req.Bands != nil {
		if len(req.Bands) != 3 {
			return out, fmt.Errorf("%w: need 3 bands, got %d", calibrate.ErrInvalidRequest, len(req.Bands))
		}
		copy(out.Bands[:], req.Bands)
	}
	return out, nil
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	var req CalibrateRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	creq, err := s.calibrationRequest(req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	results, err := calibrate.NewCalibrator(s.estimator(), s.logger).
		WithWorkers(s.opts.Workers).
		Calibrate(r.Context(), creq)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	resp := CalibrateResponse{Results: make([]CalibratedTable, len(results)), Count: len(results)}
	for i, res := range results {
		resp.Results[i] = CalibratedTable{Table: res.Table.Names(), Profit: res.Profit}
	}
	resp.RunID = s.recordRun(r.Context(), store.KindCalibrate, creq, resp.Results)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "Invalid JSON format")
		return
	}
	o, err := slot.NewOutcome(0, req.Grid)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	h, err := exploit.NewHeuristic(s.opts.Model, s.opts.ExploitTable, s.opts.Heuristic...)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	st, err := h.Locate(o)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	e := h.Forecast(st)
	s.writeJSON(w, http.StatusOK, EvaluateResponse{State: st, Expectation: e, Bet: exploit.Decide(e)})
}

func (s *Server) handleCampaign(w http.ResponseWriter, r *http.Request) {
	var req PayoutRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	table, err := s.payoutTable(req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	sim, err := campaign.NewSimulator(s.db, s.opts.Model, table, s.logger, s.opts.Heuristic...)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	if s.opts.StakePerTier > 0 {
		sim.WithStakePerTier(s.opts.StakePerTier)
	}
	res, err := sim.Run(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	resp := CampaignResponse{Result: res}
	resp.RunID = s.recordRun(r.Context(), store.KindCampaign, table.Names(), res)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := store.RunsQuery{Kind: r.URL.Query().Get("kind")}
	if v := r.URL.Query().Get("page"); v != "" {
		q.Page, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("perPage"); v != "" {
		q.PerPage, _ = strconv.Atoi(v)
	}
	list, err := s.db.ListRuns(r.Context(), q)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.db.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// decodeOptional decodes a JSON body when one is present. It writes the
// error response and returns false on malformed input.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	s.errorHandler.HandleValidationError(w, r, "body", "Invalid JSON format")
	return false
}

// recordRun persists an analysis run and returns its ID. Failures are logged
// and do not fail the request.
func (s *Server) recordRun(ctx context.Context, kind string, params, result any) string {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		s.logger.Error("failed to encode run params", zap.Error(err))
		return ""
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("failed to encode run result", zap.Error(err))
		return ""
	}
	count, _ := s.db.CountOutcomes(ctx)
	run := &store.Run{
		Kind:          kind,
		ParamsJSON:    string(paramsJSON),
		ResultJSON:    string(resultJSON),
		OutcomeCount:  count,
		EngineVersion: EngineVersion,
	}
	if err := s.db.SaveRun(ctx, run); err != nil {
		s.logger.Error("failed to save run", zap.String("kind", kind), zap.Error(err))
		return ""
	}
	return run.ID
}
