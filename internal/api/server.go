package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/MJE43/rotor-replay-go/internal/calibrate"
	"github.com/MJE43/rotor-replay-go/internal/exploit"
	"github.com/MJE43/rotor-replay-go/internal/slot"
	"github.com/MJE43/rotor-replay-go/internal/store"
)

// Options carries the machine and analysis settings the server works with.
type Options struct {
	Model          *slot.Model
	ExploitTable   slot.PayoutTable
	StakePerTier   int64
	Calibration    calibrate.Request
	Workers        int
	AllowedOrigins []string
	Timeout        time.Duration
	Heuristic      []exploit.Option
}

// Server handles HTTP requests
type Server struct {
	db           store.DB
	opts         Options
	errorHandler *ErrorHandler
	logger       *zap.Logger
	startTime    time.Time
}

// NewServer creates a new API server
func NewServer(db store.DB, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Model == nil {
		opts.Model = slot.DefaultModel()
	}
	if opts.Calibration.Bands == ([3]calibrate.Band{}) {
		opts.Calibration = calibrate.DefaultRequest()
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	logger = logger.Named("api")
	return &Server{
		db:           db,
		opts:         opts,
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		startTime:    time.Now(),
	}
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(middleware.Timeout(s.opts.Timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Engine-Version"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/model", s.handleModel)
		r.Get("/outcomes", s.handleCountOutcomes)
		r.Post("/outcomes", s.handleIngest)
		r.Post("/coverage", s.handleCoverage)
		r.Get("/frequencies/{tier}", s.handleFrequencies)
		r.Post("/profit", s.handleProfit)
		r.Post("/calibrate", s.handleCalibrate)
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/campaign", s.handleCampaign)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
