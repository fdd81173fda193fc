package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/iwvelando/goal-probability/internal/analyzer"
	"github.com/iwvelando/goal-probability/internal/cache"
	"github.com/iwvelando/goal-probability/internal/config"
	"github.com/iwvelando/goal-probability/internal/goal"
	"github.com/iwvelando/goal-probability/internal/params"
	"github.com/iwvelando/goal-probability/internal/ranking"
	"github.com/iwvelando/goal-probability/internal/simerr"
	"github.com/iwvelando/goal-probability/internal/simulation"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Ranker is the ranking surface the handler depends on.
type Ranker interface {
	Run(ctx context.Context, g goal.Goal, profile goal.Profile, p params.Set, baseline *analyzer.Result) (*ranking.Result, error)
}

// Dependencies are the engines the HTTP API serves.
type Dependencies struct {
	Simulator simulation.Evaluator
	Ranker    Ranker
	// Cache may be nil, in which case the cache endpoints report 404.
	Cache *cache.Cache
	// Params is the parameter set used when a request carries none.
	Params     params.Set
	Iterations int
	Seed       int64
}

// Options tunes request handling.
type Options struct {
	MaxBodyBytes      int64
	Version           string
	RankRatePerSecond float64
	RankBurst         int
}

type handler struct {
	logger       *zap.Logger
	deps         Dependencies
	maxBodyBytes int64
	version      string
	rankLimiter  *rate.Limiter
}

// NewHandler constructs the HTTP handler that serves the evaluation API.
func NewHandler(logger *zap.Logger, deps Dependencies, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxBodyBytes := opts.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = constants.DefaultMaxBodyBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	rps := opts.RankRatePerSecond
	if rps <= 0 {
		rps = constants.DefaultRankRatePerSecond
	}
	burst := opts.RankBurst
	if burst <= 0 {
		burst = constants.DefaultRankBurst
	}

	if deps.Params.Len() == 0 {
		deps.Params = params.Defaults()
	}
	if deps.Iterations <= 0 {
		deps.Iterations = constants.DefaultIterations
	}
	if deps.Seed == 0 {
		deps.Seed = constants.DefaultSeed
	}

	h := &handler{
		logger:       logger,
		deps:         deps,
		maxBodyBytes: maxBodyBytes,
		version:      trimmedVersion,
		rankLimiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/evaluate", h.handleEvaluate)
		r.With(h.limitRank).Post("/rank", h.handleRank)
		r.Get("/cache/stats", h.handleCacheStats)
		r.Delete("/cache", h.handleCacheClear)
		r.Delete("/cache/goals/{goalID}", h.handleCacheInvalidateGoal)
		r.Get("/version", h.handleVersion)
	})

	return r
}

// requestPayload is the body accepted by /api/evaluate and /api/rank. Goal
// and profile use the same field names as the config file.
type requestPayload struct {
	Goal       config.GoalConfig      `json:"goal"`
	Profile    config.ProfileConfig   `json:"profile"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Iterations int                    `json:"iterations,omitempty"`
	Seed       int64                  `json:"seed,omitempty"`
}

type evaluateResponse struct {
	Result   *analyzer.Result `json:"result"`
	Duration string           `json:"duration"`
}

type rankResponse struct {
	*ranking.Result
	Baseline *analyzer.Result `json:"baseline"`
	Duration string           `json:"duration"`
}

type resolvedRequest struct {
	goal       goal.Goal
	profile    goal.Profile
	params     params.Set
	iterations int
	seed       int64
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, op string) (*resolvedRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var payload requestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxBodyBytes), op)
			return nil, false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return nil, false
	}

	g, err := payload.Goal.ToGoal(payload.Profile)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return nil, false
	}

	p := h.deps.Params
	if len(payload.Parameters) > 0 {
		cfg := config.Configuration{Parameters: payload.Parameters}
		p, err = cfg.Params()
		if err != nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid parameters: %v", err), op)
			return nil, false
		}
	}

	req := &resolvedRequest{
		goal:       g,
		profile:    payload.Profile.ToProfile(),
		params:     p,
		iterations: payload.Iterations,
		seed:       payload.Seed,
	}
	if req.iterations <= 0 {
		req.iterations = h.deps.Iterations
	}
	if req.seed == 0 {
		req.seed = h.deps.Seed
	}
	return req, true
}

func (h *handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleEvaluate"
	start := time.Now()

	req, ok := h.decode(w, r, op)
	if !ok {
		return
	}

	res, err := h.deps.Simulator.Evaluate(r.Context(), req.goal, req.params, req.iterations, req.seed)
	if err != nil {
		h.respondEngineError(w, err, op)
		return
	}

	elapsed := time.Since(start)
	h.logger.Info("goal evaluated",
		zap.String("op", op),
		zap.String("goal", req.goal.ID),
		zap.Float64("probability", res.SuccessProbability),
		zap.Duration("duration", elapsed),
	)
	h.writeJSON(w, http.StatusOK, evaluateResponse{Result: res, Duration: elapsed.String()})
}

func (h *handler) limitRank(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.rankLimiter.Allow() {
			w.Header().Set("Retry-After", "1")
			h.respondErrorWithOp(w, http.StatusTooManyRequests, "ranking rate limit exceeded", "server.limitRank")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) handleRank(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleRank"
	start := time.Now()

	if h.deps.Ranker == nil {
		h.respondErrorWithOp(w, http.StatusNotImplemented, "ranking is not configured", op)
		return
	}

	req, ok := h.decode(w, r, op)
	if !ok {
		return
	}

	baseline, err := h.deps.Simulator.Evaluate(r.Context(), req.goal, req.params, req.iterations, req.seed)
	if err != nil {
		h.respondEngineError(w, err, op)
		return
	}

	result, err := h.deps.Ranker.Run(r.Context(), req.goal, req.profile, req.params, baseline)
	if err != nil {
		h.respondEngineError(w, err, op)
		return
	}

	elapsed := time.Since(start)
	h.logger.Info("adjustments ranked",
		zap.String("op", op),
		zap.String("goal", req.goal.ID),
		zap.String("run", result.Summary.RunID),
		zap.Int("recommendations", len(result.Recommendations)),
		zap.Duration("duration", elapsed),
	)
	h.writeJSON(w, http.StatusOK, rankResponse{Result: result, Baseline: baseline, Duration: elapsed.String()})
}

func (h *handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.respondErrorWithOp(w, http.StatusNotFound, "cache is disabled", "server.handleCacheStats")
		return
	}
	h.writeJSON(w, http.StatusOK, h.deps.Cache.Stats())
}

func (h *handler) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCacheClear"
	if h.deps.Cache == nil {
		h.respondErrorWithOp(w, http.StatusNotFound, "cache is disabled", op)
		return
	}
	removed := h.deps.Cache.Len()
	h.deps.Cache.Clear(r.Context())
	h.logger.Info("cache cleared", zap.String("op", op), zap.Int("removed", removed))
	h.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *handler) handleCacheInvalidateGoal(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCacheInvalidateGoal"
	if h.deps.Cache == nil {
		h.respondErrorWithOp(w, http.StatusNotFound, "cache is disabled", op)
		return
	}
	goalID := strings.TrimSpace(chi.URLParam(r, "goalID"))
	if goalID == "" {
		h.respondErrorWithOp(w, http.StatusBadRequest, "goal id is required", op)
		return
	}
	removed := h.deps.Cache.InvalidatePrefix(r.Context(), cache.GoalPrefix(goalID))
	h.logger.Info("goal cache invalidated", zap.String("op", op), zap.String("goal", goalID), zap.Int("removed", removed))
	h.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) respondEngineError(w http.ResponseWriter, err error, op string) {
	switch {
	case simerr.IsConfiguration(err):
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, err.Error(), op)
	default:
		h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
	}
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

// Serve runs an HTTP server for handler on addr until ctx is cancelled, then
// shuts it down within shutdownTimeout.
func Serve(ctx context.Context, logger *zap.Logger, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("op", "server.Serve"), zap.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down", zap.String("op", "server.Serve"))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
