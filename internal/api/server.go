// Package api serves the copilot over a JSON HTTP interface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"lrp-copilot/internal/baseline"
	"lrp-copilot/internal/copilot"
	"lrp-copilot/internal/observability"
	"lrp-copilot/internal/storage"

	"github.com/rs/zerolog/log"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Server holds the HTTP server configuration.
type Server struct {
	svc  *copilot.Service
	addr string

	// MetricsHandler serves /metrics. Defaults to the global Prometheus registry.
	MetricsHandler http.Handler
}

// NewServer creates a new API server instance.
func NewServer(svc *copilot.Service, addr string) *Server {
	return &Server{
		svc:            svc,
		addr:           addr,
		MetricsHandler: observability.Handler(),
	}
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "POST /api/scenario", s.handleScenario)
	s.route(mux, "POST /api/simulate", s.handleSimulate)
	s.route(mux, "POST /api/plan", s.handlePlan)
	s.route(mux, "GET /api/segments", s.handleSegments)
	s.route(mux, "GET /api/runs", s.handleListRuns)
	s.route(mux, "GET /api/runs/{id}", s.handleGetRun)
	s.route(mux, "GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.MetricsHandler)

	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listener.Addr().String()).Msg("Starting HTTP API")
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down HTTP API")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type apiHandler func(r *http.Request) (interface{}, error)

// route registers fn under pattern and records every request against it.
func (s *Server) route(mux *http.ServeMux, pattern string, fn apiHandler) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		data, err := fn(r)

		code := http.StatusOK
		resp := Response{Success: true, Data: data}
		if err != nil {
			code = statusFor(err)
			resp = Response{Success: false, Error: err.Error()}
			log.Warn().Err(err).Str("route", pattern).Int("status", code).Msg("Request failed")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error().Err(err).Str("route", pattern).Msg("Failed to encode response")
		}
		s.svc.Metrics.RecordHTTP(pattern, code, time.Since(start))
	})
}

// badRequest marks an error as the caller's fault.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br), errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeQuery reads a JSON object body. Numeric strings are accepted.
func decodeQuery(r *http.Request) (copilot.Query, error) {
	var args map[string]any
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		return copilot.Query{}, badRequest{fmt.Errorf("invalid request body: %w", err)}
	}
	return copilot.QueryFromArgs(args), nil
}

func (s *Server) handleScenario(r *http.Request) (interface{}, error) {
	q, err := decodeQuery(r)
	if err != nil {
		return nil, err
	}
	return s.svc.Analyze(r.Context(), q)
}

func (s *Server) handleSimulate(r *http.Request) (interface{}, error) {
	q, err := decodeQuery(r)
	if err != nil {
		return nil, err
	}
	return s.svc.Simulate(r.Context(), q)
}

func (s *Server) handlePlan(r *http.Request) (interface{}, error) {
	q, err := decodeQuery(r)
	if err != nil {
		return nil, err
	}
	if q.TargetUSD <= 0 {
		return nil, badRequest{errors.New("target_usd must be positive")}
	}
	return s.svc.Plan(r.Context(), q)
}

func (s *Server) handleSegments(r *http.Request) (interface{}, error) {
	params := r.URL.Query()
	table, err := s.svc.Table(r.Context(), params.Get("workspace_id"))
	if err != nil {
		return nil, err
	}
	f := baseline.Filter{Region: params.Get("region"), Segment: params.Get("segment")}.Normalized()
	return table.Select(f), nil
}

func (s *Server) handleListRuns(r *http.Request) (interface{}, error) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, badRequest{fmt.Errorf("invalid limit %q", raw)}
		}
		limit = n
	}
	return s.svc.Runs(r.Context(), limit)
}

func (s *Server) handleGetRun(r *http.Request) (interface{}, error) {
	return s.svc.Run(r.Context(), r.PathValue("id"))
}

func (s *Server) handleHealth(_ *http.Request) (interface{}, error) {
	return map[string]string{"status": "ok"}, nil
}
