// Package server exposes plan generation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/joss/mplan/internal/health"
	"github.com/joss/mplan/internal/logging"
	"github.com/joss/mplan/internal/metrics"
	"github.com/joss/mplan/internal/planning"
	"github.com/joss/mplan/internal/repos"
	"github.com/joss/mplan/internal/store"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// PlanBuilder builds a plan for a repository set. *planning.Engine
// satisfies it.
type PlanBuilder interface {
	Build(ctx context.Context, repositories []string) (*planning.Plan, error)
}

// PlanRequest is the body of POST /v1/plan.
type PlanRequest struct {
	Repositories []string `json:"repositories"`
	Save         bool     `json:"save,omitempty"`
}

// Response is the envelope every endpoint answers with.
type Response struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id,omitempty"`
	Plan      *planning.Plan  `json:"plan,omitempty"`
	PlanID    string          `json:"plan_id,omitempty"`
	Records   []*store.Record `json:"records,omitempty"`
	Record    *store.Record   `json:"record,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Server wraps the HTTP server.
type Server struct {
	builder PlanBuilder
	lister  repos.Lister
	history store.PlanStore
	health  *health.Checker
	metrics *metrics.Metrics
	logger  *logging.Logger
	timeout time.Duration

	srv *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLister enables glob patterns in requested repositories.
func WithLister(l repos.Lister) Option {
	return func(s *Server) { s.lister = l }
}

// WithHistory enables saving plans and the /v1/plans endpoints.
func WithHistory(h store.PlanStore) Option {
	return func(s *Server) { s.history = h }
}

// WithHealth serves c at /health/detail.
func WithHealth(c *health.Checker) Option {
	return func(s *Server) { s.health = c }
}

// WithMetrics sets the metrics instance served at /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTimeout bounds each plan request.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a server listening on addr.
func New(addr string, b PlanBuilder, opts ...Option) *Server {
	s := &Server{
		builder: b,
		metrics: metrics.Global(),
		logger:  logging.Discard(),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routing handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/plan", s.handlePlan)
	mux.HandleFunc("GET /v1/plans", s.handleList)
	mux.HandleFunc("GET /v1/plans/{id}", s.handleGet)
	mux.HandleFunc("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.health != nil {
		mux.HandleFunc("GET /health/detail", s.health.Handler())
	}
	return s.recover(mux)
}

// Start listens on the configured address and serves in the background.
// It returns the bound address.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("serve_failed", map[string]any{"addr": ln.Addr().String()}, err)
		}
	}()
	s.logger.Info("server_started", map[string]any{"addr": ln.Addr().String()})
	return ln.Addr().String(), nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) recover(next http.Handler) http.Handler {
	rh := logging.NewRecoveryHandler("server", s.logger)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := rh.WrapError(func() error {
			next.ServeHTTP(w, r)
			return nil
		}); err != nil {
			s.fail(w, "", http.StatusInternalServerError, errors.New("internal error"))
		}
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithRequestID(r.Context(), r.Header.Get("X-Request-ID"))
	reqID := logging.GetRequestID(ctx)
	w.Header().Set("X-Request-ID", reqID)

	var req PlanRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.fail(w, reqID, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	names, err := repos.Resolve(ctx, s.lister, req.Repositories)
	if err != nil {
		s.fail(w, reqID, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	plan, err := s.builder.Build(ctx, names)
	if err != nil {
		status := http.StatusInternalServerError
		if planning.IsValidation(err) {
			status = http.StatusBadRequest
		}
		s.fail(w, reqID, status, err)
		return
	}
	s.logger.TimedEvent("plan_request", start, map[string]any{
		"request_id": reqID,
		"repos":      len(plan.Scope.Repositories),
	})

	resp := Response{Status: "success", RequestID: reqID, Plan: plan}
	if req.Save {
		if s.history == nil {
			s.fail(w, reqID, http.StatusBadRequest, errors.New("plan history is not enabled"))
			return
		}
		rec, err := s.history.Save(ctx, plan)
		s.metrics.RecordHistorySave(err == nil)
		if err != nil {
			s.fail(w, reqID, http.StatusInternalServerError, err)
			return
		}
		resp.PlanID = rec.ID
	}
	s.respond(w, http.StatusOK, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.fail(w, "", http.StatusNotFound, errors.New("plan history is not enabled"))
		return
	}
	filter := store.DefaultFilter().WithRepository(r.URL.Query().Get("repository"))
	records, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.fail(w, "", http.StatusInternalServerError, err)
		return
	}
	if records == nil {
		records = []*store.Record{}
	}
	s.respond(w, http.StatusOK, Response{Status: "success", Records: records})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.fail(w, "", http.StatusNotFound, errors.New("plan history is not enabled"))
		return
	}
	rec, err := s.history.Get(r.Context(), r.PathValue("id"))
	switch {
	case err == nil:
		s.respond(w, http.StatusOK, Response{Status: "success", Record: rec})
	case store.IsNotFound(err):
		s.fail(w, "", http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalidID):
		s.fail(w, "", http.StatusBadRequest, err)
	default:
		s.fail(w, "", http.StatusInternalServerError, err)
	}
}

func (s *Server) fail(w http.ResponseWriter, reqID string, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request_failed", map[string]any{"request_id": reqID, "status": status}, err)
	} else {
		s.logger.Debug("request_rejected", map[string]any{"request_id": reqID, "status": status, "error": err.Error()})
	}
	s.respond(w, status, Response{Status: "error", RequestID: reqID, Error: err.Error()})
}

func (s *Server) respond(w http.ResponseWriter, status int, resp Response) {
	s.metrics.RecordRequest(status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
