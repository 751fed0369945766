// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package observability is the optional HTTP side channel of a play
// session: Prometheus metrics for logins, registrations and saves, plus
// liveness and backend readiness checks.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

const readHeaderTimeout = 10 * time.Second

var (
	bodyOK        = []byte("ok\n")
	bodyNoBackend = []byte("no backend selected\n")
)

// ReadinessChecker reports whether play has settled on a storage backend.
type ReadinessChecker func() bool

// Server serves the vault metrics on a private registry, so several
// sessions in one process never register the same collector twice.
type Server struct {
	addr    string
	ready   ReadinessChecker
	logger  *slog.Logger
	reg     *prometheus.Registry
	metrics *Metrics

	running atomic.Bool
	ln      net.Listener
	srv     *http.Server
}

// NewServer prepares a server for addr ("host:port", port 0 picks one).
// A nil ready reports ready at all times.
func NewServer(addr string, ready ReadinessChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		addr:    addr,
		ready:   ready,
		logger:  logger.With("component", "observability"),
		reg:     reg,
		metrics: NewMetrics(reg),
	}
}

// Metrics returns the recorder handed to the authority.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler routes GET /metrics, /healthz/liveness and /healthz/readiness.
// Other methods get 405 from the mux.
func (s *Server) Handler() http.Handler {
	errLog := slog.NewLogLogger(s.logger.Handler(), slog.LevelError)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorLog:          errLog,
	}))
	mux.HandleFunc("GET /healthz/liveness", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, bodyOK)
	})
	mux.HandleFunc("GET /healthz/readiness", s.readiness)
	return mux
}

// Start listens on the configured address and serves in the background.
// The channel carries at most one serve failure and closes once serving
// ends.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("OBSERVABILITY_RUNNING").
			With("addr", s.Addr()).
			Errorf("metrics endpoint already started")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("OBSERVABILITY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.ln, s.srv = ln, srv

	errCh := make(chan error, 1)
	go s.serve(srv, ln, errCh)

	s.logger.Info("metrics endpoint listening", "addr", ln.Addr().String())
	return errCh, nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener, errCh chan<- error) {
	defer close(errCh)
	err := srv.Serve(ln)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}
	s.logger.Error("metrics endpoint failed", "error", err)
	errCh <- err
}

// Stop drains in-flight scrapes until ctx expires. Stopping a server that
// is not running is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.Code("OBSERVABILITY_SHUTDOWN_FAILED").With("addr", s.Addr()).Wrap(err)
	}

	s.logger.Info("metrics endpoint stopped")
	return nil
}

// Addr is the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) readiness(w http.ResponseWriter, _ *http.Request) {
	if s.ready != nil && !s.ready() {
		writeStatus(w, http.StatusServiceUnavailable, bodyNoBackend)
		return
	}
	writeStatus(w, http.StatusOK, bodyOK)
}

func writeStatus(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	//nolint:errcheck // the scraper may already be gone
	w.Write(body)
}
