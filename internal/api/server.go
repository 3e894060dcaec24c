// Package api exposes the agent's local control surface: a status
// endpoint with per-subsystem counters, a health probe, and the
// prometheus metrics of the agent process itself.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// StatusProvider returns the current status document. The orchestrator
// injects a closure that snapshots every subsystem, so the server never
// reaches into them directly.
type StatusProvider func() map[string]interface{}

// Server serves the local HTTP API. It is a lifecycle component; Join
// surfaces the listener's terminal error.
type Server struct {
	addr   string
	server *http.Server

	listener net.Listener
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu       sync.Mutex
	serveErr error
}

// statusWriter wraps http.ResponseWriter to capture the response code
// for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func NewServer(cfg config.APIConfig, registry *prometheus.Registry, status StatusProvider) *Server {
	addr := net.JoinHostPort(cfg.BindHost, fmt.Sprintf("%d", cfg.Port))
	mux := http.NewServeMux()

	logRequest := func(r *http.Request, msg string, statusCode int, start time.Time) {
		logger.Info(
			msg,
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	}

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}

		body, err := json.MarshalIndent(status(), "", "  ")
		if err != nil {
			http.Error(ww, err.Error(), http.StatusInternalServerError)
		} else {
			ww.Header().Set("Content-Type", "application/json")
			_, _ = ww.Write(body)
		}

		logRequest(r, "status request received", ww.status, start)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}

		ww.WriteHeader(http.StatusOK)
		_, _ = ww.Write([]byte("OK"))

		logRequest(r, "health check received", ww.status, start)
	})

	mux.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}

		promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorLog: zap.NewStdLog(logger.GetLogger()),
		}).ServeHTTP(ww, r)

		logRequest(r, "metrics request received", ww.status, start)
	}))

	return &Server{
		addr: addr,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Addr returns the address the server is actually listening on, useful
// when the configured port is 0.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the listen socket and launches the serve loop. A bind
// failure is returned immediately so the orchestrator can abort.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen api %s: %w", s.addr, err)
	}
	s.listener = ln
	logger.Info(
		"starting api server",
		zap.String("listen_addr", s.Addr()),
		zap.Duration("read_timeout", s.server.ReadTimeout),
		zap.Duration("write_timeout", s.server.WriteTimeout),
	)

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.mu.Lock()
			s.serveErr = err
			s.mu.Unlock()
			logger.Error("api server failed", zap.Error(err), zap.String("listen_addr", s.addr))
			return
		}
		logger.Info("api server stopped listening", zap.String("listen_addr", s.addr))
	}()
	return nil
}

// Stop gracefully shuts the server down, waiting up to shutdownTimeout
// for in-flight requests. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Error("api server shutdown failed", zap.Error(err))
		}
	})
}

// Join blocks until the serve loop has exited and returns its terminal
// error, nil when the exit was a requested shutdown.
func (s *Server) Join() error {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}
