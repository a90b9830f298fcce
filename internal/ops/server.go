// Package ops serves the health and metrics endpoints of a running relay.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"igrelay/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// StatsFunc reports extra fields for the health response
type StatsFunc func() map[string]interface{}

// Server is the ops HTTP server
type Server struct {
	addr    string
	router  chi.Router
	started time.Time
	stats   StatsFunc
	logger  logger.Logger
}

// NewServer builds the router. metricsHandler may be nil to omit /metrics.
func NewServer(addr string, metricsHandler http.Handler, stats StatsFunc, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Server{
		addr:    addr,
		started: time.Now(),
		stats:   stats,
		logger:  log.WithField("component", "ops"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	s.router = r
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.started)
	body := map[string]interface{}{
		"status":         "ok",
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": int64(uptime.Seconds()),
	}
	if s.stats != nil {
		for k, v := range s.stats() {
			body[k] = v
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Warn("Failed to write health response")
	}
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoWithFields("Ops server starting", map[string]interface{}{"addr": s.addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("Ops server stopped")
	return nil
}
