package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Ruthvikraj007/backend-buddies/internal/presence"
	"github.com/Ruthvikraj007/backend-buddies/internal/ws"
)

// Server exposes the relay over HTTP: the websocket endpoint, a health
// probe, the Prometheus scrape target and a read-only roster endpoint.
type Server struct {
	http     *http.Server
	registry *presence.Registry
	conns    *ws.ConnManager
	log      zerolog.Logger
}

// New creates a server on addr around the given websocket handler.
func New(addr string, wsHandler *ws.Handler, registry *presence.Registry, conns *ws.ConnManager, logger zerolog.Logger) *Server {
	s := &Server{
		registry: registry,
		conns:    conns,
		log:      logger.With().Str("component", "http").Logger(),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", s.handleHealth)
	r.Get("/api/who", s.handleWho)
	r.Handle("/ws", wsHandler)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the configured route tree.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	s.conns.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": s.registry.Count(),
	})
}

// handleWho returns the current roster, the HTTP view of what a newly
// connected channel receives as online_users.
func (s *Server) handleWho(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"onlineUsers": s.registry.Online(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// requestLogger logs completed requests, skipping the noisy scrape and
// probe endpoints.
func requestLogger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("request_id", chimw.GetReqID(r.Context())).
					Str("remote_addr", r.RemoteAddr).
					Msg("request completed")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
