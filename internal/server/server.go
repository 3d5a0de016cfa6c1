// Package server exposes the exporter's HTTP surface: metrics and health.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Server routes the metrics and health endpoints.
type Server struct {
	router chi.Router
	logger zerolog.Logger
}

// New creates a server exposing the given metrics handler on /metrics.
func New(logger zerolog.Logger, metrics http.Handler) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: logger,
	}
	s.router.Use(s.loggingMiddleware)
	s.router.Get("/metrics", metrics.ServeHTTP)
	s.router.Get("/health", s.healthHandler)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote_addr", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
