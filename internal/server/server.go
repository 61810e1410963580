// Package server exposes the small HTTP control surface: a human status
// page and a machine health check. Neither route touches a database —
// both read cached counters and cached JSON analytics (spec.md §4.9).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/EDDataAPI/eddata-collector/internal/ingest"
	"github.com/EDDataAPI/eddata-collector/internal/stats"
)

const requestTimeout = 1 * time.Second

// Config configures the control-surface server.
type Config struct {
	Log                 zerolog.Logger
	Port                int
	Version             string
	DefaultCacheControl string
	StartedAt           time.Time
	Lock                *ingest.WriteLock
	Writer              *stats.JSONWriter
	ProcessedCount      func() uint64
	DedupSize           func() int
}

// Server wraps the chi router and a bound http.Server.
type Server struct {
	router *chi.Mux
	http   *http.Server
	log    zerolog.Logger
	cfg    Config
}

// New builds the router and binds it to the configured port.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		cfg:    cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(requestTimeout))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
		MaxAge:         300,
	}))
	s.router.Use(middleware.Compress(5))
	s.router.Use(s.cacheControlMiddleware)
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleStatus)
	s.router.Get("/health", s.handleHealth)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func (s *Server) cacheControlMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.DefaultCacheControl != "" {
			w.Header().Set("Cache-Control", s.cfg.DefaultCacheControl)
		}
		w.Header().Set("X-Service", "eddata-collector")
		next.ServeHTTP(w, r)
	})
}

// Start begins serving. Blocks until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("starting control-surface HTTP server")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down control-surface HTTP server")
	return s.http.Shutdown(ctx)
}
