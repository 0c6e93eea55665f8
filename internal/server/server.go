// Package server hosts the local web console: the HTML pages from
// internal/ui plus a small JSON API describing the console's own session.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/servicehub/internal/guard"
	"github.com/me/servicehub/internal/logging"
	"github.com/me/servicehub/internal/session"
	"github.com/me/servicehub/internal/ui"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Server is the web console HTTP server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	startTime time.Time
	ui        *ui.UI
	session   *session.Store
	guard     *guard.Guard
	apiURL    string
}

// Option configures optional Server settings.
type Option func(*Server)

// WithAPIURL sets the upstream API base URL shown by the health endpoint.
func WithAPIURL(u string) Option {
	return func(s *Server) {
		s.apiURL = u
	}
}

// New creates a Server with all routes registered.
func New(console *ui.UI, sess *session.Store, g *guard.Guard, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logging.OrDiscard(logger).With("component", "server"),
		startTime: time.Now(),
		ui:        console,
		session:   sess,
		guard:     g,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/console", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/session", s.handleSession)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, RequestIDFromContext(r.Context()), http.StatusNotFound, "Unknown console endpoint")
		})
	})

	// HTML pages
	s.ui.RegisterRoutes(r)
}
