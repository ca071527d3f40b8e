// Package server provides the HTTP API for the course assistant.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"courserag/internal/config"
	"courserag/internal/service"
)

// Server is the HTTP server exposing query, analytics, and session routes.
type Server struct {
	svc    *service.RAGService
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(svc *service.RAGService, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{svc: svc, config: cfg, logger: logger}
}

// Router builds the route table; exposed separately so tests can drive the
// handlers without a listening socket.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Post("/api/query", s.handleQuery)
	r.Get("/api/courses", s.handleCourses)
	r.Post("/api/sessions/{id}/clear", s.handleClearSession)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
