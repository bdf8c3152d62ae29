// Package server exposes the incident tools and ingestion over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"incidentkb/internal/usecase"
)

// Server is the HTTP boundary in front of one vector memory.
type Server struct {
	memory *usecase.VectorMemory
	tools  *usecase.IncidentTools
	ingest *usecase.IngestUseCase
	ask    *usecase.AskUseCase
	addr   string
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server. ask may be nil when no planner is configured.
func NewServer(
	memory *usecase.VectorMemory,
	tools *usecase.IncidentTools,
	ingest *usecase.IngestUseCase,
	ask *usecase.AskUseCase,
	addr string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		memory: memory,
		tools:  tools,
		ingest: ingest,
		ask:    ask,
		addr:   addr,
		logger: logger,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/tools", s.handleListTools)
		r.Post("/tools/{name}", s.handleCallTool)
		r.Post("/incidents", s.handleIngest)
		r.Get("/incidents", s.handleListIncidents)
		r.Get("/incidents/{id}", s.handleGetIncident)
		r.Post("/ask", s.handleAsk)
	})
	return r
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", s.addr))
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
