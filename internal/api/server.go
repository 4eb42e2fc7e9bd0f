package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/obrasoft/bc3gest/internal/config"
	"github.com/obrasoft/bc3gest/internal/pipeline"
	"github.com/obrasoft/bc3gest/internal/runner"
)

// Server is the HTTP API server for bc3gest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	run          runner.Runner
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, run runner.Runner, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		run:          run,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/parse", s.handleParse)
		r.Post("/api/parse/async", s.handleParseAsync)
		r.Get("/api/parse/{jobID}/status", s.handleParseStatus)
		r.Get("/api/parse/{jobID}/result", s.handleParseResult)
		r.Get("/api/stats/parser", s.handleParserStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
