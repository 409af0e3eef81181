package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/unfoldindia/unfold/internal/auth"
	"github.com/unfoldindia/unfold/internal/engine"
	"github.com/unfoldindia/unfold/internal/insight"
	"github.com/unfoldindia/unfold/internal/logging"
	"github.com/unfoldindia/unfold/internal/metrics"
	"github.com/unfoldindia/unfold/internal/route"
	"github.com/unfoldindia/unfold/internal/store"
)

// Options are the collaborators a Server is built from.
type Options struct {
	DB       *store.DB
	Engine   *engine.Engine
	Insights *insight.Service
	Routes   *route.Planner
	Verifier *auth.Verifier
	Metrics  *metrics.Metrics
	Logger   *logrus.Logger
	Version  string
}

// Server is the unfold HTTP API server.
type Server struct {
	db       *store.DB
	engine   *engine.Engine
	insights *insight.Service
	planner  *route.Planner
	verifier *auth.Verifier
	metrics  *metrics.Metrics
	log      *logrus.Entry
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a new Server.
func New(opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	s := &Server{
		db:       opts.DB,
		engine:   opts.Engine,
		insights: opts.Insights,
		planner:  opts.Routes,
		verifier: opts.Verifier,
		metrics:  opts.Metrics,
		log:      logging.Component(opts.Logger, "server"),
		version:  opts.Version,
		started:  time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)

	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.requireOwner)

			r.Post("/chat", s.handleChat)
			r.Get("/messages", s.handleListMessages)
			r.Get("/retention", s.handleGetRetention)
			r.Put("/retention", s.handleSetRetention)
			r.Post("/insights/{category}", s.handleInsight)
			r.Post("/route", s.handleRoute)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.PingContext(r.Context()); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"llm":     s.engine != nil && s.engine.LLM != nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
