// Package server exposes the returns assistant over HTTP: a JSON chat
// API, a WebSocket chat, a stateless eligibility check, the audit trail,
// Prometheus metrics and the chat platform webhooks.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ecomarket/ecobot/internal/assistant"
	"github.com/ecomarket/ecobot/internal/audit"
	"github.com/ecomarket/ecobot/internal/bots"
	"github.com/ecomarket/ecobot/internal/metrics"
	"github.com/ecomarket/ecobot/internal/render"
)

// Config holds server configuration.
type Config struct {
	Addr           string
	AllowedOrigins []string // "*" allows any origin
}

// Server is the ecobot HTTP server.
type Server struct {
	cfg           Config
	conversations *assistant.Conversations
	evaluator     assistant.Evaluator
	auditStore    *audit.Store
	metrics       *metrics.Metrics
	renderer      *render.Renderer
	slack         *bots.SlackHandler
	teams         *bots.TeamsHandler
	logger        *zap.Logger
	router        chi.Router
	httpServer    *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithAudit mounts the audit query API.
func WithAudit(store *audit.Store) Option {
	return func(s *Server) { s.auditStore = store }
}

// WithMetrics mounts /metrics and counts stateless eligibility checks.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithBots mounts the Slack and Teams webhooks. Either may be nil.
func WithBots(slack *bots.SlackHandler, teams *bots.TeamsHandler) Option {
	return func(s *Server) {
		s.slack = slack
		s.teams = teams
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a server around a conversation runner and the evaluator
// behind the stateless eligibility endpoint.
func New(cfg Config, conversations *assistant.Conversations, evaluator assistant.Evaluator, opts ...Option) *Server {
	s := &Server{
		cfg:           cfg,
		conversations: conversations,
		evaluator:     evaluator,
		renderer:      render.New(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/healthz", s.handleHealth)

	// The WebSocket outlives any request timeout.
	r.Get("/ws/chat", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Post("/api/chat", s.handleChat)
		r.Get("/api/chat/{id}", s.handleChatState)
		r.Delete("/api/chat/{id}", s.handleChatEnd)
		r.Post("/api/returns/eligibility", s.handleEligibility)

		if s.auditStore != nil {
			audit.RegisterRoutes(r, s.auditStore)
		}
		bots.RegisterRoutes(r, s.slack, s.teams)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	return s.cfg.AllowedOrigins
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"knowledge": s.conversations.Assistant().KnowledgeEnabled(),
	})
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured address.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("ecobot server listening", zap.String("addr", s.cfg.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
