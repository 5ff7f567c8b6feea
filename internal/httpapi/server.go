// Package httpapi exposes the chat gateway over HTTP.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/derailed-dash/rickbot/internal/agent"
	"github.com/derailed-dash/rickbot/internal/artifacts"
	"github.com/derailed-dash/rickbot/internal/auth"
	"github.com/derailed-dash/rickbot/internal/personas"
	"github.com/derailed-dash/rickbot/internal/ratelimit"
	"github.com/derailed-dash/rickbot/internal/rbac"
	"github.com/derailed-dash/rickbot/internal/roles"
	"github.com/derailed-dash/rickbot/internal/sessions"
)

// Options carries the collaborators the server wires together.
type Options struct {
	Logger    *slog.Logger
	Verifier  auth.Verifier
	Roles     roles.Store
	Guard     *rbac.Guard
	Sessions  sessions.Store
	Personas  *personas.Registry
	Runner    agent.Runner
	Artifacts artifacts.Store

	// AppID scopes sessions for this deployment.
	AppID string

	GlobalLimit ratelimit.Config
	ChatLimit   ratelimit.Config

	// HeartbeatInterval paces SSE keepalive comments. Defaults to 15s.
	HeartbeatInterval time.Duration

	// PromRegistry collects the server's metrics. A fresh registry is
	// created when nil.
	PromRegistry *prometheus.Registry
}

// Server is the HTTP gateway: router, middleware chain, and handlers.
type Server struct {
	logger    *slog.Logger
	verifier  auth.Verifier
	roles     roles.Store
	guard     *rbac.Guard
	sessions  sessions.Store
	personas  *personas.Registry
	runner    agent.Runner
	artifacts artifacts.Store
	appID     string

	globalLimiter *ratelimit.Limiter
	chatLimiter   *ratelimit.Limiter

	heartbeatInterval time.Duration

	metrics      *Metrics
	promRegistry *prometheus.Registry
	router       chi.Router
}

// New builds the server and its route tree.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.PromRegistry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	heartbeat := opts.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	s := &Server{
		logger:        logger.With("component", "httpapi"),
		verifier:      opts.Verifier,
		roles:         opts.Roles,
		guard:         opts.Guard,
		sessions:      opts.Sessions,
		personas:      opts.Personas,
		runner:        opts.Runner,
		artifacts:     opts.Artifacts,
		appID:         opts.AppID,
		globalLimiter: ratelimit.NewLimiter(opts.GlobalLimit),
		chatLimiter:   ratelimit.NewLimiter(opts.ChatLimit),

		heartbeatInterval: heartbeat,

		metrics:       NewMetrics(registry),
		promRegistry:  registry,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(auth.Middleware(s.verifier))
	r.Use(s.rateLimitMiddleware(s.globalLimiter, "global"))

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}))
	r.Get("/personas", s.handleListPersonas)
	r.Get("/artifacts/{filename}", s.handleGetArtifact)

	// Chat routes carry the persona guard and the stricter window. The
	// guard runs first so a denied upgrade never burns chat budget.
	r.Group(func(r chi.Router) {
		r.Use(s.guard.Middleware)
		r.Use(s.rateLimitMiddleware(s.chatLimiter, "chat"))
		r.Post("/chat", s.handleChat)
		r.Post("/chat_stream", s.handleChatStream)
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
