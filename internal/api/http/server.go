package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appAuth "github.com/ledgerpilot/ledgerpilot/internal/application/auth"
	appNotify "github.com/ledgerpilot/ledgerpilot/internal/application/notify"
	"github.com/ledgerpilot/ledgerpilot/internal/application/orchestrator"
	"github.com/ledgerpilot/ledgerpilot/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	orch              *orchestrator.Orchestrator
	authSvc           *appAuth.Service
	notifySvc         *appNotify.Service
	sseHub            *sse.Hub
	promRegistry      *prometheus.Registry
	sessionCookieName string
}

func NewServer(
	orch *orchestrator.Orchestrator,
	authSvc *appAuth.Service,
	notifySvc *appNotify.Service,
	sseHub *sse.Hub,
	promRegistry *prometheus.Registry,
	sessionCookieName string,
) *Server {
	return &Server{
		orch:              orch,
		authSvc:           authSvc,
		notifySvc:         notifySvc,
		sseHub:            sseHub,
		promRegistry:      promRegistry,
		sessionCookieName: sessionCookieName,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if s.promRegistry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.promRegistry, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.login)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/logout", s.logout)
				r.Get("/me", s.me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Route("/agents", func(r chi.Router) {
				r.Get("/", s.listAgents)
				r.Post("/{agentType}/executions", s.submitExecution)
				r.Post("/{agentType}/enable", s.enableAgent)
				r.Post("/{agentType}/disable", s.disableAgent)
				r.Get("/{agentType}/metrics", s.agentMetrics)
			})

			r.Route("/executions", func(r chi.Router) {
				r.Get("/", s.listExecutions)
				r.Get("/{executionId}", s.getExecution)
				r.Post("/{executionId}/escalate", s.escalateExecution)
				r.Post("/{executionId}/review", s.reviewExecution)
			})

			r.Get("/metrics/agents", s.allAgentMetrics)

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", s.listNotifications)
				r.Get("/sse", s.sseEndpoint)
			})
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
