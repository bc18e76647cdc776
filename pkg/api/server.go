// Package api exposes the HTTP and WebSocket surface: the conversational
// message endpoint, checkout, the voice admin panel, the provider
// webhook, and operational endpoints (health, metrics, audit chain).
package api

import (
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/conciergelabs/concierge/pkg/audit"
	"github.com/conciergelabs/concierge/pkg/config"
	"github.com/conciergelabs/concierge/pkg/metrics"
	"github.com/conciergelabs/concierge/pkg/orchestrator"
	"github.com/conciergelabs/concierge/pkg/resilience"
	"github.com/conciergelabs/concierge/pkg/services"
	"github.com/conciergelabs/concierge/pkg/version"
	"github.com/conciergelabs/concierge/pkg/voice"
)

// Server wires the HTTP surface to the application services.
type Server struct {
	cfg      *config.Settings
	orch     *orchestrator.Orchestrator
	orders   *services.OrderService
	voice    *voice.Service
	auditLog *audit.Log
	metrics  *metrics.Metrics
	limiter  *resilience.RateLimiter
	logger   *slog.Logger
}

func NewServer(cfg *config.Settings, orch *orchestrator.Orchestrator, orders *services.OrderService, voiceSvc *voice.Service, auditLog *audit.Log, m *metrics.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		orch:     orch,
		orders:   orders,
		voice:    voiceSvc,
		auditLog: auditLog,
		metrics:  m,
		limiter:  resilience.NewRateLimiter(time.Minute),
		logger:   slog.With("component", "api"),
	}
}

// Router builds the echo instance with all routes and middleware.
func (s *Server) Router() *echo.Echo {
	e := echo.New()
	e.Use(securityHeaders(), s.observeRequests(), s.rateLimit())

	e.GET("/health", s.healthHandler)
	e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	v1 := e.Group("/v1")
	v1.POST("/interactions/message", s.processMessageHandler)
	v1.GET("/ws", s.wsHandler)
	v1.POST("/orders", s.createOrderHandler)
	v1.GET("/orders", s.listOrdersHandler)
	v1.POST("/voice/superu/callback", s.superuCallbackHandler)

	admin := v1.Group("/admin")
	av := admin.Group("/voice")
	av.GET("/settings", s.voiceSettingsHandler)
	av.PUT("/settings", s.updateVoiceSettingsHandler)
	av.GET("/calls", s.listVoiceCallsHandler)
	av.GET("/jobs", s.listVoiceJobsHandler)
	av.GET("/suppressions", s.listVoiceSuppressionsHandler)
	av.POST("/suppressions", s.suppressUserHandler)
	av.DELETE("/suppressions/:userId", s.unsuppressUserHandler)
	av.GET("/alerts", s.listVoiceAlertsHandler)
	av.GET("/stats", s.voiceStatsHandler)
	av.POST("/process-due-work", s.processDueWorkHandler)
	admin.GET("/activity", s.listActivityHandler)
	admin.GET("/activity/verify", s.verifyActivityHandler)

	return e
}

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"service": s.cfg.AppName,
		"version": version.Full(),
	})
}
