package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/conciergelabs/concierge/pkg/voice"
)

func limitParam(c *echo.Context) int {
	v := c.QueryParam("limit")
	if v == "" {
		return 50
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 50
	}
	return n
}

func (s *Server) voiceSettingsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.voice.Settings(c.Request().Context()))
}

func (s *Server) updateVoiceSettingsHandler(c *echo.Context) error {
	var updates map[string]any
	if err := c.Bind(&updates); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object")
	}
	if len(updates) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no settings provided")
	}
	ctx := c.Request().Context()
	before := s.voice.Settings(ctx)
	settings, err := s.voice.UpdateSettings(ctx, updates)
	if err != nil {
		return mapServiceError(err)
	}
	s.auditLog.Record(ctx, extractAuthor(c), "update_settings", "voice_settings", "", map[string]any{
		"before": before,
		"after":  settings,
	})
	return c.JSON(http.StatusOK, settings)
}

func (s *Server) listVoiceCallsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.voice.ListCalls(limitParam(c), c.QueryParam("status")))
}

func (s *Server) listVoiceJobsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.voice.ListJobs(limitParam(c), c.QueryParam("status")))
}

func (s *Server) listVoiceSuppressionsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.voice.ListSuppressions())
}

// SuppressUserRequest is the body for POST /v1/admin/voice/suppressions.
type SuppressUserRequest struct {
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) suppressUserHandler(c *echo.Context) error {
	var req SuppressUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be valid JSON")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}
	ctx := c.Request().Context()
	sup := s.voice.SuppressUser(ctx, req.UserID, req.Reason)
	s.auditLog.Record(ctx, extractAuthor(c), "suppress_user", "voice_suppression", req.UserID, nil)
	return c.JSON(http.StatusCreated, sup)
}

func (s *Server) unsuppressUserHandler(c *echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}
	ctx := c.Request().Context()
	if !s.voice.UnsuppressUser(ctx, userID) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	s.auditLog.Record(ctx, extractAuthor(c), "unsuppress_user", "voice_suppression", userID, nil)
	return c.JSON(http.StatusOK, map[string]any{"removed": true})
}

func (s *Server) listVoiceAlertsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.voice.ListAlerts(limitParam(c), c.QueryParam("severity")))
}

func (s *Server) voiceStatsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.voice.Stats(c.Request().Context()))
}

// processDueWorkHandler triggers one manual scheduler pass.
func (s *Server) processDueWorkHandler(c *echo.Context) error {
	ctx := c.Request().Context()
	report := s.voice.ProcessDueWork(ctx)
	s.auditLog.Record(ctx, extractAuthor(c), "process_due_work", "voice_scheduler", "", map[string]any{
		"after": report,
	})
	return c.JSON(http.StatusOK, report)
}

// superuCallbackHandler ingests provider webhooks. The raw body is read
// before JSON parsing because the HMAC covers the exact bytes sent.
func (s *Server) superuCallbackHandler(c *echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unable to read request body")
	}
	signature := c.Request().Header.Get("X-SuperU-Signature")
	timestamp := c.Request().Header.Get("X-SuperU-Timestamp")
	if !voice.VerifyWebhookSignature(s.cfg, signature, timestamp, body, time.Now()) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook signature")
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "payload must be a JSON object")
	}

	result := s.voice.IngestProviderCallback(c.Request().Context(), payload)
	return c.JSON(http.StatusOK, map[string]any{
		"received":       true,
		"accepted":       result.Accepted,
		"matched":        result.Matched,
		"idempotent":     result.Idempotent,
		"providerCallId": result.ProviderCallID,
		"reason":         result.Reason,
	})
}
