package api

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"
)

const maxMessageLength = 4000

// ProcessMessageRequest is the body for POST /v1/interactions/message.
type ProcessMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId,omitempty"`
	Channel   string `json:"channel,omitempty"`
}

// processMessageHandler routes one conversational message through the
// orchestrator and returns the agent response.
func (s *Server) processMessageHandler(c *echo.Context) error {
	var req ProcessMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be valid JSON")
	}
	req.Message = strings.TrimSpace(req.Message)
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if len(req.Message) > maxMessageLength {
		return echo.NewHTTPError(http.StatusBadRequest, "message exceeds maximum length")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sessionId is required")
	}
	channel := req.Channel
	if channel == "" {
		channel = "web"
	}

	response := s.orch.ProcessMessage(c.Request().Context(), req.Message, req.SessionID, req.UserID, channel)
	return c.JSON(http.StatusOK, response)
}
