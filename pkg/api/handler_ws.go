package api

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	echo "github.com/labstack/echo/v5"
)

const wsMessageTimeout = 30 * time.Second

// wsError is pushed to the client when a frame cannot be processed.
type wsError struct {
	Error string `json:"error"`
}

// wsHandler upgrades the connection and serves a request/response
// message loop: each inbound JSON frame is one conversational message,
// each outbound frame the corresponding agent response.
func (s *Server) wsHandler(c *echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusInternalError, "connection closed")

	ctx := c.Request().Context()
	for {
		var req ProcessMessageRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			// Normal close or dropped peer ends the loop.
			conn.Close(websocket.StatusNormalClosure, "")
			return nil
		}
		if req.Message == "" || req.SessionID == "" {
			if err := wsjson.Write(ctx, conn, wsError{Error: "message and sessionId are required"}); err != nil {
				return nil
			}
			continue
		}
		channel := req.Channel
		if channel == "" {
			channel = "websocket"
		}

		msgCtx, cancel := context.WithTimeout(ctx, wsMessageTimeout)
		response := s.orch.ProcessMessage(msgCtx, req.Message, req.SessionID, req.UserID, channel)
		cancel()

		if err := wsjson.Write(ctx, conn, response); err != nil {
			return nil
		}
	}
}
