package api

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v5"

	"github.com/conciergelabs/concierge/pkg/models"
)

// CreateOrderRequest is the body for POST /v1/orders.
type CreateOrderRequest struct {
	UserID        string         `json:"userId"`
	Address       models.Address `json:"address"`
	PaymentMethod string         `json:"paymentMethod"`
}

// createOrderHandler places an order from the user's active cart. The
// Idempotency-Key header is mandatory; replaying the same key returns
// the original order.
func (s *Server) createOrderHandler(c *echo.Context) error {
	keys := c.Request().Header.Values("Idempotency-Key")
	if len(keys) > 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "duplicate Idempotency-Key header")
	}
	idempotencyKey := ""
	if len(keys) == 1 {
		idempotencyKey = strings.TrimSpace(keys[0])
	}
	if idempotencyKey == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Idempotency-Key header is required")
	}

	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be valid JSON")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}

	order, err := s.orders.CreateOrder(c.Request().Context(), req.UserID, req.Address, req.PaymentMethod, idempotencyKey)
	if err != nil {
		return mapServiceError(err)
	}
	s.metrics.CheckoutsTotal.Inc()
	return c.JSON(http.StatusCreated, order)
}

// listOrdersHandler returns the user's orders, newest first.
func (s *Server) listOrdersHandler(c *echo.Context) error {
	userID := strings.TrimSpace(c.QueryParam("userId"))
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}
	return c.JSON(http.StatusOK, s.orders.ListOrders(userID))
}
