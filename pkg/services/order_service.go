package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/store"
)

// OrderService owns the order lifecycle: idempotent checkout, status
// queries, cancellation, refunds and address changes.
type OrderService struct {
	store         *store.Store
	carts         *CartService
	notifications *NotificationService
	now           func() time.Time
}

// NewOrderService creates a new OrderService
func NewOrderService(st *store.Store, carts *CartService, notifications *NotificationService) *OrderService {
	return &OrderService{
		store:         st,
		carts:         carts,
		notifications: notifications,
		now:           time.Now,
	}
}

// CreateOrder converts the user's active cart into a confirmed order.
// Repeated calls with the same Idempotency-Key return the first order.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, address models.Address, paymentMethod, idempotencyKey string) (*models.Order, error) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return nil, NewValidationError("Idempotency-Key", "header is required")
	}
	scopedKey := userID + ":" + key
	if existingID, ok := s.store.IdempotencyGet(scopedKey); ok {
		if existing, ok := s.store.GetOrder(existingID); ok {
			return existing, nil
		}
	}

	cart := s.carts.GetCart(ctx, userID, "")
	if len(cart.Items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidInput)
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:       s.store.NextID("order"),
		UserID:   userID,
		Status:   models.OrderStatusConfirmed,
		Items:    append([]models.CartItem(nil), cart.Items...),
		Subtotal: cart.Subtotal,
		Tax:      cart.Tax,
		Shipping: cart.Shipping,
		Discount: cart.Discount,
		Total:    cart.Total,
		Currency: cart.Currency,

		ShippingAddress: address,
		Payment: models.Payment{
			Method:        paymentMethod,
			TransactionID: uuid.New().String(),
			Status:        "authorized",
		},
		Timeline: []models.TimelineEvent{
			{Status: "order_placed", Timestamp: now},
			{Status: models.OrderStatusConfirmed, Timestamp: now},
		},
		EstimatedDelivery: now.Add(5 * 24 * time.Hour),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.store.PutOrder(ctx, order)
	s.store.IdempotencySet(ctx, scopedKey, order.ID)
	s.carts.MarkConverted(ctx, userID)
	s.notifications.SendOrderConfirmation(ctx, userID, order)
	return order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(userID string) []*models.Order {
	return s.store.OrdersForUser(userID)
}

// GetOrder returns one order, scoped to its owner.
func (s *OrderService) GetOrder(userID, orderID string) (*models.Order, error) {
	order, ok := s.store.GetOrder(orderID)
	if !ok || order.UserID != userID {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return order, nil
}

// CancelOrder cancels an order that has not shipped yet.
func (s *OrderService) CancelOrder(ctx context.Context, userID, orderID, reason string) (*models.Order, error) {
	order, err := s.GetOrder(userID, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case models.OrderStatusShipped, models.OrderStatusDelivered, models.OrderStatusCancelled, models.OrderStatusRefunded:
		return nil, fmt.Errorf("%w: order can no longer be cancelled", ErrConflict)
	}
	now := s.now().UTC()
	if reason == "" {
		reason = "Cancelled by customer"
	}
	order.Status = models.OrderStatusCancelled
	order.UpdatedAt = now
	order.Timeline = append(order.Timeline, models.TimelineEvent{Status: models.OrderStatusCancelled, Note: reason, Timestamp: now})
	s.store.PutOrder(ctx, order)
	return order, nil
}

// RequestRefund marks an order refunded unless it is already closed out.
func (s *OrderService) RequestRefund(ctx context.Context, userID, orderID, reason string) (*models.Order, error) {
	order, err := s.GetOrder(userID, orderID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case models.OrderStatusCancelled, models.OrderStatusRefunded:
		return nil, fmt.Errorf("%w: order cannot be refunded in current state", ErrConflict)
	}
	now := s.now().UTC()
	if reason == "" {
		reason = "Refund requested by customer"
	}
	order.Status = models.OrderStatusRefunded
	order.Payment.Status = "refunded"
	order.UpdatedAt = now
	order.Timeline = append(order.Timeline, models.TimelineEvent{Status: models.OrderStatusRefunded, Note: reason, Timestamp: now})
	s.store.PutOrder(ctx, order)
	return order, nil
}

// UpdateShippingAddress rewrites the destination while the order is
// still confirmed or processing.
func (s *OrderService) UpdateShippingAddress(ctx context.Context, userID, orderID string, address models.Address) (*models.Order, error) {
	order, err := s.GetOrder(userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusConfirmed && order.Status != models.OrderStatusProcessing {
		return nil, fmt.Errorf("%w: shipping address can only be changed before shipment", ErrConflict)
	}
	now := s.now().UTC()
	order.ShippingAddress = address
	order.UpdatedAt = now
	order.Timeline = append(order.Timeline, models.TimelineEvent{Status: "address_updated", Timestamp: now})
	s.store.PutOrder(ctx, order)
	return order, nil
}
