package services

import (
	"context"
	"fmt"
	"time"

	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/store"
)

// NotificationService queues outbound notifications. Delivery transport
// is out of scope; records land in the notifications collection.
type NotificationService struct {
	store *store.Store
	now   func() time.Time
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(st *store.Store) *NotificationService {
	return &NotificationService{store: st, now: time.Now}
}

// SendOrderConfirmation notifies the user about a confirmed order.
func (s *NotificationService) SendOrderConfirmation(ctx context.Context, userID string, order *models.Order) *models.Notification {
	n := &models.Notification{
		ID:     s.store.NextID("notif"),
		UserID: userID,
		Type:   "order_confirmation",
		Body:   fmt.Sprintf("Order %s confirmed for $%.2f", order.ID, order.Total),
		Data: map[string]any{
			"orderId": order.ID,
		},
		CreatedAt: s.now().UTC(),
	}
	s.store.AppendNotification(ctx, n)
	return n
}

// SendVoiceFollowup notifies the user after a recovery call reached a
// terminal state.
func (s *NotificationService) SendVoiceFollowup(ctx context.Context, userID, callID, message, disposition string) *models.Notification {
	n := &models.Notification{
		ID:     s.store.NextID("notif"),
		UserID: userID,
		Type:   "voice_recovery_followup",
		Body:   message,
		Data: map[string]any{
			"callId":      callID,
			"disposition": disposition,
		},
		CreatedAt: s.now().UTC(),
	}
	s.store.AppendNotification(ctx, n)
	return n
}

// ListForUser returns the user's notifications in arrival order.
func (s *NotificationService) ListForUser(userID string) []models.Notification {
	return s.store.NotificationsForUser(userID)
}
