package store

import (
	"context"
	"sort"

	"github.com/conciergelabs/concierge/pkg/models"
)

// --- memories ---

// GetMemory returns a copy of the user's memory snapshot, if present.
func (s *Store) GetMemory(userID string) (*models.MemorySnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[userID]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// PutMemory inserts or replaces a memory snapshot.
func (s *Store) PutMemory(ctx context.Context, m *models.MemorySnapshot) {
	cp := m.Clone()
	s.mu.Lock()
	s.memories[m.UserID] = cp
	s.mu.Unlock()
	s.writeThrough(ctx, CollMemories, "userId", m.UserID, cp)
}

// DeleteMemory removes the user's memory snapshot.
func (s *Store) DeleteMemory(ctx context.Context, userID string) {
	s.mu.Lock()
	delete(s.memories, userID)
	s.mu.Unlock()
	s.deleteThrough(ctx, CollMemories, "userId", userID)
}

// --- interactions ---

// AppendInteraction persists one conversation turn in arrival order.
func (s *Store) AppendInteraction(ctx context.Context, rec *models.InteractionRecord) {
	cp := *rec
	s.mu.Lock()
	s.interactions = append(s.interactions, &cp)
	s.mu.Unlock()
	s.writeThrough(ctx, CollInteractions, "messageId", rec.ID, &cp)
}

// RecentInteractions returns up to limit records for the session in
// arrival order (most recent last).
func (s *Store) RecentInteractions(sessionID string, limit int) []models.InteractionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.InteractionRecord
	for _, rec := range s.interactions {
		if rec.SessionID == sessionID {
			out = append(out, *rec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// --- support tickets ---

// PutTicket inserts or replaces a ticket.
func (s *Store) PutTicket(ctx context.Context, t *models.Ticket) {
	cp := t.Clone()
	s.mu.Lock()
	s.tickets[t.ID] = cp
	s.mu.Unlock()
	s.writeThrough(ctx, CollSupportTickets, "ticketId", t.ID, cp)
}

// GetTicket returns a copy of the ticket, if present.
func (s *Store) GetTicket(id string) (*models.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// TicketsFor returns tickets owned by the user (or, for guests, the
// session), newest first.
func (s *Store) TicketsFor(userID, sessionID string) []*models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Ticket
	for _, t := range s.tickets {
		if userID != "" && t.UserID == userID {
			out = append(out, t.Clone())
		} else if userID == "" && sessionID != "" && t.SessionID == sessionID {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// --- products ---

// PutProduct inserts or replaces a catalog product, keeping insertion
// order stable for unfiltered listings.
func (s *Store) PutProduct(ctx context.Context, p *models.Product) {
	cp := p.Clone()
	s.mu.Lock()
	if _, exists := s.products[p.ProductID]; !exists {
		s.productOrder = append(s.productOrder, p.ProductID)
	}
	s.products[p.ProductID] = cp
	s.mu.Unlock()
	s.writeThrough(ctx, CollProducts, "productId", p.ProductID, cp)
}

// GetProduct returns a copy of the product, if present.
func (s *Store) GetProduct(id string) (*models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// ListProducts returns all products in insertion order.
func (s *Store) ListProducts() []*models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Product, 0, len(s.productOrder))
	for _, id := range s.productOrder {
		if p, ok := s.products[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

// --- notifications ---

// AppendNotification stores one outbound notification.
func (s *Store) AppendNotification(ctx context.Context, n *models.Notification) {
	cp := *n
	s.mu.Lock()
	s.notifications = append(s.notifications, &cp)
	s.mu.Unlock()
	s.writeThrough(ctx, CollNotifications, "notificationId", n.ID, &cp)
}

// NotificationsForUser returns the user's notifications in arrival order.
func (s *Store) NotificationsForUser(userID string) []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out
}
