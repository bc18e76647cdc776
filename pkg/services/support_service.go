package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/store"
)

var (
	validTicketStatuses   = map[string]bool{"open": true, "in_progress": true, "resolved": true, "closed": true}
	validTicketPriorities = map[string]bool{"low": true, "normal": true, "high": true, "urgent": true}
)

// TicketRequest carries the inputs for opening a support ticket.
type TicketRequest struct {
	UserID    string
	SessionID string
	Issue     string
	Category  string
	Priority  string
	Channel   string
}

// SupportService owns support tickets. Guests are tracked by session id,
// signed-in users by user id.
type SupportService struct {
	store *store.Store
	now   func() time.Time
}

// NewSupportService creates a new SupportService
func NewSupportService(st *store.Store) *SupportService {
	return &SupportService{store: st, now: time.Now}
}

// CreateTicket opens a new ticket with the customer's issue as the
// first thread message.
func (s *SupportService) CreateTicket(ctx context.Context, req TicketRequest) *models.Ticket {
	priority := strings.ToLower(strings.TrimSpace(req.Priority))
	if !validTicketPriorities[priority] {
		priority = "normal"
	}
	category := strings.ToLower(strings.TrimSpace(req.Category))
	if category == "" {
		category = "general"
	}
	issue := strings.TrimSpace(req.Issue)
	now := s.now().UTC()
	ticket := &models.Ticket{
		ID:        s.store.NextID("ticket"),
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Issue:     issue,
		Category:  category,
		Priority:  priority,
		Status:    models.TicketStatusOpen,
		Channel:   req.Channel,
		Messages: []models.TicketMessage{
			{Actor: "customer", Message: issue, Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.store.PutTicket(ctx, ticket)
	return ticket
}

// GetTicket returns one ticket by id.
func (s *SupportService) GetTicket(ticketID string) (*models.Ticket, error) {
	ticket, ok := s.store.GetTicket(ticketID)
	if !ok {
		return nil, fmt.Errorf("%w: ticket %s", ErrNotFound, ticketID)
	}
	return ticket, nil
}

// ListTickets returns tickets for the user (or guest session), newest
// first, optionally filtered by status.
func (s *SupportService) ListTickets(userID, sessionID, status string, limit int) []*models.Ticket {
	if limit <= 0 {
		limit = 20
	}
	var out []*models.Ticket
	for _, ticket := range s.store.TicketsFor(userID, sessionID) {
		if status != "" && ticket.Status != status {
			continue
		}
		out = append(out, ticket)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// UpdateTicket patches status/priority and optionally appends a thread
// note. Closing statuses record a resolution.
func (s *SupportService) UpdateTicket(ctx context.Context, ticketID, status, priority, note, actor string) (*models.Ticket, error) {
	ticket, err := s.GetTicket(ticketID)
	if err != nil {
		return nil, err
	}
	if status != "" {
		normalized := strings.ToLower(strings.TrimSpace(status))
		if !validTicketStatuses[normalized] {
			return nil, NewValidationError("status", "unknown ticket status")
		}
		ticket.Status = normalized
	}
	if priority != "" {
		normalized := strings.ToLower(strings.TrimSpace(priority))
		if !validTicketPriorities[normalized] {
			return nil, NewValidationError("priority", "unknown ticket priority")
		}
		ticket.Priority = normalized
	}
	now := s.now().UTC()
	if note != "" {
		if actor == "" {
			actor = "support"
		}
		ticket.Messages = append(ticket.Messages, models.TicketMessage{
			Actor:     actor,
			Message:   strings.TrimSpace(note),
			Timestamp: now,
		})
	}
	if ticket.Status == models.TicketStatusResolved || ticket.Status == "closed" {
		resolution := strings.TrimSpace(note)
		if resolution == "" {
			resolution = ticket.Resolution
		}
		if resolution == "" {
			resolution = "Resolved by support"
		}
		ticket.Resolution = resolution
	}
	ticket.UpdatedAt = now
	s.store.PutTicket(ctx, ticket)
	return ticket, nil
}

// EnsureOpenTicket appends the issue to the customer's newest open
// ticket, or opens a new one when none exists. At most one open ticket
// per user or guest session.
func (s *SupportService) EnsureOpenTicket(ctx context.Context, req TicketRequest) *models.Ticket {
	sessionScope := req.SessionID
	if req.UserID != "" {
		sessionScope = ""
	}
	open := s.ListTickets(req.UserID, sessionScope, models.TicketStatusOpen, 10)
	if len(open) > 0 {
		updated, err := s.UpdateTicket(ctx, open[0].ID, "", "", "Customer follow-up: "+strings.TrimSpace(req.Issue), "customer")
		if err == nil {
			return updated
		}
	}
	return s.CreateTicket(ctx, req)
}

// CloseTicket resolves a ticket on the customer's behalf.
func (s *SupportService) CloseTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.UpdateTicket(ctx, ticketID, models.TicketStatusResolved, "", "Customer marked ticket as resolved.", "customer")
}
