package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/store"
)

func TestEnsureOpenTicketAppendsFollowUp(t *testing.T) {
	ctx := context.Background()
	svc := NewSupportService(store.New(nil, nil))

	first := svc.EnsureOpenTicket(ctx, TicketRequest{
		UserID:   "user_1",
		Issue:    "My order never arrived",
		Category: "order_issue",
		Priority: "high",
		Channel:  "web",
	})
	assert.Equal(t, models.TicketStatusOpen, first.Status)
	assert.Equal(t, "high", first.Priority)

	second := svc.EnsureOpenTicket(ctx, TicketRequest{
		UserID: "user_1",
		Issue:  "Still nothing, please help",
	})
	assert.Equal(t, first.ID, second.ID, "open ticket is reused")
	require.Len(t, second.Messages, 2)
	assert.Equal(t, "Customer follow-up: Still nothing, please help", second.Messages[1].Message)
	assert.Equal(t, "customer", second.Messages[1].Actor)
}

func TestEnsureOpenTicketGuestScope(t *testing.T) {
	ctx := context.Background()
	svc := NewSupportService(store.New(nil, nil))

	guest := svc.EnsureOpenTicket(ctx, TicketRequest{SessionID: "sess_1", Issue: "sizing help"})
	other := svc.EnsureOpenTicket(ctx, TicketRequest{SessionID: "sess_2", Issue: "billing question"})
	assert.NotEqual(t, guest.ID, other.ID, "guest tickets are scoped per session")
}

func TestCloseTicket(t *testing.T) {
	ctx := context.Background()
	svc := NewSupportService(store.New(nil, nil))

	ticket := svc.CreateTicket(ctx, TicketRequest{UserID: "user_1", Issue: "refund status?"})
	closed, err := svc.CloseTicket(ctx, ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, models.TicketStatusResolved, closed.Status)
	assert.Equal(t, "Customer marked ticket as resolved.", closed.Resolution)
	last := closed.Messages[len(closed.Messages)-1]
	assert.Equal(t, "customer", last.Actor)

	_, err = svc.CloseTicket(ctx, "ticket_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTicketValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewSupportService(store.New(nil, nil))
	ticket := svc.CreateTicket(ctx, TicketRequest{UserID: "user_1", Issue: "hello"})

	_, err := svc.UpdateTicket(ctx, ticket.ID, "bogus", "", "", "")
	assert.True(t, IsValidationError(err))

	_, err = svc.UpdateTicket(ctx, ticket.ID, "", "extreme", "", "")
	assert.True(t, IsValidationError(err))
}

func TestCreateTicketNormalizesInputs(t *testing.T) {
	ctx := context.Background()
	svc := NewSupportService(store.New(nil, nil))

	ticket := svc.CreateTicket(ctx, TicketRequest{UserID: "user_1", Issue: "  help  ", Priority: "EXTREME", Category: ""})
	assert.Equal(t, "normal", ticket.Priority)
	assert.Equal(t, "general", ticket.Category)
	assert.Equal(t, "help", ticket.Issue)
}
