package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/services"
)

// SupportAgent opens and tracks tickets, and answers the small FAQ set
// the assistant can handle without a human.
type SupportAgent struct {
	support *services.SupportService
}

func NewSupportAgent(support *services.SupportService) *SupportAgent {
	return &SupportAgent{support: support}
}

func (a *SupportAgent) Name() string { return models.AgentSupport }

func (a *SupportAgent) Execute(ctx context.Context, action models.AgentAction, actx *models.AgentContext) models.AgentResult {
	query := paramString(action.Params, "query")
	lower := strings.ToLower(query)

	switch action.Name {
	case "create_ticket":
		return a.createTicket(ctx, actx, query, lower)
	case "ticket_status":
		return a.ticketStatus(actx)
	case "close_ticket":
		return a.closeTicket(ctx, actx, action.Params)
	}

	if strings.Contains(lower, "return") {
		return models.AgentResult{
			Success: true,
			Message: "Most items can be returned within 30 days if unused and in original packaging.",
			Data:    map[string]any{"topic": "returns"},
			SuggestedActions: []models.SuggestedAction{
				{Label: "Show shoes", Action: "search:running shoes"},
			},
		}
	}
	if strings.Contains(lower, "size") {
		return models.AgentResult{
			Success: true,
			Message: "If you're between sizes, we usually recommend sizing up for running shoes.",
			Data:    map[string]any{"topic": "sizing"},
			SuggestedActions: []models.SuggestedAction{
				{Label: "Find size 10 shoes", Action: "search:size_10_shoes"},
			},
		}
	}
	if strings.Contains(lower, "human") || strings.Contains(lower, "agent") || strings.Contains(lower, "ticket") {
		return a.createTicket(ctx, actx, query, lower)
	}
	return models.AgentResult{
		Success: true,
		Message: "I can help with product search, cart updates, checkout, order status, and returns questions.",
		Data:    map[string]any{"capabilities": []string{"search", "cart", "checkout", "order_status", "returns"}},
		SuggestedActions: []models.SuggestedAction{
			{Label: "Search products", Action: "search:running shoes"},
			{Label: "Show cart", Action: "view_cart"},
		},
	}
}

func (a *SupportAgent) createTicket(ctx context.Context, actx *models.AgentContext, query, lower string) models.AgentResult {
	issue := query
	if issue == "" {
		issue = "User requested human escalation"
	}
	priority := "normal"
	if containsAny(lower, "urgent", "asap", "immediately") {
		priority = "high"
	}
	ticket := a.support.EnsureOpenTicket(ctx, services.TicketRequest{
		UserID:    actx.UserID,
		SessionID: actx.SessionID,
		Issue:     issue,
		Category:  inferTicketCategory(lower),
		Priority:  priority,
		Channel:   actx.Channel,
	})
	return models.AgentResult{
		Success: true,
		Message: fmt.Sprintf("I opened support ticket %s with priority %s. A human agent will follow up soon.",
			ticket.ID, ticket.Priority),
		Data: map[string]any{"escalation": true, "ticket": ticket},
		SuggestedActions: []models.SuggestedAction{
			{Label: "Check ticket status", Action: "ticket status"},
			{Label: "Continue shopping", Action: "search:running shoes"},
		},
	}
}

func (a *SupportAgent) ticketStatus(actx *models.AgentContext) models.AgentResult {
	tickets := a.support.ListTickets(actx.UserID, guestSessionScope(actx), "", 10)
	if len(tickets) == 0 {
		return models.AgentResult{
			Success: true,
			Message: "You have no support tickets yet.",
			Data:    map[string]any{"tickets": []*models.Ticket{}},
			SuggestedActions: []models.SuggestedAction{
				{Label: "Open support ticket", Action: "talk to support"},
			},
		}
	}
	latest := tickets[0]
	shown := tickets
	if len(shown) > 3 {
		shown = shown[:3]
	}
	return models.AgentResult{
		Success: true,
		Message: fmt.Sprintf("Latest ticket %s is %s with priority %s.", latest.ID, latest.Status, latest.Priority),
		Data:    map[string]any{"tickets": shown, "ticket": latest},
		SuggestedActions: []models.SuggestedAction{
			{Label: "Close ticket", Action: fmt.Sprintf("close ticket %s", latest.ID)},
		},
	}
}

func (a *SupportAgent) closeTicket(ctx context.Context, actx *models.AgentContext, params map[string]any) models.AgentResult {
	ticketID := paramString(params, "ticketId")
	if ticketID == "" {
		if tickets := a.support.ListTickets(actx.UserID, guestSessionScope(actx), models.TicketStatusOpen, 1); len(tickets) > 0 {
			ticketID = tickets[0].ID
		}
	}
	if ticketID == "" {
		return failure("I couldn't find an open ticket to close.")
	}
	ticket, err := a.support.CloseTicket(ctx, ticketID)
	if err != nil {
		return failure(fmt.Sprintf("I couldn't find ticket %s.", ticketID))
	}
	return models.AgentResult{
		Success: true,
		Message: fmt.Sprintf("Ticket %s is now marked as resolved.", ticket.ID),
		Data:    map[string]any{"ticket": ticket},
		SuggestedActions: []models.SuggestedAction{
			{Label: "Continue shopping", Action: "search:running shoes"},
		},
	}
}

// guestSessionScope scopes ticket lookups by session only for guests;
// signed-in shoppers see tickets across all their sessions.
func guestSessionScope(actx *models.AgentContext) string {
	if actx.UserID != "" {
		return ""
	}
	return actx.SessionID
}

func inferTicketCategory(lower string) string {
	switch {
	case strings.Contains(lower, "order") || strings.Contains(lower, "delivery"):
		return "order_issue"
	case strings.Contains(lower, "payment") || strings.Contains(lower, "refund"):
		return "billing_issue"
	case strings.Contains(lower, "size") || strings.Contains(lower, "fit"):
		return "sizing"
	}
	return "general"
}
