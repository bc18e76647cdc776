package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciergelabs/concierge/pkg/models"
)

func placeOrder(t *testing.T, f *agentFixture, userID string) *models.Order {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, userID, "sess_1", "prod_1", "var_1", 1)
	require.NoError(t, err)
	order, err := f.orders.CreateOrder(ctx, userID, models.Address{
		Name: "Jordan Avery", Line1: "1 Main St", City: "Springfield",
		State: "IL", PostalCode: "62704", Country: "US",
	}, "card", "idem-1")
	require.NoError(t, err)
	return order
}

func TestOrderAgentGuestCheckoutNeedsSignIn(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewOrderAgent(f.orders, f.carts)

	result := agent.Execute(context.Background(), models.AgentAction{Name: "checkout_summary"}, guestContext("sess_guest"))

	assert.False(t, result.Success)
	assert.Equal(t, models.CodeClarificationRequired, result.Data["code"])
	assert.Contains(t, result.Message, "Sign in to check out")
}

func TestOrderAgentCheckoutSummary(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewOrderAgent(f.orders, f.carts)
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		result := agent.Execute(ctx, models.AgentAction{Name: "checkout_summary"}, userContext("user_1", "sess_1"))
		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "cart is empty")
	})

	t.Run("ready to check out", func(t *testing.T) {
		_, err := f.carts.AddItem(ctx, "user_1", "sess_1", "prod_1", "var_1", 2)
		require.NoError(t, err)
		result := agent.Execute(ctx, models.AgentAction{Name: "checkout_summary"}, userContext("user_1", "sess_1"))
		require.True(t, result.Success, result.Message)
		assert.Contains(t, result.Message, "2 item(s)")
		require.NotEmpty(t, result.SuggestedActions)
		assert.Equal(t, "Place order", result.SuggestedActions[0].Label)
	})
}

func TestOrderAgentStatusOfLatestOrder(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewOrderAgent(f.orders, f.carts)
	order := placeOrder(t, f, "user_1")

	result := agent.Execute(context.Background(), models.AgentAction{
		Name:   "get_order_status",
		Params: map[string]any{},
	}, userContext("user_1", "sess_1"))

	require.True(t, result.Success, result.Message)
	assert.Contains(t, result.Message, "Order "+order.ID+" is "+models.OrderStatusConfirmed)
	assert.Contains(t, result.Message, "Estimated delivery")
}

func TestOrderAgentNoOrdersYet(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewOrderAgent(f.orders, f.carts)

	result := agent.Execute(context.Background(), models.AgentAction{Name: "get_order_status"}, userContext("user_1", "sess_1"))

	assert.False(t, result.Success)
	assert.Equal(t, "You have no orders yet.", result.Message)
}

func TestOrderAgentCancel(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewOrderAgent(f.orders, f.carts)
	order := placeOrder(t, f, "user_1")
	ctx := context.Background()

	result := agent.Execute(ctx, models.AgentAction{
		Name:   "cancel_order",
		Params: map[string]any{"orderId": order.ID},
	}, userContext("user_1", "sess_1"))
	require.True(t, result.Success, result.Message)
	assert.Contains(t, result.Message, "has been cancelled")

	// Cancelling again conflicts because the order is already cancelled.
	again := agent.Execute(ctx, models.AgentAction{
		Name:   "cancel_order",
		Params: map[string]any{"orderId": order.ID},
	}, userContext("user_1", "sess_1"))
	assert.False(t, again.Success)
	assert.Contains(t, again.Message, "can no longer be cancelled")
}

func TestOrderAgentChangeAddressValidation(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewOrderAgent(f.orders, f.carts)
	placeOrder(t, f, "user_1")

	incomplete := agent.Execute(context.Background(), models.AgentAction{
		Name:   "change_order_address",
		Params: map[string]any{"shippingAddress": map[string]any{"line1": "2 Oak Ave"}},
	}, userContext("user_1", "sess_1"))
	assert.False(t, incomplete.Success)
	assert.Contains(t, incomplete.Message, "full address")

	complete := agent.Execute(context.Background(), models.AgentAction{
		Name: "change_order_address",
		Params: map[string]any{"shippingAddress": map[string]any{
			"line1": "2 Oak Ave", "city": "Springfield", "state": "IL",
			"postalCode": "62704", "country": "US",
		}},
	}, userContext("user_1", "sess_1"))
	require.True(t, complete.Success, complete.Message)
	updated := complete.Data["order"].(*models.Order)
	assert.Equal(t, "2 Oak Ave", updated.ShippingAddress.Line1)
	assert.Equal(t, "Customer", updated.ShippingAddress.Name)
}
