package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciergelabs/concierge/pkg/models"
)

func TestCartAgentGuestAddAmbiguousQuery(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewCartAgent(f.carts, f.products)

	result := agent.Execute(context.Background(), models.AgentAction{
		Name:        "add_item",
		TargetAgent: models.AgentCart,
		Params:      map[string]any{"query": "shoes"},
	}, guestContext("sess_guest"))

	assert.False(t, result.Success)
	assert.Equal(t, models.CodeClarificationRequired, result.Data["code"])
	options, ok := result.Data["options"].([]map[string]any)
	require.True(t, ok)
	assert.GreaterOrEqual(t, len(options), 2)
	require.NotEmpty(t, result.SuggestedActions)
	assert.Contains(t, result.SuggestedActions[0].Label, "Add ")
	assert.Contains(t, result.SuggestedActions[0].Action, "add_to_cart:")
}

func TestCartAgentAddByExplicitIDs(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewCartAgent(f.carts, f.products)

	result := agent.Execute(context.Background(), models.AgentAction{
		Name:   "add_item",
		Params: map[string]any{"productId": "prod_1", "variantId": "var_1", "quantity": 2},
	}, userContext("user_1", "sess_1"))

	require.True(t, result.Success, result.Message)
	assert.Contains(t, result.Message, "Trail Runner X x2")
	cart, ok := result.Data["cart"].(*models.Cart)
	require.True(t, ok)
	assert.Equal(t, 2, cart.ItemCount)
}

func TestCartAgentSpecificQueryResolvesDirectly(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewCartAgent(f.carts, f.products)

	result := agent.Execute(context.Background(), models.AgentAction{
		Name:   "add_item",
		Params: map[string]any{"query": "trail runner", "quantity": 1},
	}, userContext("user_1", "sess_1"))

	require.True(t, result.Success, result.Message)
	assert.Contains(t, result.Message, "Trail Runner X")
}

func TestCartAgentOutOfStockVariant(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewCartAgent(f.carts, f.products)

	result := agent.Execute(context.Background(), models.AgentAction{
		Name:   "add_item",
		Params: map[string]any{"productId": "prod_1", "variantId": "var_2"},
	}, userContext("user_1", "sess_1"))

	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "out of stock")
}

func TestCartAgentInfersFromRecentResults(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewCartAgent(f.carts, f.products)

	product, err := f.products.Get("prod_2")
	require.NoError(t, err)
	actx := userContext("user_1", "sess_1")
	actx.Recent = []models.InteractionRecord{{
		Response: &models.AgentResponse{Data: map[string]any{"products": []*models.Product{product}}},
	}}

	result := agent.Execute(context.Background(), models.AgentAction{Name: "add_item", Params: map[string]any{}}, actx)

	require.True(t, result.Success, result.Message)
	assert.Contains(t, result.Message, "Road Glide")
}

func TestCartAgentAdjustToZeroRemovesItem(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewCartAgent(f.carts, f.products)
	ctx := context.Background()
	actx := userContext("user_1", "sess_1")

	_, err := f.carts.AddItem(ctx, "user_1", "sess_1", "prod_1", "var_1", 1)
	require.NoError(t, err)

	result := agent.Execute(ctx, models.AgentAction{
		Name:   "adjust_item_quantity",
		Params: map[string]any{"query": "trail runner", "delta": -1},
	}, actx)

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "Removed Trail Runner X from cart.", result.Message)
	cart := result.Data["cart"].(*models.Cart)
	assert.Zero(t, cart.ItemCount)
}

func TestCartAgentPartialRemove(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewCartAgent(f.carts, f.products)
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "user_1", "sess_1", "prod_1", "var_1", 3)
	require.NoError(t, err)

	result := agent.Execute(ctx, models.AgentAction{
		Name:   "remove_item",
		Params: map[string]any{"query": "trail runner", "quantity": 2},
	}, userContext("user_1", "sess_1"))

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "Removed 2 of Trail Runner X. Remaining quantity is 1.", result.Message)
}

func TestCartAgentApplyDiscount(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewCartAgent(f.carts, f.products)
	ctx := context.Background()

	_, err := f.carts.AddItem(ctx, "user_1", "sess_1", "prod_1", "var_1", 1)
	require.NoError(t, err)

	t.Run("valid code", func(t *testing.T) {
		result := agent.Execute(ctx, models.AgentAction{
			Name:   "apply_discount",
			Params: map[string]any{"code": "save20"},
		}, userContext("user_1", "sess_1"))
		require.True(t, result.Success, result.Message)
		assert.Contains(t, result.Message, "Applied SAVE20")
	})

	t.Run("invalid code", func(t *testing.T) {
		result := agent.Execute(ctx, models.AgentAction{
			Name:   "apply_discount",
			Params: map[string]any{"code": "NOPE99"},
		}, userContext("user_1", "sess_1"))
		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "NOPE99")
	})
}

func TestCartAgentMultiAddReportsUnresolved(t *testing.T) {
	f := newAgentFixture(t)
	agent := NewCartAgent(f.carts, f.products)

	result := agent.Execute(context.Background(), models.AgentAction{
		Name: "add_multiple_items",
		Params: map[string]any{"items": []map[string]any{
			{"query": "trail runner", "quantity": 1},
			{"query": "submarine", "quantity": 1},
		}},
	}, userContext("user_1", "sess_1"))

	require.True(t, result.Success, result.Message)
	assert.Contains(t, result.Message, "Added Trail Runner X x1")
	assert.Contains(t, result.Message, "I couldn't match: submarine")
}

func TestFindCartItemFuzzyMatch(t *testing.T) {
	cart := &models.Cart{Items: []models.CartItem{
		{ItemID: "item_1", ProductID: "prod_1", Name: "Trail Runner X", Quantity: 1},
		{ItemID: "item_2", ProductID: "prod_2", Name: "Road Glide", Quantity: 2},
	}, ItemCount: 3}

	assert.Equal(t, "item_2", findCartItem(cart, map[string]any{"query": "road glide"}).ItemID)
	assert.Equal(t, "item_1", findCartItem(cart, map[string]any{"itemId": "item_1"}).ItemID)
	// No signal falls back to the first item.
	assert.Equal(t, "item_1", findCartItem(cart, map[string]any{}).ItemID)
}
