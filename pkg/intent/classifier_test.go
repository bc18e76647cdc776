package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciergelabs/concierge/pkg/models"
)

func classify(t *testing.T, message string, recent ...models.InteractionRecord) models.IntentResult {
	t.Helper()
	return NewClassifier(nil).Classify(context.Background(), message, recent)
}

func TestViewCartPhrases(t *testing.T) {
	for _, message := range []string{"cart", "show me cart", "view my cart", "what's in my cart?"} {
		t.Run(message, func(t *testing.T) {
			result := classify(t, message)
			assert.Equal(t, models.IntentViewCart, result.Name)
		})
	}
}

func TestPriceRefinementContinuesSearch(t *testing.T) {
	recent := models.InteractionRecord{Intent: models.IntentProductSearch, Agent: models.AgentProduct}
	result := classify(t, "under 150", recent)
	assert.Equal(t, models.IntentProductSearch, result.Name)
	assert.Equal(t, 150.0, result.Entities["maxPrice"])
}

func TestSetQuantityIsUpdateNotAdjust(t *testing.T) {
	result := classify(t, "set quantity 3 for item_1")
	assert.Equal(t, models.IntentUpdateCart, result.Name)
	assert.Equal(t, 3, result.Entities["quantity"])
	assert.Equal(t, "item_1", result.Entities["itemId"])

	adjusted := classify(t, "add one more hoodie to my cart")
	assert.Equal(t, models.IntentAdjustCartQuantity, adjusted.Name)
}

func TestDiscountCodeExtraction(t *testing.T) {
	result := classify(t, "apply discount code SAVE20")
	require.Equal(t, models.IntentApplyDiscount, result.Name)
	assert.Equal(t, "SAVE20", result.Entities["code"])

	noCode := classify(t, "apply a discount")
	require.Equal(t, models.IntentApplyDiscount, noCode.Name)
	assert.NotContains(t, noCode.Entities, "code", "filler words are not discount codes")
}

func TestSearchAndAddCombo(t *testing.T) {
	result := classify(t, "find running shoes under 150 and add to cart")
	require.Equal(t, models.IntentSearchAndAdd, result.Name)
	assert.Equal(t, 150.0, result.Entities["maxPrice"])
	assert.Contains(t, result.Entities["query"], "running shoes")
}

func TestMultiStatusBeatsSingleIntents(t *testing.T) {
	result := classify(t, "show my cart and order status for order-101")
	assert.Equal(t, models.IntentMultiStatus, result.Name)
	assert.Equal(t, "order_101", result.Entities["orderId"], "order ids normalize to underscores")
}

func TestMultiAddItems(t *testing.T) {
	result := classify(t, "add 2 running shoes and 1 water bottle to my cart")
	require.Equal(t, models.IntentAddMultipleToCart, result.Name)
	items, ok := result.Entities["items"].([]MultiAddItem)
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, "running shoes", items[0].Query)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "water bottle", items[1].Query)
	assert.Equal(t, 1, items[1].Quantity)
}

func TestPreferenceIntents(t *testing.T) {
	saved := classify(t, "remember I like navy and my size is M")
	require.Equal(t, models.IntentSavePreference, saved.Name)
	updates, ok := saved.Entities["updates"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "M", updates["size"])
	assert.Equal(t, []string{"navy"}, updates["colorPreferences"])

	forgot := classify(t, "forget my size")
	require.Equal(t, models.IntentForgetPreference, forgot.Name)
	assert.Equal(t, "size", forgot.Entities["key"])
}

func TestSupportTicketIntents(t *testing.T) {
	status := classify(t, "any update on ticket ticket-301?")
	assert.Equal(t, models.IntentSupportStatus, status.Name)
	assert.Equal(t, "ticket_301", status.Entities["ticketId"])

	closed := classify(t, "close ticket ticket_301")
	assert.Equal(t, models.IntentSupportClose, closed.Name)

	escalated := classify(t, "I need to talk to a person about this")
	assert.Equal(t, models.IntentSupportEscalation, escalated.Name)
}

func TestGeneralQuestionFallback(t *testing.T) {
	result := classify(t, "what is your return policy?")
	assert.Equal(t, models.IntentGeneralQuestion, result.Name)
	assert.Equal(t, "what is your return policy?", result.Entities["query"])
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
}

type stubPredictor struct {
	result *models.IntentResult
}

func (s *stubPredictor) ClassifyIntent(context.Context, string, []models.InteractionRecord) (*models.IntentResult, bool) {
	if s.result == nil {
		return nil, false
	}
	return s.result, true
}

func TestPredictorOverrideThreshold(t *testing.T) {
	ctx := context.Background()

	t.Run("confident prediction beats a weak rule verdict", func(t *testing.T) {
		c := NewClassifier(&stubPredictor{result: &models.IntentResult{
			Name: models.IntentProductSearch, Confidence: 0.75, Entities: map[string]any{"query": "gift ideas"},
		}})
		result := c.Classify(ctx, "something nice for a friend", nil)
		assert.Equal(t, models.IntentProductSearch, result.Name)
	})

	t.Run("prediction below the rule confidence loses", func(t *testing.T) {
		c := NewClassifier(&stubPredictor{result: &models.IntentResult{
			Name: models.IntentGeneralQuestion, Confidence: 0.9,
		}})
		result := c.Classify(ctx, "checkout", nil)
		assert.Equal(t, models.IntentCheckout, result.Name, "0.9 does not clear the 0.95 rule verdict")
	})

	t.Run("no prediction falls back to rules", func(t *testing.T) {
		c := NewClassifier(&stubPredictor{})
		result := c.Classify(ctx, "checkout", nil)
		assert.Equal(t, models.IntentCheckout, result.Name)
	})
}
