package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/store"
)

func TestRecordInteractionAffinities(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(store.New(nil, nil))

	svc.RecordInteraction(ctx, "user_1", "product_search", "find running shoes", &models.AgentResponse{
		Message: "I found 2 options.",
		Data: map[string]any{
			"products": []models.Product{
				{ProductID: "prod_1", Category: "Shoes", Brand: "Peak"},
				{ProductID: "prod_2", Category: "shoes", Brand: "Strider"},
			},
		},
	})
	svc.RecordInteraction(ctx, "user_1", "checkout", "checkout", &models.AgentResponse{
		Message: "Order placed.",
		Data: map[string]any{
			"order": &models.Order{Items: []models.CartItem{{ProductID: "prod_1", Quantity: 3}}},
		},
	})

	m := svc.Snapshot(ctx, "user_1")
	assert.Equal(t, 4.0, m.ProductAffinities.Products["prod_1"], "1 for being shown, 3 for the ordered quantity")
	assert.Equal(t, 1.0, m.ProductAffinities.Products["prod_2"])
	assert.Equal(t, 2.0, m.ProductAffinities.Categories["shoes"], "categories are case-folded")
	assert.Equal(t, 1.0, m.ProductAffinities.Brands["peak"])
	require.Len(t, m.InteractionHistory, 2)
	assert.Equal(t, "product_search", m.InteractionHistory[0].Type)
}

func TestRecordInteractionTruncatesAndCaps(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(store.New(nil, nil))

	long := strings.Repeat("x", 500)
	for i := 0; i < memoryHistoryCap+20; i++ {
		svc.RecordInteraction(ctx, "user_1", "general_question", long, &models.AgentResponse{Message: long})
	}

	m := svc.Snapshot(ctx, "user_1")
	assert.Len(t, m.InteractionHistory, memoryHistoryCap)
	assert.Len(t, m.InteractionHistory[0].Summary.Query, memorySummaryCap)
	assert.Len(t, m.InteractionHistory[0].Summary.Response, memorySummaryCap)
}

func TestRecordInteractionIgnoresGuests(t *testing.T) {
	ctx := context.Background()
	st := store.New(nil, nil)
	svc := NewMemoryService(st)

	svc.RecordInteraction(ctx, "", "view_cart", "show cart", &models.AgentResponse{})
	_, ok := st.GetMemory("")
	assert.False(t, ok)
}

func TestPreferencesLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(store.New(nil, nil))

	svc.UpdatePreferences(ctx, "user_1", map[string]any{
		"size":             "10",
		"brandPreferences": []string{"Peak"},
		"priceRange":       models.PriceRange{Min: 50, Max: 150},
	})
	m := svc.Snapshot(ctx, "user_1")
	assert.Equal(t, "10", m.Preferences.Size)
	assert.Equal(t, []string{"Peak"}, m.Preferences.BrandPreferences)
	require.NotNil(t, m.Preferences.PriceRange)
	assert.Equal(t, 150.0, m.Preferences.PriceRange.Max)

	assert.True(t, svc.ForgetPreference(ctx, "user_1", "size"))
	assert.False(t, svc.ForgetPreference(ctx, "user_1", "shoeWidth"))
	assert.Empty(t, svc.Snapshot(ctx, "user_1").Preferences.Size)

	svc.Clear(ctx, "user_1")
	fresh := svc.Snapshot(ctx, "user_1")
	assert.Empty(t, fresh.InteractionHistory)
	assert.Empty(t, fresh.Preferences.BrandPreferences)
}

func TestHistoryLimit(t *testing.T) {
	ctx := context.Background()
	svc := NewMemoryService(store.New(nil, nil))

	for i := 0; i < 30; i++ {
		svc.RecordInteraction(ctx, "user_1", "product_search", "query", &models.AgentResponse{Message: "ok"})
	}
	assert.Len(t, svc.History(ctx, "user_1", 10), 10)
	assert.Len(t, svc.History(ctx, "user_1", 0), 1, "limit floors at 1")
}
