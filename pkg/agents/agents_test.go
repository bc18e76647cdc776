package agents

import (
	"context"
	"testing"
	"time"

	"github.com/conciergelabs/concierge/pkg/config"
	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/services"
	"github.com/conciergelabs/concierge/pkg/store"
)

func agentSettings() *config.Settings {
	return &config.Settings{
		CartTaxRate:        0.08,
		DefaultShippingFee: 5.99,
		CartTTL:            24 * time.Hour,
		SessionTTL:         30 * time.Minute,
	}
}

// seedCatalog loads two shoe products so query resolution has real
// ambiguity to work with.
func seedCatalog(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	st.PutProduct(ctx, &models.Product{
		ProductID: "prod_1", Name: "Trail Runner X", Brand: "PeakRoute", Category: "shoes",
		Price: 120, Rating: 4.6,
		Variants: []models.ProductVariant{
			{VariantID: "var_1", Size: "9", Color: "black", Price: 120, Stock: 5, InStock: true},
			{VariantID: "var_2", Size: "10", Color: "blue", Price: 120, Stock: 0, InStock: false},
		},
	})
	st.PutProduct(ctx, &models.Product{
		ProductID: "prod_2", Name: "Road Glide", Brand: "StrideForge", Category: "shoes",
		Price: 95, Rating: 4.2,
		Variants: []models.ProductVariant{
			{VariantID: "var_3", Size: "10", Color: "white", Price: 95, Stock: 3, InStock: true},
		},
	})
}

type agentFixture struct {
	store    *store.Store
	products *services.ProductService
	carts    *services.CartService
	orders   *services.OrderService
	memory   *services.MemoryService
	support  *services.SupportService
}

func newAgentFixture(t *testing.T) *agentFixture {
	t.Helper()
	st := store.New(nil, nil)
	seedCatalog(t, st)
	products := services.NewProductService(st)
	carts := services.NewCartService(st, agentSettings())
	notifications := services.NewNotificationService(st)
	return &agentFixture{
		store:    st,
		products: products,
		carts:    carts,
		orders:   services.NewOrderService(st, carts, notifications),
		memory:   services.NewMemoryService(st),
		support:  services.NewSupportService(st),
	}
}

func guestContext(sessionID string) *models.AgentContext {
	return &models.AgentContext{SessionID: sessionID, Channel: "web"}
}

func userContext(userID, sessionID string) *models.AgentContext {
	return &models.AgentContext{UserID: userID, SessionID: sessionID, Channel: "web"}
}
