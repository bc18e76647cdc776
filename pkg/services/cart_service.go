package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/conciergelabs/concierge/pkg/config"
	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/store"
)

// CartService manages the single active cart per user or guest session.
type CartService struct {
	store  *store.Store
	cfg    *config.Settings
	logger *slog.Logger
	now    func() time.Time
}

// NewCartService creates a new CartService
func NewCartService(st *store.Store, cfg *config.Settings) *CartService {
	return &CartService{
		store:  st,
		cfg:    cfg,
		logger: slog.With("component", "cart_service"),
		now:    time.Now,
	}
}

// GetCart returns the active cart, creating an empty one if needed.
func (s *CartService) GetCart(ctx context.Context, userID, sessionID string) *models.Cart {
	return s.getOrCreate(ctx, userID, sessionID)
}

// AddItem adds quantity of a variant to the cart, merging with an
// existing line for the same (productId, variantId).
func (s *CartService) AddItem(ctx context.Context, userID, sessionID, productID, variantID string, quantity int) (*models.Cart, error) {
	product, variant, err := s.resolveVariant(productID, variantID)
	if err != nil {
		return nil, err
	}
	if !variant.InStock {
		return nil, fmt.Errorf("%w: variant is out of stock", ErrConflict)
	}
	if quantity < 1 {
		quantity = 1
	}

	cart := s.getOrCreate(ctx, userID, sessionID)
	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID && cart.Items[i].VariantID == variantID {
			cart.Items[i].Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		price := variant.Price
		if price == 0 {
			price = product.Price
		}
		cart.Items = append(cart.Items, models.CartItem{
			ItemID:    s.store.NextID("item"),
			ProductID: product.ProductID,
			VariantID: variant.VariantID,
			Name:      product.Name,
			Brand:     product.Brand,
			Size:      variant.Size,
			Color:     variant.Color,
			Price:     price,
			Quantity:  quantity,
			Image:     product.Image,
		})
	}
	s.recalculate(cart)
	s.store.PutCart(ctx, cart)
	return cart, nil
}

// UpdateItemQuantity sets the quantity of one cart line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, sessionID, itemID string, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, NewValidationError("quantity", "must be at least 1")
	}
	cart := s.getOrCreate(ctx, userID, sessionID)
	found := false
	for i := range cart.Items {
		if cart.Items[i].ItemID == itemID {
			cart.Items[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: cart item %s", ErrNotFound, itemID)
	}
	s.recalculate(cart)
	s.store.PutCart(ctx, cart)
	return cart, nil
}

// RemoveItem deletes one cart line.
func (s *CartService) RemoveItem(ctx context.Context, userID, sessionID, itemID string) (*models.Cart, error) {
	cart := s.getOrCreate(ctx, userID, sessionID)
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ItemID != itemID {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(cart.Items) {
		return nil, fmt.Errorf("%w: cart item %s", ErrNotFound, itemID)
	}
	cart.Items = kept
	s.recalculate(cart)
	s.store.PutCart(ctx, cart)
	return cart, nil
}

// ClearCart empties the cart and drops any applied discount.
func (s *CartService) ClearCart(ctx context.Context, userID, sessionID string) *models.Cart {
	cart := s.getOrCreate(ctx, userID, sessionID)
	cart.Items = nil
	cart.AppliedDiscount = nil
	s.recalculate(cart)
	s.store.PutCart(ctx, cart)
	return cart
}

// ApplyDiscount applies a discount code. SAVE20 is the only code the
// catalog currently honors.
func (s *CartService) ApplyDiscount(ctx context.Context, userID, sessionID, code string) (*models.Cart, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized != "SAVE20" {
		return nil, fmt.Errorf("%w: invalid discount code", ErrInvalidInput)
	}
	cart := s.getOrCreate(ctx, userID, sessionID)
	cart.AppliedDiscount = &models.AppliedDiscount{Code: "SAVE20", Type: "percentage", Value: 20}
	s.recalculate(cart)
	s.store.PutCart(ctx, cart)
	return cart, nil
}

// MergeGuestCart folds a guest session's cart into the user's cart after
// login. Quantities merge per (productId, variantId) and clamp to [1,50].
// Returns nil when the session had no cart.
func (s *CartService) MergeGuestCart(ctx context.Context, sessionID, userID string) *models.Cart {
	guest, ok := s.store.FindActiveCart("", sessionID)
	if !ok {
		return nil
	}

	userCart, ok := s.store.FindActiveCart(userID, "")
	if !ok {
		guest.UserID = userID
		guest.Status = models.CartStatusActive
		s.recalculate(guest)
		s.store.PutCart(ctx, guest)
		return guest
	}

	for _, src := range guest.Items {
		if src.ProductID == "" || src.VariantID == "" {
			continue
		}
		merged := false
		for i := range userCart.Items {
			if userCart.Items[i].ProductID == src.ProductID && userCart.Items[i].VariantID == src.VariantID {
				userCart.Items[i].Quantity = clampQuantity(userCart.Items[i].Quantity + clampQuantity(src.Quantity))
				merged = true
				break
			}
		}
		if !merged {
			item := src
			item.ItemID = s.store.NextID("item")
			item.Quantity = clampQuantity(src.Quantity)
			userCart.Items = append(userCart.Items, item)
		}
	}
	if userCart.AppliedDiscount == nil && guest.AppliedDiscount != nil {
		d := *guest.AppliedDiscount
		userCart.AppliedDiscount = &d
	}
	userCart.Status = models.CartStatusActive
	s.recalculate(userCart)
	s.store.PutCart(ctx, userCart)
	s.store.DeleteCart(ctx, guest.ID)
	return userCart
}

// MarkConverted flags the user's active cart as converted after checkout.
func (s *CartService) MarkConverted(ctx context.Context, userID string) {
	cart, ok := s.store.FindActiveCart(userID, "")
	if !ok {
		return
	}
	cart.Status = models.CartStatusConverted
	cart.UpdatedAt = s.now().UTC()
	cart.ExpiresAt = s.now().UTC().Add(s.cfg.CartTTL)
	s.store.PutCart(ctx, cart)
}

// CleanupExpired drops carts whose expiry is older than the grace window
// and reports the count. The grace keeps recently expired carts around
// long enough for abandoned-cart recovery to act on them.
func (s *CartService) CleanupExpired(ctx context.Context, grace time.Duration) int {
	return s.store.DeleteExpiredCarts(ctx, s.now().UTC().Add(-grace))
}

func (s *CartService) getOrCreate(ctx context.Context, userID, sessionID string) *models.Cart {
	now := s.now().UTC()
	if existing, ok := s.store.FindActiveCart(userID, sessionID); ok {
		if !existing.ExpiresAt.IsZero() && !existing.ExpiresAt.After(now) {
			existing.Status = models.CartStatusAbandoned
			existing.UpdatedAt = now
			s.store.PutCart(ctx, existing)
		} else {
			existing.ExpiresAt = now.Add(s.cfg.CartTTL)
			s.store.PutCart(ctx, existing)
			return existing
		}
	}
	cart := &models.Cart{
		ID:        s.store.NextID("cart"),
		UserID:    userID,
		SessionID: sessionID,
		Currency:  "USD",
		Status:    models.CartStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.cfg.CartTTL),
	}
	s.store.PutCart(ctx, cart)
	return cart
}

func (s *CartService) resolveVariant(productID, variantID string) (*models.Product, *models.ProductVariant, error) {
	product, ok := s.store.GetProduct(productID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: product %s", ErrNotFound, productID)
	}
	for i := range product.Variants {
		if product.Variants[i].VariantID == variantID {
			return product, &product.Variants[i], nil
		}
	}
	return nil, nil, fmt.Errorf("%w: variant %s", ErrNotFound, variantID)
}

// recalculate recomputes all derived totals. A percentage discount comes
// off the subtotal before tax; shipping applies whenever the cart has
// items. Converted carts keep their status.
func (s *CartService) recalculate(cart *models.Cart) {
	subtotal := 0.0
	itemCount := 0
	for _, item := range cart.Items {
		subtotal += item.Price * float64(item.Quantity)
		itemCount += item.Quantity
	}
	discount := 0.0
	if cart.AppliedDiscount != nil && cart.AppliedDiscount.Type == "percentage" {
		discount = round2(subtotal * cart.AppliedDiscount.Value / 100)
	}
	taxableBase := math.Max(0, subtotal-discount)
	tax := round2(taxableBase * s.cfg.CartTaxRate)
	shipping := 0.0
	if len(cart.Items) > 0 {
		shipping = s.cfg.DefaultShippingFee
	}

	cart.Subtotal = round2(subtotal)
	cart.Discount = discount
	cart.Tax = tax
	cart.Shipping = shipping
	cart.Total = round2(taxableBase + tax + shipping)
	cart.ItemCount = itemCount
	if !strings.EqualFold(cart.Status, models.CartStatusConverted) {
		cart.Status = models.CartStatusActive
	}
	now := s.now().UTC()
	cart.UpdatedAt = now
	cart.ExpiresAt = now.Add(s.cfg.CartTTL)
}

func clampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	if q > 50 {
		return 50
	}
	return q
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
