package models

import "time"

// Cart lifecycle statuses.
const (
	CartStatusActive    = "active"
	CartStatusConverted = "converted"
	CartStatusAbandoned = "abandoned"
)

// Order lifecycle statuses.
const (
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusRefunded   = "refunded"
)

// Support ticket statuses.
const (
	TicketStatusOpen     = "open"
	TicketStatusResolved = "resolved"
)

// User is the minimal shopper profile the core consults: identity, phone
// for voice recovery, and an IANA timezone for quiet-hour arithmetic.
type User struct {
	ID        string    `json:"userId" bson:"userId"`
	Email     string    `json:"email" bson:"email"`
	Name      string    `json:"name" bson:"name"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Timezone  string    `json:"timezone,omitempty" bson:"timezone,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// ProductVariant is one purchasable size/color combination.
type ProductVariant struct {
	VariantID string  `json:"variantId" bson:"variantId"`
	Size      string  `json:"size,omitempty" bson:"size,omitempty"`
	Color     string  `json:"color,omitempty" bson:"color,omitempty"`
	Price     float64 `json:"price" bson:"price"`
	Stock     int     `json:"stock" bson:"stock"`
	InStock   bool    `json:"inStock" bson:"inStock"`
}

// Product is a catalog entry with its variants.
type Product struct {
	ProductID string           `json:"productId" bson:"productId"`
	Name      string           `json:"name" bson:"name"`
	Brand     string           `json:"brand" bson:"brand"`
	Category  string           `json:"category" bson:"category"`
	Price     float64          `json:"price" bson:"price"`
	Rating    float64          `json:"rating" bson:"rating"`
	Image     string           `json:"image,omitempty" bson:"image,omitempty"`
	Tags      []string         `json:"tags,omitempty" bson:"tags,omitempty"`
	Variants  []ProductVariant `json:"variants" bson:"variants"`
}

// Clone returns a deep copy.
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	out := *p
	out.Tags = append([]string(nil), p.Tags...)
	out.Variants = append([]ProductVariant(nil), p.Variants...)
	return &out
}

// CartItem is one line in a cart or an order.
type CartItem struct {
	ItemID    string  `json:"itemId" bson:"itemId"`
	ProductID string  `json:"productId" bson:"productId"`
	VariantID string  `json:"variantId" bson:"variantId"`
	Name      string  `json:"name" bson:"name"`
	Brand     string  `json:"brand,omitempty" bson:"brand,omitempty"`
	Size      string  `json:"size,omitempty" bson:"size,omitempty"`
	Color     string  `json:"color,omitempty" bson:"color,omitempty"`
	Price     float64 `json:"price" bson:"price"`
	Quantity  int     `json:"quantity" bson:"quantity"`
	Image     string  `json:"image,omitempty" bson:"image,omitempty"`
}

// AppliedDiscount is the discount currently applied to a cart.
type AppliedDiscount struct {
	Code  string  `json:"code" bson:"code"`
	Type  string  `json:"type" bson:"type"`
	Value float64 `json:"value" bson:"value"`
}

// Cart is the single active cart for a user or guest session.
type Cart struct {
	ID              string           `json:"id" bson:"cartId"`
	UserID          string           `json:"userId,omitempty" bson:"userId,omitempty"`
	SessionID       string           `json:"sessionId,omitempty" bson:"sessionId,omitempty"`
	Items           []CartItem       `json:"items" bson:"items"`
	Subtotal        float64          `json:"subtotal" bson:"subtotal"`
	Tax             float64          `json:"tax" bson:"tax"`
	Shipping        float64          `json:"shipping" bson:"shipping"`
	Discount        float64          `json:"discount" bson:"discount"`
	Total           float64          `json:"total" bson:"total"`
	ItemCount       int              `json:"itemCount" bson:"itemCount"`
	Currency        string           `json:"currency" bson:"currency"`
	AppliedDiscount *AppliedDiscount `json:"appliedDiscount,omitempty" bson:"appliedDiscount,omitempty"`
	Status          string           `json:"status" bson:"status"`
	CreatedAt       time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt" bson:"updatedAt"`
	ExpiresAt       time.Time        `json:"expiresAt" bson:"expiresAt"`
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = append([]CartItem(nil), c.Items...)
	if c.AppliedDiscount != nil {
		d := *c.AppliedDiscount
		out.AppliedDiscount = &d
	}
	return &out
}

// Address is a shipping destination.
type Address struct {
	Name       string `json:"name" bson:"name"`
	Line1      string `json:"line1" bson:"line1"`
	Line2      string `json:"line2,omitempty" bson:"line2,omitempty"`
	City       string `json:"city" bson:"city"`
	State      string `json:"state" bson:"state"`
	PostalCode string `json:"postalCode" bson:"postalCode"`
	Country    string `json:"country" bson:"country"`
}

// Payment summarizes how an order was paid.
type Payment struct {
	Method        string `json:"method" bson:"method"`
	TransactionID string `json:"transactionId" bson:"transactionId"`
	Status        string `json:"status" bson:"status"`
}

// TimelineEvent is one entry in an order's status history.
type TimelineEvent struct {
	Status    string    `json:"status" bson:"status"`
	Note      string    `json:"note,omitempty" bson:"note,omitempty"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Order is a confirmed purchase.
type Order struct {
	ID                string          `json:"id" bson:"orderId"`
	UserID            string          `json:"userId" bson:"userId"`
	Status            string          `json:"status" bson:"status"`
	Items             []CartItem      `json:"items" bson:"items"`
	Subtotal          float64         `json:"subtotal" bson:"subtotal"`
	Tax               float64         `json:"tax" bson:"tax"`
	Shipping          float64         `json:"shipping" bson:"shipping"`
	Discount          float64         `json:"discount" bson:"discount"`
	Total             float64         `json:"total" bson:"total"`
	Currency          string          `json:"currency" bson:"currency"`
	ShippingAddress   Address         `json:"shippingAddress" bson:"shippingAddress"`
	Payment           Payment         `json:"payment" bson:"payment"`
	Timeline          []TimelineEvent `json:"timeline" bson:"timeline"`
	TrackingNumber    string          `json:"trackingNumber,omitempty" bson:"trackingNumber,omitempty"`
	EstimatedDelivery time.Time       `json:"estimatedDelivery" bson:"estimatedDelivery"`
	CreatedAt         time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	out := *o
	out.Items = append([]CartItem(nil), o.Items...)
	out.Timeline = append([]TimelineEvent(nil), o.Timeline...)
	return &out
}

// PriceRange bounds a preferred price window. Zero means unset.
type PriceRange struct {
	Min float64 `json:"min,omitempty" bson:"min,omitempty"`
	Max float64 `json:"max,omitempty" bson:"max,omitempty"`
}

// Preferences are explicit, user-stated shopping preferences.
type Preferences struct {
	Size             string      `json:"size,omitempty" bson:"size,omitempty"`
	BrandPreferences []string    `json:"brandPreferences,omitempty" bson:"brandPreferences,omitempty"`
	Categories       []string    `json:"categories,omitempty" bson:"categories,omitempty"`
	ColorPreferences []string    `json:"colorPreferences,omitempty" bson:"colorPreferences,omitempty"`
	StylePreferences []string    `json:"stylePreferences,omitempty" bson:"stylePreferences,omitempty"`
	PriceRange       *PriceRange `json:"priceRange,omitempty" bson:"priceRange,omitempty"`
}

// AffinityScores are implicit scores accumulated from browsing and orders.
type AffinityScores struct {
	Categories map[string]float64 `json:"categories,omitempty" bson:"categories,omitempty"`
	Brands     map[string]float64 `json:"brands,omitempty" bson:"brands,omitempty"`
	Products   map[string]float64 `json:"products,omitempty" bson:"products,omitempty"`
}

// MemoryEntrySummary is the trimmed record of one remembered interaction.
type MemoryEntrySummary struct {
	Query    string `json:"query,omitempty" bson:"query,omitempty"`
	Action   string `json:"action,omitempty" bson:"action,omitempty"`
	Response string `json:"response,omitempty" bson:"response,omitempty"`
}

// MemoryEntry is one row of a user's interaction history.
type MemoryEntry struct {
	Type      string             `json:"type" bson:"type"`
	Timestamp time.Time          `json:"timestamp" bson:"timestamp"`
	Summary   MemoryEntrySummary `json:"summary" bson:"summary"`
}

// MemorySnapshot is everything remembered about one user.
type MemorySnapshot struct {
	UserID             string         `json:"userId" bson:"userId"`
	Preferences        Preferences    `json:"preferences" bson:"preferences"`
	InteractionHistory []MemoryEntry  `json:"interactionHistory" bson:"interactionHistory"`
	ProductAffinities  AffinityScores `json:"productAffinities" bson:"productAffinities"`
	UpdatedAt          time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy.
func (m *MemorySnapshot) Clone() *MemorySnapshot {
	if m == nil {
		return nil
	}
	out := *m
	out.Preferences.BrandPreferences = append([]string(nil), m.Preferences.BrandPreferences...)
	out.Preferences.Categories = append([]string(nil), m.Preferences.Categories...)
	out.Preferences.ColorPreferences = append([]string(nil), m.Preferences.ColorPreferences...)
	out.Preferences.StylePreferences = append([]string(nil), m.Preferences.StylePreferences...)
	if m.Preferences.PriceRange != nil {
		r := *m.Preferences.PriceRange
		out.Preferences.PriceRange = &r
	}
	out.InteractionHistory = append([]MemoryEntry(nil), m.InteractionHistory...)
	out.ProductAffinities = AffinityScores{
		Categories: cloneScores(m.ProductAffinities.Categories),
		Brands:     cloneScores(m.ProductAffinities.Brands),
		Products:   cloneScores(m.ProductAffinities.Products),
	}
	return &out
}

func cloneScores(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// TicketMessage is one message on a support ticket thread.
type TicketMessage struct {
	Actor     string    `json:"actor" bson:"actor"`
	Message   string    `json:"message" bson:"message"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}

// Ticket is a support case opened on behalf of a user or guest session.
type Ticket struct {
	ID         string          `json:"id" bson:"ticketId"`
	UserID     string          `json:"userId,omitempty" bson:"userId,omitempty"`
	SessionID  string          `json:"sessionId,omitempty" bson:"sessionId,omitempty"`
	Issue      string          `json:"issue" bson:"issue"`
	Category   string          `json:"category" bson:"category"`
	Priority   string          `json:"priority" bson:"priority"`
	Status     string          `json:"status" bson:"status"`
	Channel    string          `json:"channel,omitempty" bson:"channel,omitempty"`
	Messages   []TicketMessage `json:"messages" bson:"messages"`
	Resolution string          `json:"resolution,omitempty" bson:"resolution,omitempty"`
	CreatedAt  time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.Messages = append([]TicketMessage(nil), t.Messages...)
	return &out
}

// Notification is an outbound message queued for a user.
type Notification struct {
	ID        string         `json:"notificationId" bson:"notificationId"`
	UserID    string         `json:"userId" bson:"userId"`
	Type      string         `json:"type" bson:"type"`
	Title     string         `json:"title,omitempty" bson:"title,omitempty"`
	Body      string         `json:"body,omitempty" bson:"body,omitempty"`
	Channel   string         `json:"channel,omitempty" bson:"channel,omitempty"`
	Data      map[string]any `json:"data,omitempty" bson:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt"`
}

// ConversationContext tracks where a session's dialogue left off.
type ConversationContext struct {
	LastIntent  string         `json:"lastIntent,omitempty" bson:"lastIntent,omitempty"`
	LastAgent   string         `json:"lastAgent,omitempty" bson:"lastAgent,omitempty"`
	LastMessage string         `json:"lastMessage,omitempty" bson:"lastMessage,omitempty"`
	Entities    map[string]any `json:"entities,omitempty" bson:"entities,omitempty"`
}

// ShoppingContext tracks session-scoped browsing state.
type ShoppingContext struct {
	CartID         string   `json:"cartId,omitempty" bson:"cartId,omitempty"`
	ViewedProducts []string `json:"viewedProducts,omitempty" bson:"viewedProducts,omitempty"`
	SearchHistory  []string `json:"searchHistory,omitempty" bson:"searchHistory,omitempty"`
}

// Session is one conversational session on any channel.
type Session struct {
	ID           string              `json:"id" bson:"sessionId"`
	UserID       string              `json:"userId,omitempty" bson:"userId,omitempty"`
	Channel      string              `json:"channel" bson:"channel"`
	Conversation ConversationContext `json:"conversation" bson:"conversation"`
	Shopping     ShoppingContext     `json:"shopping" bson:"shopping"`
	CreatedAt    time.Time           `json:"createdAt" bson:"createdAt"`
	LastActivity time.Time           `json:"lastActivity" bson:"lastActivity"`
	ExpiresAt    time.Time           `json:"expiresAt" bson:"expiresAt"`
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Conversation.Entities != nil {
		ent := make(map[string]any, len(s.Conversation.Entities))
		for k, v := range s.Conversation.Entities {
			ent[k] = v
		}
		out.Conversation.Entities = ent
	}
	out.Shopping.ViewedProducts = append([]string(nil), s.Shopping.ViewedProducts...)
	out.Shopping.SearchHistory = append([]string(nil), s.Shopping.SearchHistory...)
	return &out
}
