// Package store is the typed repository façade over the in-memory state,
// with optional write-through to MongoDB (system of record) and a Redis
// cache for hot session/cart reads. The in-memory map is authoritative
// for request-path reads; Mongo is consulted on cache misses only at the
// composition root's discretion.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conciergelabs/concierge/pkg/models"
)

// Stable MongoDB collection names.
const (
	CollUsers             = "users"
	CollRefreshTokens     = "refresh_tokens"
	CollSessions          = "sessions"
	CollCarts             = "carts"
	CollOrders            = "orders"
	CollIdempotencyKeys   = "idempotency_keys"
	CollMemories          = "memories"
	CollInteractions      = "interactions"
	CollSupportTickets    = "support_tickets"
	CollProducts          = "products"
	CollCategories        = "categories"
	CollInventory         = "inventory"
	CollNotifications     = "notifications"
	CollAdminActivityLogs = "admin_activity_logs"
	CollVoiceCalls        = "voice_calls"
	CollVoiceJobs         = "voice_jobs"
	CollVoiceSuppressions = "voice_suppressions"
	CollVoiceAlerts       = "voice_alerts"
)

const alertRingSize = 500

// Persistence receives write-through notifications. Implementations must
// tolerate being called concurrently and swallow transient failures
// (Mongo is reconciled as the system of record out of band).
type Persistence interface {
	Upsert(ctx context.Context, collection, keyField, key string, doc any)
	Delete(ctx context.Context, collection, keyField, key string)
}

// Cache receives hot-key writes (sessions and carts).
type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Store holds all mutable state behind one mutex. The lock is held only
// for structural mutation; write-through happens after release.
type Store struct {
	mu sync.RWMutex

	users         map[string]*models.User
	sessions      map[string]*models.Session
	carts         map[string]*models.Cart
	orders        map[string]*models.Order
	idempotency   map[string]string
	memories      map[string]*models.MemorySnapshot
	interactions  []*models.InteractionRecord
	tickets       map[string]*models.Ticket
	products      map[string]*models.Product
	productOrder  []string
	notifications []*models.Notification

	voiceSettings     *models.VoiceSettings
	voiceJobs         map[string]*models.VoiceJob
	voiceCalls        map[string]*models.VoiceCall
	voiceSuppressions map[string]*models.VoiceSuppression
	voiceAlerts       []*models.VoiceAlert
	callIdempotency   map[string]string

	activityLog []*models.AdminActivityEntry

	seq map[string]int

	persist Persistence
	cache   Cache
}

// New builds an empty store. persist and cache may be nil.
func New(persist Persistence, cache Cache) *Store {
	return &Store{
		users:             make(map[string]*models.User),
		sessions:          make(map[string]*models.Session),
		carts:             make(map[string]*models.Cart),
		orders:            make(map[string]*models.Order),
		idempotency:       make(map[string]string),
		memories:          make(map[string]*models.MemorySnapshot),
		tickets:           make(map[string]*models.Ticket),
		products:          make(map[string]*models.Product),
		voiceJobs:         make(map[string]*models.VoiceJob),
		voiceCalls:        make(map[string]*models.VoiceCall),
		voiceSuppressions: make(map[string]*models.VoiceSuppression),
		callIdempotency:   make(map[string]string),
		seq:               make(map[string]int),
		persist:           persist,
		cache:             cache,
	}
}

// NextID returns a readable sequential id like "cart_1".
func (s *Store) NextID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[prefix]++
	return fmt.Sprintf("%s_%d", prefix, s.seq[prefix])
}

func (s *Store) writeThrough(ctx context.Context, collection, keyField, key string, doc any) {
	if s.persist != nil {
		s.persist.Upsert(ctx, collection, keyField, key, doc)
	}
}

func (s *Store) deleteThrough(ctx context.Context, collection, keyField, key string) {
	if s.persist != nil {
		s.persist.Delete(ctx, collection, keyField, key)
	}
}

// --- users ---

// PutUser inserts or replaces a user.
func (s *Store) PutUser(ctx context.Context, u *models.User) {
	cp := *u
	s.mu.Lock()
	s.users[u.ID] = &cp
	s.mu.Unlock()
	s.writeThrough(ctx, CollUsers, "userId", u.ID, &cp)
}

// GetUser returns a copy of the user, if present.
func (s *Store) GetUser(id string) (*models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

// --- sessions ---

// PutSession inserts or replaces a session and refreshes the cache entry.
func (s *Store) PutSession(ctx context.Context, sess *models.Session) {
	cp := sess.Clone()
	s.mu.Lock()
	s.sessions[sess.ID] = cp
	s.mu.Unlock()
	s.writeThrough(ctx, CollSessions, "sessionId", sess.ID, cp)
	if s.cache != nil {
		s.cache.Set(ctx, "session:"+sess.ID, cp, time.Until(sess.ExpiresAt))
	}
}

// GetSession returns a copy of the session, if present.
func (s *Store) GetSession(id string) (*models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// DeleteExpiredSessions removes sessions whose expiry is in the past and
// returns how many were dropped.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) int {
	var expired []string
	s.mu.Lock()
	for id, sess := range s.sessions {
		if !sess.ExpiresAt.IsZero() && sess.ExpiresAt.Before(now) {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	for _, id := range expired {
		s.deleteThrough(ctx, CollSessions, "sessionId", id)
		if s.cache != nil {
			s.cache.Delete(ctx, "session:"+id)
		}
	}
	return len(expired)
}

// --- carts ---

// PutCart inserts or replaces a cart and refreshes the cache entry.
func (s *Store) PutCart(ctx context.Context, cart *models.Cart) {
	cp := cart.Clone()
	s.mu.Lock()
	s.carts[cart.ID] = cp
	s.mu.Unlock()
	s.writeThrough(ctx, CollCarts, "cartId", cart.ID, cp)
	if s.cache != nil {
		s.cache.Set(ctx, "cart:"+cart.ID, cp, time.Hour)
	}
}

// GetCart returns a copy of the cart, if present.
func (s *Store) GetCart(id string) (*models.Cart, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cart, ok := s.carts[id]
	if !ok {
		return nil, false
	}
	return cart.Clone(), true
}

// DeleteCart removes a cart everywhere.
func (s *Store) DeleteCart(ctx context.Context, id string) {
	s.mu.Lock()
	delete(s.carts, id)
	s.mu.Unlock()
	s.deleteThrough(ctx, CollCarts, "cartId", id)
	if s.cache != nil {
		s.cache.Delete(ctx, "cart:"+id)
	}
}

// FindActiveCart returns the most recently updated active cart for the
// user, or for the guest session when userID is empty.
func (s *Store) FindActiveCart(userID, sessionID string) (*models.Cart, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *models.Cart
	for _, cart := range s.carts {
		if strings.ToLower(cart.Status) != models.CartStatusActive {
			continue
		}
		match := false
		if userID != "" {
			match = cart.UserID == userID
		} else {
			match = cart.SessionID == sessionID && cart.UserID == ""
		}
		if !match {
			continue
		}
		if best == nil || cart.UpdatedAt.After(best.UpdatedAt) {
			best = cart
		}
	}
	if best == nil {
		return nil, false
	}
	return best.Clone(), true
}

// DeleteExpiredCarts removes carts whose expiry predates the cutoff and
// returns how many were dropped.
func (s *Store) DeleteExpiredCarts(ctx context.Context, cutoff time.Time) int {
	var expired []string
	s.mu.Lock()
	for id, cart := range s.carts {
		if !cart.ExpiresAt.IsZero() && cart.ExpiresAt.Before(cutoff) {
			expired = append(expired, id)
			delete(s.carts, id)
		}
	}
	s.mu.Unlock()
	for _, id := range expired {
		s.deleteThrough(ctx, CollCarts, "cartId", id)
		if s.cache != nil {
			s.cache.Delete(ctx, "cart:"+id)
		}
	}
	return len(expired)
}

// ListCarts returns copies of every cart.
func (s *Store) ListCarts() []*models.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Cart, 0, len(s.carts))
	for _, cart := range s.carts {
		out = append(out, cart.Clone())
	}
	return out
}

// --- orders ---

// PutOrder inserts or replaces an order.
func (s *Store) PutOrder(ctx context.Context, order *models.Order) {
	cp := order.Clone()
	s.mu.Lock()
	s.orders[order.ID] = cp
	s.mu.Unlock()
	s.writeThrough(ctx, CollOrders, "orderId", order.ID, cp)
}

// GetOrder returns a copy of the order, if present.
func (s *Store) GetOrder(id string) (*models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, false
	}
	return order.Clone(), true
}

// OrdersForUser returns the user's orders, newest first.
func (s *Store) OrdersForUser(userID string) []*models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			out = append(out, order.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// HasOrderAfter reports whether the user placed any order after t.
func (s *Store) HasOrderAfter(userID string, t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, order := range s.orders {
		if order.UserID == userID && order.CreatedAt.After(t) {
			return true
		}
	}
	return false
}

// IdempotencyGet returns the order id previously stored under key.
func (s *Store) IdempotencyGet(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idempotency[key]
	return id, ok
}

// IdempotencySet stores the order id for an idempotency key.
func (s *Store) IdempotencySet(ctx context.Context, key, orderID string) {
	s.mu.Lock()
	s.idempotency[key] = orderID
	s.mu.Unlock()
	s.writeThrough(ctx, CollIdempotencyKeys, "key", key, map[string]string{"key": key, "orderId": orderID})
}
