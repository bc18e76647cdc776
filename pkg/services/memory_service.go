package services

import (
	"context"
	"strings"
	"time"

	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/store"
)

const (
	memoryHistoryCap = 200
	memorySummaryCap = 180
)

// MemoryService accumulates per-user shopping memory: explicit
// preferences, a bounded interaction history, and affinity scores built
// up from products shown and ordered.
type MemoryService struct {
	store *store.Store
	now   func() time.Time
}

// NewMemoryService creates a new MemoryService
func NewMemoryService(st *store.Store) *MemoryService {
	return &MemoryService{store: st, now: time.Now}
}

// Snapshot returns the user's memory, creating an empty snapshot on
// first access.
func (s *MemoryService) Snapshot(ctx context.Context, userID string) *models.MemorySnapshot {
	if m, ok := s.store.GetMemory(userID); ok {
		return m
	}
	m := &models.MemorySnapshot{
		UserID: userID,
		ProductAffinities: models.AffinityScores{
			Categories: map[string]float64{},
			Brands:     map[string]float64{},
			Products:   map[string]float64{},
		},
		UpdatedAt: s.now().UTC(),
	}
	s.store.PutMemory(ctx, m)
	return m
}

// History returns the most recent entries, newest last.
func (s *MemoryService) History(ctx context.Context, userID string, limit int) []models.MemoryEntry {
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	history := s.Snapshot(ctx, userID).InteractionHistory
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

// UpdatePreferences applies non-nil preference fields from updates.
// Recognized keys: size, priceRange, categories, brandPreferences,
// colorPreferences, stylePreferences.
func (s *MemoryService) UpdatePreferences(ctx context.Context, userID string, updates map[string]any) {
	m := s.Snapshot(ctx, userID)
	for key, value := range updates {
		if value == nil {
			continue
		}
		switch key {
		case "size":
			if v, ok := value.(string); ok {
				m.Preferences.Size = v
			}
		case "priceRange":
			if v, ok := value.(models.PriceRange); ok {
				r := v
				m.Preferences.PriceRange = &r
			}
		case "categories":
			m.Preferences.Categories = toStringList(value)
		case "brandPreferences":
			m.Preferences.BrandPreferences = toStringList(value)
		case "colorPreferences":
			m.Preferences.ColorPreferences = toStringList(value)
		case "stylePreferences":
			m.Preferences.StylePreferences = toStringList(value)
		}
	}
	m.UpdatedAt = s.now().UTC()
	s.store.PutMemory(ctx, m)
}

// ForgetPreference clears one preference field by key. Returns false
// when the key is not a known preference.
func (s *MemoryService) ForgetPreference(ctx context.Context, userID, key string) bool {
	m := s.Snapshot(ctx, userID)
	switch key {
	case "size":
		m.Preferences.Size = ""
	case "priceRange":
		m.Preferences.PriceRange = nil
	case "categories":
		m.Preferences.Categories = nil
	case "brandPreferences":
		m.Preferences.BrandPreferences = nil
	case "colorPreferences":
		m.Preferences.ColorPreferences = nil
	case "stylePreferences":
		m.Preferences.StylePreferences = nil
	default:
		return false
	}
	m.UpdatedAt = s.now().UTC()
	s.store.PutMemory(ctx, m)
	return true
}

// Clear wipes everything remembered about the user.
func (s *MemoryService) Clear(ctx context.Context, userID string) {
	s.store.DeleteMemory(ctx, userID)
}

// RecordInteraction appends a trimmed history entry and bumps affinity
// scores: +1 per product shown in the response, +quantity per ordered
// item. History is capped at 200 entries.
func (s *MemoryService) RecordInteraction(ctx context.Context, userID, intent, message string, response *models.AgentResponse) {
	if userID == "" || response == nil {
		return
	}
	m := s.Snapshot(ctx, userID)
	m.InteractionHistory = append(m.InteractionHistory, models.MemoryEntry{
		Type:      intent,
		Timestamp: s.now().UTC(),
		Summary: models.MemoryEntrySummary{
			Query:    truncate(message, memorySummaryCap),
			Action:   intent,
			Response: truncate(response.Message, memorySummaryCap),
		},
	})
	if len(m.InteractionHistory) > memoryHistoryCap {
		m.InteractionHistory = m.InteractionHistory[len(m.InteractionHistory)-memoryHistoryCap:]
	}

	if m.ProductAffinities.Categories == nil {
		m.ProductAffinities.Categories = map[string]float64{}
	}
	if m.ProductAffinities.Brands == nil {
		m.ProductAffinities.Brands = map[string]float64{}
	}
	if m.ProductAffinities.Products == nil {
		m.ProductAffinities.Products = map[string]float64{}
	}

	for _, product := range productsFromData(response.Data) {
		if product.ProductID != "" {
			m.ProductAffinities.Products[product.ProductID]++
		}
		if category := strings.ToLower(strings.TrimSpace(product.Category)); category != "" {
			m.ProductAffinities.Categories[category]++
		}
		if brand := strings.ToLower(strings.TrimSpace(product.Brand)); brand != "" {
			m.ProductAffinities.Brands[brand]++
		}
	}
	if order := orderFromData(response.Data); order != nil {
		for _, item := range order.Items {
			if item.ProductID == "" {
				continue
			}
			qty := item.Quantity
			if qty < 1 {
				qty = 1
			}
			m.ProductAffinities.Products[item.ProductID] += float64(qty)
		}
	}

	m.UpdatedAt = s.now().UTC()
	s.store.PutMemory(ctx, m)
}

func productsFromData(data map[string]any) []models.Product {
	if data == nil {
		return nil
	}
	switch v := data["products"].(type) {
	case []models.Product:
		return v
	case []*models.Product:
		out := make([]models.Product, 0, len(v))
		for _, p := range v {
			if p != nil {
				out = append(out, *p)
			}
		}
		return out
	}
	return nil
}

func orderFromData(data map[string]any) *models.Order {
	if data == nil {
		return nil
	}
	switch v := data["order"].(type) {
	case *models.Order:
		return v
	case models.Order:
		return &v
	}
	return nil
}

func toStringList(value any) []string {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...)
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
