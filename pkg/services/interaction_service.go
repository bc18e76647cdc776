package services

import (
	"context"
	"time"

	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/store"
)

// InteractionService persists conversation turns and serves the recent
// window the classifier and context builder read.
type InteractionService struct {
	store *store.Store
	now   func() time.Time
}

// NewInteractionService creates a new InteractionService
func NewInteractionService(st *store.Store) *InteractionService {
	return &InteractionService{store: st, now: time.Now}
}

// Record appends one turn. The id and timestamp are filled in when the
// caller left them empty.
func (s *InteractionService) Record(ctx context.Context, rec *models.InteractionRecord) {
	if rec.ID == "" {
		rec.ID = s.store.NextID("msg")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now().UTC()
	}
	s.store.AppendInteraction(ctx, rec)
}

// Recent returns up to limit turns for the session, most recent last.
func (s *InteractionService) Recent(sessionID string, limit int) []models.InteractionRecord {
	return s.store.RecentInteractions(sessionID, limit)
}
