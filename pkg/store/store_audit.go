package store

import (
	"context"

	"github.com/conciergelabs/concierge/pkg/models"
)

// AppendActivityEntry appends to the admin activity log. The log is
// append-only; insertion order is the chain order.
func (s *Store) AppendActivityEntry(ctx context.Context, e *models.AdminActivityEntry) {
	cp := e.Clone()
	s.mu.Lock()
	s.activityLog = append(s.activityLog, cp)
	s.mu.Unlock()
	s.writeThrough(ctx, CollAdminActivityLogs, "id", e.ID, cp)
}

// LastActivityEntry returns the newest entry, if any.
func (s *Store) LastActivityEntry() (*models.AdminActivityEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.activityLog) == 0 {
		return nil, false
	}
	return s.activityLog[len(s.activityLog)-1].Clone(), true
}

// ListActivityEntries returns the full log in insertion order.
func (s *Store) ListActivityEntries() []*models.AdminActivityEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.AdminActivityEntry, 0, len(s.activityLog))
	for _, e := range s.activityLog {
		out = append(out, e.Clone())
	}
	return out
}
