package services

import (
	"context"
	"time"

	"github.com/conciergelabs/concierge/pkg/config"
	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/store"
)

// SessionService tracks conversational sessions and their rolling
// expiry window.
type SessionService struct {
	store *store.Store
	cfg   *config.Settings
	now   func() time.Time
}

// NewSessionService creates a new SessionService
func NewSessionService(st *store.Store, cfg *config.Settings) *SessionService {
	return &SessionService{store: st, cfg: cfg, now: time.Now}
}

// GetOrCreate returns the session, creating it with the caller-supplied
// id when it does not exist yet. Every access extends the expiry.
func (s *SessionService) GetOrCreate(ctx context.Context, sessionID, userID, channel string) *models.Session {
	now := s.now().UTC()
	if existing, ok := s.store.GetSession(sessionID); ok {
		existing.LastActivity = now
		existing.ExpiresAt = now.Add(s.cfg.SessionTTL)
		if existing.UserID == "" && userID != "" {
			existing.UserID = userID
		}
		s.store.PutSession(ctx, existing)
		return existing
	}
	if sessionID == "" {
		sessionID = s.store.NextID("session")
	}
	sess := &models.Session{
		ID:           sessionID,
		UserID:       userID,
		Channel:      channel,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(s.cfg.SessionTTL),
	}
	s.store.PutSession(ctx, sess)
	return sess
}

// UpdateConversation records where the dialogue left off.
func (s *SessionService) UpdateConversation(ctx context.Context, sessionID, lastIntent, lastAgent, lastMessage string, entities map[string]any) {
	sess, ok := s.store.GetSession(sessionID)
	if !ok {
		return
	}
	now := s.now().UTC()
	sess.Conversation = models.ConversationContext{
		LastIntent:  lastIntent,
		LastAgent:   lastAgent,
		LastMessage: lastMessage,
		Entities:    entities,
	}
	sess.LastActivity = now
	sess.ExpiresAt = now.Add(s.cfg.SessionTTL)
	s.store.PutSession(ctx, sess)
}

// CleanupExpired drops sessions past their expiry and reports the count.
func (s *SessionService) CleanupExpired(ctx context.Context) int {
	return s.store.DeleteExpiredSessions(ctx, s.now().UTC())
}
