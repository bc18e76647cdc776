package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciergelabs/concierge/pkg/models"
)

func TestNextIDSequences(t *testing.T) {
	s := New(nil, nil)
	assert.Equal(t, "cart_1", s.NextID("cart"))
	assert.Equal(t, "cart_2", s.NextID("cart"))
	assert.Equal(t, "order_1", s.NextID("order"))
}

func TestFindActiveCart(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)
	now := time.Now()

	s.PutCart(ctx, &models.Cart{ID: "cart_1", UserID: "user_1", Status: models.CartStatusActive, UpdatedAt: now.Add(-time.Hour)})
	s.PutCart(ctx, &models.Cart{ID: "cart_2", UserID: "user_1", Status: models.CartStatusActive, UpdatedAt: now})
	s.PutCart(ctx, &models.Cart{ID: "cart_3", UserID: "user_1", Status: models.CartStatusConverted, UpdatedAt: now.Add(time.Hour)})
	s.PutCart(ctx, &models.Cart{ID: "cart_4", SessionID: "sess_9", Status: models.CartStatusActive, UpdatedAt: now})

	t.Run("newest active cart for user", func(t *testing.T) {
		cart, ok := s.FindActiveCart("user_1", "")
		require.True(t, ok)
		assert.Equal(t, "cart_2", cart.ID)
	})

	t.Run("guest lookup matches session-only carts", func(t *testing.T) {
		cart, ok := s.FindActiveCart("", "sess_9")
		require.True(t, ok)
		assert.Equal(t, "cart_4", cart.ID)
	})

	t.Run("no match", func(t *testing.T) {
		_, ok := s.FindActiveCart("user_2", "")
		assert.False(t, ok)
	})
}

func TestCartCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)
	s.PutCart(ctx, &models.Cart{ID: "cart_1", Status: models.CartStatusActive, Items: []models.CartItem{{ItemID: "item_1", Quantity: 1}}})

	cart, ok := s.GetCart("cart_1")
	require.True(t, ok)
	cart.Items[0].Quantity = 99

	again, _ := s.GetCart("cart_1")
	assert.Equal(t, 1, again.Items[0].Quantity, "mutating a returned copy must not leak into the store")
}

func TestRecentInteractionsOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)
	base := time.Now()
	for i := 0; i < 5; i++ {
		s.AppendInteraction(ctx, &models.InteractionRecord{
			ID:        fmt.Sprintf("msg_%d", i),
			SessionID: "sess_1",
			Message:   fmt.Sprintf("message %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
	}
	s.AppendInteraction(ctx, &models.InteractionRecord{ID: "other", SessionID: "sess_2"})

	recent := s.RecentInteractions("sess_1", 3)
	require.Len(t, recent, 3)
	assert.Equal(t, "msg_2", recent[0].ID)
	assert.Equal(t, "msg_4", recent[2].ID, "most recent last")
}

func TestVoiceJobQueries(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)
	now := time.Now()

	s.PutVoiceJob(ctx, &models.VoiceJob{ID: "job_1", RecoveryKey: "cart_1::a", Status: models.JobStatusQueued, NextRunAt: now.Add(-time.Minute)})
	s.PutVoiceJob(ctx, &models.VoiceJob{ID: "job_2", RecoveryKey: "cart_2::b", Status: models.JobStatusRetrying, NextRunAt: now.Add(-2 * time.Minute)})
	s.PutVoiceJob(ctx, &models.VoiceJob{ID: "job_3", RecoveryKey: "cart_3::c", Status: models.JobStatusQueued, NextRunAt: now.Add(time.Hour)})
	s.PutVoiceJob(ctx, &models.VoiceJob{ID: "job_4", RecoveryKey: "cart_4::d", Status: models.JobStatusCompleted, NextRunAt: now.Add(-time.Hour)})

	due := s.DueVoiceJobs(now)
	require.Len(t, due, 2)
	assert.Equal(t, "job_2", due[0].ID, "due jobs ordered by nextRunAt ascending")
	assert.Equal(t, "job_1", due[1].ID)

	assert.Equal(t, 3, s.PendingVoiceJobCount())

	_, ok := s.VoiceJobByRecoveryKey("cart_4::d")
	assert.True(t, ok, "completed jobs still hold their recovery key")
	_, ok = s.VoiceJobByRecoveryKey("cart_9::z")
	assert.False(t, ok)
}

func TestVoiceCallCounters(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)
	today := time.Now().UTC().Truncate(24 * time.Hour)

	s.PutVoiceCall(ctx, &models.VoiceCall{
		ID: "call_1", UserID: "user_1", Status: models.CallStatusCompleted, UpdatedAt: today.Add(2 * time.Hour),
		Attempts: []models.CallAttempt{{Attempt: 1, Status: models.CallStatusInitiated, Timestamp: today.Add(time.Hour)}},
	})
	s.PutVoiceCall(ctx, &models.VoiceCall{
		ID: "call_2", UserID: "user_2", Status: models.CallStatusFailed, UpdatedAt: today.Add(3 * time.Hour),
		Attempts: []models.CallAttempt{{Attempt: 1, Status: models.CallStatusInitiated, Timestamp: today.Add(time.Hour)}},
	})
	s.PutVoiceCall(ctx, &models.VoiceCall{
		ID: "call_3", UserID: "user_1", Status: models.CallStatusFailed, UpdatedAt: today.Add(-time.Hour),
		Attempts: []models.CallAttempt{{Attempt: 1, Status: models.CallStatusInitiated, Timestamp: today.Add(-2 * time.Hour)}},
	})

	assert.Equal(t, 2, s.VoiceCallsDispatchedSince(today, ""))
	assert.Equal(t, 1, s.VoiceCallsDispatchedSince(today, "user_1"))

	terminal, failed := s.TerminalVoiceCallsSince(today)
	assert.Equal(t, 2, terminal)
	assert.Equal(t, 1, failed)
}

func TestVoiceAlertRingBuffer(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)
	for i := 0; i < alertRingSize+10; i++ {
		s.AppendVoiceAlert(ctx, &models.VoiceAlert{ID: fmt.Sprintf("alert_%d", i), Code: "X"})
	}
	all := s.ListVoiceAlerts(0)
	assert.Len(t, all, alertRingSize)
	assert.Equal(t, fmt.Sprintf("alert_%d", alertRingSize+9), all[0].ID, "newest first")

	limited := s.ListVoiceAlerts(5)
	assert.Len(t, limited, 5)
}

func TestSuppressions(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)

	assert.False(t, s.IsVoiceSuppressed("user_1"))
	s.PutVoiceSuppression(ctx, &models.VoiceSuppression{UserID: "user_1", Reason: "voice_opt_out", CreatedAt: time.Now()})
	assert.True(t, s.IsVoiceSuppressed("user_1"))

	assert.True(t, s.DeleteVoiceSuppression(ctx, "user_1"))
	assert.False(t, s.DeleteVoiceSuppression(ctx, "user_1"))
	assert.False(t, s.IsVoiceSuppressed("user_1"))
}

func TestDeleteExpiredSessions(t *testing.T) {
	ctx := context.Background()
	s := New(nil, nil)
	now := time.Now()

	s.PutSession(ctx, &models.Session{ID: "sess_live", ExpiresAt: now.Add(time.Hour)})
	s.PutSession(ctx, &models.Session{ID: "sess_dead", ExpiresAt: now.Add(-time.Hour)})

	assert.Equal(t, 1, s.DeleteExpiredSessions(ctx, now))
	_, ok := s.GetSession("sess_dead")
	assert.False(t, ok)
	_, ok = s.GetSession("sess_live")
	assert.True(t, ok)
}
