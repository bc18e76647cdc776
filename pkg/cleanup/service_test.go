package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciergelabs/concierge/pkg/config"
	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/services"
	"github.com/conciergelabs/concierge/pkg/store"
)

func newFixture() (*store.Store, *Service) {
	cfg := &config.Settings{
		CartTTL:    24 * time.Hour,
		SessionTTL: 30 * time.Minute,
	}
	st := store.New(nil, nil)
	sessions := services.NewSessionService(st, cfg)
	carts := services.NewCartService(st, cfg)
	svc := NewService(Config{Interval: time.Hour, CartGrace: time.Hour}, sessions, carts)
	return st, svc
}

func TestRunOnceDropsExpiredState(t *testing.T) {
	ctx := context.Background()
	st, svc := newFixture()
	now := time.Now().UTC()

	st.PutSession(ctx, &models.Session{ID: "sess_live", ExpiresAt: now.Add(time.Hour)})
	st.PutSession(ctx, &models.Session{ID: "sess_dead", ExpiresAt: now.Add(-time.Hour)})

	st.PutCart(ctx, &models.Cart{ID: "cart_live", UserID: "u1", ExpiresAt: now.Add(time.Hour)})
	st.PutCart(ctx, &models.Cart{ID: "cart_grace", UserID: "u2", ExpiresAt: now.Add(-30 * time.Minute)})
	st.PutCart(ctx, &models.Cart{ID: "cart_dead", UserID: "u3", ExpiresAt: now.Add(-2 * time.Hour)})

	svc.RunOnce(ctx)

	_, ok := st.GetSession("sess_live")
	assert.True(t, ok)
	_, ok = st.GetSession("sess_dead")
	assert.False(t, ok)

	_, ok = st.GetCart("cart_live")
	assert.True(t, ok)
	_, ok = st.GetCart("cart_grace")
	assert.True(t, ok, "recently expired cart stays within the grace window")
	_, ok = st.GetCart("cart_dead")
	assert.False(t, ok)
}

func TestStartStop(t *testing.T) {
	_, svc := newFixture()

	svc.Start(context.Background())
	svc.Start(context.Background())

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestConfigDefaultsApplied(t *testing.T) {
	_, svcBase := newFixture()
	require.NotNil(t, svcBase)

	svc := NewService(Config{}, nil, nil)
	assert.Equal(t, DefaultConfig().Interval, svc.config.Interval)
	assert.Equal(t, DefaultConfig().CartGrace, svc.config.CartGrace)
}
