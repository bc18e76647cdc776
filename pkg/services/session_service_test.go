package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciergelabs/concierge/pkg/store"
)

func TestSessionGetOrCreate(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(store.New(nil, nil), testSettings())

	created := svc.GetOrCreate(ctx, "sess_1", "", "web")
	assert.Equal(t, "sess_1", created.ID)
	assert.Empty(t, created.UserID)

	again := svc.GetOrCreate(ctx, "sess_1", "user_1", "web")
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, "user_1", again.UserID, "login attaches the user to the session")
	assert.True(t, again.ExpiresAt.After(time.Now().Add(25*time.Minute)), "access extends expiry")
}

func TestUpdateConversation(t *testing.T) {
	ctx := context.Background()
	st := store.New(nil, nil)
	svc := NewSessionService(st, testSettings())

	svc.GetOrCreate(ctx, "sess_1", "", "web")
	svc.UpdateConversation(ctx, "sess_1", "product_search", "product", "find shoes", map[string]any{"query": "shoes"})

	sess, ok := st.GetSession("sess_1")
	require.True(t, ok)
	assert.Equal(t, "product_search", sess.Conversation.LastIntent)
	assert.Equal(t, "product", sess.Conversation.LastAgent)
	assert.Equal(t, "shoes", sess.Conversation.Entities["query"])

	svc.UpdateConversation(ctx, "sess_missing", "x", "y", "z", nil)
}
