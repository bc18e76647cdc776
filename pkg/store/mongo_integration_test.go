package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/conciergelabs/concierge/pkg/models"
)

// TestMongoPersistenceRoundTrip spins up a real MongoDB and verifies
// write-through, delete-through and index creation. Requires Docker.
func TestMongoPersistenceRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	persist, err := NewMongoPersistence(ctx, uri, "commerce_test")
	require.NoError(t, err)

	s := New(persist, nil)
	now := time.Now().UTC().Truncate(time.Millisecond)
	s.PutCart(ctx, &models.Cart{
		ID:        "cart_1",
		UserID:    "user_1",
		Status:    models.CartStatusActive,
		Currency:  "USD",
		CreatedAt: now,
		UpdatedAt: now,
	})

	coll := persist.Database().Collection(CollCarts)

	var doc models.Cart
	require.NoError(t, coll.FindOne(ctx, bson.M{"cartId": "cart_1"}).Decode(&doc))
	assert.Equal(t, "user_1", doc.UserID)
	assert.Equal(t, models.CartStatusActive, doc.Status)

	indexes, err := coll.Indexes().ListSpecifications(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		names = append(names, idx.Name)
	}
	assert.Contains(t, names, "uniq_cart_id")

	s.DeleteCart(ctx, "cart_1")
	err = coll.FindOne(ctx, bson.M{"cartId": "cart_1"}).Decode(&doc)
	assert.Error(t, err)
}
