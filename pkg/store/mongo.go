package store

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const mongoOpTimeout = 3 * time.Second

// MongoPersistence writes documents through to MongoDB. Failures are
// logged and swallowed: the in-memory state stays authoritative for the
// request path and Mongo converges on the next write.
type MongoPersistence struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewMongoPersistence connects to MongoDB and ensures the collection
// indexes exist.
func NewMongoPersistence(ctx context.Context, uri, dbName string) (*MongoPersistence, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, err
	}
	db := client.Database(dbName)
	if err := EnsureIndexes(ctx, db); err != nil {
		return nil, err
	}
	return &MongoPersistence{
		db:     db,
		logger: slog.With("component", "mongo"),
	}, nil
}

// Upsert replaces the document stored under (collection, keyField=key).
func (p *MongoPersistence) Upsert(ctx context.Context, collection, keyField, key string, doc any) {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mongoOpTimeout)
	defer cancel()
	_, err := p.db.Collection(collection).UpdateOne(
		opCtx,
		bson.M{keyField: key},
		bson.M{"$set": doc},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		p.logger.Warn("write-through failed", "collection", collection, "key", key, "error", err)
	}
}

// Delete removes the document stored under (collection, keyField=key).
func (p *MongoPersistence) Delete(ctx context.Context, collection, keyField, key string) {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mongoOpTimeout)
	defer cancel()
	if _, err := p.db.Collection(collection).DeleteOne(opCtx, bson.M{keyField: key}); err != nil {
		p.logger.Warn("delete-through failed", "collection", collection, "key", key, "error", err)
	}
}

// Database exposes the underlying handle for read-backs and tests.
func (p *MongoPersistence) Database() *mongo.Database {
	return p.db
}

// Close disconnects the underlying client.
func (p *MongoPersistence) Close(ctx context.Context) error {
	return p.db.Client().Disconnect(ctx)
}

type indexSpec struct {
	keys   bson.D
	name   string
	unique bool
}

var indexSpecs = map[string][]indexSpec{
	CollUsers: {
		{keys: bson.D{{Key: "userId", Value: 1}}, name: "uniq_user_id", unique: true},
		{keys: bson.D{{Key: "email", Value: 1}}, name: "uniq_email", unique: true},
	},
	CollRefreshTokens: {
		{keys: bson.D{{Key: "token", Value: 1}}, name: "uniq_token", unique: true},
	},
	CollSessions: {
		{keys: bson.D{{Key: "sessionId", Value: 1}}, name: "uniq_session_id", unique: true},
		{keys: bson.D{{Key: "userId", Value: 1}, {Key: "lastActivity", Value: -1}}, name: "user_last_activity"},
		{keys: bson.D{{Key: "expiresAt", Value: 1}}, name: "expires_at"},
	},
	CollCarts: {
		{keys: bson.D{{Key: "cartId", Value: 1}}, name: "uniq_cart_id", unique: true},
		{keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: -1}}, name: "status_updated_at"},
	},
	CollOrders: {
		{keys: bson.D{{Key: "orderId", Value: 1}}, name: "uniq_order_id", unique: true},
		{keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, name: "user_created_at"},
	},
	CollIdempotencyKeys: {
		{keys: bson.D{{Key: "key", Value: 1}}, name: "uniq_key", unique: true},
	},
	CollMemories: {
		{keys: bson.D{{Key: "userId", Value: 1}}, name: "uniq_user_id", unique: true},
	},
	CollInteractions: {
		{keys: bson.D{{Key: "messageId", Value: 1}}, name: "uniq_message_id", unique: true},
		{keys: bson.D{{Key: "sessionId", Value: 1}, {Key: "timestamp", Value: 1}}, name: "session_timestamp"},
	},
	CollSupportTickets: {
		{keys: bson.D{{Key: "ticketId", Value: 1}}, name: "uniq_ticket_id", unique: true},
		{keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}, name: "status_created_at"},
	},
	CollProducts: {
		{keys: bson.D{{Key: "productId", Value: 1}}, name: "uniq_product_id", unique: true},
	},
	CollCategories: {
		{keys: bson.D{{Key: "categoryId", Value: 1}}, name: "uniq_category_id", unique: true},
		{keys: bson.D{{Key: "slug", Value: 1}}, name: "uniq_slug", unique: true},
	},
	CollInventory: {
		{keys: bson.D{{Key: "variantId", Value: 1}}, name: "uniq_variant_id", unique: true},
	},
	CollNotifications: {
		{keys: bson.D{{Key: "notificationId", Value: 1}}, name: "uniq_notification_id", unique: true},
	},
	CollAdminActivityLogs: {
		{keys: bson.D{{Key: "id", Value: 1}}, name: "uniq_id", unique: true},
		{keys: bson.D{{Key: "adminId", Value: 1}, {Key: "timestamp", Value: -1}}, name: "admin_timestamp"},
		{keys: bson.D{{Key: "timestamp", Value: -1}}, name: "timestamp_desc"},
	},
	CollVoiceCalls: {
		{keys: bson.D{{Key: "callId", Value: 1}}, name: "uniq_call_id", unique: true},
		{keys: bson.D{{Key: "providerCallId", Value: 1}}, name: "provider_call_id"},
	},
	CollVoiceJobs: {
		{keys: bson.D{{Key: "jobId", Value: 1}}, name: "uniq_job_id", unique: true},
		{keys: bson.D{{Key: "status", Value: 1}, {Key: "nextRunAt", Value: 1}}, name: "status_next_run"},
	},
	CollVoiceSuppressions: {
		{keys: bson.D{{Key: "userId", Value: 1}}, name: "uniq_user_id", unique: true},
	},
	CollVoiceAlerts: {
		{keys: bson.D{{Key: "alertId", Value: 1}}, name: "uniq_alert_id", unique: true},
	},
}

// EnsureIndexes creates every collection index the service relies on.
// Index creation is idempotent on the server side.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	for collection, specs := range indexSpecs {
		managers := make([]mongo.IndexModel, 0, len(specs))
		for _, spec := range specs {
			opts := options.Index().SetName(spec.name)
			if spec.unique {
				opts = opts.SetUnique(true)
			}
			managers = append(managers, mongo.IndexModel{Keys: spec.keys, Options: opts})
		}
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, managers); err != nil {
			return err
		}
	}
	return nil
}
