// Package db manages MongoDB connections and collections.
package db

import (
	"context" // For connection timeout/cancellation
	"fmt"     // Error formatting
	"time"    // Duration for timeouts

	"go.mongodb.org/mongo-driver/v2/bson"           // Index key documents
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // MongoDB options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // MongoDB read preference
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "chat_db"

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused).
	// It is also the entry point for sessions, which the send batch needs.
	client *mongo.Client

	// db is the chat database; rooms, messages, documents and settings live here
	db *mongo.Database
}

// New connects to MongoDB and returns a Client. Transactions (used by the
// send batch) need the server to run as a replica set.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	if database == "" {
		database = DefaultDatabase
	}

	// SetConnectTimeout: fail fast if MongoDB is unreachable
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping with its own deadline so a dead server does not hang startup
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// Mongo returns the underlying driver client (for sessions/transactions).
func (c *Client) Mongo() *mongo.Client { return c.client }

// RoomsCollection returns the rooms collection.
func (c *Client) RoomsCollection() *mongo.Collection {
	return c.db.Collection("rooms")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// DocumentsCollection returns the shared documents collection.
func (c *Client) DocumentsCollection() *mongo.Collection {
	return c.db.Collection("documents")
}

// SettingsCollection returns the per-user settings collection.
func (c *Client) SettingsCollection() *mongo.Collection {
	return c.db.Collection("settings")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores query by.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== ROOMS =====
	roomIndexes := []mongo.IndexModel{
		{
			// ListRooms: rooms a user participates in, newest activity first
			Keys: bson.D{{Key: "participants", Value: 1}, {Key: "updated_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "tenant_id", Value: 1}},
		},
	}
	if _, err := c.RoomsCollection().Indexes().CreateMany(ctx, roomIndexes); err != nil {
		return fmt.Errorf("failed to create rooms indexes: %w", err)
	}

	// ===== MESSAGES =====
	// ListMessages and DeleteMessages both select by room; the log is read in
	// created_at order
	msgIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "created_at", Value: 1}},
	}
	if _, err := c.MessagesCollection().Indexes().CreateOne(ctx, msgIndex); err != nil {
		return fmt.Errorf("failed to create messages index: %w", err)
	}

	// ===== SETTINGS =====
	// MutedBy looks users up by a muted room id
	settingsIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "muted_rooms", Value: 1}},
	}
	if _, err := c.SettingsCollection().Indexes().CreateOne(ctx, settingsIndex); err != nil {
		return fmt.Errorf("failed to create settings index: %w", err)
	}

	return nil
}
