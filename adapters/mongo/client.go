package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Client bundles the driver client with the database the transcript store
// writes to.
type Client struct {
	*mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient connects and pings. Persistence here is best-effort, so server
// selection is kept short: a down Mongo should fail fast at boot and let the
// caller continue without a store, not stall it. The pool stays small
// because writers are a handful of session workers doing small upserts.
func NewClient(uri, dbName string, logger *zap.Logger) (*Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(8).
		SetMaxConnIdleTime(10 * time.Minute).
		SetServerSelectionTimeout(3 * time.Second).
		SetConnectTimeout(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Transcript persistence connected", zap.String("database", dbName))

	return &Client{
		Client:   client,
		Database: client.Database(dbName),
		logger:   logger,
	}, nil
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	c.logger.Info("Transcript persistence disconnected")
	return nil
}
