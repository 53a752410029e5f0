package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ashara-studio/ashara-core/internal/infrastructure/config"
)

// Default timeouts for MongoDB operations.
const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPingTimeout       = 5 * time.Second
	defaultDisconnectTimeout = 5 * time.Second
)

// Client wraps a mongo.Client bound to a single database.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	client *mongo.Client
	db     *mongo.Database

	mu        sync.RWMutex
	connected bool
}

// Connect dials MongoDB and pings the primary.
//
// The connect timeout comes from cfg.ConnectTimeout (seconds) and bounds
// both server selection and the initial ping.
func Connect(ctx context.Context, cfg config.MongoDBConfig) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("%w: uri", ErrMissingConfig)
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("%w: database", ErrMissingConfig)
	}

	timeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := cli.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background()) //nolint:errcheck // already failing
		return nil, fmt.Errorf("%w: ping: %w", ErrConnectionFailed, err)
	}

	return newClient(cli, cfg.Database), nil
}

func newClient(cli *mongo.Client, database string) *Client {
	return &Client{
		client:    cli,
		db:        cli.Database(database),
		connected: true,
	}
}

// Database returns the configured database.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Collection returns a collection in the configured database.
func (c *Client) Collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}

// HealthCheck pings the primary.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := c.client.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// IsConnected reports the last known connection state. Use HealthCheck
// for an active probe.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Close disconnects from the server. Calling Close more than once is safe.
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultDisconnectTimeout)
	defer cancel()

	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting from mongodb: %w", err)
	}
	return nil
}
