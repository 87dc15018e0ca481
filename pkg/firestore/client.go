package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/airink/storefront-backend/pkg/config"
	"github.com/airink/storefront-backend/pkg/logger"
)

// Client wraps the Firestore connection used for remote carts and coupons.
type Client struct {
	conn      *firestore.Client
	projectID string
}

// New connects to Firestore. Without a credentials file it relies on
// Application Default Credentials (or FIRESTORE_EMULATOR_HOST).
func New(ctx context.Context, cfg config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("gcp project id is required")
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	conn, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "project_id", cfg.ProjectID), "firestore client initialized")
	}
	return &Client{conn: conn, projectID: cfg.ProjectID}, nil
}

// Firestore exposes the underlying SDK client.
func (c *Client) Firestore() *firestore.Client {
	return c.conn
}

// Ping lists at most one collection to confirm credentials and connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("firestore client is nil")
	}
	it := c.conn.Collections(ctx)
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("firestore ping: %w", err)
	}
	return nil
}

// Close releases the client.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
