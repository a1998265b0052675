package repo

import (
	"context"
	"io/fs"
)

// Store defines the interface for locally persisted storefront data. Orders
// and users live upstream; only reviews and received webhook events are
// stored here.
type Store interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Reviews
	InsertReview(ctx context.Context, review Review) (*Review, error)
	ListApprovedReviews(ctx context.Context, productHandle string, limit int) ([]Review, error)

	// Webhook events
	InsertWebhookEvent(ctx context.Context, event WebhookEventRecord) error
}
