package repo

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore provides typed access to Postgres-backed resources.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	schema string
}

// NewPostgres opens a connection pool with the desired search_path.
func NewPostgres(ctx context.Context, databaseURL, schema string, logger *slog.Logger) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if schema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	s := &PostgresStore{
		pool:   pool,
		logger: logger.With("component", "repo"),
		schema: schema,
	}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping ensures the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// RunMigrations applies schema migrations on the connected database.
func (s *PostgresStore) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	return ApplyMigrations(ctx, s.pool, filesystem)
}

// InsertReview stores a new review in pending status.
func (s *PostgresStore) InsertReview(ctx context.Context, review Review) (*Review, error) {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.Status == "" {
		review.Status = ReviewStatusPending
	}
	const q = `
INSERT INTO reviews (id, product_handle, author, rating, title, body, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at;
`
	err := s.pool.QueryRow(ctx, q,
		review.ID,
		review.ProductHandle,
		review.Author,
		review.Rating,
		review.Title,
		review.Body,
		review.Status,
	).Scan(&review.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert review: %w", err)
	}
	return &review, nil
}

// ListApprovedReviews returns approved reviews for a product, newest first.
func (s *PostgresStore) ListApprovedReviews(ctx context.Context, productHandle string, limit int) ([]Review, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, product_handle, author, rating, title, body, status, created_at
FROM reviews
WHERE product_handle = $1 AND status = $2
ORDER BY created_at DESC
LIMIT $3;
`
	rows, err := s.pool.Query(ctx, q, productHandle, ReviewStatusApproved, limit)
	if err != nil {
		return nil, fmt.Errorf("list approved reviews: %w", err)
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.ProductHandle, &rv.Author, &rv.Rating, &rv.Title, &rv.Body, &rv.Status, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return reviews, nil
}

// InsertWebhookEvent records a received platform webhook.
func (s *PostgresStore) InsertWebhookEvent(ctx context.Context, event WebhookEventRecord) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	const q = `
INSERT INTO webhook_events (id, topic, shop_domain, payload)
VALUES ($1, $2, $3, $4);
`
	if _, err := s.pool.Exec(ctx, q, event.ID, event.Topic, event.ShopDomain, event.Payload); err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}
