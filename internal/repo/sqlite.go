package repo

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore provides access to a local SQLite database. Used for
// single-node deployments and local development.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens a new connection to the SQLite database.
func NewSQLite(ctx context.Context, databasePath string, logger *slog.Logger) (*SQLiteStore, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	// Busy timeout and WAL mode are recommended for SQLite concurrency.
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn = fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL&_pragma=foreign_keys=ON", dsn, sep)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "repo_sqlite"),
	}, nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// Ping ensures the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunMigrations applies the SQLite variant of the schema migrations.
func (s *SQLiteStore) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	entries, err := fs.ReadDir(filesystem, "sqlite")
	if err != nil {
		return fmt.Errorf("read sqlite migrations: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		sqlBytes, err := fs.ReadFile(filesystem, "sqlite/"+entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if len(sqlBytes) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("execute migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// InsertReview stores a new review in pending status.
func (s *SQLiteStore) InsertReview(ctx context.Context, review Review) (*Review, error) {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.Status == "" {
		review.Status = ReviewStatusPending
	}
	const q = `
INSERT INTO reviews (id, product_handle, author, rating, title, body, status)
VALUES (?, ?, ?, ?, ?, ?, ?);
`
	if _, err := s.db.ExecContext(ctx, q,
		review.ID,
		review.ProductHandle,
		review.Author,
		review.Rating,
		review.Title,
		review.Body,
		review.Status,
	); err != nil {
		return nil, fmt.Errorf("insert review: %w", err)
	}

	const fetch = `SELECT created_at FROM reviews WHERE id = ?;`
	if err := s.db.QueryRowContext(ctx, fetch, review.ID).Scan(&review.CreatedAt); err != nil {
		return nil, fmt.Errorf("fetch inserted review: %w", err)
	}
	return &review, nil
}

// ListApprovedReviews returns approved reviews for a product, newest first.
func (s *SQLiteStore) ListApprovedReviews(ctx context.Context, productHandle string, limit int) ([]Review, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, product_handle, author, rating, title, body, status, created_at
FROM reviews
WHERE product_handle = ? AND status = ?
ORDER BY created_at DESC
LIMIT ?;
`
	rows, err := s.db.QueryContext(ctx, q, productHandle, ReviewStatusApproved, limit)
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
func (s *SQLiteStore) InsertWebhookEvent(ctx context.Context, event WebhookEventRecord) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	const q = `
INSERT INTO webhook_events (id, topic, shop_domain, payload)
VALUES (?, ?, ?, ?);
`
	if _, err := s.db.ExecContext(ctx, q, event.ID, event.Topic, event.ShopDomain, event.Payload); err != nil {
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}
