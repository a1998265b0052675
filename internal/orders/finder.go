package orders

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"nutrikart/internal/identity"
	"nutrikart/internal/metrics"
	"nutrikart/internal/shopify"
)

// scanQuery matches every recent order regardless of status; the phone pass
// filters the pages client-side because the platform's search grammar
// cannot express "any of these phone fields ends with these digits".
const scanQuery = "status:any"

// PageFetcher is the slice of the commerce client the finder needs.
type PageFetcher interface {
	SearchOrders(ctx context.Context, query string, first int, after string) (*shopify.OrdersPage, error)
	SearchOrdersByEmail(ctx context.Context, email string, pageSize int) ([]shopify.Order, error)
}

// Finder resolves which upstream orders belong to a caller. Orders placed
// through this storefront carry the synthesized account email; older orders
// (or ones placed over the phone with support) are only reachable by
// matching the caller's verified phone against the order's phone fields.
type Finder struct {
	client   PageFetcher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	maxPages int
	pageSize int
}

// NewFinder creates a Finder. maxPages bounds the phone-pass scan;
// pageSize is the upstream page size.
func NewFinder(client PageFetcher, logger *slog.Logger, m *metrics.Metrics, maxPages, pageSize int) *Finder {
	if maxPages <= 0 {
		maxPages = 10
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Finder{
		client:   client,
		logger:   logger.With("component", "order_finder"),
		metrics:  m,
		maxPages: maxPages,
		pageSize: pageSize,
	}
}

// FindForUser returns the caller's orders, newest first. The email pass is
// best-effort: a failure there is logged and treated as zero results. The
// phone pass is the primary channel when a phone is known and its failure
// fails the whole lookup. limit <= 0 returns all matches.
func (f *Finder) FindForUser(ctx context.Context, id identity.Identity, accountEmail string, limit int) ([]shopify.Order, error) {
	var byEmail []shopify.Order
	if accountEmail != "" {
		found, err := f.client.SearchOrdersByEmail(ctx, accountEmail, f.pageSize)
		if err != nil {
			f.logger.Warn("email order search failed, continuing with phone pass", "error", err)
			if f.metrics != nil {
				f.metrics.Errors.WithLabelValues("order_finder_email").Inc()
			}
		} else {
			byEmail = found
		}
	}

	byPhone, err := f.scanByPhone(ctx, id.Phone)
	if err != nil {
		return nil, err
	}

	merged := dedupeByID(append(byEmail, byPhone...))
	sortNewestFirst(merged)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// FindByPhone resolves orders for a raw phone string with no identity
// attached; the support channel uses this. Fail-hard like the phone pass.
func (f *Finder) FindByPhone(ctx context.Context, rawPhone string, limit int) ([]shopify.Order, error) {
	matches, err := f.scanByPhone(ctx, rawPhone)
	if err != nil {
		return nil, err
	}
	matches = dedupeByID(matches)
	sortNewestFirst(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// scanByPhone pages through recent orders matching the normalized phone
// against each order's phone candidates, bounded by maxPages. An empty
// phone skips the scan entirely and yields no matches.
func (f *Finder) scanByPhone(ctx context.Context, rawPhone string) ([]shopify.Order, error) {
	userPhone := NormalizePhone(rawPhone)
	if userPhone == "" {
		return nil, nil
	}

	var matches []shopify.Order
	cursor := ""
	for page := 0; page < f.maxPages; page++ {
		result, err := f.client.SearchOrders(ctx, scanQuery, f.pageSize, cursor)
		if err != nil {
			return nil, fmt.Errorf("phone scan page %d: %w", page+1, err)
		}
		for _, order := range result.Orders {
			if orderMatchesPhone(order, userPhone) {
				matches = append(matches, order)
			}
		}
		if len(result.Orders) < f.pageSize || !result.HasNextPage || result.EndCursor == "" {
			break
		}
		cursor = result.EndCursor
	}
	return matches, nil
}

func orderMatchesPhone(order shopify.Order, userPhone string) bool {
	for _, candidate := range order.PhoneCandidates() {
		if phoneMatches(userPhone, NormalizePhone(candidate)) {
			return true
		}
	}
	return false
}

// dedupeByID keeps the first occurrence per order id. Copies obtained via
// different search strategies are identical on shared fields, so which one
// survives is immaterial.
func dedupeByID(orders []shopify.Order) []shopify.Order {
	seen := make(map[string]struct{}, len(orders))
	out := orders[:0]
	for _, order := range orders {
		if _, dup := seen[order.ID]; dup {
			continue
		}
		seen[order.ID] = struct{}{}
		out = append(out, order)
	}
	return out
}

func sortNewestFirst(orders []shopify.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
