package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"nutrikart/internal/cache"
	"nutrikart/internal/metrics"
	"nutrikart/internal/repo"
	"nutrikart/internal/shopify"
)

// Processor handles verified platform webhooks: every event is recorded for
// auditing, and product events additionally drop the cached catalog so the
// storefront serves fresh data.
type Processor struct {
	store   repo.Store
	redis   *cache.Redis
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a webhook processor. redis may be nil when caching is off.
func New(store repo.Store, redis *cache.Redis, m *metrics.Metrics, logger *slog.Logger) *Processor {
	return &Processor{
		store:   store,
		redis:   redis,
		metrics: m,
		logger:  logger.With("component", "webhook_processor"),
	}
}

// HandleShopifyEvent implements shopify.WebhookProcessor.
func (p *Processor) HandleShopifyEvent(ctx context.Context, event shopify.WebhookEvent) error {
	if err := p.store.InsertWebhookEvent(ctx, repo.WebhookEventRecord{
		Topic:      event.Topic,
		ShopDomain: event.ShopDomain,
		Payload:    event.Payload,
		ReceivedAt: event.ReceivedAt,
	}); err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}

	if p.redis != nil && strings.HasPrefix(event.Topic, "products/") {
		if err := p.redis.DeletePrefix(ctx, "catalog:"); err != nil {
			// Stale cache entries expire on their own TTL; log and move on.
			p.logger.Warn("catalog cache invalidation failed", "error", err)
			p.metrics.Errors.WithLabelValues("webhook_cache").Inc()
		}
	}

	p.logger.Info("webhook processed", "topic", event.Topic, "shop", event.ShopDomain)
	return nil
}
