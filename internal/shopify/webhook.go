package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"nutrikart/internal/metrics"

	"log/slog"
)

// WebhookEvent contains metadata and payload from a Shopify webhook.
type WebhookEvent struct {
	Topic      string
	ShopDomain string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// WebhookProcessor defines the handler interface for platform events.
type WebhookProcessor interface {
	HandleShopifyEvent(ctx context.Context, event WebhookEvent) error
}

// WebhookHandler verifies the Shopify HMAC signature and forwards events.
type WebhookHandler struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	secret    []byte
	processor WebhookProcessor
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(logger *slog.Logger, m *metrics.Metrics, secret string, processor WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{
		logger:    logger.With("component", "shopify_webhook"),
		metrics:   m,
		secret:    []byte(secret),
		processor: processor,
	}
}

// ServeHTTP satisfies http.Handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.metrics.Errors.WithLabelValues("shopify_webhook").Inc()
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if !h.validSignature(r.Header.Get("X-Shopify-Hmac-Sha256"), body) {
		h.metrics.Errors.WithLabelValues("shopify_webhook_auth").Inc()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	event := WebhookEvent{
		Topic:      r.Header.Get("X-Shopify-Topic"),
		ShopDomain: r.Header.Get("X-Shopify-Shop-Domain"),
		Payload:    body,
		ReceivedAt: time.Now(),
	}

	if h.processor != nil {
		if err := h.processor.HandleShopifyEvent(r.Context(), event); err != nil {
			h.logger.Error("failed processing webhook", "error", err, "topic", event.Topic)
			h.metrics.Errors.WithLabelValues("shopify_webhook_process").Inc()
			http.Error(w, "failed to process", http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// validSignature checks the base64 HMAC-SHA256 digest Shopify sends over
// the raw request body.
func (h *WebhookHandler) validSignature(header string, body []byte) bool {
	if len(h.secret) == 0 || header == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(header)) == 1
}
