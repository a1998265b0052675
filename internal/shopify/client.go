package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nutrikart/internal/metrics"

	"log/slog"
)

var (
	// ErrUnconfigured indicates the shop domain or access token is missing.
	ErrUnconfigured = errors.New("shopify credentials not configured")
	// ErrNotFound indicates the requested resource does not exist upstream.
	ErrNotFound = errors.New("shopify resource not found")
)

// Client provides typed access to the Shopify Admin GraphQL API.
type Client struct {
	logger     *slog.Logger
	endpoint   string
	token      string
	apiVersion string
	http       *http.Client
	metrics    *metrics.Metrics
}

// Config holds Shopify client configuration.
type Config struct {
	ShopDomain  string
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
}

// UserError mirrors the userErrors entries Shopify mutations return.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UserErrorList wraps a non-empty userErrors payload as a Go error so the
// upstream's own message text reaches the caller.
type UserErrorList []UserError

func (l UserErrorList) Error() string {
	msgs := make([]string, 0, len(l))
	for _, ue := range l {
		msgs = append(msgs, ue.Message)
	}
	return "shopify user errors: " + strings.Join(msgs, "; ")
}

// graphqlEnvelope mirrors the top-level GraphQL response shape.
type graphqlEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// New creates a Shopify Admin API client. Returns ErrUnconfigured when the
// shop domain or token is absent, so callers can degrade gracefully.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.ShopDomain == "" || cfg.AccessToken == "" {
		return nil, ErrUnconfigured
	}
	version := cfg.APIVersion
	if version == "" {
		version = "2024-07"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	domain := strings.TrimRight(cfg.ShopDomain, "/")
	if !strings.Contains(domain, ".") {
		domain += ".myshopify.com"
	}
	if !strings.HasPrefix(domain, "http") {
		domain = "https://" + domain
	}
	return &Client{
		logger:     logger.With("component", "shopify"),
		endpoint:   fmt.Sprintf("%s/admin/api/%s/graphql.json", domain, version),
		token:      cfg.AccessToken,
		apiVersion: version,
		http:       &http.Client{Timeout: timeout},
		metrics:    m,
	}, nil
}

// Execute runs a GraphQL operation and returns the raw data payload.
// GraphQL-level errors are folded into the returned error with the
// upstream message preserved.
func (c *Client) Execute(ctx context.Context, operation, query string, variables map[string]any) (json.RawMessage, error) {
	payload := map[string]any{"query": query}
	if len(variables) > 0 {
		payload["variables"] = variables
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("User-Agent", "nutrikart/shopify-client")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.ShopifyRequests.WithLabelValues(operation, "error").Inc()
		}
		return nil, fmt.Errorf("shopify request: %w", err)
	}
	defer res.Body.Close()

	duration := time.Since(start).Seconds()
	statusLabel := fmt.Sprintf("%d", res.StatusCode)
	if c.metrics != nil {
		c.metrics.ShopifyRequests.WithLabelValues(operation, statusLabel).Inc()
		c.metrics.ShopifyLatency.WithLabelValues(operation, statusLabel).Observe(duration)
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("shopify %s error: status=%d body=%s", operation, res.StatusCode, strings.TrimSpace(string(raw)))
	}

	var env graphqlEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("shopify %s error: %s", operation, strings.Join(msgs, "; "))
	}
	return env.Data, nil
}

// quoteQueryValue escapes a value for use inside the Shopify search grammar,
// e.g. email:"a@b" with embedded quotes or backslashes made literal.
func quoteQueryValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}
