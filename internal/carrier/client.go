package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"nutrikart/internal/metrics"

	"log/slog"
)

// Normalized shipment statuses.
const (
	StatusUnknown        = "UNKNOWN"
	StatusInTransit      = "IN_TRANSIT"
	StatusOutForDelivery = "OUT_FOR_DELIVERY"
	StatusDelivered      = "DELIVERED"
)

// tokenValidity is how long a carrier auth token is reused before
// re-authenticating; the carrier issues 10-day tokens, stay well inside.
const tokenValidity = 9 * 24 * time.Hour

var (
	// ErrUnconfigured indicates carrier credentials are missing.
	ErrUnconfigured = errors.New("carrier credentials not configured")
	// ErrShipmentNotFound indicates the tracking number is unknown upstream.
	ErrShipmentNotFound = errors.New("shipment not found")
)

// Client provides access to the shipping carrier's tracking API.
type Client struct {
	logger  *slog.Logger
	baseURL string
	email   string
	pass    string
	http    *http.Client
	metrics *metrics.Metrics

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// Config holds carrier client configuration.
type Config struct {
	BaseURL  string
	Email    string
	Password string
	Timeout  time.Duration
}

// Checkpoint is one scan event on a shipment's journey.
type Checkpoint struct {
	Status   string    `json:"status"`
	Location string    `json:"location,omitempty"`
	Time     time.Time `json:"time"`
}

// Shipment is the normalized tracking result.
type Shipment struct {
	Number      string       `json:"number"`
	Status      string       `json:"status"`
	StatusRaw   string       `json:"statusRaw"`
	ETA         string       `json:"eta,omitempty"`
	Checkpoints []Checkpoint `json:"checkpoints"`
}

// New creates a carrier client. Returns ErrUnconfigured when credentials
// are absent so the tracking route can degrade.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) (*Client, error) {
	if cfg.BaseURL == "" || cfg.Email == "" || cfg.Password == "" {
		return nil, ErrUnconfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		logger:  logger.With("component", "carrier"),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		email:   cfg.Email,
		pass:    cfg.Password,
		http:    &http.Client{Timeout: timeout},
		metrics: m,
	}, nil
}

// authToken returns a valid token, logging in only when the cached one has
// expired. The mutex keeps concurrent requests from racing into duplicate
// logins.
func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.pass,
	})
	if err != nil {
		return "", fmt.Errorf("marshal login: %w", err)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/external/auth/login", "", bytes.NewReader(body), &result); err != nil {
		return "", fmt.Errorf("carrier login: %w", err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("carrier login: empty token")
	}

	c.token = result.Token
	c.tokenExpiry = time.Now().Add(tokenValidity)
	return c.token, nil
}

// Track fetches tracking info for an AWB / tracking number.
func (c *Client) Track(ctx context.Context, number string) (*Shipment, error) {
	token, err := c.authToken(ctx)
	if err != nil {
		return nil, err
	}

	var result struct {
		TrackingData struct {
			TrackStatus   int    `json:"track_status"`
			ShipmentTrack []struct {
				CurrentStatus string `json:"current_status"`
				EDD           string `json:"edd"`
			} `json:"shipment_track"`
			ShipmentTrackActivities []struct {
				Date     string `json:"date"`
				Activity string `json:"activity"`
				Location string `json:"location"`
			} `json:"shipment_track_activities"`
		} `json:"tracking_data"`
	}
	endpoint := "/v1/external/courier/track/awb/" + number
	if err := c.call(ctx, http.MethodGet, endpoint, token, nil, &result); err != nil {
		return nil, err
	}
	if result.TrackingData.TrackStatus == 0 && len(result.TrackingData.ShipmentTrack) == 0 {
		return nil, ErrShipmentNotFound
	}

	shipment := &Shipment{Number: number, Status: StatusUnknown}
	if len(result.TrackingData.ShipmentTrack) > 0 {
		raw := result.TrackingData.ShipmentTrack[0].CurrentStatus
		shipment.StatusRaw = raw
		shipment.Status = normalizeStatus(raw)
		shipment.ETA = result.TrackingData.ShipmentTrack[0].EDD
	}
	for _, act := range result.TrackingData.ShipmentTrackActivities {
		cp := Checkpoint{Status: act.Activity, Location: act.Location}
		if ts, err := time.Parse("2006-01-02 15:04:05", act.Date); err == nil {
			cp.Time = ts
		}
		shipment.Checkpoints = append(shipment.Checkpoints, cp)
	}
	return shipment, nil
}

func (c *Client) call(ctx context.Context, method, endpoint, token string, body io.Reader, dest any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.CarrierRequests.WithLabelValues(endpoint, "error").Inc()
		}
		return fmt.Errorf("carrier request: %w", err)
	}
	defer res.Body.Close()

	duration := time.Since(start).Seconds()
	statusLabel := fmt.Sprintf("%d", res.StatusCode)
	if c.metrics != nil {
		c.metrics.CarrierRequests.WithLabelValues(endpoint, statusLabel).Inc()
		c.metrics.CarrierLatency.WithLabelValues(endpoint, statusLabel).Observe(duration)
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode == http.StatusNotFound {
		return ErrShipmentNotFound
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("carrier %s error: status=%d body=%s", endpoint, res.StatusCode, strings.TrimSpace(string(raw)))
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func normalizeStatus(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "":
		return StatusUnknown
	case "DELIVERED":
		return StatusDelivered
	case "OUT FOR DELIVERY", "OUT_FOR_DELIVERY", "OFD":
		return StatusOutForDelivery
	case "IN TRANSIT", "IN_TRANSIT", "SHIPPED", "PICKED UP", "PICKED_UP", "REACHED AT DESTINATION HUB":
		return StatusInTransit
	default:
		return StatusUnknown
	}
}
