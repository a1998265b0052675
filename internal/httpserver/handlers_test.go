package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nutrikart/internal/identity"
	"nutrikart/internal/metrics"
	"nutrikart/internal/orders"
	"nutrikart/internal/repo"
	"nutrikart/internal/shopify"

	"github.com/golang-jwt/jwt/v5"
)

const testJWTSecret = "test-identity-secret"

type fakeStore struct {
	reviews   []repo.Review
	insertErr error
}

func (f *fakeStore) Close()                           {}
func (f *fakeStore) Ping(ctx context.Context) error   { return nil }
func (f *fakeStore) RunMigrations(ctx context.Context, filesystem fs.FS) error { return nil }

func (f *fakeStore) InsertReview(ctx context.Context, review repo.Review) (*repo.Review, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	review.ID = "rev_1"
	review.Status = repo.ReviewStatusPending
	review.CreatedAt = time.Now()
	f.reviews = append(f.reviews, review)
	return &review, nil
}

func (f *fakeStore) ListApprovedReviews(ctx context.Context, productHandle string, limit int) ([]repo.Review, error) {
	var out []repo.Review
	for _, rv := range f.reviews {
		if rv.ProductHandle == productHandle {
			out = append(out, rv)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertWebhookEvent(ctx context.Context, event repo.WebhookEventRecord) error {
	return nil
}

type fakeFetcher struct {
	pages       []*shopify.OrdersPage
	emailOrders []shopify.Order
	calls       int
}

func (f *fakeFetcher) SearchOrders(ctx context.Context, query string, first int, after string) (*shopify.OrdersPage, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.pages) {
		return &shopify.OrdersPage{}, nil
	}
	return f.pages[idx], nil
}

func (f *fakeFetcher) SearchOrdersByEmail(ctx context.Context, email string, pageSize int) ([]shopify.Order, error) {
	return f.emailOrders, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(t *testing.T, deps Dependencies) *Server {
	t.Helper()
	verifier := identity.NewVerifier(testJWTSecret, "customers.example.in")
	if deps.Verifier == nil {
		deps.Verifier = verifier
	}
	if deps.Store == nil {
		deps.Store = &fakeStore{}
	}
	cfg := Config{
		ListenAddr:    ":0",
		SupportSecret: "support-secret",
		AccountEmailFor: func(id identity.Identity) string {
			return verifier.AccountEmail(id)
		},
	}
	return New(cfg, deps, testLogger(), metrics.Registry("nutrikart"))
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func doRequest(t *testing.T, srv *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	srv := testServer(t, Dependencies{})
	rec, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("status=%d body=%v", rec.Code, body)
	}
}

func TestListProductsDegradesWithoutShopify(t *testing.T) {
	srv := testServer(t, Dependencies{})
	rec, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["error"] == "" || body["products"] == nil {
		t.Fatalf("expected degraded payload, got %v", body)
	}
}

func TestTrackDegradesWithoutCarrier(t *testing.T) {
	srv := testServer(t, Dependencies{})
	rec, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/track/AWB123", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["error"] == "" {
		t.Fatalf("expected degraded payload, got %v", body)
	}
}

func TestAccountOrdersRejectsInvalidToken(t *testing.T) {
	srv := testServer(t, Dependencies{})
	req := httptest.NewRequest(http.MethodGet, "/api/account/orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec, body := doRequest(t, srv, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if _, ok := body["orders"]; !ok {
		t.Fatalf("expected empty orders collection in body, got %v", body)
	}
}

func TestAccountOrdersReturnsMatches(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{
		pages: []*shopify.OrdersPage{{
			Orders: []shopify.Order{
				{ID: "X", Name: "#1001", Phone: "9876543210", CreatedAt: now},
				{ID: "Y", Name: "#1002", Phone: "9111111111", CreatedAt: now},
			},
		}},
	}
	finder := orders.NewFinder(fetcher, testLogger(), nil, 10, 100)
	srv := testServer(t, Dependencies{Finder: finder})

	req := httptest.NewRequest(http.MethodGet, "/api/account/orders", nil)
	req.Header.Set("Authorization", signedToken(t, jwt.MapClaims{
		"sub":          "acc_42",
		"phone_number": "+919876543210",
	}))
	rec, body := doRequest(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %v", rec.Code, body)
	}
	got, ok := body["orders"].([]any)
	if !ok || len(got) != 1 {
		t.Fatalf("expected one matching order, got %v", body["orders"])
	}
	order := got[0].(map[string]any)
	if order["id"] != "X" || order["orderNumber"] != "#1001" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestAccountOrderByNumber(t *testing.T) {
	fetcher := &fakeFetcher{
		emailOrders: []shopify.Order{
			{ID: "gid://shopify/Order/9", Name: "#1001", CreatedAt: time.Now()},
		},
	}
	finder := orders.NewFinder(fetcher, testLogger(), nil, 10, 100)
	srv := testServer(t, Dependencies{Finder: finder})

	req := httptest.NewRequest(http.MethodGet, "/api/account/orders/1001", nil)
	req.Header.Set("Authorization", signedToken(t, jwt.MapClaims{"sub": "acc_42"}))
	rec, body := doRequest(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %v", rec.Code, body)
	}
	order := body["order"].(map[string]any)
	if order["orderNumber"] != "#1001" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestAccountOrderNotFound(t *testing.T) {
	finder := orders.NewFinder(&fakeFetcher{}, testLogger(), nil, 10, 100)
	srv := testServer(t, Dependencies{Finder: finder})

	req := httptest.NewRequest(http.MethodGet, "/api/account/orders/9999", nil)
	req.Header.Set("Authorization", signedToken(t, jwt.MapClaims{"sub": "acc_42"}))
	rec, _ := doRequest(t, srv, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSupportOrdersRequiresSecret(t *testing.T) {
	srv := testServer(t, Dependencies{})
	req := httptest.NewRequest(http.MethodPost, "/api/support/orders", strings.NewReader(`{"phone": "9876543210"}`))
	req.Header.Set("X-Support-Secret", "wrong")
	rec, _ := doRequest(t, srv, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSupportOrdersUnconfiguredSecretAlwaysRejects(t *testing.T) {
	verifier := identity.NewVerifier(testJWTSecret, "customers.example.in")
	srv := New(Config{
		AccountEmailFor: verifier.AccountEmail,
	}, Dependencies{Verifier: verifier, Store: &fakeStore{}}, testLogger(), metrics.Registry("nutrikart"))

	req := httptest.NewRequest(http.MethodPost, "/api/support/orders", strings.NewReader(`{"phone": "9876543210"}`))
	req.Header.Set("X-Support-Secret", "")
	rec, _ := doRequest(t, srv, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSupportOrdersRequiresPhone(t *testing.T) {
	srv := testServer(t, Dependencies{})
	req := httptest.NewRequest(http.MethodPost, "/api/support/orders", strings.NewReader(`{"phone": "  "}`))
	req.Header.Set("X-Support-Secret", "support-secret")
	rec, _ := doRequest(t, srv, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSupportOrdersEnvelope(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{
		pages: []*shopify.OrdersPage{{
			Orders: []shopify.Order{
				{ID: "old", Name: "#1001", Phone: "9876543210", CreatedAt: now.Add(-time.Hour)},
				{ID: "new", Name: "#1002", Phone: "9876543210", CreatedAt: now},
			},
		}},
	}
	finder := orders.NewFinder(fetcher, testLogger(), nil, 10, 100)
	srv := testServer(t, Dependencies{Finder: finder})

	req := httptest.NewRequest(http.MethodPost, "/api/support/orders", strings.NewReader(`{"phone": "+91 98765 43210"}`))
	req.Header.Set("X-Support-Secret", "support-secret")
	rec, body := doRequest(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %v", rec.Code, body)
	}
	if body["found"] != true {
		t.Fatalf("found = %v, want true", body["found"])
	}
	if body["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", body["count"])
	}
	newest := body["order"].(map[string]any)
	if newest["id"] != "new" {
		t.Fatalf("order must be the newest match, got %v", newest)
	}
}

func TestSupportOrdersNoMatches(t *testing.T) {
	finder := orders.NewFinder(&fakeFetcher{}, testLogger(), nil, 10, 100)
	srv := testServer(t, Dependencies{Finder: finder})

	req := httptest.NewRequest(http.MethodPost, "/api/support/orders", strings.NewReader(`{"phone": "9000000000"}`))
	req.Header.Set("X-Support-Secret", "support-secret")
	rec, body := doRequest(t, srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["found"] != false || body["count"] != float64(0) || body["order"] != nil {
		t.Fatalf("unexpected empty envelope: %v", body)
	}
}

func TestCheckoutValidation(t *testing.T) {
	srv := testServer(t, Dependencies{})
	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"no items", `{"items": []}`},
		{"zero quantity", `{"items": [{"variantId": "v1", "quantity": 0}]}`},
		{"missing variant", `{"items": [{"quantity": 1}]}`},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(c.body))
		rec, _ := doRequest(t, srv, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", c.name, rec.Code)
		}
	}
}

func TestCheckoutRejectsBadToken(t *testing.T) {
	srv := testServer(t, Dependencies{})
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{"items": [{"variantId": "v1", "quantity": 1}]}`))
	req.Header.Set("Authorization", "Bearer garbage")
	rec, _ := doRequest(t, srv, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCheckoutUnconfigured(t *testing.T) {
	srv := testServer(t, Dependencies{})
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{"items": [{"variantId": "v1", "quantity": 1}]}`))
	rec, _ := doRequest(t, srv, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestCreateReview(t *testing.T) {
	store := &fakeStore{}
	srv := testServer(t, Dependencies{Store: store})

	payload := `{"productHandle": "whey-isolate", "author": "A Rao", "rating": 5, "body": "Mixes well."}`
	req := httptest.NewRequest(http.MethodPost, "/api/reviews", strings.NewReader(payload))
	rec, body := doRequest(t, srv, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %v", rec.Code, body)
	}
	review := body["review"].(map[string]any)
	if review["productHandle"] != "whey-isolate" || review["rating"] != float64(5) {
		t.Fatalf("unexpected review: %v", review)
	}
	if len(store.reviews) != 1 {
		t.Fatalf("review not persisted")
	}
}

func TestCreateReviewValidation(t *testing.T) {
	srv := testServer(t, Dependencies{})
	cases := []string{
		`{"author": "A", "rating": 5, "body": "x"}`,
		`{"productHandle": "p", "rating": 5, "body": "x"}`,
		`{"productHandle": "p", "author": "A", "rating": 6, "body": "x"}`,
		`{"productHandle": "p", "author": "A", "rating": 0, "body": "x"}`,
		`{"productHandle": "p", "author": "A", "rating": 3}`,
	}
	for _, payload := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/reviews", strings.NewReader(payload))
		rec, _ := doRequest(t, srv, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("payload %s: status = %d, want 400", payload, rec.Code)
		}
	}
}

func TestListReviewsOnlyForHandle(t *testing.T) {
	store := &fakeStore{reviews: []repo.Review{
		{ID: "r1", ProductHandle: "whey-isolate", Author: "A", Rating: 5, Body: "Good", Status: repo.ReviewStatusApproved},
		{ID: "r2", ProductHandle: "creatine", Author: "B", Rating: 4, Body: "Fine", Status: repo.ReviewStatusApproved},
	}}
	srv := testServer(t, Dependencies{Store: store})

	rec, body := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/products/whey-isolate/reviews", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	got := body["reviews"].([]any)
	if len(got) != 1 {
		t.Fatalf("expected one review for handle, got %v", got)
	}
}
