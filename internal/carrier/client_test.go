package carrier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const trackingBody = `{
	"tracking_data": {
		"track_status": 1,
		"shipment_track": [{"current_status": "In Transit", "edd": "2025-05-10"}],
		"shipment_track_activities": [
			{"date": "2025-05-08 14:22:00", "activity": "Reached hub", "location": "Mumbai"},
			{"date": "2025-05-07 09:00:00", "activity": "Picked up", "location": "Pune"}
		]
	}
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Config{
		BaseURL:  srv.URL,
		Email:    "ops@nutrikart.example",
		Password: "carrier-pass",
		Timeout:  5 * time.Second,
	}, testLogger(), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewUnconfigured(t *testing.T) {
	if _, err := New(Config{BaseURL: "https://api.example"}, testLogger(), nil); !errors.Is(err, ErrUnconfigured) {
		t.Fatalf("expected ErrUnconfigured, got %v", err)
	}
}

func TestTrackReusesAuthToken(t *testing.T) {
	logins := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/external/auth/login", func(w http.ResponseWriter, r *http.Request) {
		logins++
		w.Write([]byte(`{"token": "carrier-jwt"}`))
	})
	mux.HandleFunc("/v1/external/courier/track/awb/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer carrier-jwt" {
			t.Errorf("authorization header = %q", got)
		}
		w.Write([]byte(trackingBody))
	})
	client := testClient(t, mux)

	for i := 0; i < 2; i++ {
		if _, err := client.Track(context.Background(), "AWB123"); err != nil {
			t.Fatalf("track %d: %v", i, err)
		}
	}
	if logins != 1 {
		t.Fatalf("expected a single login across requests, got %d", logins)
	}
}

func TestTrackReauthenticatesAfterExpiry(t *testing.T) {
	logins := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/external/auth/login", func(w http.ResponseWriter, r *http.Request) {
		logins++
		w.Write([]byte(`{"token": "carrier-jwt"}`))
	})
	mux.HandleFunc("/v1/external/courier/track/awb/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(trackingBody))
	})
	client := testClient(t, mux)

	if _, err := client.Track(context.Background(), "AWB123"); err != nil {
		t.Fatalf("first track: %v", err)
	}
	client.mu.Lock()
	client.tokenExpiry = time.Now().Add(-time.Minute)
	client.mu.Unlock()
	if _, err := client.Track(context.Background(), "AWB123"); err != nil {
		t.Fatalf("second track: %v", err)
	}
	if logins != 2 {
		t.Fatalf("expected re-login after expiry, got %d logins", logins)
	}
}

func TestTrackNormalizesShipment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/external/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token": "carrier-jwt"}`))
	})
	mux.HandleFunc("/v1/external/courier/track/awb/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(trackingBody))
	})
	client := testClient(t, mux)

	shipment, err := client.Track(context.Background(), "AWB123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shipment.Status != StatusInTransit || shipment.StatusRaw != "In Transit" {
		t.Fatalf("unexpected status: %+v", shipment)
	}
	if shipment.ETA != "2025-05-10" {
		t.Fatalf("eta = %q", shipment.ETA)
	}
	if len(shipment.Checkpoints) != 2 || shipment.Checkpoints[0].Location != "Mumbai" {
		t.Fatalf("unexpected checkpoints: %+v", shipment.Checkpoints)
	}
	if shipment.Checkpoints[0].Time.IsZero() {
		t.Fatal("checkpoint time not parsed")
	}
}

func TestTrackShipmentNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/external/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token": "carrier-jwt"}`))
	})
	mux.HandleFunc("/v1/external/courier/track/awb/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"tracking_data": {"track_status": 0, "shipment_track": []}}`))
	})
	client := testClient(t, mux)

	if _, err := client.Track(context.Background(), "NOPE"); !errors.Is(err, ErrShipmentNotFound) {
		t.Fatalf("expected ErrShipmentNotFound, got %v", err)
	}
}

func TestTrackUpstream404(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/external/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token": "carrier-jwt"}`))
	})
	mux.HandleFunc("/v1/external/courier/track/awb/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	client := testClient(t, mux)

	if _, err := client.Track(context.Background(), "NOPE"); !errors.Is(err, ErrShipmentNotFound) {
		t.Fatalf("expected ErrShipmentNotFound, got %v", err)
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Delivered", StatusDelivered},
		{"OUT FOR DELIVERY", StatusOutForDelivery},
		{"ofd", StatusOutForDelivery},
		{"In Transit", StatusInTransit},
		{"shipped", StatusInTransit},
		{"Picked Up", StatusInTransit},
		{"", StatusUnknown},
		{"RTO Initiated", StatusUnknown},
	}
	for _, c := range cases {
		if got := normalizeStatus(c.in); got != c.want {
			t.Fatalf("normalizeStatus(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
