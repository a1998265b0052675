package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPListenAddr != ":8080" {
		t.Fatalf("listen addr = %q", cfg.HTTPListenAddr)
	}
	if cfg.OrderScanMaxPages != 10 || cfg.OrderPageSize != 100 {
		t.Fatalf("scan bounds = %d/%d", cfg.OrderScanMaxPages, cfg.OrderPageSize)
	}
	if cfg.DatabaseDriver != "sqlite" {
		t.Fatalf("database driver = %q", cfg.DatabaseDriver)
	}
	if cfg.ShopifyConfigured() {
		t.Fatal("shopify must not be configured without credentials")
	}
}

func TestLoadRequiresIdentitySecret(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without identity secret")
	}
}

func TestLoadPostgresRequiresURL(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "secret")
	t.Setenv("DATABASE_DRIVER", "postgres")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without database url")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost:5432/nutrikart")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Fatalf("database driver = %q", cfg.DatabaseDriver)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "secret")
	t.Setenv("DATABASE_DRIVER", "oracle")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestLoadClampsPageSize(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "secret")
	t.Setenv("ORDER_PAGE_SIZE", "500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OrderPageSize != 100 {
		t.Fatalf("page size = %d, want clamped default", cfg.OrderPageSize)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("IDENTITY_JWT_SECRET", "secret")
	t.Setenv("SHOPIFY_TIMEOUT", "30s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://nutrikart.in, https://www.nutrikart.in")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ShopifyTimeout != 30*time.Second {
		t.Fatalf("shopify timeout = %v", cfg.ShopifyTimeout)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://www.nutrikart.in" {
		t.Fatalf("allowed origins = %v", cfg.AllowedOrigins)
	}
}
