package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration, sourced from environment variables.
type Config struct {
	AppEnv   string
	LogLevel string
	LogJSON  bool

	HTTPListenAddr   string
	AllowedOrigins   []string
	MetricsNamespace string

	ShopifyShopDomain    string
	ShopifyAccessToken   string
	ShopifyAPIVersion    string
	ShopifyTimeout       time.Duration
	ShopifyWebhookSecret string

	// AccountEmailDomain is appended to the account id to synthesize the
	// placeholder email tagged onto checkouts (e.g. "customers.nutrikart.in").
	AccountEmailDomain  string
	IdentityJWTSecret   string
	SupportSharedSecret string

	OrderScanMaxPages int
	OrderPageSize     int

	CarrierBaseURL  string
	CarrierEmail    string
	CarrierPassword string
	CarrierTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	DatabaseDriver string
	DatabaseURL    string
	DatabaseSchema string
	SQLitePath     string
}

// Load reads configuration from the environment, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getBool("LOG_JSON", false),

		HTTPListenAddr:   getEnv("HTTP_LISTEN_ADDR", ":8080"),
		AllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "nutrikart"),

		ShopifyShopDomain:    getEnv("SHOPIFY_SHOP_DOMAIN", ""),
		ShopifyAccessToken:   getEnv("SHOPIFY_ACCESS_TOKEN", ""),
		ShopifyAPIVersion:    getEnv("SHOPIFY_API_VERSION", "2024-07"),
		ShopifyTimeout:       getDuration("SHOPIFY_TIMEOUT", 15*time.Second),
		ShopifyWebhookSecret: getEnv("SHOPIFY_WEBHOOK_SECRET", ""),

		AccountEmailDomain:  getEnv("ACCOUNT_EMAIL_DOMAIN", "customers.nutrikart.in"),
		IdentityJWTSecret:   getEnv("IDENTITY_JWT_SECRET", ""),
		SupportSharedSecret: getEnv("SUPPORT_SHARED_SECRET", ""),

		OrderScanMaxPages: getInt("ORDER_SCAN_MAX_PAGES", 10),
		OrderPageSize:     getInt("ORDER_PAGE_SIZE", 100),

		CarrierBaseURL:  getEnv("CARRIER_BASE_URL", ""),
		CarrierEmail:    getEnv("CARRIER_EMAIL", ""),
		CarrierPassword: getEnv("CARRIER_PASSWORD", ""),
		CarrierTimeout:  getDuration("CARRIER_TIMEOUT", 15*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		RedisTLS:      getBool("REDIS_TLS", false),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DatabaseSchema: getEnv("DATABASE_SCHEMA", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "data/nutrikart.db"),
	}

	if cfg.IdentityJWTSecret == "" {
		return Config{}, fmt.Errorf("IDENTITY_JWT_SECRET is required")
	}
	switch cfg.DatabaseDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required with DATABASE_DRIVER=postgres")
		}
	case "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	if cfg.OrderScanMaxPages <= 0 {
		cfg.OrderScanMaxPages = 10
	}
	if cfg.OrderPageSize <= 0 || cfg.OrderPageSize > 250 {
		cfg.OrderPageSize = 100
	}

	return cfg, nil
}

// ShopifyConfigured reports whether order/product search credentials exist.
func (c Config) ShopifyConfigured() bool {
	return c.ShopifyShopDomain != "" && c.ShopifyAccessToken != ""
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(strings.TrimSpace(val)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
