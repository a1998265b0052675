package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nutrikart/internal/cache"
	"nutrikart/internal/carrier"
	"nutrikart/internal/config"
	"nutrikart/internal/events"
	"nutrikart/internal/httpserver"
	"nutrikart/internal/identity"
	"nutrikart/internal/logging"
	"nutrikart/internal/metrics"
	"nutrikart/internal/orders"
	"nutrikart/internal/repo"
	"nutrikart/internal/shopify"
	"nutrikart/migrations"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogJSON)
	logger.Info("starting storefront api", "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	var store repo.Store
	switch cfg.DatabaseDriver {
	case "postgres":
		pg, err := repo.NewPostgres(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, logger)
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		store = pg
	default:
		lite, err := repo.NewSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return fmt.Errorf("init sqlite store: %w", err)
		}
		store = lite
	}
	defer store.Close()

	if err := store.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated", "driver", cfg.DatabaseDriver)

	var redisClient *cache.Redis
	if cfg.RedisAddr != "" {
		redisClient = cache.New(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			UseTLS:   cfg.RedisTLS,
		}, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("failed closing redis", "error", err)
			}
		}()
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("redis ping failed, catalog caching degraded", "error", err)
		}
	}

	shopClient, err := shopify.New(shopify.Config{
		ShopDomain:  cfg.ShopifyShopDomain,
		AccessToken: cfg.ShopifyAccessToken,
		APIVersion:  cfg.ShopifyAPIVersion,
		Timeout:     cfg.ShopifyTimeout,
	}, logger, metricRegistry)
	if err != nil {
		if !errors.Is(err, shopify.ErrUnconfigured) {
			return fmt.Errorf("init shopify client: %w", err)
		}
		logger.Warn("shopify credentials missing, catalog and order routes degraded")
		shopClient = nil
	}

	var finder *orders.Finder
	if shopClient != nil {
		finder = orders.NewFinder(shopClient, logger, metricRegistry, cfg.OrderScanMaxPages, cfg.OrderPageSize)
	}

	carrierClient, err := carrier.New(carrier.Config{
		BaseURL:  cfg.CarrierBaseURL,
		Email:    cfg.CarrierEmail,
		Password: cfg.CarrierPassword,
		Timeout:  cfg.CarrierTimeout,
	}, logger, metricRegistry)
	if err != nil {
		if !errors.Is(err, carrier.ErrUnconfigured) {
			return fmt.Errorf("init carrier client: %w", err)
		}
		logger.Warn("carrier credentials missing, tracking route degraded")
		carrierClient = nil
	}

	verifier := identity.NewVerifier(cfg.IdentityJWTSecret, cfg.AccountEmailDomain)

	processor := events.New(store, redisClient, metricRegistry, logger)
	webhookHandler := shopify.NewWebhookHandler(logger, metricRegistry, cfg.ShopifyWebhookSecret, processor)

	srv := httpserver.New(httpserver.Config{
		ListenAddr:      cfg.HTTPListenAddr,
		AllowedOrigins:  cfg.AllowedOrigins,
		SupportSecret:   cfg.SupportSharedSecret,
		AccountEmailFor: verifier.AccountEmail,
		WebhookHandler:  webhookHandler,
	}, httpserver.Dependencies{
		Shopify:  shopClient,
		Finder:   finder,
		Verifier: verifier,
		Carrier:  carrierClient,
		Store:    store,
		Redis:    redisClient,
	}, logger, metricRegistry)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}
