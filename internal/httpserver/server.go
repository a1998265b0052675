package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"nutrikart/internal/cache"
	"nutrikart/internal/carrier"
	"nutrikart/internal/identity"
	"nutrikart/internal/metrics"
	"nutrikart/internal/orders"
	"nutrikart/internal/repo"
	"nutrikart/internal/shopify"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies exposes core collaborators to the route handlers. Shopify,
// Carrier and Redis may be nil when unconfigured; the affected routes
// degrade instead of failing at startup.
type Dependencies struct {
	Shopify  *shopify.Client
	Finder   *orders.Finder
	Verifier *identity.Verifier
	Carrier  *carrier.Client
	Store    repo.Store
	Redis    *cache.Redis
}

// Config holds server-level settings.
type Config struct {
	ListenAddr      string
	AllowedOrigins  []string
	SupportSecret   string
	AccountEmailFor func(identity.Identity) string
	CatalogCacheTTL time.Duration
	WebhookHandler  http.Handler
}

// Server wraps an http.Server with the storefront API routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	deps       Dependencies
	cfg        Config
}

// New creates the storefront API server.
func New(cfg Config, deps Dependencies, logger *slog.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		logger:  logger.With("component", "http"),
		metrics: m,
		deps:    deps,
		cfg:     cfg,
	}
	if s.cfg.CatalogCacheTTL <= 0 {
		s.cfg.CatalogCacheTTL = 5 * time.Minute
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Support-Secret"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/products", s.handleListProducts)
		r.Get("/products/{handle}", s.handleGetProduct)
		r.Get("/products/{handle}/reviews", s.handleListReviews)
		r.Post("/reviews", s.handleCreateReview)
		r.Post("/checkout", s.handleCheckout)
		r.Get("/account/orders", s.handleAccountOrders)
		r.Get("/account/orders/{id}", s.handleAccountOrder)
		r.Post("/support/orders", s.handleSupportOrders)
		r.Get("/track/{number}", s.handleTrack)
	})

	if cfg.WebhookHandler != nil {
		router.Handle("/webhook/shopify", cfg.WebhookHandler)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
