package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"nutrikart/internal/carrier"
	"nutrikart/internal/identity"
	"nutrikart/internal/orders"
	"nutrikart/internal/repo"
	"nutrikart/internal/shopify"

	"github.com/go-chi/chi/v5"
)

// Read endpoints degrade gracefully: when the commerce platform is not
// configured or a lookup fails, they answer 200 with an empty collection
// and an explanatory error field so the storefront can still render.
// Write endpoints (checkout) fail loudly instead.

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Shopify == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"products": []shopify.Product{},
			"error":    "product catalog not configured",
		})
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	first := queryInt(r, "first", 50)
	cacheKey := fmt.Sprintf("catalog:products:%s:%d", query, first)

	if s.deps.Redis != nil {
		var cached []shopify.Product
		ok, err := s.deps.Redis.GetJSON(r.Context(), cacheKey, &cached)
		if err != nil {
			s.logger.Warn("read catalog cache failed", "error", err)
		} else if ok {
			writeJSON(w, http.StatusOK, map[string]any{"products": cached})
			return
		}
	}

	products, err := s.deps.Shopify.Products(r.Context(), query, first)
	if err != nil {
		s.logger.Error("product list failed", "error", err)
		s.metrics.Errors.WithLabelValues("products").Inc()
		writeJSON(w, http.StatusOK, map[string]any{
			"products": []shopify.Product{},
			"error":    err.Error(),
		})
		return
	}

	if s.deps.Redis != nil {
		if err := s.deps.Redis.SetJSON(r.Context(), cacheKey, products, s.cfg.CatalogCacheTTL); err != nil {
			s.logger.Warn("set catalog cache failed", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if s.deps.Shopify == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"product": nil,
			"error":   "product catalog not configured",
		})
		return
	}

	product, err := s.deps.Shopify.ProductByHandle(r.Context(), handle)
	if err != nil {
		if errors.Is(err, shopify.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		s.logger.Error("product lookup failed", "error", err, "handle", handle)
		writeJSON(w, http.StatusOK, map[string]any{"product": nil, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

type checkoutRequest struct {
	Items []shopify.CheckoutItem `json:"items"`
	Note  string                 `json:"note"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items required")
		return
	}
	for _, item := range req.Items {
		if item.VariantID == "" || item.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "each item needs a variantId and a positive quantity")
			return
		}
	}

	// Checkouts made while signed in are tagged with the synthesized
	// account email so order history can find them; guest checkouts are
	// created untagged.
	accountEmail := ""
	if token := r.Header.Get("Authorization"); token != "" {
		id, err := s.deps.Verifier.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid identity token")
			return
		}
		accountEmail = s.cfg.AccountEmailFor(id)
	}

	if s.deps.Shopify == nil {
		writeError(w, http.StatusInternalServerError, "checkout not configured")
		return
	}

	draft, err := s.deps.Shopify.CreateDraftOrder(r.Context(), accountEmail, req.Items, req.Note)
	if err != nil {
		var userErrs shopify.UserErrorList
		if errors.As(err, &userErrs) {
			writeError(w, http.StatusBadRequest, userErrs.Error())
			return
		}
		s.logger.Error("checkout failed", "error", err)
		s.metrics.Errors.WithLabelValues("checkout").Inc()
		writeError(w, http.StatusBadGateway, "checkout failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"draftOrderId": draft.ID,
		"invoiceUrl":   draft.InvoiceURL,
	})
}

func (s *Server) handleAccountOrders(w http.ResponseWriter, r *http.Request) {
	id, err := s.bearerIdentity(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":  "invalid identity token",
			"orders": []orders.PresentedOrder{},
		})
		return
	}

	if s.deps.Finder == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"orders": []orders.PresentedOrder{},
			"error":  "order lookup not configured",
		})
		return
	}

	limit := queryInt(r, "limit", 0)
	found, err := s.deps.Finder.FindForUser(r.Context(), id, s.cfg.AccountEmailFor(id), limit)
	if err != nil {
		s.logger.Error("account order lookup failed", "error", err, "account", id.AccountID)
		s.metrics.OrderLookups.WithLabelValues("account", "error").Inc()
		writeJSON(w, http.StatusOK, map[string]any{
			"orders": []orders.PresentedOrder{},
			"error":  "order lookup failed",
		})
		return
	}

	outcome := "ok"
	if len(found) == 0 {
		outcome = "empty"
	}
	s.metrics.OrderLookups.WithLabelValues("account", outcome).Inc()
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders.PresentAll(found)})
}

func (s *Server) handleAccountOrder(w http.ResponseWriter, r *http.Request) {
	id, err := s.bearerIdentity(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid identity token")
		return
	}
	if s.deps.Finder == nil {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	wanted := chi.URLParam(r, "id")
	found, err := s.deps.Finder.FindForUser(r.Context(), id, s.cfg.AccountEmailFor(id), 0)
	if err != nil {
		s.logger.Error("account order lookup failed", "error", err, "account", id.AccountID)
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	for _, order := range found {
		if order.ID == wanted || order.Name == wanted || strings.TrimPrefix(order.Name, "#") == wanted {
			writeJSON(w, http.StatusOK, map[string]any{"order": orders.Present(order)})
			return
		}
	}
	writeError(w, http.StatusNotFound, "order not found")
}

type supportLookupRequest struct {
	Phone string `json:"phone"`
	Limit int    `json:"limit"`
}

func (s *Server) handleSupportOrders(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get("X-Support-Secret")
	if s.cfg.SupportSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.SupportSecret)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req supportLookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		writeError(w, http.StatusBadRequest, "phone required")
		return
	}

	if s.deps.Finder == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"found":  false,
			"order":  nil,
			"orders": []orders.PresentedOrder{},
			"count":  0,
			"error":  "order lookup not configured",
		})
		return
	}

	found, err := s.deps.Finder.FindByPhone(r.Context(), req.Phone, req.Limit)
	if err != nil {
		s.logger.Error("support order lookup failed", "error", err)
		s.metrics.OrderLookups.WithLabelValues("support", "error").Inc()
		writeJSON(w, http.StatusOK, map[string]any{
			"found":  false,
			"order":  nil,
			"orders": []orders.PresentedOrder{},
			"count":  0,
			"error":  "order lookup failed",
		})
		return
	}

	presented := orders.PresentAll(found)
	var newest *orders.PresentedOrder
	if len(presented) > 0 {
		newest = &presented[0]
	}
	outcome := "ok"
	if len(presented) == 0 {
		outcome = "empty"
	}
	s.metrics.OrderLookups.WithLabelValues("support", outcome).Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"found":  len(presented) > 0,
		"order":  newest,
		"orders": presented,
		"count":  len(presented),
	})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if s.deps.Carrier == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"shipment": nil,
			"error":    "shipment tracking not configured",
		})
		return
	}

	shipment, err := s.deps.Carrier.Track(r.Context(), number)
	if err != nil {
		if errors.Is(err, carrier.ErrShipmentNotFound) {
			writeError(w, http.StatusNotFound, "shipment not found")
			return
		}
		s.logger.Error("tracking lookup failed", "error", err, "number", number)
		s.metrics.Errors.WithLabelValues("tracking").Inc()
		writeJSON(w, http.StatusOK, map[string]any{"shipment": nil, "error": "tracking lookup failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shipment": shipment})
}

type reviewResponse struct {
	ID            string `json:"id"`
	ProductHandle string `json:"productHandle"`
	Author        string `json:"author"`
	Rating        int    `json:"rating"`
	Title         string `json:"title,omitempty"`
	Body          string `json:"body"`
	CreatedAt     string `json:"createdAt"`
}

func presentReview(rv repo.Review) reviewResponse {
	return reviewResponse{
		ID:            rv.ID,
		ProductHandle: rv.ProductHandle,
		Author:        rv.Author,
		Rating:        rv.Rating,
		Title:         rv.Title,
		Body:          rv.Body,
		CreatedAt:     rv.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	limit := queryInt(r, "limit", 20)

	reviews, err := s.deps.Store.ListApprovedReviews(r.Context(), handle, limit)
	if err != nil {
		s.logger.Error("list reviews failed", "error", err, "handle", handle)
		writeJSON(w, http.StatusOK, map[string]any{
			"reviews": []reviewResponse{},
			"error":   "reviews unavailable",
		})
		return
	}

	out := make([]reviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		out = append(out, presentReview(rv))
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": out})
}

type createReviewRequest struct {
	ProductHandle string `json:"productHandle"`
	Author        string `json:"author"`
	Rating        int    `json:"rating"`
	Title         string `json:"title"`
	Body          string `json:"body"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.ProductHandle) == "" || strings.TrimSpace(req.Author) == "" || strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "productHandle, author and body are required")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	inserted, err := s.deps.Store.InsertReview(r.Context(), repo.Review{
		ProductHandle: strings.TrimSpace(req.ProductHandle),
		Author:        strings.TrimSpace(req.Author),
		Rating:        req.Rating,
		Title:         strings.TrimSpace(req.Title),
		Body:          strings.TrimSpace(req.Body),
	})
	if err != nil {
		s.logger.Error("insert review failed", "error", err)
		s.metrics.Errors.WithLabelValues("reviews").Inc()
		writeError(w, http.StatusInternalServerError, "could not save review")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"review": presentReview(*inserted)})
}

func (s *Server) bearerIdentity(r *http.Request) (identity.Identity, error) {
	return s.deps.Verifier.Verify(r.Header.Get("Authorization"))
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
