package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/AUTO-HOST/auto-host-backend/internal/bucket"
	"github.com/AUTO-HOST/auto-host-backend/internal/docstore"
	"github.com/AUTO-HOST/auto-host-backend/internal/market"
	"github.com/AUTO-HOST/auto-host-backend/internal/metrics"
	"github.com/AUTO-HOST/auto-host-backend/internal/ratelimit"
)

// Deps are the stores and settings the router is built from.
type Deps struct {
	DB                *sql.DB
	Docs              docstore.Store
	Images            *bucket.Bucket
	Metrics           *metrics.Metrics
	JWTSecret         string
	TokenTTL          time.Duration
	RequireMembership bool

	// AuthLimiter throttles registration and login per client address.
	// Nil disables throttling.
	AuthLimiter ratelimit.Limiter

	// Orders is used when set, so the caller can share it with the
	// reconciler.
	Orders *market.Orders
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	orders := d.Orders
	if orders == nil {
		orders = market.NewOrders(d.DB, d.Docs, d.Metrics)
	}

	usersHandler := &UsersHandler{DB: d.DB, JWTSecret: d.JWTSecret, TokenTTL: d.TokenTTL}
	productsHandler := &ProductsHandler{Catalog: market.NewCatalog(d.DB, d.Images, d.Metrics)}
	imagesHandler := &ImagesHandler{Images: d.Images}
	messagesHandler := &MessagesHandler{Conversations: market.NewConversations(d.DB, d.Docs, d.RequireMembership)}
	ordersHandler := &OrdersHandler{Orders: orders, Sales: market.NewSales(d.Docs)}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	limitRegister := RateLimit(d.AuthLimiter, "register")
	limitLogin := RateLimit(d.AuthLimiter, "login")

	// Users.
	mux.Handle("POST /api/users/register", limitRegister(http.HandlerFunc(usersHandler.Register)))
	mux.Handle("POST /api/users/login", limitLogin(http.HandlerFunc(usersHandler.Login)))
	mux.Handle("GET /api/users/profile", authMW(http.HandlerFunc(usersHandler.Profile)))
	mux.Handle("POST /api/users/logout", authMW(http.HandlerFunc(usersHandler.Logout)))

	// Products: browsing is public, changes need a token.
	mux.HandleFunc("GET /api/products", productsHandler.List)
	mux.HandleFunc("GET /api/products/{id}", productsHandler.Get)
	mux.Handle("POST /api/products", authMW(http.HandlerFunc(productsHandler.Create)))
	mux.Handle("PUT /api/products/{id}", authMW(http.HandlerFunc(productsHandler.Update)))
	mux.Handle("DELETE /api/products/{id}", authMW(http.HandlerFunc(productsHandler.Delete)))
	mux.HandleFunc("GET "+bucket.LocalURLPrefix+"{key...}", imagesHandler.Get)

	// Messages.
	mux.Handle("POST /api/messages/send", authMW(http.HandlerFunc(messagesHandler.Send)))
	mux.Handle("GET /api/messages/conversations", authMW(http.HandlerFunc(messagesHandler.ListConversations)))
	mux.Handle("GET /api/messages/{conversationId}/messages", authMW(http.HandlerFunc(messagesHandler.Messages)))

	// Orders and sales.
	mux.Handle("POST /api/orders", authMW(http.HandlerFunc(ordersHandler.Place)))
	mux.Handle("GET /api/orders", authMW(http.HandlerFunc(ordersHandler.List)))
	mux.Handle("GET /api/orders/{orderId}", authMW(http.HandlerFunc(ordersHandler.Get)))
	mux.Handle("GET /api/sales", authMW(http.HandlerFunc(ordersHandler.ListSales)))

	mux.HandleFunc("GET /healthz", health(d.DB))
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	return LoggingMiddleware(d.Metrics)(mux)
}

// health reports whether the relational store answers.
func health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			slog.Error("health check", "error", err)
			jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
