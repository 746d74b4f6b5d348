/**
 * @description
 * This file sets up the HTTP router using the go-chi/chi router. It defines the
 * provider webhook routes, the Paystack redirect callback, the health check,
 * and the authenticated read API, and applies middleware for logging, panic
 * recovery, timeouts, and CORS preflight handling.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the service's routes.
func NewRouter(h *Handler, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Paystack-Signature", "X-Intasend-Signature"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Provider webhook endpoints. Paystack also drives the payer's browser
	// through a GET callback after checkout; IntaSend is POST-only.
	r.Post("/paystack-webhook", h.PaystackWebhookHandler)
	r.Get("/paystack-webhook", h.PaystackCallbackHandler)
	r.Post("/intasend-webhook", h.IntaSendWebhookHandler)

	// Authenticated read API for the mobile client's status polling.
	r.Group(func(r chi.Router) {
		r.Use(SupabaseAuthMiddleware(jwtSecret))

		r.Get("/subscriptions/{subscriptionID}", h.GetSubscriptionHandler)
		r.Get("/subscriptions/{subscriptionID}/transaction", h.GetSubscriptionTransactionHandler)
	})

	return r
}
