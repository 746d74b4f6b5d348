/**
 * @description
 * This file contains the HTTP handlers for the provider webhook endpoints and
 * the authenticated read API. The webhook handlers are the entry point for all
 * asynchronous payment notifications and run the full pipeline: signature
 * verification over the raw body, payload normalization, then reconciliation.
 *
 * Key features:
 * - Security: the raw request body is buffered once and verified before any
 *   JSON decoding or store access happens.
 * - Idempotence: duplicate deliveries are acknowledged with 200 so the
 *   provider's retry logic stops, while the engine guarantees no side effects
 *   re-run.
 * - The Paystack GET callback is a pure UX bounce into the mobile client's deep
 *   link; it never mutates state.
 *
 * @dependencies
 * - encoding/json, io, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store, internal/webhook: pipeline stages.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gokkuu100/konserve-cp-sub003/internal/app"
	"github.com/gokkuu100/konserve-cp-sub003/internal/domain"
	"github.com/gokkuu100/konserve-cp-sub003/internal/store"
	"github.com/gokkuu100/konserve-cp-sub003/internal/webhook"
)

// Handler holds the dependencies the HTTP layer needs.
type Handler struct {
	reconciler     *app.Reconciler
	repo           store.Repository
	verifiers      map[domain.Provider]*webhook.Verifier
	deepLinkScheme string
}

// NewHandler creates a new Handler.
func NewHandler(reconciler *app.Reconciler, repo store.Repository, verifiers map[domain.Provider]*webhook.Verifier, deepLinkScheme string) *Handler {
	return &Handler{
		reconciler:     reconciler,
		repo:           repo,
		verifiers:      verifiers,
		deepLinkScheme: deepLinkScheme,
	}
}

// PaystackWebhookHandler handles POSTed card-processor notifications.
func (h *Handler) PaystackWebhookHandler(w http.ResponseWriter, r *http.Request) {
	h.handleProviderWebhook(w, r, domain.ProviderPaystack)
}

// IntaSendWebhookHandler handles POSTed mobile-money notifications.
func (h *Handler) IntaSendWebhookHandler(w http.ResponseWriter, r *http.Request) {
	h.handleProviderWebhook(w, r, domain.ProviderIntaSend)
}

func (h *Handler) handleProviderWebhook(w http.ResponseWriter, r *http.Request, provider domain.Provider) {
	// Buffer the raw body once: signature verification must see the exact bytes
	// that arrived on the wire, not a re-serialization.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("level=warn component=api provider=%s outcome=reject reason=unreadable_body err=%v", provider, err)
		h.writeError(w, http.StatusBadRequest, "Cannot read request body", "")
		return
	}

	verifier := h.verifiers[provider]
	if verifier != nil {
		if err := verifier.Verify(body, r.Header.Get(webhook.SignatureHeader(provider))); err != nil {
			log.Printf("level=warn component=api provider=%s outcome=reject reason=signature err=%v", provider, err)
			h.writeError(w, http.StatusUnauthorized, "Invalid webhook signature", "")
			return
		}
	}

	event, err := webhook.Normalize(provider, body)
	if err != nil {
		log.Printf("level=warn component=api provider=%s outcome=reject reason=malformed_payload err=%v", provider, err)
		h.writeError(w, http.StatusBadRequest, "Malformed webhook payload", safeDetails(err))
		return
	}

	result, err := h.reconciler.Reconcile(r.Context(), event)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			// The webhook may have raced the transaction insert; the provider's
			// retry policy resolves that case.
			h.writeError(w, http.StatusNotFound, "No matching payment transaction", "")
			return
		}
		log.Printf("level=error component=api provider=%s outcome=error subscription_id=%s err=%v", provider, event.SubscriptionID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to process payment notification", "")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Payment %s", result.Status),
	})
}

// PaystackCallbackHandler handles the redirect-style GET callback Paystack
// sends the payer's browser through after checkout. It only bounces the client
// into the mobile app; reconciliation happens exclusively on the POST path.
func (h *Handler) PaystackCallbackHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	reference := query.Get("reference")
	if reference == "" {
		reference = query.Get("trxref")
	}
	if reference == "" {
		h.writeError(w, http.StatusBadRequest, "Missing payment reference", "")
		return
	}

	path := "payment/success"
	if query.Has("cancelled") {
		path = "payment/cancel"
	}
	target := fmt.Sprintf("%s%s?reference=%s", h.deepLinkScheme, path, url.QueryEscape(reference))

	// Some in-app browsers ignore the Location header on custom schemes, so the
	// body carries a refresh directive as well.
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusFound)
	fmt.Fprintf(w, `<!DOCTYPE html><html><head><meta http-equiv="refresh" content="0; url=%s"></head><body>Redirecting to app...</body></html>`, target)
}

// GetSubscriptionHandler returns a subscription's current state.
func (h *Handler) GetSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	subscriptionID := strings.TrimSpace(chi.URLParam(r, "subscriptionID"))
	if subscriptionID == "" {
		h.writeError(w, http.StatusBadRequest, "Missing subscription id", "")
		return
	}

	sub, err := h.repo.GetSubscriptionByID(r.Context(), subscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			h.writeError(w, http.StatusNotFound, "Subscription not found", "")
			return
		}
		log.Printf("level=error component=api endpoint=get_subscription subscription_id=%s err=%v", subscriptionID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load subscription", "")
		return
	}
	h.writeJSON(w, http.StatusOK, sub)
}

// GetSubscriptionTransactionHandler returns the payment transaction owned by a
// subscription, including the merged provider responses kept as audit trail.
func (h *Handler) GetSubscriptionTransactionHandler(w http.ResponseWriter, r *http.Request) {
	subscriptionID := strings.TrimSpace(chi.URLParam(r, "subscriptionID"))
	if subscriptionID == "" {
		h.writeError(w, http.StatusBadRequest, "Missing subscription id", "")
		return
	}

	tx, err := h.repo.FindTransactionBySubscriptionID(r.Context(), subscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			h.writeError(w, http.StatusNotFound, "No payment transaction for subscription", "")
			return
		}
		log.Printf("level=error component=api endpoint=get_transaction subscription_id=%s err=%v", subscriptionID, err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load transaction", "")
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

// writeError emits the JSON error envelope. details must never carry secrets or
// internal stack material.
func (h *Handler) writeError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]string{"error": message}
	if details != "" {
		body["details"] = details
	}
	h.writeJSON(w, status, body)
}

// safeDetails exposes normalization errors to the caller; they only ever
// describe the shape of the caller's own payload.
func safeDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
