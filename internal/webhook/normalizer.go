/**
 * @description
 * This file maps each provider's distinct JSON shape into the canonical
 * PaymentEvent consumed by the reconciliation engine. One normalization function
 * exists per provider, selected by the route that received the request, so no
 * duck-typing on payload shape ever happens.
 *
 * @notes
 * - Unrecognized event kinds normalize to EventPending: the delivery is
 *   acknowledged but produces no state transition.
 * - Paystack reports amounts in minor units and is divided by 100 here; IntaSend
 *   reports whole units and passes through unchanged.
 */
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gokkuu100/konserve-cp-sub003/internal/domain"
)

// ErrMalformedPayload is returned when a payload cannot be decoded or is missing
// the fields the engine needs to reconcile it.
var ErrMalformedPayload = errors.New("malformed webhook payload")

// Normalize converts a provider's raw webhook body into a canonical PaymentEvent.
func Normalize(provider domain.Provider, rawBody []byte) (domain.PaymentEvent, error) {
	switch provider {
	case domain.ProviderPaystack:
		return normalizePaystack(rawBody)
	case domain.ProviderIntaSend:
		return normalizeIntaSend(rawBody)
	default:
		return domain.PaymentEvent{}, fmt.Errorf("%w: unknown provider %q", ErrMalformedPayload, provider)
	}
}

func normalizePaystack(rawBody []byte) (domain.PaymentEvent, error) {
	var payload domain.PaystackWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var kind domain.EventKind
	switch payload.Event {
	case "charge.success":
		kind = domain.EventSuccess
	case "charge.failed", "transfer.failed":
		kind = domain.EventFailure
	default:
		kind = domain.EventPending
	}

	subscriptionID := strings.TrimSpace(string(payload.Data.Metadata.SubscriptionID))
	if subscriptionID == "" {
		return domain.PaymentEvent{}, fmt.Errorf("%w: missing metadata.subscription_id", ErrMalformedPayload)
	}

	return domain.PaymentEvent{
		Provider:       domain.ProviderPaystack,
		Kind:           kind,
		SubscriptionID: subscriptionID,
		Reference:      payload.Data.Reference,
		Amount:         int64(payload.Data.Amount) / 100, // kobo/cent correction
		Currency:       payload.Data.Currency,
		RawPayload:     json.RawMessage(rawBody),
		OccurredAt:     time.Now().UTC(),
	}, nil
}

func normalizeIntaSend(rawBody []byte) (domain.PaymentEvent, error) {
	var payload domain.IntaSendWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return domain.PaymentEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload.Invoice == nil || payload.State == nil {
		return domain.PaymentEvent{}, fmt.Errorf("%w: missing invoice or state", ErrMalformedPayload)
	}

	var kind domain.EventKind
	switch strings.ToLower(strings.TrimSpace(*payload.State)) {
	case "complete", "success", "successful":
		kind = domain.EventSuccess
	case "failed", "cancelled":
		kind = domain.EventFailure
	default:
		kind = domain.EventPending
	}

	subscriptionID := strings.TrimSpace(string(payload.Metadata.SubscriptionID))
	if subscriptionID == "" {
		return domain.PaymentEvent{}, fmt.Errorf("%w: missing metadata.subscription_id", ErrMalformedPayload)
	}

	return domain.PaymentEvent{
		Provider:       domain.ProviderIntaSend,
		Kind:           kind,
		SubscriptionID: subscriptionID,
		Reference:      *payload.Invoice,
		Amount:         int64(payload.Value), // already whole units
		Currency:       payload.Currency,
		RawPayload:     json.RawMessage(rawBody),
		OccurredAt:     time.Now().UTC(),
	}, nil
}
