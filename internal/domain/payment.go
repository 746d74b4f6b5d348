/**
 * @description
 * This file defines the core domain models for the payment reconciliation service.
 * These structs represent the durable entities mutated by the reconciliation engine
 * and the transient canonical event produced by payload normalization.
 *
 * @notes
 * - Amounts are stored as `int64` in whole currency units (KES). Paystack reports
 *   amounts in minor units (cents) and is corrected during normalization; IntaSend
 *   already reports whole units.
 * - A PaymentTransaction is never deleted. Once it reaches a terminal status
 *   (successful or failed) it is an audit record and later events must not regress it.
 */

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Provider identifies the external payment service that originated an event.
type Provider string

const (
	ProviderPaystack Provider = "paystack"
	ProviderIntaSend Provider = "intasend"
)

// Transaction statuses. Successful and failed are terminal.
const (
	TransactionPending    = "pending"
	TransactionSuccessful = "successful"
	TransactionFailed     = "failed"
)

// Subscription statuses.
const (
	SubscriptionPending = "pending"
	SubscriptionActive  = "active"
	SubscriptionFailed  = "failed"
	SubscriptionExpired = "expired"
)

// PaymentTransaction is the durable record of a single payment attempt.
// It maps directly to the `payment_transactions` table.
type PaymentTransaction struct {
	ID                uuid.UUID       `json:"id"`
	SubscriptionID    string          `json:"subscription_id"`
	Provider          Provider        `json:"provider"`
	ProviderReference string          `json:"provider_reference"`
	Status            string          `json:"status"` // 'pending', 'successful', 'failed'
	ProviderResponse  json.RawMessage `json:"provider_response,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Terminal reports whether the transaction has reached a state that later
// events are not allowed to overwrite.
func (t *PaymentTransaction) Terminal() bool {
	return t.Status == TransactionSuccessful || t.Status == TransactionFailed
}

// PaymentDetails captures how an activated subscription was paid for.
type PaymentDetails struct {
	Provider  Provider  `json:"provider"`
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"` // whole currency units
	Currency  string    `json:"currency"`
	PaidAt    time.Time `json:"paid_at"`
}

// Subscription maps to the `subscriptions` table. The reconciliation engine only
// ever moves it to active or failed; expiry is handled by an external scanner.
type Subscription struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Status         string          `json:"status"` // 'pending', 'active', 'failed', 'expired'
	StartDate      *time.Time      `json:"start_date,omitempty"`
	EndDate        *time.Time      `json:"end_date,omitempty"`
	PaymentDetails *PaymentDetails `json:"payment_details,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// EventKind classifies a normalized provider notification.
type EventKind string

const (
	EventSuccess EventKind = "success"
	EventFailure EventKind = "failure"
	// EventPending covers every provider event kind we do not act on. Such events
	// are acknowledged but produce no state transition.
	EventPending EventKind = "pending"
)

// PaymentEvent is the canonical, provider-agnostic representation of a webhook
// notification. It is transient and never persisted as-is; only its raw payload
// is merged into the owning transaction's stored response.
type PaymentEvent struct {
	Provider       Provider        `json:"provider"`
	Kind           EventKind       `json:"kind"`
	SubscriptionID string          `json:"subscription_id"`
	Reference      string          `json:"reference"`
	Amount         int64           `json:"amount"` // whole currency units
	Currency       string          `json:"currency"`
	RawPayload     json.RawMessage `json:"raw_payload"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// ReconciliationResult reports the final state the engine converged on for a
// processed event, including acknowledged no-ops for duplicate deliveries.
type ReconciliationResult struct {
	SubscriptionID string `json:"subscription_id"`
	Status         string `json:"status"`
	Applied        bool   `json:"applied"` // false when the idempotency guard short-circuited
}

// PaymentOutcomeEvent is the internal message published to RabbitMQ after a
// terminal transition, consumed by the external notification service.
type PaymentOutcomeEvent struct {
	SubscriptionID string    `json:"subscription_id"`
	UserID         string    `json:"user_id,omitempty"`
	Provider       Provider  `json:"provider"`
	Reference      string    `json:"reference"`
	Status         string    `json:"status"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	OccurredAt     time.Time `json:"occurred_at"`
}
