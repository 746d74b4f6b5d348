/**
 * @description
 * This file defines the `Repository` interface, the contract for all data access
 * the reconciliation engine performs. The engine treats the database as a narrow
 * row store with single-row atomic updates; defining an interface keeps the
 * business logic testable against stub implementations.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - encoding/json: Raw provider payloads travel as json.RawMessage.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gokkuu100/konserve-cp-sub003/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// FindTransactionBySubscriptionID returns the payment transaction owned by the
	// given subscription. At most one open (pending) transaction exists per
	// subscription at a time.
	FindTransactionBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.PaymentTransaction, error)

	// RecordTransactionOutcome persists a transaction's new status and merges the
	// raw provider payload into its stored response, keyed by provider name so one
	// provider's diagnostics never clobber the other's.
	RecordTransactionOutcome(ctx context.Context, params RecordTransactionOutcomeParams) error

	// ActivateSubscription marks the subscription active with the given billing
	// window and payment details.
	ActivateSubscription(ctx context.Context, subscriptionID string, start, end time.Time, details domain.PaymentDetails) error

	// MarkSubscriptionFailed marks the subscription failed. Payment details are
	// left untouched.
	MarkSubscriptionFailed(ctx context.Context, subscriptionID string) error

	// GetSubscriptionByID returns a subscription for the read API.
	GetSubscriptionByID(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
}

// RecordTransactionOutcomeParams carries everything needed to persist a
// transaction's new state in one atomic row update.
type RecordTransactionOutcomeParams struct {
	SubscriptionID string
	Provider       domain.Provider
	Reference      string
	Status         string
	RawPayload     json.RawMessage
	UpdatedAt      time.Time
}
