/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains the SQL for looking up pending payment transactions and applying
 * the reconciliation engine's single-row updates to transactions and
 * subscriptions.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 *
 * @notes
 * - provider_response is merged keyed by provider name rather than overwritten,
 *   so a card-processor payload and a mobile-money payload for the same
 *   subscription both survive as audit material.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gokkuu100/konserve-cp-sub003/internal/domain"
)

var (
	ErrTransactionNotFound  = errors.New("payment transaction not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindTransactionBySubscriptionID retrieves the payment transaction owned by a subscription.
func (r *PostgresRepository) FindTransactionBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.PaymentTransaction, error) {
	var tx domain.PaymentTransaction
	var response []byte
	query := `
        SELECT id, subscription_id, provider, provider_reference, status, provider_response, created_at, updated_at
        FROM payment_transactions
        WHERE subscription_id = $1
        ORDER BY created_at DESC
        LIMIT 1
    `
	err := r.db.QueryRow(ctx, query, subscriptionID).Scan(
		&tx.ID,
		&tx.SubscriptionID,
		&tx.Provider,
		&tx.ProviderReference,
		&tx.Status,
		&response,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	tx.ProviderResponse = json.RawMessage(response)
	return &tx, nil
}

// RecordTransactionOutcome updates a transaction's status and merges the raw
// provider payload into provider_response under the provider's name.
func (r *PostgresRepository) RecordTransactionOutcome(ctx context.Context, params RecordTransactionOutcomeParams) error {
	payload := params.RawPayload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	query := `
        UPDATE payment_transactions
        SET status = $2,
            provider_reference = COALESCE(NULLIF($3, ''), provider_reference),
            provider_response = COALESCE(provider_response, '{}'::jsonb) || jsonb_build_object($4::text, $5::jsonb),
            updated_at = $6
        WHERE subscription_id = $1
    `
	tag, err := r.db.Exec(ctx, query,
		params.SubscriptionID,
		params.Status,
		params.Reference,
		string(params.Provider),
		[]byte(payload),
		params.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// ActivateSubscription marks a subscription active with its billing window and
// payment details.
func (r *PostgresRepository) ActivateSubscription(ctx context.Context, subscriptionID string, start, end time.Time, details domain.PaymentDetails) error {
	query := `
        UPDATE subscriptions
        SET status = $2,
            start_date = $3,
            end_date = $4,
            payment_provider = $5,
            payment_reference = $6,
            payment_amount = $7,
            payment_currency = $8,
            paid_at = $9,
            updated_at = NOW()
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query,
		subscriptionID,
		domain.SubscriptionActive,
		start,
		end,
		string(details.Provider),
		details.Reference,
		details.Amount,
		details.Currency,
		details.PaidAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// MarkSubscriptionFailed moves a subscription to failed without touching its
// payment details.
func (r *PostgresRepository) MarkSubscriptionFailed(ctx context.Context, subscriptionID string) error {
	query := `UPDATE subscriptions SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, subscriptionID, domain.SubscriptionFailed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// GetSubscriptionByID retrieves a subscription for the read API.
func (r *PostgresRepository) GetSubscriptionByID(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	var provider, reference, currency *string
	var amount *int64
	var paidAt *time.Time
	query := `
        SELECT id, user_id, status, start_date, end_date,
               payment_provider, payment_reference, payment_amount, payment_currency, paid_at,
               created_at, updated_at
        FROM subscriptions
        WHERE id = $1
    `
	err := r.db.QueryRow(ctx, query, subscriptionID).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Status,
		&sub.StartDate,
		&sub.EndDate,
		&provider,
		&reference,
		&amount,
		&currency,
		&paidAt,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	if provider != nil && reference != nil {
		details := domain.PaymentDetails{
			Provider:  domain.Provider(*provider),
			Reference: *reference,
		}
		if amount != nil {
			details.Amount = *amount
		}
		if currency != nil {
			details.Currency = *currency
		}
		if paidAt != nil {
			details.PaidAt = *paidAt
		}
		sub.PaymentDetails = &details
	}
	return &sub, nil
}
