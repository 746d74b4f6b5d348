package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gokkuu100/konserve-cp-sub003/internal/domain"
	"github.com/gokkuu100/konserve-cp-sub003/internal/store"
)

// SubscriptionTermDays is the fixed billing window applied at activation.
const SubscriptionTermDays = 30

// ErrInconsistentState reports the partial-failure case where the transaction
// row was updated but the subscription row was not. The response must reflect
// failure so the provider redelivers; the terminal-state guard makes the
// redelivery converge the subscription without re-running transaction writes.
var ErrInconsistentState = errors.New("transaction updated but subscription update failed")

// OutcomePublisher pushes terminal payment outcomes to the message broker for
// the external notification service. Implementations must be safe for
// concurrent use.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, event domain.PaymentOutcomeEvent) error
}

// Reconciler converges persisted transaction and subscription state to reflect
// a verified payment outcome. It holds no mutable state of its own; correctness
// under concurrent duplicate deliveries comes from the terminal-state guard plus
// the store's per-row atomicity.
type Reconciler struct {
	repo      store.Repository
	publisher OutcomePublisher   // optional
	deduper   *RedisEventDeduper // optional
	now       func() time.Time
}

// NewReconciler creates a reconciliation engine. publisher and deduper may be
// nil when no broker or cache is configured.
func NewReconciler(repo store.Repository, publisher OutcomePublisher, deduper *RedisEventDeduper) *Reconciler {
	return &Reconciler{
		repo:      repo,
		publisher: publisher,
		deduper:   deduper,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile applies a canonical payment event exactly once per
// (provider, reference, target-status) tuple.
func (s *Reconciler) Reconcile(ctx context.Context, event domain.PaymentEvent) (*domain.ReconciliationResult, error) {
	target, actionable := TargetStatus(event.Kind)
	if !actionable {
		// Unrecognized or pending provider events are acknowledged and ignored.
		log.Printf("level=info component=reconciler outcome=ignored provider=%s subscription_id=%s kind=%s", event.Provider, event.SubscriptionID, event.Kind)
		return &domain.ReconciliationResult{
			SubscriptionID: event.SubscriptionID,
			Status:         domain.TransactionPending,
			Applied:        false,
		}, nil
	}

	if seen, err := s.deduper.AlreadyDelivered(ctx, event.Provider, event.Reference, target); err != nil {
		// Dedup is an optimization; Redis being down never blocks reconciliation.
		log.Printf("level=warn component=reconciler msg=\"dedup lookup failed; continuing\" provider=%s reference=%s err=%v", event.Provider, event.Reference, err)
	} else if seen {
		log.Printf("level=info component=reconciler outcome=duplicate_delivery provider=%s subscription_id=%s reference=%s target=%s", event.Provider, event.SubscriptionID, event.Reference, target)
		return &domain.ReconciliationResult{
			SubscriptionID: event.SubscriptionID,
			Status:         target,
			Applied:        false,
		}, nil
	}

	tx, err := s.repo.FindTransactionBySubscriptionID(ctx, event.SubscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrTransactionNotFound) {
			// Either the webhook raced the transaction insert or the event
			// references an unknown subscription. The provider's retry policy
			// resolves the former.
			return nil, err
		}
		return nil, fmt.Errorf("lookup transaction: %w", err)
	}

	if !CanTransition(tx.Status, target) {
		// Idempotency guard: the transaction already reached a terminal state.
		// Acknowledge so the provider stops retrying, never downgrade, and run
		// no duplicate side effects. A redelivery of the same outcome still
		// settles the subscription if a previous request died between the two
		// row writes.
		if tx.Status == target {
			if err := s.settleSubscription(ctx, event, target); err != nil {
				log.Printf("level=error component=reconciler outcome=inconsistent_state provider=%s subscription_id=%s transaction_status=%s err=%v", event.Provider, event.SubscriptionID, target, err)
				return nil, fmt.Errorf("%w: %v", ErrInconsistentState, err)
			}
		}
		log.Printf("level=info component=reconciler outcome=duplicate provider=%s subscription_id=%s current=%s target=%s", event.Provider, event.SubscriptionID, tx.Status, target)
		return &domain.ReconciliationResult{
			SubscriptionID: event.SubscriptionID,
			Status:         tx.Status,
			Applied:        false,
		}, nil
	}

	now := s.now()
	outcome := store.RecordTransactionOutcomeParams{
		SubscriptionID: event.SubscriptionID,
		Provider:       event.Provider,
		Reference:      event.Reference,
		Status:         target,
		RawPayload:     event.RawPayload,
		UpdatedAt:      now,
	}
	if err := s.repo.RecordTransactionOutcome(ctx, outcome); err != nil {
		return nil, fmt.Errorf("record transaction outcome: %w", err)
	}

	switch target {
	case domain.TransactionSuccessful:
		details := domain.PaymentDetails{
			Provider:  event.Provider,
			Reference: event.Reference,
			Amount:    event.Amount,
			Currency:  event.Currency,
			PaidAt:    now,
		}
		end := now.AddDate(0, 0, SubscriptionTermDays)
		if err := s.repo.ActivateSubscription(ctx, event.SubscriptionID, now, end, details); err != nil {
			log.Printf("level=error component=reconciler outcome=inconsistent_state provider=%s subscription_id=%s transaction_status=%s err=%v", event.Provider, event.SubscriptionID, target, err)
			return nil, fmt.Errorf("%w: %v", ErrInconsistentState, err)
		}
	case domain.TransactionFailed:
		if err := s.repo.MarkSubscriptionFailed(ctx, event.SubscriptionID); err != nil {
			log.Printf("level=error component=reconciler outcome=inconsistent_state provider=%s subscription_id=%s transaction_status=%s err=%v", event.Provider, event.SubscriptionID, target, err)
			return nil, fmt.Errorf("%w: %v", ErrInconsistentState, err)
		}
	}

	if err := s.deduper.MarkDelivered(ctx, event.Provider, event.Reference, target); err != nil {
		log.Printf("level=warn component=reconciler msg=\"dedup mark failed\" provider=%s reference=%s err=%v", event.Provider, event.Reference, err)
	}

	s.publishOutcome(ctx, event, target, now)

	log.Printf("level=info component=reconciler outcome=applied provider=%s subscription_id=%s status=%s amount=%d currency=%s", event.Provider, event.SubscriptionID, target, event.Amount, event.Currency)
	return &domain.ReconciliationResult{
		SubscriptionID: event.SubscriptionID,
		Status:         target,
		Applied:        true,
	}, nil
}

// settleSubscription repairs the partial-failure case: the transaction row is
// already terminal but the subscription row never left pending because an
// earlier request failed between the two writes. Subscriptions past pending are
// left alone.
func (s *Reconciler) settleSubscription(ctx context.Context, event domain.PaymentEvent, target string) error {
	sub, err := s.repo.GetSubscriptionByID(ctx, event.SubscriptionID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			log.Printf("level=warn component=reconciler msg=\"transaction has no subscription row\" subscription_id=%s", event.SubscriptionID)
			return nil
		}
		return err
	}
	if sub.Status != domain.SubscriptionPending {
		return nil
	}

	now := s.now()
	switch target {
	case domain.TransactionSuccessful:
		details := domain.PaymentDetails{
			Provider:  event.Provider,
			Reference: event.Reference,
			Amount:    event.Amount,
			Currency:  event.Currency,
			PaidAt:    now,
		}
		return s.repo.ActivateSubscription(ctx, event.SubscriptionID, now, now.AddDate(0, 0, SubscriptionTermDays), details)
	case domain.TransactionFailed:
		return s.repo.MarkSubscriptionFailed(ctx, event.SubscriptionID)
	}
	return nil
}

// publishOutcome is best-effort: the webhook response never depends on the
// broker being reachable.
func (s *Reconciler) publishOutcome(ctx context.Context, event domain.PaymentEvent, status string, occurredAt time.Time) {
	if s.publisher == nil {
		return
	}
	outcome := domain.PaymentOutcomeEvent{
		SubscriptionID: event.SubscriptionID,
		Provider:       event.Provider,
		Reference:      event.Reference,
		Status:         status,
		Amount:         event.Amount,
		Currency:       event.Currency,
		OccurredAt:     occurredAt,
	}
	if err := s.publisher.PublishOutcome(ctx, outcome); err != nil {
		log.Printf("level=warn component=reconciler msg=\"failed to publish payment outcome\" subscription_id=%s err=%v", event.SubscriptionID, err)
	}
}
