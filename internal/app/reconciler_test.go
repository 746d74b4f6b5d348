package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gokkuu100/konserve-cp-sub003/internal/domain"
	"github.com/gokkuu100/konserve-cp-sub003/internal/store"
)

type reconcilerRepoStub struct {
	store.Repository

	tx      *domain.PaymentTransaction
	sub     *domain.Subscription
	findErr error

	findCalls      int
	recordCalled   bool
	recordedParams store.RecordTransactionOutcomeParams
	recordErr      error

	activateCalled   bool
	activatedStart   time.Time
	activatedEnd     time.Time
	activatedDetails domain.PaymentDetails
	activateErr      error

	markFailedCalled bool
}

func (s *reconcilerRepoStub) FindTransactionBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.PaymentTransaction, error) {
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.tx == nil {
		return nil, store.ErrTransactionNotFound
	}
	return s.tx, nil
}

func (s *reconcilerRepoStub) RecordTransactionOutcome(ctx context.Context, params store.RecordTransactionOutcomeParams) error {
	s.recordCalled = true
	s.recordedParams = params
	return s.recordErr
}

func (s *reconcilerRepoStub) ActivateSubscription(ctx context.Context, subscriptionID string, start, end time.Time, details domain.PaymentDetails) error {
	s.activateCalled = true
	s.activatedStart = start
	s.activatedEnd = end
	s.activatedDetails = details
	return s.activateErr
}

func (s *reconcilerRepoStub) MarkSubscriptionFailed(ctx context.Context, subscriptionID string) error {
	s.markFailedCalled = true
	return nil
}

func (s *reconcilerRepoStub) GetSubscriptionByID(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	if s.sub == nil {
		return nil, store.ErrSubscriptionNotFound
	}
	return s.sub, nil
}

type publisherStub struct {
	published []domain.PaymentOutcomeEvent
	err       error
}

func (p *publisherStub) PublishOutcome(ctx context.Context, event domain.PaymentOutcomeEvent) error {
	p.published = append(p.published, event)
	return p.err
}

func pendingTransaction(subscriptionID string) *domain.PaymentTransaction {
	return &domain.PaymentTransaction{
		SubscriptionID: subscriptionID,
		Provider:       domain.ProviderPaystack,
		Status:         domain.TransactionPending,
	}
}

func successEvent(subscriptionID string) domain.PaymentEvent {
	return domain.PaymentEvent{
		Provider:       domain.ProviderPaystack,
		Kind:           domain.EventSuccess,
		SubscriptionID: subscriptionID,
		Reference:      "sub-" + subscriptionID + "-171",
		Amount:         2500,
		Currency:       "KES",
		RawPayload:     json.RawMessage(`{"event":"charge.success"}`),
	}
}

func TestReconcile_SuccessActivatesSubscription(t *testing.T) {
	repo := &reconcilerRepoStub{tx: pendingTransaction("42")}
	engine := NewReconciler(repo, nil, nil)

	result, err := engine.Reconcile(context.Background(), successEvent("42"))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !result.Applied || result.Status != domain.TransactionSuccessful {
		t.Fatalf("expected applied successful result, got %+v", result)
	}
	if !repo.recordCalled {
		t.Fatal("expected transaction outcome to be recorded")
	}
	if repo.recordedParams.Status != domain.TransactionSuccessful {
		t.Fatalf("expected recorded status successful, got %q", repo.recordedParams.Status)
	}
	if repo.recordedParams.Provider != domain.ProviderPaystack {
		t.Fatalf("expected provider key on the response merge, got %q", repo.recordedParams.Provider)
	}
	if len(repo.recordedParams.RawPayload) == 0 {
		t.Fatal("expected raw payload to be persisted alongside the status")
	}
	if !repo.activateCalled {
		t.Fatal("expected subscription activation")
	}
	if repo.markFailedCalled {
		t.Fatal("did not expect subscription failure handling")
	}
	if repo.activatedDetails.Amount != 2500 || repo.activatedDetails.Currency != "KES" {
		t.Fatalf("unexpected payment details %+v", repo.activatedDetails)
	}
}

func TestReconcile_BillingWindowIsThirtyDays(t *testing.T) {
	repo := &reconcilerRepoStub{tx: pendingTransaction("42")}
	engine := NewReconciler(repo, nil, nil)
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return fixed }

	if _, err := engine.Reconcile(context.Background(), successEvent("42")); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !repo.activatedStart.Equal(fixed) {
		t.Fatalf("expected start date %v, got %v", fixed, repo.activatedStart)
	}
	if want := fixed.AddDate(0, 0, 30); !repo.activatedEnd.Equal(want) {
		t.Fatalf("expected end date %v, got %v", want, repo.activatedEnd)
	}
	if !repo.activatedDetails.PaidAt.Equal(fixed) {
		t.Fatalf("expected paid_at %v, got %v", fixed, repo.activatedDetails.PaidAt)
	}
}

func TestReconcile_FailureMarksSubscriptionFailed(t *testing.T) {
	repo := &reconcilerRepoStub{tx: pendingTransaction("7")}
	engine := NewReconciler(repo, nil, nil)

	event := successEvent("7")
	event.Kind = domain.EventFailure

	result, err := engine.Reconcile(context.Background(), event)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Status != domain.TransactionFailed || !result.Applied {
		t.Fatalf("expected applied failed result, got %+v", result)
	}
	if !repo.markFailedCalled {
		t.Fatal("expected subscription to be marked failed")
	}
	if repo.activateCalled {
		t.Fatal("did not expect activation on failure")
	}
}

func TestReconcile_TerminalReplayIsNoOp(t *testing.T) {
	tx := pendingTransaction("42")
	tx.Status = domain.TransactionSuccessful
	repo := &reconcilerRepoStub{
		tx:  tx,
		sub: &domain.Subscription{ID: "42", Status: domain.SubscriptionActive},
	}
	publisher := &publisherStub{}
	engine := NewReconciler(repo, publisher, nil)

	result, err := engine.Reconcile(context.Background(), successEvent("42"))
	if err != nil {
		t.Fatalf("expected duplicate delivery to be acknowledged, got %v", err)
	}
	if result.Applied {
		t.Fatal("expected idempotency guard to short-circuit")
	}
	if result.Status != domain.TransactionSuccessful {
		t.Fatalf("expected existing terminal status, got %q", result.Status)
	}
	if repo.recordCalled || repo.activateCalled || repo.markFailedCalled {
		t.Fatal("expected no writes for a terminal replay")
	}
	if len(publisher.published) != 0 {
		t.Fatal("expected no outcome event for a terminal replay")
	}
}

func TestReconcile_ConflictingEventCannotDowngradeTerminalState(t *testing.T) {
	tx := pendingTransaction("42")
	tx.Status = domain.TransactionSuccessful
	repo := &reconcilerRepoStub{tx: tx}
	engine := NewReconciler(repo, nil, nil)

	event := successEvent("42")
	event.Kind = domain.EventFailure

	result, err := engine.Reconcile(context.Background(), event)
	if err != nil {
		t.Fatalf("expected conflicting event to be acknowledged, got %v", err)
	}
	if result.Status != domain.TransactionSuccessful {
		t.Fatalf("expected successful status to survive, got %q", result.Status)
	}
	if repo.recordCalled || repo.markFailedCalled {
		t.Fatal("expected no writes for a conflicting late event")
	}
}

func TestReconcile_PendingEventExitsBeforeLookup(t *testing.T) {
	repo := &reconcilerRepoStub{tx: pendingTransaction("42")}
	engine := NewReconciler(repo, nil, nil)

	event := successEvent("42")
	event.Kind = domain.EventPending

	result, err := engine.Reconcile(context.Background(), event)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.Applied {
		t.Fatal("expected pending event to apply nothing")
	}
	if repo.findCalls != 0 {
		t.Fatal("expected no store access for a pending event")
	}
}

func TestReconcile_UnknownTransaction(t *testing.T) {
	repo := &reconcilerRepoStub{}
	engine := NewReconciler(repo, nil, nil)

	_, err := engine.Reconcile(context.Background(), successEvent("404"))
	if !errors.Is(err, store.ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestReconcile_PartialFailureSurfacesInconsistency(t *testing.T) {
	repo := &reconcilerRepoStub{
		tx:          pendingTransaction("42"),
		activateErr: errors.New("connection reset"),
	}
	engine := NewReconciler(repo, nil, nil)

	_, err := engine.Reconcile(context.Background(), successEvent("42"))
	if !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("expected ErrInconsistentState, got %v", err)
	}
	if !repo.recordCalled {
		t.Fatal("expected the transaction write to have happened before the failure")
	}
}

func TestReconcile_ReplayAfterPartialFailureSettlesSubscription(t *testing.T) {
	// First delivery: transaction row committed as successful, then the
	// subscription update failed.
	repo := &reconcilerRepoStub{
		tx:          pendingTransaction("42"),
		sub:         &domain.Subscription{ID: "42", Status: domain.SubscriptionPending},
		activateErr: errors.New("connection reset"),
	}
	engine := NewReconciler(repo, nil, nil)
	if _, err := engine.Reconcile(context.Background(), successEvent("42")); !errors.Is(err, ErrInconsistentState) {
		t.Fatalf("expected ErrInconsistentState on first delivery, got %v", err)
	}

	// The provider redelivers. The transaction is terminal now, so the guard
	// skips the transaction write, but the still-pending subscription gets
	// settled and the system converges.
	repo.tx.Status = domain.TransactionSuccessful
	repo.activateErr = nil
	repo.recordCalled = false
	repo.activateCalled = false
	result, err := engine.Reconcile(context.Background(), successEvent("42"))
	if err != nil {
		t.Fatalf("expected redelivery to converge, got %v", err)
	}
	if result.Applied {
		t.Fatal("expected the transaction transition itself to be a no-op")
	}
	if repo.recordCalled {
		t.Fatal("expected no duplicate transaction write")
	}
	if !repo.activateCalled {
		t.Fatal("expected redelivery to settle the subscription")
	}
}

func TestReconcile_TerminalReplayLeavesNonPendingSubscriptionAlone(t *testing.T) {
	tx := pendingTransaction("42")
	tx.Status = domain.TransactionFailed
	repo := &reconcilerRepoStub{
		tx:  tx,
		sub: &domain.Subscription{ID: "42", Status: domain.SubscriptionFailed},
	}
	engine := NewReconciler(repo, nil, nil)

	event := successEvent("42")
	event.Kind = domain.EventFailure
	if _, err := engine.Reconcile(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if repo.markFailedCalled || repo.activateCalled {
		t.Fatal("expected settled subscription to be left alone")
	}
}

func TestReconcile_PublishesOutcomeAfterApply(t *testing.T) {
	repo := &reconcilerRepoStub{tx: pendingTransaction("42")}
	publisher := &publisherStub{}
	engine := NewReconciler(repo, publisher, nil)

	if _, err := engine.Reconcile(context.Background(), successEvent("42")); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected one outcome event, got %d", len(publisher.published))
	}
	outcome := publisher.published[0]
	if outcome.Status != domain.TransactionSuccessful || outcome.SubscriptionID != "42" {
		t.Fatalf("unexpected outcome event %+v", outcome)
	}
}

func TestReconcile_PublishFailureDoesNotFailRequest(t *testing.T) {
	repo := &reconcilerRepoStub{tx: pendingTransaction("42")}
	publisher := &publisherStub{err: errors.New("broker down")}
	engine := NewReconciler(repo, publisher, nil)

	result, err := engine.Reconcile(context.Background(), successEvent("42"))
	if err != nil {
		t.Fatalf("expected publish failure to be swallowed, got %v", err)
	}
	if !result.Applied {
		t.Fatal("expected result to still report the applied transition")
	}
}
