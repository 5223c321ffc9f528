package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/notify"
	"github.com/vibast-solutions/ms-go-billing/app/payment"
	"github.com/vibast-solutions/ms-go-billing/app/store"
)

const (
	ipnAPIKey    = "pk_test_123"
	ipnAPISecret = "sk_test_456"
)

type reconcilerFixture struct {
	reconciler *Reconciler
	ledger     *memLedger
	notifier   *recordingNotifier
	attempts   *store.MemoryCheckoutStore
	now        time.Time
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	f := &reconcilerFixture{
		ledger:   newMemLedger(),
		notifier: &recordingNotifier{},
		attempts: store.NewMemoryCheckoutStore(time.Hour),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.reconciler = NewReconciler(
		payment.NewVerifier(ipnAPIKey, ipnAPISecret, true),
		newPlanCatalogue(basicPlan(), premiumPlan()),
		f.ledger,
		f.attempts,
		f.notifier,
	)
	f.reconciler.now = func() time.Time { return f.now }
	return f
}

func saleComplete(t *testing.T, reference, userID string, planID uint64, amount string) payment.Notification {
	t.Helper()
	custom, err := payment.EncodeCustomPayload(payment.CustomPayload{
		Kind:   payment.PaymentKindSubscription,
		UserID: userID,
		PlanID: planID,
	})
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	return payment.Notification{
		EventType:     payment.EventTypeSaleComplete,
		Reference:     reference,
		Amount:        amount,
		Currency:      "EUR",
		Custom:        custom,
		PaymentMethod: "card",
		APIKeyHash:    payment.HashCredential(ipnAPIKey),
		APISecretHash: payment.HashCredential(ipnAPISecret),
		Signature:     payment.ComputeSignature(ipnAPISecret, amount, reference, ipnAPIKey),
	}
}

func TestReconcileCreatesSubscriptionForNewUser(t *testing.T) {
	f := newReconcilerFixture(t)

	res, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_100", "u1", 1, "9.99"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Outcome != OutcomeApplied || res.Transition != TransitionCreated {
		t.Fatalf("unexpected result: %+v", res)
	}

	subs := f.ledger.userSubs("u1")
	if len(subs) != 1 {
		t.Fatalf("expected one subscription, got %d", len(subs))
	}
	sub := subs[0]
	if sub.Status != entity.SubscriptionStatusActive || sub.PlanID != 1 {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
	if sub.EndAt == nil || !sub.EndAt.Equal(f.now.Add(30*24*time.Hour)) {
		t.Fatalf("expected end = now + 30d, got %v", sub.EndAt)
	}
	if sub.TransactionID == nil || *sub.TransactionID != "SUB_u1_100" || sub.PaymentMethod == nil || *sub.PaymentMethod != "card" {
		t.Fatalf("expected reference and payment method recorded: %+v", sub)
	}
	if f.notifier.count() != 1 || f.notifier.notices[0].Kind != notify.KindSubscriptionActivated {
		t.Fatalf("expected one activation notice, got %+v", f.notifier.notices)
	}
	if f.ledger.eventCount() != 1 {
		t.Fatalf("expected payment event recorded, got %d", f.ledger.eventCount())
	}
}

func TestReconcileDuplicateReferenceIsNoop(t *testing.T) {
	f := newReconcilerFixture(t)
	n := saleComplete(t, "SUB_u1_100", "u1", 1, "9.99")

	if _, err := f.reconciler.Reconcile(context.Background(), n); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	before := f.ledger.userSubs("u1")[0]

	for i := 0; i < 3; i++ {
		f.now = f.now.Add(time.Hour)
		res, err := f.reconciler.Reconcile(context.Background(), n)
		if err != nil {
			t.Fatalf("replay %d failed: %v", i, err)
		}
		if res.Outcome != OutcomeDuplicate {
			t.Fatalf("expected duplicate outcome, got %+v", res)
		}
	}

	subs := f.ledger.userSubs("u1")
	if len(subs) != 1 {
		t.Fatalf("expected one subscription after replays, got %d", len(subs))
	}
	if !subs[0].EndAt.Equal(*before.EndAt) || !subs[0].UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatal("expected replays not to mutate the subscription")
	}
	if f.notifier.count() != 1 {
		t.Fatalf("expected exactly one notification, got %d", f.notifier.count())
	}
}

func TestReconcileRenewalResetsClock(t *testing.T) {
	f := newReconcilerFixture(t)
	if _, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_100", "u1", 1, "9.99")); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	original := f.ledger.userSubs("u1")[0]

	f.now = f.now.Add(10 * 24 * time.Hour)
	res, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_200", "u1", 1, "9.99"))
	if err != nil {
		t.Fatalf("renewal failed: %v", err)
	}
	if res.Outcome != OutcomeApplied || res.Transition != TransitionRenewed {
		t.Fatalf("unexpected result: %+v", res)
	}

	subs := f.ledger.userSubs("u1")
	if len(subs) != 1 || subs[0].ID != original.ID {
		t.Fatalf("expected the same row renewed, got %+v", subs)
	}
	want := f.now.Add(30 * 24 * time.Hour)
	if !subs[0].EndAt.Equal(want) {
		t.Fatalf("expected end reset to %v, got %v", want, subs[0].EndAt)
	}
	if subs[0].EndAt.Equal(original.EndAt.Add(30 * 24 * time.Hour)) {
		t.Fatal("renewal must not stack onto the previous end date")
	}
	if *subs[0].TransactionID != "SUB_u1_200" {
		t.Fatalf("expected transaction id updated, got %s", *subs[0].TransactionID)
	}
	if f.notifier.notices[1].Kind != notify.KindSubscriptionRenewed {
		t.Fatalf("expected renewal notice, got %s", f.notifier.notices[1].Kind)
	}
}

func TestReconcileReplayOfOlderReferenceAfterRenewal(t *testing.T) {
	f := newReconcilerFixture(t)
	first := saleComplete(t, "SUB_u1_100", "u1", 1, "9.99")
	if _, err := f.reconciler.Reconcile(context.Background(), first); err != nil {
		t.Fatal(err)
	}
	f.now = f.now.Add(24 * time.Hour)
	if _, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_200", "u1", 1, "9.99")); err != nil {
		t.Fatal(err)
	}
	renewed := f.ledger.userSubs("u1")[0]

	f.now = f.now.Add(24 * time.Hour)
	res, err := f.reconciler.Reconcile(context.Background(), first)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate for older reference, got %+v", res)
	}
	if after := f.ledger.userSubs("u1")[0]; !after.EndAt.Equal(*renewed.EndAt) {
		t.Fatal("expected older reference replay not to renew again")
	}
}

func TestReconcileDuplicateDetectedByTransactionID(t *testing.T) {
	f := newReconcilerFixture(t)
	ref := "SUB_u1_legacy"
	f.ledger.seed(&entity.Subscription{
		UserID:        "u1",
		PlanID:        1,
		Status:        entity.SubscriptionStatusActive,
		StartAt:       f.now.Add(-time.Hour),
		EndAt:         timePtr(f.now.Add(time.Hour)),
		TransactionID: &ref,
	})

	res, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, ref, "u1", 1, "9.99"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Outcome != OutcomeDuplicate || res.Subscription == nil {
		t.Fatalf("expected duplicate with existing subscription, got %+v", res)
	}
}

func TestReconcilePlanChangeRetiresPreviousRow(t *testing.T) {
	f := newReconcilerFixture(t)
	if _, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_100", "u1", 1, "9.99")); err != nil {
		t.Fatal(err)
	}

	f.now = f.now.Add(5 * 24 * time.Hour)
	res, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_300", "u1", 2, "19.99"))
	if err != nil {
		t.Fatalf("plan change failed: %v", err)
	}
	if res.Transition != TransitionCreated || res.Subscription.PlanID != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	subs := f.ledger.userSubs("u1")
	if len(subs) != 2 {
		t.Fatalf("expected two rows, got %d", len(subs))
	}
	basic, premium := subs[0], subs[1]
	if basic.Status != entity.SubscriptionStatusCancelled || basic.CancelledAt == nil || !basic.EndAt.Equal(f.now) {
		t.Fatalf("expected basic cancelled at now, got %+v", basic)
	}
	if premium.Status != entity.SubscriptionStatusActive || premium.PlanID != 2 {
		t.Fatalf("expected premium active, got %+v", premium)
	}
	if f.ledger.activeCount("u1") != 1 {
		t.Fatalf("expected exactly one active row, got %d", f.ledger.activeCount("u1"))
	}
}

func TestReconcileLapsedSamePlanCreatesNewRow(t *testing.T) {
	f := newReconcilerFixture(t)
	old := f.ledger.seed(&entity.Subscription{
		UserID:  "u1",
		PlanID:  1,
		Status:  entity.SubscriptionStatusActive,
		StartAt: f.now.Add(-40 * 24 * time.Hour),
		EndAt:   timePtr(f.now.Add(-10 * 24 * time.Hour)),
	})

	res, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_400", "u1", 1, "9.99"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Transition != TransitionCreated || res.Subscription.ID == old.ID {
		t.Fatalf("expected a new row for a lapsed subscription, got %+v", res)
	}

	lapsed, _ := f.ledger.FindByID(context.Background(), old.ID)
	if lapsed.Status != entity.SubscriptionStatusExpired {
		t.Fatalf("expected lapsed row expired, got %s", entity.SubscriptionStatusName(lapsed.Status))
	}
	if !lapsed.EndAt.Equal(*old.EndAt) {
		t.Fatal("expected lapsed end date untouched")
	}
}

func TestReconcileRejectsWrongSignature(t *testing.T) {
	f := newReconcilerFixture(t)
	n := saleComplete(t, "SUB_u1_100", "u1", 1, "9.99")
	n.Signature = payment.ComputeSignature("wrong-secret", n.Amount, n.Reference, ipnAPIKey)

	_, err := f.reconciler.Reconcile(context.Background(), n)
	if !errors.Is(err, ErrAuthenticityFailure) {
		t.Fatalf("expected ErrAuthenticityFailure, got %v", err)
	}
	if f.ledger.lockCalls != 0 || len(f.ledger.userSubs("u1")) != 0 {
		t.Fatal("expected no ledger access for rejected notification")
	}
}

func TestReconcileRejectsTamperedStaticHash(t *testing.T) {
	f := newReconcilerFixture(t)
	n := saleComplete(t, "SUB_u1_100", "u1", 1, "9.99")
	n.APISecretHash = payment.HashCredential("guessed")

	if _, err := f.reconciler.Reconcile(context.Background(), n); !errors.Is(err, ErrAuthenticityFailure) {
		t.Fatalf("expected ErrAuthenticityFailure, got %v", err)
	}
	if f.ledger.lockCalls != 0 {
		t.Fatal("expected transition logic not to run")
	}
}

func TestReconcileRejectsMalformedPayload(t *testing.T) {
	f := newReconcilerFixture(t)
	n := saleComplete(t, "SUB_u1_100", "u1", 1, "9.99")
	n.Custom = "bm90LWpzb24"

	if _, err := f.reconciler.Reconcile(context.Background(), n); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
	if f.ledger.lockCalls != 0 {
		t.Fatal("expected no ledger access for malformed payload")
	}
}

func TestReconcileAcknowledgesCancelledAndUnknownEvents(t *testing.T) {
	f := newReconcilerFixture(t)
	if _, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_100", "u1", 1, "9.99")); err != nil {
		t.Fatal(err)
	}

	cancelled := saleComplete(t, "SUB_u1_100", "u1", 1, "9.99")
	cancelled.EventType = payment.EventTypeSaleCancelled
	cancelled.Signature = ""
	res, err := f.reconciler.Reconcile(context.Background(), cancelled)
	if err != nil || res.Outcome != OutcomeIgnored {
		t.Fatalf("expected ignored sale-cancelled, got %+v (%v)", res, err)
	}

	unknown := saleComplete(t, "SUB_u1_500", "u1", 1, "9.99")
	unknown.EventType = "chargeback-opened"
	unknown.Signature = ""
	res, err = f.reconciler.Reconcile(context.Background(), unknown)
	if err != nil || res.Outcome != OutcomeIgnored {
		t.Fatalf("expected ignored unknown event, got %+v (%v)", res, err)
	}

	subs := f.ledger.userSubs("u1")
	if len(subs) != 1 || subs[0].Status != entity.SubscriptionStatusActive {
		t.Fatalf("expected ledger untouched by cancel/unknown, got %+v", subs)
	}
}

func TestReconcileIgnoresNonSubscriptionKind(t *testing.T) {
	f := newReconcilerFixture(t)
	n := saleComplete(t, "TIP_u1_1", "u1", 1, "9.99")
	n.Custom, _ = payment.EncodeCustomPayload(payment.CustomPayload{Kind: "tip", UserID: "u1"})

	res, err := f.reconciler.Reconcile(context.Background(), n)
	if err != nil || res.Outcome != OutcomeIgnored {
		t.Fatalf("expected ignored outcome, got %+v (%v)", res, err)
	}
}

func TestReconcileUnknownPlanFails(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_100", "u1", 99, "9.99"))
	if !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
	if len(f.ledger.userSubs("u1")) != 0 {
		t.Fatal("expected no subscription for unknown plan")
	}
}

func TestReconcileChecksAmountAgainstCheckoutAttempt(t *testing.T) {
	f := newReconcilerFixture(t)
	_ = f.attempts.Save(context.Background(), store.CheckoutAttempt{
		Reference:   "SUB_u1_100",
		UserID:      "u1",
		PlanID:      1,
		AmountMinor: 999,
		Currency:    "EUR",
	})

	_, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_100", "u1", 1, "0.99"))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload for underpayment, got %v", err)
	}

	res, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_100", "u1", 1, "9.99"))
	if err != nil || res.Outcome != OutcomeApplied {
		t.Fatalf("expected matching payment applied, got %+v (%v)", res, err)
	}
	if got, _ := f.attempts.Get(context.Background(), "SUB_u1_100"); got != nil {
		t.Fatal("expected checkout attempt cleared after application")
	}
}

func TestReconcileRollsBackOnLedgerError(t *testing.T) {
	f := newReconcilerFixture(t)
	if _, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_100", "u1", 1, "9.99")); err != nil {
		t.Fatal(err)
	}
	f.ledger.updateErr = errors.New("deadlock")

	if _, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_300", "u1", 2, "19.99")); err == nil {
		t.Fatal("expected ledger error")
	}
	f.ledger.updateErr = nil

	if f.ledger.activeCount("u1") != 1 || len(f.ledger.userSubs("u1")) != 1 || f.ledger.eventCount() != 1 {
		t.Fatal("expected failed transition fully rolled back")
	}

	res, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, "SUB_u1_300", "u1", 2, "19.99"))
	if err != nil || res.Outcome != OutcomeApplied {
		t.Fatalf("expected provider retry to apply, got %+v (%v)", res, err)
	}
}

func TestReconcileConcurrentDuplicatesApplyOnce(t *testing.T) {
	f := newReconcilerFixture(t)
	n := saleComplete(t, "SUB_u1_100", "u1", 1, "9.99")

	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := make(map[ReconcileOutcome]int)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.reconciler.Reconcile(context.Background(), n)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			mu.Lock()
			outcomes[res.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if outcomes[OutcomeApplied] != 1 || outcomes[OutcomeDuplicate] != 19 {
		t.Fatalf("expected one applied and 19 duplicates, got %v", outcomes)
	}
	if len(f.ledger.userSubs("u1")) != 1 || f.notifier.count() != 1 {
		t.Fatal("expected exactly one row and one notification")
	}
}

func TestReconcileConcurrentPlanEventsKeepSingleActive(t *testing.T) {
	f := newReconcilerFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			planID := uint64(1 + i%2)
			amount := "9.99"
			if planID == 2 {
				amount = "19.99"
			}
			ref := "SUB_u1_" + string(rune('a'+i))
			if _, err := f.reconciler.Reconcile(context.Background(), saleComplete(t, ref, "u1", planID, amount)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := f.ledger.activeCount("u1"); got != 1 {
		t.Fatalf("expected exactly one active row, got %d", got)
	}
}
