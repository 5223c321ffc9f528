package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
	"github.com/vibast-solutions/ms-go-billing/app/notify"
	"github.com/vibast-solutions/ms-go-billing/app/payment"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
	"github.com/vibast-solutions/ms-go-billing/app/store"
)

type ReconcileOutcome string

const (
	OutcomeApplied   ReconcileOutcome = "applied"
	OutcomeDuplicate ReconcileOutcome = "duplicate"
	OutcomeIgnored   ReconcileOutcome = "ignored"

	TransitionCreated = "created"
	TransitionRenewed = "renewed"
)

var errDuplicateEvent = errors.New("payment event already applied")

type notificationVerifier interface {
	Verify(n payment.Notification) payment.Verification
}

type ReconcileResult struct {
	Outcome      ReconcileOutcome
	Reference    string
	EventType    string
	Transition   string
	Subscription *entity.Subscription
}

// Reconciler turns provider notifications into ledger transitions, at most
// once per external reference.
type Reconciler struct {
	verifier notificationVerifier
	plans    planCatalogue
	ledger   ledger
	attempts store.CheckoutAttemptStore
	notifier subscriptionNotifier
	logger   logrus.FieldLogger
	now      func() time.Time
}

func NewReconciler(
	verifier notificationVerifier,
	plans planCatalogue,
	ledger ledger,
	attempts store.CheckoutAttemptStore,
	notifier subscriptionNotifier,
) *Reconciler {
	return &Reconciler{
		verifier: verifier,
		plans:    plans,
		ledger:   ledger,
		attempts: attempts,
		notifier: notifier,
		logger:   factory.NewModuleLogger("reconciler"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reconciler) Reconcile(ctx context.Context, n payment.Notification) (*ReconcileResult, error) {
	logger := r.logger.WithFields(logrus.Fields{
		"reference":  n.Reference,
		"event_type": n.EventType,
	})

	verification := r.verifier.Verify(n)
	if !verification.Authentic {
		logger.WithField("reason", verification.Reason).Warn("notification rejected")
		return nil, fmt.Errorf("%w: %s", ErrAuthenticityFailure, verification.Reason)
	}

	result, err := r.apply(ctx, n)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"amount":         n.Amount,
			"currency":       n.Currency,
			"custom":         n.Custom,
			"payment_method": n.PaymentMethod,
			"error":          err.Error(),
		}).Error("notification could not be reconciled")
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"outcome":    result.Outcome,
		"transition": result.Transition,
	}).Info("notification reconciled")
	return result, nil
}

func (r *Reconciler) apply(ctx context.Context, n payment.Notification) (*ReconcileResult, error) {
	event, err := payment.DecodeEvent(n)
	if err != nil {
		return nil, err
	}

	switch e := event.(type) {
	case payment.SaleComplete:
		return r.applySaleComplete(ctx, e)
	case payment.SaleCancelled:
		r.logger.WithFields(logrus.Fields{
			"reference": e.Reference,
			"amount":    e.RawAmount,
			"currency":  e.Currency,
		}).Info("sale cancelled by provider, no ledger change")
		return &ReconcileResult{Outcome: OutcomeIgnored, Reference: e.Reference, EventType: payment.EventTypeSaleCancelled}, nil
	case payment.UnknownEvent:
		r.logger.WithFields(logrus.Fields{
			"reference":  e.Reference,
			"event_type": e.Type,
		}).Info("unknown notification type acknowledged")
		return &ReconcileResult{Outcome: OutcomeIgnored, Reference: e.Reference, EventType: e.Type}, nil
	default:
		return nil, fmt.Errorf("unhandled payment event %T", event)
	}
}

func (r *Reconciler) applySaleComplete(ctx context.Context, e payment.SaleComplete) (*ReconcileResult, error) {
	result := &ReconcileResult{Reference: e.Reference, EventType: payment.EventTypeSaleComplete}
	if e.Payload.Kind != payment.PaymentKindSubscription {
		r.logger.WithFields(logrus.Fields{
			"reference": e.Reference,
			"kind":      e.Payload.Kind,
		}).Info("sale for non-subscription purchase acknowledged")
		result.Outcome = OutcomeIgnored
		return result, nil
	}

	plan, err := r.plans.GetPlan(ctx, e.Payload.PlanID)
	if err != nil {
		return nil, err
	}
	if err := r.checkAttempt(ctx, e); err != nil {
		return nil, err
	}

	userID := e.Payload.UserID
	reference := e.Reference
	paymentMethod := optionalString(e.PaymentMethod)
	var duplicateOf *entity.Subscription

	err = r.ledger.WithUserLock(ctx, userID, func(tx repository.LedgerTx) error {
		seen, err := tx.PaymentEventExists(ctx, reference)
		if err != nil {
			return err
		}
		if seen {
			return errDuplicateEvent
		}
		credited, err := tx.FindSubscriptionByTransactionID(ctx, reference)
		if err != nil {
			return err
		}
		if credited != nil {
			duplicateOf = credited
			return errDuplicateEvent
		}

		now := r.now()
		actives, err := tx.ListActiveSubscriptions(ctx, userID)
		if err != nil {
			return err
		}

		if current := entitledOnPlan(actives, plan.ID, now); current != nil {
			if err := renewSubscription(ctx, tx, current, plan, now, paymentMethod, &reference); err != nil {
				return err
			}
			result.Subscription = current
			result.Transition = TransitionRenewed
		} else {
			if err := retireActive(ctx, tx, actives, now); err != nil {
				return err
			}
			created, err := createSubscription(ctx, tx, userID, plan, now, paymentMethod, &reference)
			if err != nil {
				return err
			}
			result.Subscription = created
			result.Transition = TransitionCreated
		}

		err = tx.CreatePaymentEvent(ctx, &entity.PaymentEvent{
			Reference:      reference,
			EventType:      payment.EventTypeSaleComplete,
			UserID:         userID,
			PlanID:         plan.ID,
			SubscriptionID: result.Subscription.ID,
			Amount:         e.Amount,
			Currency:       e.Currency,
			PaymentMethod:  e.PaymentMethod,
			CreatedAt:      now,
		})
		if errors.Is(err, repository.ErrPaymentEventExists) {
			return errDuplicateEvent
		}
		return err
	})
	if errors.Is(err, errDuplicateEvent) {
		result.Outcome = OutcomeDuplicate
		result.Transition = ""
		result.Subscription = duplicateOf
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.Outcome = OutcomeApplied
	if err := r.attempts.Delete(ctx, reference); err != nil {
		r.logger.WithError(err).WithField("reference", reference).Warn("failed to clear checkout attempt")
	}

	kind := notify.KindSubscriptionActivated
	if result.Transition == TransitionRenewed {
		kind = notify.KindSubscriptionRenewed
	}
	amount := e.Amount
	r.notifier.NotifySubscription(ctx, SubscriptionNotice{
		Kind:         kind,
		Subscription: result.Subscription,
		Plan:         plan,
		Amount:       &amount,
		Currency:     e.Currency,
		Reference:    reference,
	})

	return result, nil
}

// checkAttempt cross-checks the paid amount against what checkout asked for.
// A missing attempt (expired, other instance store) is not an error.
func (r *Reconciler) checkAttempt(ctx context.Context, e payment.SaleComplete) error {
	attempt, err := r.attempts.Get(ctx, e.Reference)
	if err != nil {
		r.logger.WithError(err).WithField("reference", e.Reference).Warn("checkout attempt lookup failed, skipping amount check")
		return nil
	}
	if attempt == nil {
		return nil
	}

	if !strings.EqualFold(attempt.Currency, e.Currency) {
		return fmt.Errorf("%w: currency %s does not match checkout currency %s", ErrMalformedPayload, e.Currency, attempt.Currency)
	}
	paid, err := payment.ToMinorUnits(e.Amount, e.Currency)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if paid != attempt.AmountMinor {
		return fmt.Errorf("%w: amount %s does not match checkout amount", ErrMalformedPayload, e.RawAmount)
	}
	if attempt.UserID != e.Payload.UserID || attempt.PlanID != e.Payload.PlanID {
		return fmt.Errorf("%w: payload does not match checkout attempt", ErrMalformedPayload)
	}
	return nil
}
