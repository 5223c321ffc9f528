package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/repository"
)

type ledger interface {
	WithUserLock(ctx context.Context, userID string, fn func(tx repository.LedgerTx) error) error
}

type planCatalogue interface {
	GetPlan(ctx context.Context, id uint64) (*entity.Plan, error)
}

// retireActive closes every ACTIVE row of the user. Rows already past their
// end date become EXPIRED, the rest CANCELLED with their end cut to now.
func retireActive(ctx context.Context, tx repository.LedgerTx, actives []*entity.Subscription, now time.Time) error {
	for _, item := range actives {
		if item.EndAt != nil && !item.EndAt.After(now) {
			item.Status = entity.SubscriptionStatusExpired
		} else {
			markCancelled(item, now)
		}
		item.UpdatedAt = now
		if err := tx.UpdateSubscription(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func createSubscription(ctx context.Context, tx repository.LedgerTx, userID string, plan *entity.Plan, now time.Time, paymentMethod, transactionID *string) (*entity.Subscription, error) {
	subscription := &entity.Subscription{
		UserID:        userID,
		PlanID:        plan.ID,
		Status:        entity.SubscriptionStatusActive,
		StartAt:       now,
		EndAt:         plan.EndAtFrom(now),
		PaymentMethod: paymentMethod,
		TransactionID: transactionID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.CreateSubscription(ctx, subscription); err != nil {
		return nil, err
	}
	return subscription, nil
}

// renewSubscription restarts the clock from now; remaining time is not carried over.
func renewSubscription(ctx context.Context, tx repository.LedgerTx, subscription *entity.Subscription, plan *entity.Plan, now time.Time, paymentMethod, transactionID *string) error {
	subscription.EndAt = plan.EndAtFrom(now)
	if paymentMethod != nil {
		subscription.PaymentMethod = paymentMethod
	}
	subscription.TransactionID = transactionID
	subscription.UpdatedAt = now
	return tx.UpdateSubscription(ctx, subscription)
}

func markCancelled(subscription *entity.Subscription, now time.Time) {
	subscription.Status = entity.SubscriptionStatusCancelled
	subscription.AutoRenew = false
	cancelledAt := now
	subscription.CancelledAt = &cancelledAt
	if subscription.EndAt == nil || subscription.EndAt.After(now) {
		end := now
		subscription.EndAt = &end
	}
}

func entitledOnPlan(actives []*entity.Subscription, planID uint64, now time.Time) *entity.Subscription {
	for _, item := range actives {
		if item.PlanID == planID && item.IsEntitled(now) {
			return item
		}
	}
	return nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
