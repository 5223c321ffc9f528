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
	"github.com/vibast-solutions/ms-go-billing/app/repository"
)

const expirationBatchSize = 500

// UserRequest is satisfied by any transport request scoped to one user.
type UserRequest interface {
	GetUserId() string
}

// UserPlanRequest pairs a user with the plan they are acting on.
type UserPlanRequest interface {
	GetUserId() string
	GetPlanId() uint64
}

type subscriptionRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Subscription, error)
	FindActiveByUser(ctx context.Context, userID string) (*entity.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Subscription, error)
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*entity.Subscription, error)
	MarkExpired(ctx context.Context, id uint64, now time.Time) (bool, error)
}

type subscriptionNotifier interface {
	NotifySubscription(ctx context.Context, notice SubscriptionNotice)
}

type SubscriptionService struct {
	subscriptionRepo subscriptionRepository
	plans            planCatalogue
	ledger           ledger
	notifier         subscriptionNotifier
	logger           logrus.FieldLogger
	now              func() time.Time
}

func NewSubscriptionService(
	subscriptionRepo subscriptionRepository,
	plans planCatalogue,
	ledger ledger,
	notifier subscriptionNotifier,
) *SubscriptionService {
	return &SubscriptionService{
		subscriptionRepo: subscriptionRepo,
		plans:            plans,
		ledger:           ledger,
		notifier:         notifier,
		logger:           factory.NewModuleLogger("subscription-service"),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *SubscriptionService) GetSubscription(ctx context.Context, id uint64) (*entity.Subscription, error) {
	subscription, err := s.subscriptionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, ErrSubscriptionNotFound
	}
	return subscription, nil
}

func (s *SubscriptionService) ListSubscriptions(ctx context.Context, req UserRequest) ([]*entity.Subscription, error) {
	userID := strings.TrimSpace(req.GetUserId())
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	return s.subscriptionRepo.ListByUser(ctx, userID)
}

// GetActiveSubscription returns the entitling subscription of a user. An
// ACTIVE row past its end date is not entitling even before the expiry job
// has flipped it.
func (s *SubscriptionService) GetActiveSubscription(ctx context.Context, userID string) (*entity.Subscription, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}

	subscription, err := s.subscriptionRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !subscription.IsEntitled(s.now()) {
		return nil, ErrNoActiveSubscription
	}
	return subscription, nil
}

func (s *SubscriptionService) HasActiveSubscription(ctx context.Context, userID string) (bool, error) {
	_, err := s.GetActiveSubscription(ctx, userID)
	if errors.Is(err, ErrNoActiveSubscription) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ActivateFreePlan puts a user on a zero-price plan without a provider round
// trip. Activating the plan the user is already entitled to is a no-op.
func (s *SubscriptionService) ActivateFreePlan(ctx context.Context, req UserPlanRequest) (*entity.Subscription, error) {
	userID := strings.TrimSpace(req.GetUserId())
	if userID == "" || req.GetPlanId() == 0 {
		return nil, fmt.Errorf("%w: user_id and plan_id are required", ErrInvalidRequest)
	}

	plan, err := s.plans.GetPlan(ctx, req.GetPlanId())
	if err != nil {
		return nil, err
	}
	if !plan.Active || !plan.IsFree() {
		return nil, ErrPlanNotPurchasable
	}

	var result *entity.Subscription
	created := false
	err = s.ledger.WithUserLock(ctx, userID, func(tx repository.LedgerTx) error {
		now := s.now()
		actives, err := tx.ListActiveSubscriptions(ctx, userID)
		if err != nil {
			return err
		}
		if current := entitledOnPlan(actives, plan.ID, now); current != nil {
			result = current
			return nil
		}
		if err := retireActive(ctx, tx, actives, now); err != nil {
			return err
		}
		result, err = createSubscription(ctx, tx, userID, plan, now, nil, nil)
		created = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}

	if created {
		s.notifier.NotifySubscription(ctx, SubscriptionNotice{
			Kind:         notify.KindSubscriptionActivated,
			Subscription: result,
			Plan:         plan,
		})
	}
	return result, nil
}

// CancelSubscription ends entitlement immediately. Only ACTIVE rows can be cancelled.
func (s *SubscriptionService) CancelSubscription(ctx context.Context, id uint64) (*entity.Subscription, error) {
	existing, err := s.subscriptionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrSubscriptionNotFound
	}

	var result *entity.Subscription
	err = s.ledger.WithUserLock(ctx, existing.UserID, func(tx repository.LedgerTx) error {
		subscription, err := tx.FindSubscriptionByID(ctx, id)
		if err != nil {
			return err
		}
		if subscription == nil {
			return ErrSubscriptionNotFound
		}
		if subscription.Status != entity.SubscriptionStatusActive {
			return fmt.Errorf("%w: subscription is %s", ErrInvalidTransition, entity.SubscriptionStatusName(subscription.Status))
		}

		now := s.now()
		markCancelled(subscription, now)
		subscription.UpdatedAt = now
		if err := tx.UpdateSubscription(ctx, subscription); err != nil {
			if errors.Is(err, repository.ErrSubscriptionNotFound) {
				return ErrSubscriptionNotFound
			}
			return err
		}
		result = subscription
		return nil
	})
	if err != nil {
		return nil, err
	}

	plan, err := s.plans.GetPlan(ctx, result.PlanID)
	if err != nil {
		s.logger.WithError(err).WithField("subscription_id", result.ID).Warn("cancelled subscription references unknown plan")
	}
	s.notifier.NotifySubscription(ctx, SubscriptionNotice{
		Kind:         notify.KindSubscriptionCancelled,
		Subscription: result,
		Plan:         plan,
	})
	return result, nil
}

// RunExpirationBatch flips ACTIVE rows past their end date to EXPIRED.
// Entitlement never depends on it having run.
func (s *SubscriptionService) RunExpirationBatch(ctx context.Context) (int, error) {
	now := s.now()
	items, err := s.subscriptionRepo.ListExpiredActive(ctx, now, expirationBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, item := range items {
		flipped, err := s.subscriptionRepo.MarkExpired(ctx, item.ID, now)
		if err != nil {
			s.logger.WithError(err).WithField("subscription_id", item.ID).Warn("failed to expire subscription")
			continue
		}
		if flipped {
			expired++
		}
	}

	return expired, nil
}
