package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
	"github.com/vibast-solutions/ms-go-billing/app/payment"
	"github.com/vibast-solutions/ms-go-billing/app/store"
)

type referenceGenerator interface {
	Next(kind, userID string) string
}

type CheckoutConfig struct {
	IPNURL     string
	SuccessURL string
	CancelURL  string
}

type CheckoutResult struct {
	Reference   string
	RedirectURL string
	Token       string
	Plan        *entity.Plan
	AmountMinor int64
	Currency    string
}

// CheckoutService starts hosted payments for plan purchases, renewals and
// plan changes. It never touches the ledger; the resulting notification does.
type CheckoutService struct {
	plans    planCatalogue
	provider payment.Service
	refs     referenceGenerator
	attempts store.CheckoutAttemptStore
	cfg      CheckoutConfig
	logger   logrus.FieldLogger
}

func NewCheckoutService(
	plans planCatalogue,
	provider payment.Service,
	refs referenceGenerator,
	attempts store.CheckoutAttemptStore,
	cfg CheckoutConfig,
) *CheckoutService {
	return &CheckoutService{
		plans:    plans,
		provider: provider,
		refs:     refs,
		attempts: attempts,
		cfg:      cfg,
		logger:   factory.NewModuleLogger("checkout-service"),
	}
}

func (s *CheckoutService) StartCheckout(ctx context.Context, req UserPlanRequest) (*CheckoutResult, error) {
	userID := strings.TrimSpace(req.GetUserId())
	if userID == "" || req.GetPlanId() == 0 {
		return nil, fmt.Errorf("%w: user_id and plan_id are required", ErrInvalidRequest)
	}

	plan, err := s.plans.GetPlan(ctx, req.GetPlanId())
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, fmt.Errorf("%w: plan %s is not active", ErrPlanNotFound, plan.Code)
	}
	if plan.IsFree() {
		return nil, ErrPlanNotPurchasable
	}
	amountMinor, err := payment.ToMinorUnits(plan.Price, plan.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanNotFound, err)
	}

	reference := s.refs.Next(payment.ReferenceKindSubscription, userID)
	custom, err := payment.EncodeCustomPayload(payment.CustomPayload{
		Kind:      payment.PaymentKindSubscription,
		UserID:    userID,
		PlanID:    plan.ID,
		Reference: reference,
	})
	if err != nil {
		return nil, err
	}

	logger := s.logger.WithFields(logrus.Fields{
		"reference": reference,
		"user_id":   userID,
		"plan_id":   plan.ID,
	})

	attempt := store.CheckoutAttempt{
		Reference:   reference,
		UserID:      userID,
		PlanID:      plan.ID,
		AmountMinor: amountMinor,
		Currency:    strings.ToUpper(plan.Currency),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.attempts.Save(ctx, attempt); err != nil {
		logger.WithError(err).Warn("failed to record checkout attempt")
	}

	redirect, err := s.provider.CreatePaymentRequest(ctx, payment.PaymentRequest{
		ItemName:   plan.DisplayName,
		PriceMinor: amountMinor,
		Currency:   attempt.Currency,
		Reference:  reference,
		Callbacks: payment.Callbacks{
			IPN:     s.cfg.IPNURL,
			Success: s.cfg.SuccessURL,
			Cancel:  s.cfg.CancelURL,
		},
		Custom: custom,
	})
	if err != nil {
		if delErr := s.attempts.Delete(ctx, reference); delErr != nil {
			logger.WithError(delErr).Warn("failed to clear checkout attempt")
		}
		return nil, err
	}

	logger.Info("checkout started")
	return &CheckoutResult{
		Reference:   reference,
		RedirectURL: redirect.RedirectURL,
		Token:       redirect.Token,
		Plan:        plan,
		AmountMinor: amountMinor,
		Currency:    attempt.Currency,
	}, nil
}
