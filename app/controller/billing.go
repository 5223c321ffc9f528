package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
	"github.com/vibast-solutions/ms-go-billing/app/mapper"
	"github.com/vibast-solutions/ms-go-billing/app/payment"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/app/types"
)

type planLister interface {
	ListPlans(ctx context.Context) ([]*entity.Plan, error)
}

type checkoutStarter interface {
	StartCheckout(ctx context.Context, req service.UserPlanRequest) (*service.CheckoutResult, error)
}

type subscriptionManager interface {
	GetSubscription(ctx context.Context, id uint64) (*entity.Subscription, error)
	ListSubscriptions(ctx context.Context, req service.UserRequest) ([]*entity.Subscription, error)
	GetActiveSubscription(ctx context.Context, userID string) (*entity.Subscription, error)
	ActivateFreePlan(ctx context.Context, req service.UserPlanRequest) (*entity.Subscription, error)
	CancelSubscription(ctx context.Context, id uint64) (*entity.Subscription, error)
}

type usageReader interface {
	CanConsume(ctx context.Context, userID, resource string) (*service.UsageDecision, error)
	HasFeature(ctx context.Context, userID, feature string) (bool, error)
	GetUsage(ctx context.Context, userID string) (*service.UsageSnapshot, error)
}

type BillingController struct {
	plans         planLister
	checkout      checkoutStarter
	subscriptions subscriptionManager
	usage         usageReader
	logger        logrus.FieldLogger
}

func NewBillingController(
	plans planLister,
	checkout checkoutStarter,
	subscriptions subscriptionManager,
	usage usageReader,
) *BillingController {
	return &BillingController{
		plans:         plans,
		checkout:      checkout,
		subscriptions: subscriptions,
		usage:         usage,
		logger:        factory.NewModuleLogger("billing-controller"),
	}
}

func (c *BillingController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *BillingController) ListPlans(ctx echo.Context) error {
	items, err := c.plans.ListPlans(ctx.Request().Context())
	if err != nil {
		c.logger.WithError(err).Error("List plans failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListPlansResponse{Plans: mapper.PlansToResponse(items)})
}

func (c *BillingController) Checkout(ctx echo.Context) error {
	req, err := types.NewCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.checkout.StartCheckout(ctx.Request().Context(), req)
	if err != nil {
		var providerErr *payment.ProviderError
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPlanNotFound):
			return c.writeError(ctx, http.StatusNotFound, "plan not found or misconfigured")
		case errors.Is(err, service.ErrPlanNotPurchasable):
			return c.writeError(ctx, http.StatusConflict, "plan is free and cannot be purchased")
		case errors.Is(err, payment.ErrInvalidCallbackURL):
			c.logger.WithError(err).Error("Checkout callbacks misconfigured")
			return c.writeError(ctx, http.StatusInternalServerError, "payment callbacks are misconfigured")
		case errors.As(err, &providerErr):
			c.logger.WithError(err).WithField("user_id", req.GetUserId()).Warn("Payment provider call failed")
			if providerErr.Unreachable {
				return c.writeError(ctx, http.StatusBadGateway, "payment provider unreachable")
			}
			return c.writeError(ctx, http.StatusBadGateway, fmt.Sprintf("payment provider rejected the request: %s", providerErr.Message))
		default:
			c.logger.WithError(err).Error("Checkout failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, mapper.CheckoutToResponse(result))
}

func (c *BillingController) ActivateFreePlan(ctx echo.Context) error {
	req, err := types.NewActivateFreePlanRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.subscriptions.ActivateFreePlan(ctx.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPlanNotFound):
			return c.writeError(ctx, http.StatusNotFound, "plan not found or misconfigured")
		case errors.Is(err, service.ErrPlanNotPurchasable):
			return c.writeError(ctx, http.StatusConflict, "plan requires payment")
		default:
			c.logger.WithError(err).Error("Activate free plan failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.SubscriptionEnvelopeResponse{
		Subscription: mapper.SubscriptionToResponse(item),
	})
}

func (c *BillingController) GetSubscription(ctx echo.Context) error {
	req, err := types.NewGetSubscriptionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.subscriptions.GetSubscription(ctx.Request().Context(), req.GetId())
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "subscription not found")
		}
		c.logger.WithError(err).Error("Get subscription failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.SubscriptionEnvelopeResponse{
		Subscription: mapper.SubscriptionToResponse(item),
	})
}

func (c *BillingController) ListSubscriptions(ctx echo.Context) error {
	req, err := types.NewListSubscriptionsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.subscriptions.ListSubscriptions(ctx.Request().Context(), req)
	if err != nil {
		c.logger.WithError(err).Error("List subscriptions failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListSubscriptionsResponse{
		Subscriptions: mapper.SubscriptionsToResponse(items),
	})
}

func (c *BillingController) GetActiveSubscription(ctx echo.Context) error {
	req, err := types.NewGetActiveSubscriptionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.subscriptions.GetActiveSubscription(ctx.Request().Context(), req.GetUserId())
	if err != nil {
		if errors.Is(err, service.ErrNoActiveSubscription) {
			return ctx.JSON(http.StatusOK, &types.ActiveSubscriptionResponse{Active: false})
		}
		c.logger.WithError(err).Error("Get active subscription failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ActiveSubscriptionResponse{
		Active:       true,
		Subscription: mapper.SubscriptionToResponse(item),
	})
}

func (c *BillingController) CancelSubscription(ctx echo.Context) error {
	req, err := types.NewCancelSubscriptionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.subscriptions.CancelSubscription(ctx.Request().Context(), req.GetId())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubscriptionNotFound):
			return c.writeError(ctx, http.StatusNotFound, "subscription not found")
		case errors.Is(err, service.ErrInvalidTransition):
			return c.writeError(ctx, http.StatusConflict, "subscription is not active")
		default:
			c.logger.WithError(err).Error("Cancel subscription failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.SubscriptionEnvelopeResponse{
		Subscription: mapper.SubscriptionToResponse(item),
	})
}

func (c *BillingController) GetUsage(ctx echo.Context) error {
	req, err := types.NewGetUsageRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	snapshot, err := c.usage.GetUsage(ctx.Request().Context(), req.GetUserId())
	if err != nil {
		return c.writeUsageError(ctx, err, "Get usage failed")
	}

	return ctx.JSON(http.StatusOK, mapper.UsageSnapshotToResponse(snapshot))
}

func (c *BillingController) CanConsume(ctx echo.Context) error {
	req, err := types.NewCanConsumeRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	decision, err := c.usage.CanConsume(ctx.Request().Context(), req.GetUserId(), req.GetResource())
	if err != nil {
		return c.writeUsageError(ctx, err, "Usage check failed")
	}

	return ctx.JSON(http.StatusOK, mapper.UsageDecisionToResponse(decision))
}

func (c *BillingController) HasFeature(ctx echo.Context) error {
	req, err := types.NewHasFeatureRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	enabled, err := c.usage.HasFeature(ctx.Request().Context(), req.GetUserId(), req.GetFeature())
	if err != nil {
		return c.writeUsageError(ctx, err, "Feature check failed")
	}

	return ctx.JSON(http.StatusOK, &types.HasFeatureResponse{Feature: req.GetFeature(), Enabled: enabled})
}

func (c *BillingController) writeUsageError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrNoActiveSubscription):
		return c.writeError(ctx, http.StatusForbidden, "no active subscription")
	case errors.Is(err, service.ErrUnknownResource):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	default:
		c.logger.WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *BillingController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
