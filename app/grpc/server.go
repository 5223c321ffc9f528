package grpc

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/mapper"
	"github.com/vibast-solutions/ms-go-billing/app/payment"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/app/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
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

type Server struct {
	plans         planLister
	checkout      checkoutStarter
	subscriptions subscriptionManager
	usage         usageReader
}

func NewServer(plans planLister, checkout checkoutStarter, subscriptions subscriptionManager, usage usageReader) *Server {
	return &Server{
		plans:         plans,
		checkout:      checkout,
		subscriptions: subscriptions,
		usage:         usage,
	}
}

func (s *Server) ListPlans(ctx context.Context, _ *types.ListPlansRequest) (*types.ListPlansResponse, error) {
	items, err := s.plans.ListPlans(ctx)
	if err != nil {
		loggerWithContext(ctx).WithError(err).Error("List plans failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return &types.ListPlansResponse{Plans: mapper.PlansToResponse(items)}, nil
}

func (s *Server) StartCheckout(ctx context.Context, req *types.CheckoutRequest) (*types.CheckoutResponse, error) {
	l := loggerWithContext(ctx)
	if err := req.Validate(); err != nil {
		l.WithError(err).Debug("Checkout validation failed")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.checkout.StartCheckout(ctx, req)
	if err != nil {
		var providerErr *payment.ProviderError
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, service.ErrPlanNotFound):
			return nil, status.Error(codes.NotFound, "plan not found or misconfigured")
		case errors.Is(err, service.ErrPlanNotPurchasable):
			return nil, status.Error(codes.FailedPrecondition, "plan is free and cannot be purchased")
		case errors.Is(err, payment.ErrInvalidCallbackURL):
			l.WithError(err).Error("Checkout callbacks misconfigured")
			return nil, status.Error(codes.Internal, "payment callbacks are misconfigured")
		case errors.As(err, &providerErr):
			l.WithError(err).Warn("Payment provider call failed")
			if providerErr.Unreachable {
				return nil, status.Error(codes.Unavailable, "payment provider unreachable")
			}
			return nil, status.Errorf(codes.Aborted, "payment provider rejected the request: %s", providerErr.Message)
		default:
			l.WithError(err).Error("Checkout failed")
			return nil, status.Error(codes.Internal, "internal server error")
		}
	}

	return mapper.CheckoutToResponse(result), nil
}

func (s *Server) ActivateFreePlan(ctx context.Context, req *types.ActivateFreePlanRequest) (*types.SubscriptionEnvelopeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.subscriptions.ActivateFreePlan(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, service.ErrPlanNotFound):
			return nil, status.Error(codes.NotFound, "plan not found or misconfigured")
		case errors.Is(err, service.ErrPlanNotPurchasable):
			return nil, status.Error(codes.FailedPrecondition, "plan requires payment")
		default:
			loggerWithContext(ctx).WithError(err).Error("Activate free plan failed")
			return nil, status.Error(codes.Internal, "internal server error")
		}
	}

	return &types.SubscriptionEnvelopeResponse{Subscription: mapper.SubscriptionToResponse(item)}, nil
}

func (s *Server) GetSubscription(ctx context.Context, req *types.GetSubscriptionRequest) (*types.SubscriptionEnvelopeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.subscriptions.GetSubscription(ctx, req.GetId())
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			return nil, status.Error(codes.NotFound, "subscription not found")
		}
		loggerWithContext(ctx).WithError(err).Error("Get subscription failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return &types.SubscriptionEnvelopeResponse{Subscription: mapper.SubscriptionToResponse(item)}, nil
}

func (s *Server) ListSubscriptions(ctx context.Context, req *types.ListSubscriptionsRequest) (*types.ListSubscriptionsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	items, err := s.subscriptions.ListSubscriptions(ctx, req)
	if err != nil {
		loggerWithContext(ctx).WithError(err).Error("List subscriptions failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return &types.ListSubscriptionsResponse{Subscriptions: mapper.SubscriptionsToResponse(items)}, nil
}

func (s *Server) GetActiveSubscription(ctx context.Context, req *types.GetActiveSubscriptionRequest) (*types.ActiveSubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.subscriptions.GetActiveSubscription(ctx, req.GetUserId())
	if err != nil {
		if errors.Is(err, service.ErrNoActiveSubscription) {
			return &types.ActiveSubscriptionResponse{Active: false}, nil
		}
		loggerWithContext(ctx).WithError(err).Error("Get active subscription failed")
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return &types.ActiveSubscriptionResponse{Active: true, Subscription: mapper.SubscriptionToResponse(item)}, nil
}

func (s *Server) CancelSubscription(ctx context.Context, req *types.CancelSubscriptionRequest) (*types.SubscriptionEnvelopeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.subscriptions.CancelSubscription(ctx, req.GetId())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubscriptionNotFound):
			return nil, status.Error(codes.NotFound, "subscription not found")
		case errors.Is(err, service.ErrInvalidTransition):
			return nil, status.Error(codes.FailedPrecondition, "subscription is not active")
		default:
			loggerWithContext(ctx).WithError(err).Error("Cancel subscription failed")
			return nil, status.Error(codes.Internal, "internal server error")
		}
	}

	return &types.SubscriptionEnvelopeResponse{Subscription: mapper.SubscriptionToResponse(item)}, nil
}

func (s *Server) GetUsage(ctx context.Context, req *types.GetUsageRequest) (*types.UsageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	snapshot, err := s.usage.GetUsage(ctx, req.GetUserId())
	if err != nil {
		return nil, usageStatus(ctx, err)
	}
	return mapper.UsageSnapshotToResponse(snapshot), nil
}

func (s *Server) CanConsume(ctx context.Context, req *types.CanConsumeRequest) (*types.UsageDecision, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	decision, err := s.usage.CanConsume(ctx, req.GetUserId(), req.GetResource())
	if err != nil {
		return nil, usageStatus(ctx, err)
	}
	return mapper.UsageDecisionToResponse(decision), nil
}

func (s *Server) HasFeature(ctx context.Context, req *types.HasFeatureRequest) (*types.HasFeatureResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	enabled, err := s.usage.HasFeature(ctx, req.GetUserId(), req.GetFeature())
	if err != nil {
		return nil, usageStatus(ctx, err)
	}
	return &types.HasFeatureResponse{Feature: req.GetFeature(), Enabled: enabled}, nil
}

func usageStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNoActiveSubscription):
		return status.Error(codes.PermissionDenied, "no active subscription")
	case errors.Is(err, service.ErrUnknownResource):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		loggerWithContext(ctx).WithError(err).Error("Usage check failed")
		return status.Error(codes.Internal, "internal server error")
	}
}
