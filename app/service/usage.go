package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
)

const (
	ResourcePost          = "post"
	ResourceClub          = "club"
	ResourcePlayerProfile = "player_profile"
)

var usageResources = []string{ResourcePost, ResourceClub, ResourcePlayerProfile}

type usageRepository interface {
	CountPostsSince(ctx context.Context, userID string, since time.Time) (int64, error)
	CountClubsOwned(ctx context.Context, userID string) (int64, error)
	CountPlayerProfiles(ctx context.Context, userID string) (int64, error)
}

type activeSubscriptionFinder interface {
	FindActiveByUser(ctx context.Context, userID string) (*entity.Subscription, error)
}

type UsageDecision struct {
	Resource  string
	Allowed   bool
	Current   int64
	Max       int64
	Unlimited bool
}

type UsageSnapshot struct {
	UserID         string
	SubscriptionID uint64
	PlanID         uint64
	PlanCode       string
	Resources      []*UsageDecision
}

// UsageService answers plan-limit questions. It reads without locking and
// may lag an in-flight ledger write.
type UsageService struct {
	subscriptions activeSubscriptionFinder
	plans         planCatalogue
	usageRepo     usageRepository
	now           func() time.Time
}

func NewUsageService(subscriptions activeSubscriptionFinder, plans planCatalogue, usageRepo usageRepository) *UsageService {
	return &UsageService{
		subscriptions: subscriptions,
		plans:         plans,
		usageRepo:     usageRepo,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *UsageService) CanConsume(ctx context.Context, userID, resource string) (*UsageDecision, error) {
	resource = normalizeResource(resource)
	if !isKnownResource(resource) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}

	subscription, plan, err := s.entitlement(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.decide(ctx, subscription, plan, resource)
}

func (s *UsageService) HasFeature(ctx context.Context, userID, feature string) (bool, error) {
	_, plan, err := s.entitlement(ctx, userID)
	if err != nil {
		return false, err
	}
	return plan.Limits.Features[strings.TrimSpace(feature)], nil
}

func (s *UsageService) GetUsage(ctx context.Context, userID string) (*UsageSnapshot, error) {
	subscription, plan, err := s.entitlement(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot := &UsageSnapshot{
		UserID:         subscription.UserID,
		SubscriptionID: subscription.ID,
		PlanID:         plan.ID,
		PlanCode:       plan.Code,
		Resources:      make([]*UsageDecision, 0, len(usageResources)),
	}
	for _, resource := range usageResources {
		decision, err := s.decide(ctx, subscription, plan, resource)
		if err != nil {
			return nil, err
		}
		snapshot.Resources = append(snapshot.Resources, decision)
	}
	return snapshot, nil
}

func (s *UsageService) entitlement(ctx context.Context, userID string) (*entity.Subscription, *entity.Plan, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}

	subscription, err := s.subscriptions.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !subscription.IsEntitled(s.now()) {
		return nil, nil, ErrNoActiveSubscription
	}

	plan, err := s.plans.GetPlan(ctx, subscription.PlanID)
	if err != nil {
		return nil, nil, err
	}
	return subscription, plan, nil
}

func (s *UsageService) decide(ctx context.Context, subscription *entity.Subscription, plan *entity.Plan, resource string) (*UsageDecision, error) {
	limit := limitFor(plan.Limits, resource)
	if limit == nil {
		return &UsageDecision{Resource: resource, Allowed: true, Unlimited: true}, nil
	}

	var current int64
	var err error
	switch resource {
	case ResourcePost:
		current, err = s.usageRepo.CountPostsSince(ctx, subscription.UserID, subscription.StartAt)
	case ResourceClub:
		current, err = s.usageRepo.CountClubsOwned(ctx, subscription.UserID)
	case ResourcePlayerProfile:
		current, err = s.usageRepo.CountPlayerProfiles(ctx, subscription.UserID)
	}
	if err != nil {
		return nil, err
	}

	return &UsageDecision{
		Resource: resource,
		Allowed:  current < *limit,
		Current:  current,
		Max:      *limit,
	}, nil
}

func limitFor(limits entity.PlanLimits, resource string) *int64 {
	switch resource {
	case ResourcePost:
		return limits.MaxPostsPerPeriod
	case ResourceClub:
		return limits.MaxClubsOwned
	case ResourcePlayerProfile:
		return limits.MaxPlayerProfiles
	default:
		return nil
	}
}

func normalizeResource(resource string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(resource)), "-", "_")
}

func isKnownResource(resource string) bool {
	for _, known := range usageResources {
		if known == resource {
			return true
		}
	}
	return false
}
