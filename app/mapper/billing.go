package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-billing/app/entity"
	"github.com/vibast-solutions/ms-go-billing/app/payment"
	"github.com/vibast-solutions/ms-go-billing/app/service"
	"github.com/vibast-solutions/ms-go-billing/app/types"
)

func PlanToResponse(item *entity.Plan) *types.Plan {
	if item == nil {
		return nil
	}

	return &types.Plan{
		Id:           item.ID,
		Code:         item.Code,
		Name:         item.DisplayName,
		Type:         item.Type,
		Price:        item.Price.StringFixed(2),
		Currency:     item.Currency,
		DurationDays: item.DurationDays,
		Limits: &types.PlanLimits{
			MaxClubsOwned:     item.Limits.MaxClubsOwned,
			MaxPlayerProfiles: item.Limits.MaxPlayerProfiles,
			MaxPostsPerPeriod: item.Limits.MaxPostsPerPeriod,
			Features:          item.Limits.Features,
		},
		Active: item.Active,
	}
}

func PlansToResponse(items []*entity.Plan) []*types.Plan {
	result := make([]*types.Plan, 0, len(items))
	for _, item := range items {
		result = append(result, PlanToResponse(item))
	}
	return result
}

func SubscriptionToResponse(item *entity.Subscription) *types.Subscription {
	if item == nil {
		return nil
	}

	return &types.Subscription{
		Id:            item.ID,
		UserId:        item.UserID,
		PlanId:        item.PlanID,
		Status:        entity.SubscriptionStatusName(item.Status),
		StatusCode:    item.Status,
		Entitled:      item.IsEntitled(time.Now().UTC()),
		StartAt:       item.StartAt.UTC().Format(time.RFC3339),
		EndAt:         formatTime(item.EndAt),
		PaymentMethod: derefString(item.PaymentMethod),
		TransactionId: derefString(item.TransactionID),
		AutoRenew:     item.AutoRenew,
		CancelledAt:   formatTime(item.CancelledAt),
		CreatedAt:     item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func SubscriptionsToResponse(items []*entity.Subscription) []*types.Subscription {
	result := make([]*types.Subscription, 0, len(items))
	for _, item := range items {
		result = append(result, SubscriptionToResponse(item))
	}
	return result
}

func CheckoutToResponse(result *service.CheckoutResult) *types.CheckoutResponse {
	if result == nil {
		return nil
	}

	return &types.CheckoutResponse{
		Reference:   result.Reference,
		RedirectUrl: result.RedirectURL,
		Token:       result.Token,
		Amount:      payment.FormatMinorUnits(result.AmountMinor, result.Currency),
		AmountMinor: result.AmountMinor,
		Currency:    result.Currency,
		Plan:        PlanToResponse(result.Plan),
	}
}

func UsageDecisionToResponse(item *service.UsageDecision) *types.UsageDecision {
	if item == nil {
		return nil
	}

	resp := &types.UsageDecision{
		Resource:  item.Resource,
		Allowed:   item.Allowed,
		Current:   item.Current,
		Unlimited: item.Unlimited,
	}
	if !item.Unlimited {
		limit := item.Max
		resp.Max = &limit
	}
	return resp
}

func UsageSnapshotToResponse(item *service.UsageSnapshot) *types.UsageResponse {
	if item == nil {
		return nil
	}

	resp := &types.UsageResponse{
		UserId:         item.UserID,
		SubscriptionId: item.SubscriptionID,
		PlanId:         item.PlanID,
		PlanCode:       item.PlanCode,
		Resources:      make([]*types.UsageDecision, 0, len(item.Resources)),
	}
	for _, decision := range item.Resources {
		resp.Resources = append(resp.Resources, UsageDecisionToResponse(decision))
	}
	return resp
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
