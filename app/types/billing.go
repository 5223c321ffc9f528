package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-billing/app/payment"
)

func NewCheckoutRequestFromContext(ctx echo.Context) (*CheckoutRequest, error) {
	var body CheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.UserId = strings.TrimSpace(body.UserId)
	return &body, nil
}

func (r *CheckoutRequest) Validate() error {
	return validateStruct(r)
}

func NewActivateFreePlanRequestFromContext(ctx echo.Context) (*ActivateFreePlanRequest, error) {
	var body ActivateFreePlanRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.UserId = strings.TrimSpace(body.UserId)
	return &body, nil
}

func (r *ActivateFreePlanRequest) Validate() error {
	return validateStruct(r)
}

func NewGetSubscriptionRequestFromContext(ctx echo.Context) (*GetSubscriptionRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &GetSubscriptionRequest{Id: id}, nil
}

func (r *GetSubscriptionRequest) Validate() error {
	if r.GetId() == 0 {
		return errors.New("invalid subscription id")
	}
	return nil
}

func NewCancelSubscriptionRequestFromContext(ctx echo.Context) (*CancelSubscriptionRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &CancelSubscriptionRequest{Id: id}, nil
}

func (r *CancelSubscriptionRequest) Validate() error {
	if r.GetId() == 0 {
		return errors.New("invalid subscription id")
	}
	return nil
}

func NewListSubscriptionsRequestFromContext(ctx echo.Context) (*ListSubscriptionsRequest, error) {
	return &ListSubscriptionsRequest{UserId: strings.TrimSpace(ctx.QueryParam("user_id"))}, nil
}

func (r *ListSubscriptionsRequest) Validate() error {
	return validateStruct(r)
}

func NewGetActiveSubscriptionRequestFromContext(ctx echo.Context) (*GetActiveSubscriptionRequest, error) {
	return &GetActiveSubscriptionRequest{UserId: strings.TrimSpace(ctx.QueryParam("user_id"))}, nil
}

func (r *GetActiveSubscriptionRequest) Validate() error {
	return validateStruct(r)
}

func NewGetUsageRequestFromContext(ctx echo.Context) (*GetUsageRequest, error) {
	return &GetUsageRequest{UserId: strings.TrimSpace(ctx.Param("user_id"))}, nil
}

func (r *GetUsageRequest) Validate() error {
	return validateStruct(r)
}

func NewCanConsumeRequestFromContext(ctx echo.Context) (*CanConsumeRequest, error) {
	return &CanConsumeRequest{
		UserId:   strings.TrimSpace(ctx.Param("user_id")),
		Resource: strings.ToLower(strings.TrimSpace(ctx.Param("resource"))),
	}, nil
}

func (r *CanConsumeRequest) Validate() error {
	return validateStruct(r)
}

func NewHasFeatureRequestFromContext(ctx echo.Context) (*HasFeatureRequest, error) {
	return &HasFeatureRequest{
		UserId:  strings.TrimSpace(ctx.Param("user_id")),
		Feature: strings.TrimSpace(ctx.Param("feature")),
	}, nil
}

func (r *HasFeatureRequest) Validate() error {
	return validateStruct(r)
}

// NewPaymentNotificationFromContext binds an IPN delivered either as JSON or
// as a form post.
func NewPaymentNotificationFromContext(ctx echo.Context) (payment.Notification, error) {
	var body payment.Notification
	if err := (&echo.DefaultBinder{}).BindBody(ctx, &body); err != nil {
		return payment.Notification{}, err
	}
	body.EventType = strings.TrimSpace(body.EventType)
	body.Reference = strings.TrimSpace(body.Reference)
	body.Amount = strings.TrimSpace(body.Amount)
	body.Currency = strings.TrimSpace(body.Currency)
	body.Custom = strings.TrimSpace(body.Custom)
	body.PaymentMethod = strings.TrimSpace(body.PaymentMethod)
	body.Signature = strings.TrimSpace(body.Signature)
	return body, nil
}
