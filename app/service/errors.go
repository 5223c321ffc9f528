package service

import (
	"errors"

	"github.com/vibast-solutions/ms-go-billing/app/payment"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPlanNotFound         = errors.New("plan not found or misconfigured")
	ErrPlanNotPurchasable   = errors.New("plan cannot be purchased")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidTransition    = errors.New("invalid subscription transition")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrUnknownResource      = errors.New("unknown resource kind")
	ErrAuthenticityFailure  = errors.New("notification failed authenticity check")

	ErrMalformedPayload = payment.ErrMalformedPayload
)
