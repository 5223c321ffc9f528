package store

import (
	"context"
	"time"
)

// CheckoutAttempt remembers what a locally initiated payment was expected to
// charge, keyed by its reference.
type CheckoutAttempt struct {
	Reference   string    `json:"reference"`
	UserID      string    `json:"user_id"`
	PlanID      uint64    `json:"plan_id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

// CheckoutAttemptStore is lifetime-scoped transient state. Get returns nil
// when the attempt is unknown or has expired.
type CheckoutAttemptStore interface {
	Save(ctx context.Context, attempt CheckoutAttempt) error
	Get(ctx context.Context, reference string) (*CheckoutAttempt, error)
	Delete(ctx context.Context, reference string) error
}
