package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentEvent records a provider notification that has been applied to the ledger.
type PaymentEvent struct {
	ID             uint64
	Reference      string
	EventType      string
	UserID         string
	PlanID         uint64
	SubscriptionID uint64
	Amount         decimal.Decimal
	Currency       string
	PaymentMethod  string
	CreatedAt      time.Time
}
