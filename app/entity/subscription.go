package entity

import "time"

const (
	SubscriptionStatusActive    int32 = 10
	SubscriptionStatusCancelled int32 = 20
	SubscriptionStatusExpired   int32 = 30
)

type Subscription struct {
	ID            uint64
	UserID        string
	PlanID        uint64
	Status        int32
	StartAt       time.Time
	EndAt         *time.Time
	PaymentMethod *string
	TransactionID *string
	AutoRenew     bool
	CancelledAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsEntitled evaluates the stored status together with the end date, since
// nothing guarantees an expiry sweep has already run.
func (s *Subscription) IsEntitled(now time.Time) bool {
	if s == nil || s.Status != SubscriptionStatusActive {
		return false
	}
	return s.EndAt == nil || s.EndAt.After(now)
}

func SubscriptionStatusName(status int32) string {
	switch status {
	case SubscriptionStatusActive:
		return "ACTIVE"
	case SubscriptionStatusCancelled:
		return "CANCELLED"
	case SubscriptionStatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}
