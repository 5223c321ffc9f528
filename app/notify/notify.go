package notify

import "context"

const (
	KindSubscriptionActivated = "subscription.activated"
	KindSubscriptionRenewed   = "subscription.renewed"
	KindSubscriptionCancelled = "subscription.cancelled"
)

// Dispatcher delivers a user notification. Payload is a JSON document.
type Dispatcher interface {
	Notify(ctx context.Context, userID, kind string, payload []byte) error
}
