package payment

import "context"

const (
	EnvironmentTest = "test"
	EnvironmentLive = "live"
)

type Callbacks struct {
	IPN     string
	Success string
	Cancel  string
}

// PaymentRequest is the outbound payment-initiation payload.
type PaymentRequest struct {
	ItemName   string
	PriceMinor int64
	Currency   string
	Reference  string
	Callbacks  Callbacks
	Custom     string
}

type PaymentRedirect struct {
	RedirectURL string
	Token       string
}

type Service interface {
	CreatePaymentRequest(ctx context.Context, req PaymentRequest) (*PaymentRedirect, error)
}
