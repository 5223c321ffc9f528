package payment

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	EventTypeSaleComplete  = "sale-complete"
	EventTypeSaleCancelled = "sale-cancelled"
)

// Notification is the raw inbound IPN body as the provider sends it.
type Notification struct {
	EventType     string `json:"event_type" form:"event_type"`
	Reference     string `json:"reference" form:"reference"`
	Amount        string `json:"amount" form:"amount"`
	Currency      string `json:"currency" form:"currency"`
	Custom        string `json:"custom" form:"custom"`
	PaymentMethod string `json:"payment_method" form:"payment_method"`
	APIKeyHash    string `json:"api_key_hash" form:"api_key_hash"`
	APISecretHash string `json:"api_secret_hash" form:"api_secret_hash"`
	Signature     string `json:"signature" form:"signature"`
}

func NormalizeEventType(eventType string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(eventType)), "_", "-")
}

// Event is one of SaleComplete, SaleCancelled or UnknownEvent.
type Event interface {
	EventReference() string
	isEvent()
}

type SaleComplete struct {
	Reference     string
	RawAmount     string
	Amount        decimal.Decimal
	Currency      string
	PaymentMethod string
	Payload       CustomPayload
}

type SaleCancelled struct {
	Reference string
	RawAmount string
	Currency  string
	Custom    string
}

type UnknownEvent struct {
	Type      string
	Reference string
}

func (e SaleComplete) EventReference() string  { return e.Reference }
func (e SaleCancelled) EventReference() string { return e.Reference }
func (e UnknownEvent) EventReference() string  { return e.Reference }

func (SaleComplete) isEvent()  {}
func (SaleCancelled) isEvent() {}
func (UnknownEvent) isEvent()  {}

// DecodeEvent turns an authenticated notification into its typed variant.
// Only sale-complete is validated strictly since it is the only variant
// that mutates state.
func DecodeEvent(n Notification) (Event, error) {
	reference := strings.TrimSpace(n.Reference)

	switch NormalizeEventType(n.EventType) {
	case EventTypeSaleComplete:
		if reference == "" {
			return nil, malformed("reference is missing")
		}
		rawAmount := strings.TrimSpace(n.Amount)
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil {
			return nil, malformed("amount %q is not a decimal", rawAmount)
		}
		if !amount.IsPositive() {
			return nil, malformed("amount must be positive")
		}
		currency := strings.ToUpper(strings.TrimSpace(n.Currency))
		if len(currency) != 3 {
			return nil, malformed("currency %q is not an ISO-4217 code", n.Currency)
		}
		payload, err := DecodeCustomPayload(n.Custom)
		if err != nil {
			return nil, err
		}
		if payload.Reference != "" && payload.Reference != reference {
			return nil, malformed("custom payload reference does not match event reference")
		}
		return SaleComplete{
			Reference:     reference,
			RawAmount:     rawAmount,
			Amount:        amount,
			Currency:      currency,
			PaymentMethod: strings.TrimSpace(n.PaymentMethod),
			Payload:       payload,
		}, nil
	case EventTypeSaleCancelled:
		return SaleCancelled{
			Reference: reference,
			RawAmount: strings.TrimSpace(n.Amount),
			Currency:  strings.ToUpper(strings.TrimSpace(n.Currency)),
			Custom:    n.Custom,
		}, nil
	default:
		return UnknownEvent{Type: n.EventType, Reference: reference}, nil
	}
}
