package payment

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

const (
	CustomPayloadVersion = 1

	PaymentKindSubscription = "subscription"
)

// CustomPayload travels through the provider untouched and identifies what
// a payment was for.
type CustomPayload struct {
	Version   int    `json:"v"`
	Kind      string `json:"k"`
	UserID    string `json:"u"`
	PlanID    uint64 `json:"p"`
	Reference string `json:"r,omitempty"`
}

func EncodeCustomPayload(p CustomPayload) (string, error) {
	if p.Version == 0 {
		p.Version = CustomPayloadVersion
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCustomPayload accepts padded or unpadded base64url input and fails
// with ErrMalformedPayload for anything it did not produce.
func DecodeCustomPayload(raw string) (CustomPayload, error) {
	var p CustomPayload

	encoded := strings.TrimRight(strings.TrimSpace(raw), "=")
	if encoded == "" {
		return p, malformed("custom payload is empty")
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return p, malformed("custom payload is not base64url")
	}

	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return p, malformed("custom payload is not valid json")
	}
	if p.Version != CustomPayloadVersion {
		return p, malformed("unsupported custom payload version %d", p.Version)
	}
	if strings.TrimSpace(p.Kind) == "" {
		return p, malformed("custom payload kind is missing")
	}
	if p.Kind == PaymentKindSubscription {
		if strings.TrimSpace(p.UserID) == "" || p.PlanID == 0 {
			return p, malformed("subscription payload requires user and plan")
		}
	}

	return p, nil
}
