package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
)

const (
	ReasonOK                  = "ok"
	ReasonNotConfigured       = "credentials_not_configured"
	ReasonStaticHashMismatch  = "static_hash_mismatch"
	ReasonSignatureMismatch   = "signature_mismatch"
	ReasonSignatureMissing    = "signature_missing"
	ReasonSignatureNotApplied = "signature_not_applicable"
)

type Verification struct {
	Authentic bool
	Reason    string
}

// Verifier authenticates inbound notifications against the local provider
// credentials.
type Verifier struct {
	apiKey           string
	apiSecret        string
	keyHash          string
	secretHash       string
	requireSignature bool
	logger           logrus.FieldLogger
}

func NewVerifier(apiKey, apiSecret string, requireSignature bool) *Verifier {
	v := &Verifier{
		apiKey:           apiKey,
		apiSecret:        apiSecret,
		requireSignature: requireSignature,
		logger:           factory.NewModuleLogger("payment-verifier"),
	}
	if apiKey != "" && apiSecret != "" {
		v.keyHash = HashCredential(apiKey)
		v.secretHash = HashCredential(apiSecret)
	}
	return v
}

func HashCredential(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// ComputeSignature is the provider's keyed proof over "{amount}|{reference}|{apiKey}".
func ComputeSignature(apiSecret, rawAmount, reference, apiKey string) string {
	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(rawAmount + "|" + reference + "|" + apiKey))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *Verifier) Verify(n Notification) Verification {
	if v.keyHash == "" || v.secretHash == "" {
		return Verification{Reason: ReasonNotConfigured}
	}

	keyOK := constantTimeHexEqual(n.APIKeyHash, v.keyHash)
	secretOK := constantTimeHexEqual(n.APISecretHash, v.secretHash)
	if !keyOK || !secretOK {
		return Verification{Reason: ReasonStaticHashMismatch}
	}

	signature := strings.TrimSpace(n.Signature)
	if signature != "" {
		expected := ComputeSignature(v.apiSecret, strings.TrimSpace(n.Amount), strings.TrimSpace(n.Reference), v.apiKey)
		if !constantTimeHexEqual(signature, expected) {
			return Verification{Reason: ReasonSignatureMismatch}
		}
		return Verification{Authentic: true, Reason: ReasonOK}
	}

	if !carriesSignature(n.EventType) {
		return Verification{Authentic: true, Reason: ReasonSignatureNotApplied}
	}
	if v.requireSignature {
		return Verification{Reason: ReasonSignatureMissing}
	}

	v.logger.WithFields(logrus.Fields{
		"alert":      "ipn_signature_missing",
		"reference":  n.Reference,
		"event_type": n.EventType,
	}).Warn("notification accepted without keyed signature")
	return Verification{Authentic: true, Reason: ReasonSignatureMissing}
}

func carriesSignature(eventType string) bool {
	return NormalizeEventType(eventType) == EventTypeSaleComplete
}

func constantTimeHexEqual(provided, expected string) bool {
	return hmac.Equal([]byte(strings.ToLower(strings.TrimSpace(provided))), []byte(expected))
}
