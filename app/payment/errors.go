package payment

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedPayload   = errors.New("malformed payment payload")
	ErrInvalidCallbackURL = errors.New("invalid callback url")
	ErrInvalidRequest     = errors.New("invalid payment request")
)

// ProviderError is returned for every failed call to the payment provider.
// Unreachable distinguishes transport failures (timeouts, refused connections,
// open circuit) from requests the provider answered and rejected.
type ProviderError struct {
	StatusCode  int
	Message     string
	Unreachable bool
	Err         error
}

func (e *ProviderError) Error() string {
	if e.Unreachable {
		return fmt.Sprintf("payment provider unreachable: %s", e.Message)
	}
	return fmt.Sprintf("payment provider rejected request (status %d): %s", e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}
