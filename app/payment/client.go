package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/vibast-solutions/ms-go-billing/app/factory"
)

const (
	paymentRequestsPath = "/api/v1/payment-requests"
	statusSuccess       = "success"
	maxResponseBytes    = 1 << 20
)

type ClientConfig struct {
	BaseURL         string
	APIKey          string
	Sandbox         bool
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Client is the HTTP payment-request builder for the hosted checkout provider.
type Client struct {
	baseURL    string
	apiKey     string
	sandbox    bool
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*PaymentRedirect]
	logger     logrus.FieldLogger
}

type createPaymentRequestBody struct {
	ItemName    string `json:"item_name"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	Environment string `json:"environment"`
	IPNURL      string `json:"ipn_url"`
	SuccessURL  string `json:"success_url"`
	CancelURL   string `json:"cancel_url"`
	Custom      string `json:"custom,omitempty"`
}

type createPaymentResponseBody struct {
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url"`
	Token       string `json:"token"`
	Message     string `json:"message"`
}

func NewClient(cfg ClientConfig, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Timeout == 0 || httpClient.Timeout > cfg.Timeout {
		httpClient.Timeout = cfg.Timeout
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	logger := factory.NewModuleLogger("payment-client")
	settings := gobreaker.Settings{
		Name:        "payment-provider",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			var providerErr *ProviderError
			if errors.As(err, &providerErr) {
				return !providerErr.Unreachable && providerErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, ErrInvalidCallbackURL) || errors.Is(err, ErrInvalidRequest)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("payment provider circuit breaker state changed")
		},
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		sandbox:    cfg.Sandbox,
		httpClient: httpClient,
		breaker:    gobreaker.NewCircuitBreaker[*PaymentRedirect](settings),
		logger:     logger,
	}
}

// CreatePaymentRequest registers a payment with the provider and returns the
// hosted checkout redirect. It is never retried here.
func (c *Client) CreatePaymentRequest(ctx context.Context, req PaymentRequest) (*PaymentRedirect, error) {
	if err := validateCallbacks(req.Callbacks); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Reference) == "" || req.PriceMinor <= 0 || strings.TrimSpace(req.Currency) == "" {
		return nil, fmt.Errorf("%w: reference, price and currency are required", ErrInvalidRequest)
	}

	environment := EnvironmentLive
	if c.sandbox {
		environment = EnvironmentTest
	}
	body := createPaymentRequestBody{
		ItemName:    req.ItemName,
		Price:       FormatMinorUnits(req.PriceMinor, req.Currency),
		Currency:    strings.ToUpper(req.Currency),
		Reference:   req.Reference,
		Environment: environment,
		IPNURL:      req.Callbacks.IPN,
		SuccessURL:  req.Callbacks.Success,
		CancelURL:   req.Callbacks.Cancel,
		Custom:      req.Custom,
	}

	redirect, err := c.breaker.Execute(func() (*PaymentRedirect, error) {
		return c.send(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ProviderError{Message: "circuit open", Unreachable: true, Err: err}
		}
		c.logger.WithFields(logrus.Fields{
			"reference": req.Reference,
			"error":     err.Error(),
		}).Warn("payment request failed")
		return nil, err
	}

	return redirect, nil
}

func (c *Client) send(ctx context.Context, body createPaymentRequestBody) (*PaymentRedirect, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+paymentRequestsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Message: err.Error(), Unreachable: true, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Message: err.Error(), Unreachable: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: err.Error(), Unreachable: true, Err: err}
	}

	var decoded createPaymentResponseBody
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := decoded.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: "invalid response body", Err: decodeErr}
	}
	if !strings.EqualFold(decoded.Status, statusSuccess) || decoded.RedirectURL == "" {
		msg := decoded.Message
		if msg == "" {
			msg = "payment request was not accepted"
		}
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}

	return &PaymentRedirect{RedirectURL: decoded.RedirectURL, Token: decoded.Token}, nil
}

func validateCallbacks(cb Callbacks) error {
	for name, raw := range map[string]string{"ipn": cb.IPN, "success": cb.Success, "cancel": cb.Cancel} {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s url %q", ErrInvalidCallbackURL, name, raw)
		}
	}
	return nil
}
