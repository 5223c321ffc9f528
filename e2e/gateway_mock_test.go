//go:build e2e
// +build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"sync"
)

const (
	gatewayMockAddr          = "127.0.0.1:38084"
	defaultGatewayAPIKey     = "e2e-gateway-key"
	defaultGatewayAPISecret  = "e2e-gateway-secret"
	gatewayPaymentRequestURI = "/api/v1/payment-requests"
)

var activeGateway *gatewayMock

type capturedPaymentRequest struct {
	ItemName  string `json:"item_name"`
	Price     string `json:"price"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
	IPNURL    string `json:"ipn_url"`
	Custom    string `json:"custom"`
}

// gatewayMock stands in for the hosted checkout provider.
type gatewayMock struct {
	mu       sync.Mutex
	requests map[string]capturedPaymentRequest
}

func newGatewayMock() *gatewayMock {
	return &gatewayMock{requests: make(map[string]capturedPaymentRequest)}
}

func (g *gatewayMock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != gatewayPaymentRequestURI {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("X-Api-Key") != envOrDefault("GATEWAY_API_KEY", defaultGatewayAPIKey) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "invalid api key"})
		return
	}

	var req capturedPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "invalid body"})
		return
	}

	g.mu.Lock()
	g.requests[req.Reference] = req
	g.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":       "success",
		"redirect_url": "https://checkout.example.com/pay/" + req.Reference,
		"token":        "tok-" + req.Reference,
	})
}

func (g *gatewayMock) request(reference string) (capturedPaymentRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.requests[reference]
	return req, ok
}
