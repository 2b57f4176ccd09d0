// Package payment implements the wire formats of the payment providers:
// checkout redirects, callback parsing and signed return URLs. Provider
// business logic stays with the providers.
package payment

import (
	"context"
	"errors"
	"net/url"

	"ridecore/internal/domain"
)

var (
	// ErrUnknownProvider is returned for a method with no registered provider.
	ErrUnknownProvider = errors.New("unknown payment provider")

	// ErrProviderFailure is returned when a provider API rejects a request.
	ErrProviderFailure = errors.New("payment provider request failed")

	// ErrInvalidSignature is returned when a callback signature does not verify.
	ErrInvalidSignature = errors.New("invalid callback signature")

	// ErrMalformedCallback is returned when a callback cannot be parsed.
	ErrMalformedCallback = errors.New("malformed payment callback")
)

// CheckoutRequest describes one payment attempt.
type CheckoutRequest struct {
	TransactionID string
	RideID        string
	Amount        int64 // whole currency units
	Currency      string
}

// Checkout is what the rider needs to complete a payment.
type Checkout struct {
	Provider    domain.PaymentMethod
	RedirectURL string // empty for cash and simulated checkouts
	SessionID   string
	Simulated   bool
	Message     string
}

// Provider starts payments for one method.
type Provider interface {
	Method() domain.PaymentMethod
	Checkout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}

// Registry maps payment methods to providers.
type Registry struct {
	providers map[domain.PaymentMethod]Provider
}

// NewRegistry creates a registry of the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[domain.PaymentMethod]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Method()] = p
	}
	return r
}

// Get returns the provider for method.
func (r *Registry) Get(method domain.PaymentMethod) (Provider, error) {
	p, ok := r.providers[method]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Supports reports whether method has a provider.
func (r *Registry) Supports(method domain.PaymentMethod) bool {
	_, ok := r.providers[method]
	return ok
}

// CallbackURLs builds the provider return URLs pointing at this service.
type CallbackURLs struct {
	base string
}

// NewCallbackURLs creates a builder for the callback endpoint at base.
func NewCallbackURLs(base string) CallbackURLs {
	return CallbackURLs{base: base}
}

// For returns the callback URL for a transaction. Extra query pairs are
// appended in order.
func (c CallbackURLs) For(provider domain.PaymentMethod, txID string, extra ...string) string {
	q := url.Values{}
	q.Set("provider", string(provider))
	q.Set("tx", txID)
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	return c.base + "?" + q.Encode()
}

// Signed returns the callback URL for a transaction with a sig binding it
// to status.
func (c CallbackURLs) Signed(signer *CallbackSigner, provider domain.PaymentMethod, txID, status string, extra ...string) (string, error) {
	sig, err := signer.Sign(txID, status)
	if err != nil {
		return "", err
	}
	return c.For(provider, txID, append(extra, "sig", sig)...), nil
}
