package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ridecore/internal/domain"
)

const (
	defaultStripeEndpoint = "https://api.stripe.com/v1/checkout/sessions"

	// DefaultUZSPerUSD is the conversion rate used when none is configured.
	DefaultUZSPerUSD = 12500.0
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StripeConfig holds Stripe credentials and the checkout conversion rate.
type StripeConfig struct {
	SecretKey   string
	Endpoint    string  // overrides the checkout sessions URL
	RateToUSD   float64 // local currency units per USD
	ProductName string
}

// StripeProvider creates Stripe Checkout sessions.
type StripeProvider struct {
	config    StripeConfig
	client    HTTPDoer
	callbacks CallbackURLs
	signer    *CallbackSigner
}

// NewStripeProvider creates a new StripeProvider.
func NewStripeProvider(config StripeConfig, client HTTPDoer, callbacks CallbackURLs, signer *CallbackSigner) *StripeProvider {
	if config.Endpoint == "" {
		config.Endpoint = defaultStripeEndpoint
	}
	if config.RateToUSD <= 0 {
		config.RateToUSD = DefaultUZSPerUSD
	}
	if config.ProductName == "" {
		config.ProductName = "Taxi Ride"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &StripeProvider{
		config:    config,
		client:    client,
		callbacks: callbacks,
		signer:    signer,
	}
}

func (p *StripeProvider) Method() domain.PaymentMethod { return domain.PaymentMethodStripe }

// USDCents converts a local amount to US cents at rate units per dollar.
func USDCents(amount int64, rate float64) int64 {
	return int64(math.Round(float64(amount) / rate * 100))
}

type stripeSession struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Checkout creates a Checkout session whose success and cancel URLs carry
// a signed status.
func (p *StripeProvider) Checkout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if p.config.SecretKey == "" {
		return simulated(p.Method(), "Stripe credentials not configured"), nil
	}

	successURL, err := p.returnURL(req.TransactionID, "success")
	if err != nil {
		return nil, err
	}
	cancelURL, err := p.returnURL(req.TransactionID, "cancelled")
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("payment_method_types[]", "card")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][product_data][name]", p.config.ProductName+" - "+req.RideID)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(USDCents(req.Amount, p.config.RateToUSD), 10))
	form.Set("line_items[0][quantity]", "1")
	form.Set("mode", "payment")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)
	form.Set("metadata[transaction_id]", req.TransactionID)
	form.Set("metadata[ride_id]", req.RideID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.config.SecretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	var session stripeSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("%w: status %d", ErrProviderFailure, resp.StatusCode)
	}
	if resp.StatusCode >= 300 || session.URL == "" {
		msg := http.StatusText(resp.StatusCode)
		if session.Error != nil {
			msg = session.Error.Message
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderFailure, msg)
	}

	return &Checkout{
		Provider:    p.Method(),
		RedirectURL: session.URL,
		SessionID:   session.ID,
	}, nil
}

func (p *StripeProvider) returnURL(txID, status string) (string, error) {
	return p.callbacks.Signed(p.signer, p.Method(), txID, status, "status", status)
}
