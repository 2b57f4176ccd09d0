package payment

import (
	"context"
	"net/url"
	"strconv"

	"ridecore/internal/domain"
)

const clickPayURL = "https://my.click.uz/services/pay"

// ClickConfig holds Click merchant credentials.
type ClickConfig struct {
	MerchantID string
	ServiceID  string
}

// ClickProvider builds Click checkout redirects.
type ClickProvider struct {
	config    ClickConfig
	callbacks CallbackURLs
	signer    *CallbackSigner
}

// NewClickProvider creates a new ClickProvider.
func NewClickProvider(config ClickConfig, callbacks CallbackURLs, signer *CallbackSigner) *ClickProvider {
	return &ClickProvider{config: config, callbacks: callbacks, signer: signer}
}

func (p *ClickProvider) Method() domain.PaymentMethod { return domain.PaymentMethodClick }

// Checkout returns the Click payment page URL, or a simulated checkout when
// credentials are not configured.
func (p *ClickProvider) Checkout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if p.config.MerchantID == "" || p.config.ServiceID == "" {
		return simulated(p.Method(), "Click credentials not configured"), nil
	}

	returnURL, err := p.callbacks.Signed(p.signer, p.Method(), req.TransactionID, NotifyStatus)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("service_id", p.config.ServiceID)
	q.Set("merchant_id", p.config.MerchantID)
	q.Set("amount", strconv.FormatInt(req.Amount, 10))
	q.Set("transaction_param", req.TransactionID)
	q.Set("return_url", returnURL)

	return &Checkout{
		Provider:    p.Method(),
		RedirectURL: clickPayURL + "?" + q.Encode(),
	}, nil
}

func simulated(method domain.PaymentMethod, message string) *Checkout {
	return &Checkout{
		Provider:  method,
		Simulated: true,
		Message:   message,
	}
}
