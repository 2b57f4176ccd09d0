package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"ridecore/internal/domain"
)

const paymeCheckoutURL = "https://checkout.paycom.uz/"

// PaymeConfig holds Payme merchant credentials.
type PaymeConfig struct {
	MerchantID string
}

// PaymeProvider builds Payme checkout redirects.
type PaymeProvider struct {
	config    PaymeConfig
	callbacks CallbackURLs
	signer    *CallbackSigner
}

// NewPaymeProvider creates a new PaymeProvider.
func NewPaymeProvider(config PaymeConfig, callbacks CallbackURLs, signer *CallbackSigner) *PaymeProvider {
	return &PaymeProvider{config: config, callbacks: callbacks, signer: signer}
}

func (p *PaymeProvider) Method() domain.PaymentMethod { return domain.PaymentMethodPayme }

type paymeParams struct {
	Merchant string       `json:"m"`
	Account  paymeAccount `json:"ac"`
	Amount   int64        `json:"a"` // tiyin
	Callback string       `json:"c"`
}

type paymeAccount struct {
	OrderID string `json:"order_id"`
}

// Checkout returns the Payme checkout URL. Amounts are sent in tiyin.
func (p *PaymeProvider) Checkout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if p.config.MerchantID == "" {
		return simulated(p.Method(), "Payme credentials not configured"), nil
	}

	callbackURL, err := p.callbacks.Signed(p.signer, p.Method(), req.TransactionID, NotifyStatus)
	if err != nil {
		return nil, err
	}

	params, err := json.Marshal(paymeParams{
		Merchant: p.config.MerchantID,
		Account:  paymeAccount{OrderID: req.TransactionID},
		Amount:   req.Amount * 100,
		Callback: callbackURL,
	})
	if err != nil {
		return nil, err
	}

	return &Checkout{
		Provider:    p.Method(),
		RedirectURL: paymeCheckoutURL + base64.StdEncoding.EncodeToString(params),
	}, nil
}
