package payment

import (
	"encoding/json"
	"fmt"
	"net/url"

	"ridecore/internal/domain"
)

// Outcome is a provider's verdict on a payment attempt.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeFailed || o == OutcomeCancelled
}

// Callback is a normalized provider notification.
type Callback struct {
	Provider      domain.PaymentMethod
	TransactionID string
	// Outcome is empty when the request carries no verdict, such as a
	// browser returning from the Click or Payme page.
	Outcome     Outcome
	ExternalRef string
}

// Reported reports whether the callback carries a verdict.
func (c *Callback) Reported() bool {
	return c.Outcome != ""
}

// CallbackParser decodes provider callbacks.
type CallbackParser struct {
	signer *CallbackSigner
}

// NewCallbackParser creates a parser that verifies signed return URLs with signer.
func NewCallbackParser(signer *CallbackSigner) *CallbackParser {
	return &CallbackParser{signer: signer}
}

// Parse decodes a callback from its query string and, for provider POSTs,
// its JSON body. Every callback URL this service hands out is signed, so a
// request without a valid sig for its transaction is rejected.
func (p *CallbackParser) Parse(query url.Values, body []byte) (*Callback, error) {
	cb := &Callback{
		Provider:      domain.PaymentMethod(query.Get("provider")),
		TransactionID: query.Get("tx"),
	}

	switch cb.Provider {
	case domain.PaymentMethodClick, domain.PaymentMethodPayme, domain.PaymentMethodStripe:
	default:
		return nil, ErrUnknownProvider
	}
	if cb.TransactionID == "" {
		return nil, fmt.Errorf("%w: transaction id missing", ErrMalformedCallback)
	}

	var err error
	switch cb.Provider {
	case domain.PaymentMethodClick:
		err = p.verifyNotify(cb, query, body, parseClick)
	case domain.PaymentMethodPayme:
		err = p.verifyNotify(cb, query, body, parsePayme)
	case domain.PaymentMethodStripe:
		err = p.parseStripe(cb, query)
	}
	if err != nil {
		return nil, err
	}
	return cb, nil
}

// verifyNotify checks the sig on a Click or Payme callback URL before
// trusting its body.
func (p *CallbackParser) verifyNotify(cb *Callback, query url.Values, body []byte, parse func(*Callback, []byte) error) error {
	if err := p.signer.Verify(query.Get("sig"), cb.TransactionID, NotifyStatus); err != nil {
		return err
	}
	return parse(cb, body)
}

type clickBody struct {
	Error           *int        `json:"error"`
	ClickTransID    json.Number `json:"click_trans_id"`
	MerchantTransID string      `json:"merchant_trans_id"`
}

func parseClick(cb *Callback, body []byte) error {
	if len(body) == 0 {
		return nil
	}

	var b clickBody
	if err := json.Unmarshal(body, &b); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if b.MerchantTransID != "" && b.MerchantTransID != cb.TransactionID {
		return fmt.Errorf("%w: merchant_trans_id %q does not match", ErrMalformedCallback, b.MerchantTransID)
	}

	if b.Error != nil && *b.Error == 0 {
		cb.Outcome = OutcomeSuccess
		cb.ExternalRef = b.ClickTransID.String()
	} else {
		cb.Outcome = OutcomeFailed
	}
	return nil
}

type paymeBody struct {
	Result *struct {
		Transaction string `json:"transaction"`
	} `json:"result"`
	Params *struct {
		Account struct {
			OrderID string `json:"order_id"`
		} `json:"account"`
	} `json:"params"`
}

func parsePayme(cb *Callback, body []byte) error {
	if len(body) == 0 {
		return nil
	}

	var b paymeBody
	if err := json.Unmarshal(body, &b); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if b.Params != nil && b.Params.Account.OrderID != "" && b.Params.Account.OrderID != cb.TransactionID {
		return fmt.Errorf("%w: order_id %q does not match", ErrMalformedCallback, b.Params.Account.OrderID)
	}

	if b.Result != nil && b.Result.Transaction != "" {
		cb.Outcome = OutcomeSuccess
		cb.ExternalRef = b.Result.Transaction
	} else {
		cb.Outcome = OutcomeFailed
	}
	return nil
}

func (p *CallbackParser) parseStripe(cb *Callback, query url.Values) error {
	status := query.Get("status")
	switch Outcome(status) {
	case OutcomeSuccess, OutcomeCancelled:
	default:
		return fmt.Errorf("%w: status %q", ErrMalformedCallback, status)
	}

	if err := p.signer.Verify(query.Get("sig"), cb.TransactionID, status); err != nil {
		return err
	}
	cb.Outcome = Outcome(status)
	return nil
}
