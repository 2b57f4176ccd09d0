package payment

import (
	"context"

	"ridecore/internal/domain"
)

// CashProvider settles offline; the driver confirms receipt.
type CashProvider struct{}

func (CashProvider) Method() domain.PaymentMethod { return domain.PaymentMethodCash }

func (CashProvider) Checkout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	return &Checkout{
		Provider: domain.PaymentMethodCash,
		Message:  "Cash payment pending - driver confirmation required",
	}, nil
}
