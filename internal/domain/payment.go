package domain

import "time"

// PaymentStatus represents the status of a payment transaction. A ride's
// payment status mirrors its latest transaction.
type PaymentStatus string

const (
	PaymentStatusPending      PaymentStatus = "pending"
	PaymentStatusAwaitingCash PaymentStatus = "awaiting_cash"
	PaymentStatusCompleted    PaymentStatus = "completed"
	PaymentStatusFailed       PaymentStatus = "failed"
	PaymentStatusCancelled    PaymentStatus = "cancelled"
)

// IsOpen reports whether a transaction in this status may still settle.
func (s PaymentStatus) IsOpen() bool {
	return s == PaymentStatusPending || s == PaymentStatusAwaitingCash
}

// TransactionTypeRidePayment is the only transaction type the core creates.
const TransactionTypeRidePayment = "ride_payment"

// Transaction is one payment attempt for a ride. Transactions are never deleted.
type Transaction struct {
	ID            string
	RideID        string
	UserID        string
	Amount        int64
	Currency      string
	PaymentMethod PaymentMethod
	Status        PaymentStatus
	Type          string
	ExternalID    string // provider reference, empty until known
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
