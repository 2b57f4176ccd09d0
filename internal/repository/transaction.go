package repository

import (
	"context"
	"time"

	"ridecore/internal/domain"
)

// TransactionRepository defines the persistence operations for payment
// transactions.
type TransactionRepository interface {
	// Create persists a new transaction.
	Create(ctx context.Context, tx *domain.Transaction) error

	// GetByID retrieves a transaction by ID.
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)

	// ListByRide retrieves every attempt for a ride, oldest first.
	ListByRide(ctx context.Context, rideID string) ([]*domain.Transaction, error)

	// Transition moves a transaction from one status to another. An empty
	// externalID keeps the stored reference. Returns ErrStaleState when the
	// transaction is not in the from status and ErrDuplicate when the ride
	// already has a completed transaction.
	Transition(ctx context.Context, id string, from, to domain.PaymentStatus, externalID string, at time.Time) error
}
