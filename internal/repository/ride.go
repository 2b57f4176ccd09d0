package repository

import (
	"context"
	"time"

	"ridecore/internal/domain"
)

// RideFilter narrows ride listings. Zero values are ignored.
type RideFilter struct {
	RiderID  string
	DriverID string
	Statuses []domain.RideStatus
	Limit    int
}

// RideTransition is a compare-and-swap status change on one ride.
type RideTransition struct {
	RideID string
	From   domain.RideStatus
	To     domain.RideStatus

	// DriverID, when set, additionally requires the ride to be assigned to it.
	DriverID string

	// ReleaseDriver clears driver_id as part of the update.
	ReleaseDriver bool

	CancelReason string
	At           time.Time
}

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride. Returns ErrDuplicate if the id is taken.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// List retrieves rides matching the filter, newest first.
	List(ctx context.Context, filter RideFilter) ([]*domain.Ride, error)

	// ListPending retrieves pending rides, oldest first.
	ListPending(ctx context.Context, limit int) ([]*domain.Ride, error)

	// Assign moves a pending ride to accepted with the given driver.
	// Returns ErrStaleState if the ride is no longer pending and
	// ErrDriverBusy if the driver already holds an active ride.
	Assign(ctx context.Context, rideID, driverID string, at time.Time) error

	// Transition applies a guarded status change.
	// Returns ErrStaleState when the guard does not hold.
	Transition(ctx context.Context, t RideTransition) error

	// UpdatePaymentStatus mirrors a transaction status onto the ride.
	UpdatePaymentStatus(ctx context.Context, rideID string, status domain.PaymentStatus, at time.Time) error
}
