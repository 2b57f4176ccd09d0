package repository

import (
	"context"

	"ridecore/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetAll retrieves all drivers.
	GetAll(ctx context.Context) ([]*domain.Driver, error)

	// SetOnline toggles a driver's presence.
	SetOnline(ctx context.Context, id string, online bool) error

	// UpdatePosition overwrites the driver's last-known position.
	UpdatePosition(ctx context.Context, id string, lat, lng, heading float64) error

	// ListAvailable retrieves online drivers with a known position and
	// no active ride.
	ListAvailable(ctx context.Context) ([]*domain.Driver, error)

	// RecordCompletedRide bumps the driver's ride count and earnings.
	RecordCompletedRide(ctx context.Context, id string, earnings int64) error

	// UpdateRating overwrites the driver's average rating.
	UpdateRating(ctx context.Context, id string, rating float64) error

	// AppendLocation stores one position sample.
	AppendLocation(ctx context.Context, loc *domain.DriverLocation) error

	// ListLocations retrieves the most recent samples for a driver.
	ListLocations(ctx context.Context, driverID string, limit int) ([]*domain.DriverLocation, error)
}
