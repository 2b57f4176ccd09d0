package repository

import (
	"context"

	"ridecore/internal/domain"
)

// ProfileRepository defines the persistence operations for profiles.
type ProfileRepository interface {
	// Create persists a new profile.
	Create(ctx context.Context, profile *domain.Profile) error

	// GetByID retrieves a profile by ID.
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
}

// RatingRepository defines the persistence operations for ride ratings.
type RatingRepository interface {
	// Create stores a rating. Returns ErrDuplicate if the ride is rated.
	Create(ctx context.Context, rating *domain.Rating) error

	// AverageForDriver returns the mean score and count for a driver.
	AverageForDriver(ctx context.Context, driverID string) (float64, int, error)
}
