package repository

import (
	"context"
	"time"

	"ridecore/internal/domain"
)

// PromoRepository defines the persistence operations for promo codes.
type PromoRepository interface {
	// GetByCode retrieves a promo by its upper-case code.
	GetByCode(ctx context.Context, code string) (*domain.PromoCode, error)

	// GetAll retrieves the whole catalog.
	GetAll(ctx context.Context) ([]*domain.PromoCode, error)

	// Create adds a promo. Returns ErrDuplicate if the code exists.
	Create(ctx context.Context, promo *domain.PromoCode) error

	// SetActive toggles a promo.
	SetActive(ctx context.Context, code string, active bool) error

	// InsertRedemption records that a ride used a code.
	// Returns false if the pair was already recorded.
	InsertRedemption(ctx context.Context, code, rideID string, at time.Time) (bool, error)

	// IncrementUsage bumps used_count if the code is active and under its
	// limit. Returns ErrStaleState otherwise.
	IncrementUsage(ctx context.Context, code string) error
}
