package redis

import (
	"context"
	"time"

	"ridecore/internal/domain"
)

// LocationStoreInterface defines the interface for driver location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error
	FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]DriverLocation, error)
	RemoveLocation(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	// AcquireMatchLock returns a token identifying the holder, or ok=false
	// when another process holds the lock.
	AcquireMatchLock(ctx context.Context, rideID string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseMatchLock(ctx context.Context, rideID, token string) error
}

// PromoCacheInterface defines the interface for the promo lookup cache.
// A miss is reported as (nil, nil).
type PromoCacheInterface interface {
	GetPromo(ctx context.Context, code string) (*CachedPromo, error)
	SetPromo(ctx context.Context, promo *CachedPromo) error
	InvalidatePromo(ctx context.Context, code string) error
	WarmPromos(ctx context.Context, promos []*domain.PromoCode) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ PromoCacheInterface    = (*CacheStore)(nil)
)
