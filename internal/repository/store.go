package repository

import "context"

// Store groups the repositories that share one database handle.
type Store interface {
	Rides() RideRepository
	Drivers() DriverRepository
	Transactions() TransactionRepository
	Promos() PromoRepository
	Profiles() ProfileRepository
	Ratings() RatingRepository

	// WithTx runs fn with a Store bound to a single database transaction.
	// The transaction commits if fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Store) error) error
}
