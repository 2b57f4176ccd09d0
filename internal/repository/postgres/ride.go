package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
)

const rideColumns = `id, rider_id, driver_id, pickup_lat, pickup_lng, pickup_address, dropoff_lat, dropoff_lng, dropoff_address,
	ride_type, distance_meters, duration_seconds, base_fare, distance_fare, time_fare, promo_code, discount_amount,
	fare_amount, surge_multiplier, payment_method, payment_status, status, cancel_reason, created_at, updated_at`

const activeDriverIndex = "rides_one_active_per_driver"

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

var _ repository.RideRepository = (*RideRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID, promoCode, cancelReason sql.NullString

	err := row.Scan(
		&ride.ID,
		&ride.RiderID,
		&driverID,
		&ride.Pickup.Lat,
		&ride.Pickup.Lng,
		&ride.Pickup.Address,
		&ride.Dropoff.Lat,
		&ride.Dropoff.Lng,
		&ride.Dropoff.Address,
		&ride.Class,
		&ride.DistanceMeters,
		&ride.DurationSeconds,
		&ride.Fare.Base,
		&ride.Fare.DistanceFare,
		&ride.Fare.TimeFare,
		&promoCode,
		&ride.DiscountAmount,
		&ride.FareAmount,
		&ride.SurgeMultiplier,
		&ride.PaymentMethod,
		&ride.PaymentStatus,
		&ride.Status,
		&cancelReason,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ride.DriverID = driverID.String
	ride.PromoCode = promoCode.String
	ride.CancelReason = cancelReason.String
	ride.Fare.Total = ride.FareAmount + ride.DiscountAmount

	return &ride, nil
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`

	// Default surge to 1.0 if not set
	surgeMultiplier := ride.SurgeMultiplier
	if surgeMultiplier < 1.0 {
		surgeMultiplier = 1.0
	}

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		nullString(ride.DriverID),
		ride.Pickup.Lat,
		ride.Pickup.Lng,
		ride.Pickup.Address,
		ride.Dropoff.Lat,
		ride.Dropoff.Lng,
		ride.Dropoff.Address,
		ride.Class,
		ride.DistanceMeters,
		ride.DurationSeconds,
		ride.Fare.Base,
		ride.Fare.DistanceFare,
		ride.Fare.TimeFare,
		nullString(ride.PromoCode),
		ride.DiscountAmount,
		ride.FareAmount,
		surgeMultiplier,
		ride.PaymentMethod,
		ride.PaymentStatus,
		ride.Status,
		nullString(ride.CancelReason),
		ride.CreatedAt,
		ride.UpdatedAt,
	)
	if _, ok := isUniqueViolation(err); ok {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// List retrieves rides matching the filter, newest first.
func (r *RideRepository) List(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	statuses := make([]string, len(filter.Statuses))
	for i, s := range filter.Statuses {
		statuses[i] = string(s)
	}

	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE ($1 = '' OR rider_id = $1)
		  AND ($2 = '' OR driver_id = $2)
		  AND (cardinality($3::text[]) = 0 OR status = ANY($3))
		ORDER BY created_at DESC
		LIMIT $4
	`
	return r.query(ctx, query, filter.RiderID, filter.DriverID, pq.Array(statuses), limit)
}

// ListPending retrieves pending rides, oldest first.
func (r *RideRepository) ListPending(ctx context.Context, limit int) ([]*domain.Ride, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + rideColumns + ` FROM rides WHERE status = 'pending' ORDER BY created_at ASC, id ASC LIMIT $1`
	return r.query(ctx, query, limit)
}

func (r *RideRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// Assign moves a pending ride to accepted with the given driver. The partial
// unique index on active rides rejects a driver that is already busy even
// when two different rides are claimed concurrently.
func (r *RideRepository) Assign(ctx context.Context, rideID, driverID string, at time.Time) error {
	query := `
		UPDATE rides
		SET status = 'accepted', driver_id = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'
		  AND NOT EXISTS (
			SELECT 1 FROM rides active
			WHERE active.driver_id = $2 AND active.status IN ('accepted', 'arriving', 'in_progress')
		  )
	`

	result, err := r.q.ExecContext(ctx, query, rideID, driverID, at)
	if err != nil {
		if constraint, ok := isUniqueViolation(err); ok && constraint == activeDriverIndex {
			return repository.ErrDriverBusy
		}
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 1 {
		return nil
	}

	// Work out which guard failed.
	var status domain.RideStatus
	err = r.q.QueryRowContext(ctx, `SELECT status FROM rides WHERE id = $1`, rideID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrNotFound
		}
		return err
	}
	if status != domain.RideStatusPending {
		return repository.ErrStaleState
	}
	return repository.ErrDriverBusy
}

// Transition applies a guarded status change.
func (r *RideRepository) Transition(ctx context.Context, t repository.RideTransition) error {
	query := `
		UPDATE rides
		SET status = $3,
		    updated_at = $4,
		    driver_id = CASE WHEN $5 THEN NULL ELSE driver_id END,
		    cancel_reason = COALESCE($6, cancel_reason)
		WHERE id = $1 AND status = $2 AND ($7 = '' OR driver_id = $7)
	`

	result, err := r.q.ExecContext(ctx, query,
		t.RideID,
		t.From,
		t.To,
		t.At,
		t.ReleaseDriver,
		nullString(t.CancelReason),
		t.DriverID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrStaleState
	}
	return nil
}

// UpdatePaymentStatus mirrors a transaction status onto the ride.
func (r *RideRepository) UpdatePaymentStatus(ctx context.Context, rideID string, status domain.PaymentStatus, at time.Time) error {
	query := `UPDATE rides SET payment_status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, rideID, status, at)
	if err != nil {
		return err
	}
	return checkAffected(result)
}
