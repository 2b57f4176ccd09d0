package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
)

const driverColumns = `id, user_id, is_online, current_lat, current_lng, heading, rating,
	car_brand, car_model, car_plate, car_color, total_rides, total_earnings, updated_at`

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

var _ repository.DriverRepository = (*DriverRepository)(nil)

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var driver domain.Driver
	var lat, lng sql.NullFloat64

	err := row.Scan(
		&driver.ID,
		&driver.UserID,
		&driver.IsOnline,
		&lat,
		&lng,
		&driver.Heading,
		&driver.Rating,
		&driver.Vehicle.Brand,
		&driver.Vehicle.Model,
		&driver.Vehicle.Plate,
		&driver.Vehicle.Color,
		&driver.TotalRides,
		&driver.TotalEarnings,
		&driver.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		driver.HasPosition = true
		driver.Lat = lat.Float64
		driver.Lng = lng.Float64
	}
	return &driver, nil
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, user_id, is_online, rating, car_brand, car_model, car_plate, car_color, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.q.ExecContext(ctx, query,
		driver.ID,
		driver.UserID,
		driver.IsOnline,
		driver.Rating,
		driver.Vehicle.Brand,
		driver.Vehicle.Model,
		driver.Vehicle.Plate,
		driver.Vehicle.Color,
		driver.UpdatedAt,
	)
	if _, ok := isUniqueViolation(err); ok {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`

	driver, err := scanDriver(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return driver, nil
}

// GetAll retrieves all drivers.
func (r *DriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers ORDER BY id`
	return r.query(ctx, query)
}

// ListAvailable retrieves online drivers with a position and no active ride.
func (r *DriverRepository) ListAvailable(ctx context.Context) ([]*domain.Driver, error) {
	query := `
		SELECT ` + driverColumns + `
		FROM drivers d
		WHERE d.is_online
		  AND d.current_lat IS NOT NULL AND d.current_lng IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM rides r
			WHERE r.driver_id = d.id AND r.status IN ('accepted', 'arriving', 'in_progress')
		  )
		ORDER BY d.id
	`
	return r.query(ctx, query)
}

func (r *DriverRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Driver, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

// SetOnline toggles a driver's presence.
func (r *DriverRepository) SetOnline(ctx context.Context, id string, online bool) error {
	query := `UPDATE drivers SET is_online = $1, updated_at = now() WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, online, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// UpdatePosition overwrites the driver's last-known position.
func (r *DriverRepository) UpdatePosition(ctx context.Context, id string, lat, lng, heading float64) error {
	query := `UPDATE drivers SET current_lat = $1, current_lng = $2, heading = $3, updated_at = now() WHERE id = $4`

	result, err := r.q.ExecContext(ctx, query, lat, lng, heading, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// RecordCompletedRide bumps the driver's ride count and earnings.
func (r *DriverRepository) RecordCompletedRide(ctx context.Context, id string, earnings int64) error {
	query := `
		UPDATE drivers
		SET total_rides = total_rides + 1, total_earnings = total_earnings + $1, updated_at = now()
		WHERE id = $2
	`

	result, err := r.q.ExecContext(ctx, query, earnings, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// UpdateRating overwrites the driver's average rating.
func (r *DriverRepository) UpdateRating(ctx context.Context, id string, rating float64) error {
	result, err := r.q.ExecContext(ctx, `UPDATE drivers SET rating = $1 WHERE id = $2`, rating, id)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// AppendLocation stores one position sample.
func (r *DriverRepository) AppendLocation(ctx context.Context, loc *domain.DriverLocation) error {
	query := `
		INSERT INTO driver_locations (id, driver_id, lat, lng, heading, speed, ride_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.q.ExecContext(ctx, query,
		loc.ID,
		loc.DriverID,
		loc.Lat,
		loc.Lng,
		loc.Heading,
		loc.Speed,
		nullString(loc.RideID),
		loc.RecordedAt,
	)
	return err
}

// ListLocations retrieves the most recent samples for a driver.
func (r *DriverRepository) ListLocations(ctx context.Context, driverID string, limit int) ([]*domain.DriverLocation, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, driver_id, lat, lng, heading, speed, ride_id, recorded_at
		FROM driver_locations
		WHERE driver_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`
	rows, err := r.q.QueryContext(ctx, query, driverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []*domain.DriverLocation
	for rows.Next() {
		var loc domain.DriverLocation
		var rideID sql.NullString
		if err := rows.Scan(&loc.ID, &loc.DriverID, &loc.Lat, &loc.Lng, &loc.Heading, &loc.Speed, &rideID, &loc.RecordedAt); err != nil {
			return nil, err
		}
		loc.RideID = rideID.String
		locations = append(locations, &loc)
	}
	return locations, rows.Err()
}
