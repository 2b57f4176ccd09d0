package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
)

// ProfileRepository implements repository.ProfileRepository using PostgreSQL.
type ProfileRepository struct {
	q Querier
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)

// Create adds a new profile.
func (r *ProfileRepository) Create(ctx context.Context, p *domain.Profile) error {
	query := `INSERT INTO profiles (id, full_name, phone, role, is_verified, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.ExecContext(ctx, query, p.ID, p.FullName, nullString(p.Phone), p.Role, p.IsVerified, p.CreatedAt)
	if _, ok := isUniqueViolation(err); ok {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a profile by ID.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT id, full_name, COALESCE(phone, ''), role, is_verified, created_at FROM profiles WHERE id = $1`

	var p domain.Profile
	err := r.q.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.FullName, &p.Phone, &p.Role, &p.IsVerified, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RatingRepository implements repository.RatingRepository using PostgreSQL.
type RatingRepository struct {
	q Querier
}

var _ repository.RatingRepository = (*RatingRepository)(nil)

// Create stores a rating.
func (r *RatingRepository) Create(ctx context.Context, rating *domain.Rating) error {
	query := `INSERT INTO ride_ratings (ride_id, driver_id, rider_id, rating, review, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.ExecContext(ctx, query,
		rating.RideID,
		rating.DriverID,
		rating.RiderID,
		rating.Score,
		nullString(rating.Review),
		rating.CreatedAt,
	)
	if _, ok := isUniqueViolation(err); ok {
		return repository.ErrDuplicate
	}
	return err
}

// AverageForDriver returns the mean score and count for a driver.
func (r *RatingRepository) AverageForDriver(ctx context.Context, driverID string) (float64, int, error) {
	var avg sql.NullFloat64
	var count int
	err := r.q.QueryRowContext(ctx, `SELECT AVG(rating), COUNT(*) FROM ride_ratings WHERE driver_id = $1`, driverID).Scan(&avg, &count)
	if err != nil {
		return 0, 0, err
	}
	return avg.Float64, count, nil
}
