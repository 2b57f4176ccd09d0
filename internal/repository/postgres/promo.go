package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
)

const promoColumns = `code, discount_type, discount_value, max_discount, usage_limit, used_count, is_active, created_at`

// PromoRepository is a PostgreSQL implementation of repository.PromoRepository.
type PromoRepository struct {
	q Querier
}

var _ repository.PromoRepository = (*PromoRepository)(nil)

func scanPromo(row rowScanner) (*domain.PromoCode, error) {
	var p domain.PromoCode
	var maxDiscount, usageLimit sql.NullInt64

	err := row.Scan(
		&p.Code,
		&p.DiscountType,
		&p.DiscountValue,
		&maxDiscount,
		&usageLimit,
		&p.UsedCount,
		&p.IsActive,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if maxDiscount.Valid {
		p.MaxDiscount = &maxDiscount.Int64
	}
	if usageLimit.Valid {
		p.UsageLimit = &usageLimit.Int64
	}
	return &p, nil
}

// GetByCode retrieves a promo by its upper-case code.
func (r *PromoRepository) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE code = $1`

	p, err := scanPromo(r.q.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// GetAll retrieves the whole catalog.
func (r *PromoRepository) GetAll(ctx context.Context) ([]*domain.PromoCode, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var promos []*domain.PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

// Create adds a promo.
func (r *PromoRepository) Create(ctx context.Context, p *domain.PromoCode) error {
	query := `INSERT INTO promo_codes (` + promoColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.q.ExecContext(ctx, query,
		p.Code,
		p.DiscountType,
		p.DiscountValue,
		nullInt64(p.MaxDiscount),
		nullInt64(p.UsageLimit),
		p.UsedCount,
		p.IsActive,
		p.CreatedAt,
	)
	if _, ok := isUniqueViolation(err); ok {
		return repository.ErrDuplicate
	}
	return err
}

// SetActive toggles a promo.
func (r *PromoRepository) SetActive(ctx context.Context, code string, active bool) error {
	result, err := r.q.ExecContext(ctx, `UPDATE promo_codes SET is_active = $1 WHERE code = $2`, active, code)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

// InsertRedemption records that a ride used a code. A concurrent insert of
// the same pair blocks on the primary key until the first one commits.
func (r *PromoRepository) InsertRedemption(ctx context.Context, code, rideID string, at time.Time) (bool, error) {
	query := `
		INSERT INTO promo_redemptions (code, ride_id, redeemed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (code, ride_id) DO NOTHING
	`

	result, err := r.q.ExecContext(ctx, query, code, rideID, at)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

// IncrementUsage bumps used_count if the code is active and under its limit.
func (r *PromoRepository) IncrementUsage(ctx context.Context, code string) error {
	query := `
		UPDATE promo_codes
		SET used_count = used_count + 1
		WHERE code = $1 AND is_active AND (usage_limit IS NULL OR used_count < usage_limit)
	`

	result, err := r.q.ExecContext(ctx, query, code)
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
