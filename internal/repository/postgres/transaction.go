package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
)

const transactionColumns = `id, ride_id, user_id, amount, currency, payment_method, status, type, external_id, created_at, updated_at`

// TransactionRepository is a PostgreSQL implementation of repository.TransactionRepository.
type TransactionRepository struct {
	q Querier
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var externalID sql.NullString

	err := row.Scan(
		&t.ID,
		&t.RideID,
		&t.UserID,
		&t.Amount,
		&t.Currency,
		&t.PaymentMethod,
		&t.Status,
		&t.Type,
		&externalID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ExternalID = externalID.String
	return &t, nil
}

// Create persists a new transaction.
func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.q.ExecContext(ctx, query,
		t.ID,
		t.RideID,
		t.UserID,
		t.Amount,
		t.Currency,
		t.PaymentMethod,
		t.Status,
		t.Type,
		nullString(t.ExternalID),
		t.CreatedAt,
		t.UpdatedAt,
	)
	if _, ok := isUniqueViolation(err); ok {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a transaction by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListByRide retrieves every attempt for a ride, oldest first.
func (r *TransactionRepository) ListByRide(ctx context.Context, rideID string) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ride_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.q.QueryContext(ctx, query, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// Transition moves a transaction from one status to another.
func (r *TransactionRepository) Transition(ctx context.Context, id string, from, to domain.PaymentStatus, externalID string, at time.Time) error {
	query := `
		UPDATE transactions
		SET status = $3, external_id = COALESCE($4, external_id), updated_at = $5
		WHERE id = $1 AND status = $2
	`

	result, err := r.q.ExecContext(ctx, query, id, from, to, nullString(externalID), at)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return repository.ErrDuplicate
		}
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
