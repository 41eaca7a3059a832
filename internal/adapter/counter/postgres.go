package counter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// PostgresStore implements domain.BalanceStore directly over the
// campaign_fundings table. Every operation is a single conditional UPDATE, so
// the relational amount_available column and the allocation counter are the
// same value by construction and cannot drift.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a balance store over the given connection pool
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Decrement takes min(amount, available) in one atomic statement and returns
// the amount actually taken. Plain read-modify-write is deliberately avoided:
// the subquery row lock and arithmetic happen inside a single UPDATE.
func (s *PostgresStore) Decrement(ctx context.Context, fundingID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE campaign_fundings cf
		SET amount_available = GREATEST(cf.amount_available - $2, 0)
		FROM (
			SELECT amount_available AS prev
			FROM campaign_fundings
			WHERE id = $1
			FOR UPDATE
		) p
		WHERE cf.id = $1
		RETURNING p.prev - cf.amount_available
	`

	var taken decimal.Decimal
	err := s.db.QueryRowContext(ctx, query, fundingID, amount).Scan(&taken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("funding %s not found: %w", fundingID, err)
		}
		return decimal.Zero, fmt.Errorf("failed to decrement funding balance: %w", err)
	}

	return taken, nil
}

// Increment gives amount back, capped at the funding's original commitment
func (s *PostgresStore) Increment(ctx context.Context, fundingID uuid.UUID, amount decimal.Decimal) error {
	query := `
		UPDATE campaign_fundings
		SET amount_available = LEAST(amount_available + $2, amount)
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, fundingID, amount)
	if err != nil {
		return fmt.Errorf("failed to increment funding balance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("funding %s not found", fundingID)
	}

	return nil
}

// Available returns the funding's current balance
func (s *PostgresStore) Available(ctx context.Context, fundingID uuid.UUID) (decimal.Decimal, error) {
	var available decimal.Decimal
	err := s.db.GetContext(ctx, &available,
		`SELECT amount_available FROM campaign_fundings WHERE id = $1`, fundingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("funding %s not found: %w", fundingID, err)
		}
		return decimal.Zero, fmt.Errorf("failed to read funding balance: %w", err)
	}
	return available, nil
}
