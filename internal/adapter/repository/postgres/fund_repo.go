package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/matchgiving/matchfund-backend/internal/domain"
)

type fundRow struct {
	ID           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	FundType     string    `db:"fund_type"`
	CurrencyCode string    `db:"currency_code"`
}

func (r fundRow) toDomain() *domain.Fund {
	return &domain.Fund{
		ID:           r.ID,
		Name:         r.Name,
		FundType:     domain.FundType(r.FundType),
		CurrencyCode: r.CurrencyCode,
	}
}

// fundRepository implements domain.FundRepository
type fundRepository struct {
	db *DB
}

// NewFundRepository creates a new fund repository
func NewFundRepository(db *DB) domain.FundRepository {
	return &fundRepository{db: db}
}

// GetByID retrieves a fund by its ID
func (r *fundRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Fund, error) {
	query := `
		SELECT id, name, fund_type, currency_code
		FROM funds
		WHERE id = $1
	`

	var row fundRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("fund not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get fund by ID: %w", err)
	}

	return row.toDomain(), nil
}

// Create creates a new fund
func (r *fundRepository) Create(ctx context.Context, fund *domain.Fund) error {
	query := `
		INSERT INTO funds (id, name, fund_type, currency_code)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query,
		fund.ID,
		fund.Name,
		string(fund.FundType),
		fund.CurrencyCode,
	)
	if err != nil {
		return fmt.Errorf("failed to create fund: %w", err)
	}

	return nil
}
