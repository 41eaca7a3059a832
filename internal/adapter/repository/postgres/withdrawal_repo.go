package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matchgiving/matchfund-backend/internal/domain"
)

type withdrawalRow struct {
	ID                uuid.UUID       `db:"id"`
	CampaignFundingID uuid.UUID       `db:"campaign_funding_id"`
	DonationID        uuid.UUID       `db:"donation_id"`
	Amount            decimal.Decimal `db:"amount"`
	CreatedAt         time.Time       `db:"created_at"`
}

func (r withdrawalRow) toDomain() *domain.FundingWithdrawal {
	return &domain.FundingWithdrawal{
		ID:                r.ID,
		CampaignFundingID: r.CampaignFundingID,
		DonationID:        r.DonationID,
		Amount:            r.Amount,
		CreatedAt:         r.CreatedAt,
	}
}

// withdrawalRepository implements domain.WithdrawalRepository
type withdrawalRepository struct {
	db *DB
}

// NewWithdrawalRepository creates a new funding withdrawal repository
func NewWithdrawalRepository(db *DB) domain.WithdrawalRepository {
	return &withdrawalRepository{db: db}
}

const insertWithdrawalQuery = `
	INSERT INTO funding_withdrawals (id, campaign_funding_id, donation_id, amount, created_at)
	VALUES ($1, $2, $3, $4, $5)
`

// CreateBatch persists a set of withdrawals in one transaction
func (r *withdrawalRepository) CreateBatch(ctx context.Context, withdrawals []*domain.FundingWithdrawal) error {
	if len(withdrawals) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, w := range withdrawals {
		if _, err := tx.ExecContext(ctx, insertWithdrawalQuery,
			w.ID, w.CampaignFundingID, w.DonationID, w.Amount, w.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert withdrawal %s: %w", w.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withdrawal batch: %w", err)
	}
	return nil
}

// ListForDonation retrieves all active withdrawals owned by a donation
func (r *withdrawalRepository) ListForDonation(ctx context.Context, donationID uuid.UUID) ([]*domain.FundingWithdrawal, error) {
	query := `
		SELECT id, campaign_funding_id, donation_id, amount, created_at
		FROM funding_withdrawals
		WHERE donation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	var rows []withdrawalRow
	if err := r.db.SelectContext(ctx, &rows, query, donationID); err != nil {
		return nil, fmt.Errorf("failed to list withdrawals for donation: %w", err)
	}

	withdrawals := make([]*domain.FundingWithdrawal, len(rows))
	for i, row := range rows {
		withdrawals[i] = row.toDomain()
	}
	return withdrawals, nil
}

// DeleteForDonation removes all of a donation's withdrawals and returns how
// many rows were removed. Deleting an already-released donation is a no-op.
func (r *withdrawalRepository) DeleteForDonation(ctx context.Context, donationID uuid.UUID) (int, error) {
	query := `DELETE FROM funding_withdrawals WHERE donation_id = $1`

	result, err := r.db.ExecContext(ctx, query, donationID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete withdrawals for donation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

// Replace atomically deletes an existing withdrawal and persists its
// replacement against a different funding. The ledger never shows a donation
// double-counted or missing its match partway through a swap.
func (r *withdrawalRepository) Replace(ctx context.Context, oldID uuid.UUID, replacement *domain.FundingWithdrawal) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM funding_withdrawals WHERE id = $1`, oldID)
	if err != nil {
		return fmt.Errorf("failed to delete withdrawal %s: %w", oldID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("withdrawal %s not found", oldID)
	}

	if _, err := tx.ExecContext(ctx, insertWithdrawalQuery,
		replacement.ID, replacement.CampaignFundingID, replacement.DonationID,
		replacement.Amount, replacement.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert replacement withdrawal %s: %w", replacement.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withdrawal replacement: %w", err)
	}
	return nil
}

// SumForFunding returns the total active withdrawal amount against a funding
func (r *withdrawalRepository) SumForFunding(ctx context.Context, fundingID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM funding_withdrawals
		WHERE campaign_funding_id = $1
	`

	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, fundingID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum withdrawals for funding: %w", err)
	}
	return total, nil
}
