package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matchgiving/matchfund-backend/internal/domain"
)

type donationRow struct {
	ID           uuid.UUID       `db:"id"`
	CampaignID   uuid.UUID       `db:"campaign_id"`
	Amount       decimal.Decimal `db:"amount"`
	CurrencyCode string          `db:"currency_code"`
	Status       string          `db:"status"`
	CreatedAt    time.Time       `db:"created_at"`
}

func (r donationRow) toDomain() *domain.Donation {
	return &domain.Donation{
		ID:           r.ID,
		CampaignID:   r.CampaignID,
		Amount:       r.Amount,
		CurrencyCode: r.CurrencyCode,
		Status:       domain.DonationStatus(r.Status),
		CreatedAt:    r.CreatedAt,
	}
}

// donationRepository implements domain.DonationRepository
type donationRepository struct {
	db *DB
}

// NewDonationRepository creates a new donation repository
func NewDonationRepository(db *DB) domain.DonationRepository {
	return &donationRepository{db: db}
}

// GetByID retrieves a donation by its ID
func (r *donationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	query := `
		SELECT id, campaign_id, amount, currency_code, status, created_at
		FROM donations
		WHERE id = $1
	`

	var row donationRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("donation not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get donation by ID: %w", err)
	}

	return row.toDomain(), nil
}

// Create creates a new donation
func (r *donationRepository) Create(ctx context.Context, donation *domain.Donation) error {
	query := `
		INSERT INTO donations (id, campaign_id, amount, currency_code, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		donation.ID,
		donation.CampaignID,
		donation.Amount,
		donation.CurrencyCode,
		string(donation.Status),
		donation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create donation: %w", err)
	}

	return nil
}

// UpdateStatus moves a donation to a new lifecycle status
func (r *donationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DonationStatus) error {
	query := `UPDATE donations SET status = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update donation status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("donation %s not found", id)
	}
	return nil
}

// ListExpiredPending returns pending donations created before the cutoff that
// still hold at least one withdrawal
func (r *donationRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Donation, error) {
	query := `
		SELECT d.id, d.campaign_id, d.amount, d.currency_code, d.status, d.created_at
		FROM donations d
		WHERE d.status = $1
		  AND d.created_at < $2
		  AND EXISTS (
		      SELECT 1 FROM funding_withdrawals w WHERE w.donation_id = d.id
		  )
		ORDER BY d.created_at ASC
		LIMIT $3
	`

	var rows []donationRow
	if err := r.db.SelectContext(ctx, &rows, query, string(domain.DonationStatusPending), cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to list expired pending donations: %w", err)
	}

	return rowsToDonations(rows), nil
}

// ListRedistributionCandidates returns successful donations on closed
// campaigns holding a withdrawal against a funding ranked worse than another
// funding with capacity on the same campaign
func (r *donationRepository) ListRedistributionCandidates(ctx context.Context, limit int) ([]*domain.Donation, error) {
	query := `
		SELECT DISTINCT d.id, d.campaign_id, d.amount, d.currency_code, d.status, d.created_at
		FROM donations d
		JOIN campaigns c ON c.id = d.campaign_id
		JOIN funding_withdrawals w ON w.donation_id = d.id
		JOIN campaign_fundings held ON held.id = w.campaign_funding_id
		WHERE d.status IN ($1, $2)
		  AND c.closed_at IS NOT NULL AND c.closed_at < NOW()
		  AND EXISTS (
		      SELECT 1 FROM campaign_fundings better
		      WHERE better.campaign_id = d.campaign_id
		        AND better.currency_code = d.currency_code
		        AND better.allocation_order < held.allocation_order
		        AND better.amount_available > 0
		  )
		ORDER BY d.created_at ASC
		LIMIT $3
	`

	var rows []donationRow
	err := r.db.SelectContext(ctx, &rows, query,
		string(domain.DonationStatusCollected), string(domain.DonationStatusPaid), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list redistribution candidates: %w", err)
	}

	return rowsToDonations(rows), nil
}

// ListUnmatchedSuccessful returns successful donations whose withdrawals sum
// to less than the donation amount
func (r *donationRepository) ListUnmatchedSuccessful(ctx context.Context, limit int) ([]*domain.Donation, error) {
	query := `
		SELECT d.id, d.campaign_id, d.amount, d.currency_code, d.status, d.created_at
		FROM donations d
		WHERE d.status IN ($1, $2)
		  AND d.amount > (
		      SELECT COALESCE(SUM(w.amount), 0)
		      FROM funding_withdrawals w
		      WHERE w.donation_id = d.id
		  )
		ORDER BY d.created_at ASC
		LIMIT $3
	`

	var rows []donationRow
	err := r.db.SelectContext(ctx, &rows, query,
		string(domain.DonationStatusCollected), string(domain.DonationStatusPaid), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched successful donations: %w", err)
	}

	return rowsToDonations(rows), nil
}

func rowsToDonations(rows []donationRow) []*domain.Donation {
	donations := make([]*domain.Donation, len(rows))
	for i, row := range rows {
		donations[i] = row.toDomain()
	}
	return donations
}
