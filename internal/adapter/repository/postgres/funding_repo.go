package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matchgiving/matchfund-backend/internal/domain"
)

type fundingRow struct {
	ID              uuid.UUID       `db:"id"`
	FundID          uuid.UUID       `db:"fund_id"`
	CampaignID      uuid.UUID       `db:"campaign_id"`
	FundType        string          `db:"fund_type"`
	Amount          decimal.Decimal `db:"amount"`
	AmountAvailable decimal.Decimal `db:"amount_available"`
	AllocationOrder int             `db:"allocation_order"`
	CurrencyCode    string          `db:"currency_code"`
	Shared          bool            `db:"shared"`
}

func (r fundingRow) toDomain() *domain.CampaignFunding {
	return &domain.CampaignFunding{
		ID:              r.ID,
		FundID:          r.FundID,
		CampaignID:      r.CampaignID,
		FundType:        domain.FundType(r.FundType),
		Amount:          r.Amount,
		AmountAvailable: r.AmountAvailable,
		AllocationOrder: r.AllocationOrder,
		CurrencyCode:    r.CurrencyCode,
		Shared:          r.Shared,
	}
}

// fundingRepository implements domain.FundingRepository
type fundingRepository struct {
	db *DB
}

// NewFundingRepository creates a new campaign funding repository
func NewFundingRepository(db *DB) domain.FundingRepository {
	return &fundingRepository{db: db}
}

// GetByID retrieves a campaign funding by its ID
func (r *fundingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CampaignFunding, error) {
	query := `
		SELECT id, fund_id, campaign_id, fund_type, amount, amount_available,
		       allocation_order, currency_code, shared
		FROM campaign_fundings
		WHERE id = $1
	`

	var row fundingRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("campaign funding not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get campaign funding by ID: %w", err)
	}

	return row.toDomain(), nil
}

// Create creates a new campaign funding
func (r *fundingRepository) Create(ctx context.Context, funding *domain.CampaignFunding) error {
	query := `
		INSERT INTO campaign_fundings (id, fund_id, campaign_id, fund_type, amount,
		                               amount_available, allocation_order, currency_code, shared)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		funding.ID,
		funding.FundID,
		funding.CampaignID,
		string(funding.FundType),
		funding.Amount,
		funding.AmountAvailable,
		funding.AllocationOrder,
		funding.CurrencyCode,
		funding.Shared,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign funding: %w", err)
	}

	return nil
}

// ListForCampaign returns the candidate fundings for a campaign in the given
// currency, ordered by (allocation_order ASC, id ASC). This is a plain read
// rather than a locking one: the conditional balance decrement is the
// contention authority, and locking these rows here would block against it.
func (r *fundingRepository) ListForCampaign(ctx context.Context, campaignID uuid.UUID, currencyCode string) ([]*domain.CampaignFunding, error) {
	query := `
		SELECT id, fund_id, campaign_id, fund_type, amount, amount_available,
		       allocation_order, currency_code, shared
		FROM campaign_fundings
		WHERE campaign_id = $1 AND currency_code = $2
		ORDER BY allocation_order ASC, id ASC
	`

	var rows []fundingRow
	if err := r.db.SelectContext(ctx, &rows, query, campaignID, currencyCode); err != nil {
		return nil, fmt.Errorf("failed to list fundings for campaign: %w", err)
	}

	fundings := make([]*domain.CampaignFunding, len(rows))
	for i, row := range rows {
		fundings[i] = row.toDomain()
	}
	return fundings, nil
}

// ListAllForCampaign returns every funding attached to a campaign regardless
// of currency
func (r *fundingRepository) ListAllForCampaign(ctx context.Context, campaignID uuid.UUID) ([]*domain.CampaignFunding, error) {
	query := `
		SELECT id, fund_id, campaign_id, fund_type, amount, amount_available,
		       allocation_order, currency_code, shared
		FROM campaign_fundings
		WHERE campaign_id = $1
		ORDER BY allocation_order ASC, id ASC
	`

	var rows []fundingRow
	if err := r.db.SelectContext(ctx, &rows, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to list all fundings for campaign: %w", err)
	}

	fundings := make([]*domain.CampaignFunding, len(rows))
	for i, row := range rows {
		fundings[i] = row.toDomain()
	}
	return fundings, nil
}
