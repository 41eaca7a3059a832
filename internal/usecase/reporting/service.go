package reporting

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matchgiving/matchfund-backend/internal/domain"
)

// ErrMixedCurrencies indicates a campaign's fundings do not share one
// currency, which makes a single remaining-funds figure meaningless
var ErrMixedCurrencies = errors.New("campaign fundings carry mixed currencies")

// Service answers read-only questions about fundings and withdrawals for
// reporting, audit logs and the donation's externally-pushed record.
type Service struct {
	FundingRepo    domain.FundingRepository
	WithdrawalRepo domain.WithdrawalRepository
}

// NewService creates a new reporting Service instance
func NewService(fundingRepo domain.FundingRepository, withdrawalRepo domain.WithdrawalRepository) *Service {
	return &Service{
		FundingRepo:    fundingRepo,
		WithdrawalRepo: withdrawalRepo,
	}
}

// FundsRemaining returns the total match funds still available for a
// campaign and their currency. All of the campaign's fundings must share one
// currency.
func (s *Service) FundsRemaining(ctx context.Context, campaignID uuid.UUID) (decimal.Decimal, string, error) {
	fundings, err := s.FundingRepo.ListAllForCampaign(ctx, campaignID)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("failed to list fundings for campaign %s: %w", campaignID, err)
	}

	if len(fundings) == 0 {
		return decimal.Zero, "", nil
	}

	currency := fundings[0].CurrencyCode
	total := decimal.Zero
	for _, f := range fundings {
		if f.CurrencyCode != currency {
			return decimal.Zero, "", fmt.Errorf("%w: campaign %s has %s and %s",
				ErrMixedCurrencies, campaignID, currency, f.CurrencyCode)
		}
		total = total.Add(f.AmountAvailable)
	}

	return total, currency, nil
}

// MatchedByFundType sums a donation's withdrawals grouped by the fund type
// behind each funding, e.g. "amount matched by pledges" vs "by champion
// funds" for the donation's CRM record.
func (s *Service) MatchedByFundType(ctx context.Context, donationID uuid.UUID) (map[domain.FundType]decimal.Decimal, error) {
	withdrawals, err := s.WithdrawalRepo.ListForDonation(ctx, donationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals for donation %s: %w", donationID, err)
	}

	breakdown := make(map[domain.FundType]decimal.Decimal)
	for _, w := range withdrawals {
		funding, err := s.FundingRepo.GetByID(ctx, w.CampaignFundingID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve funding %s: %w", w.CampaignFundingID, err)
		}

		current, ok := breakdown[funding.FundType]
		if !ok {
			current = decimal.Zero
		}
		breakdown[funding.FundType] = current.Add(w.Amount)
	}

	return breakdown, nil
}
