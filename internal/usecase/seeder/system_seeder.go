package seeder

import (
	"context"

	"github.com/google/uuid"

	"github.com/matchgiving/matchfund-backend/internal/domain"
)

// Fixed UUIDs for system funds so every environment seeds the same rows
var (
	SYS_HOUSE_CHAMPION = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	SYS_TOPUP_RESERVE  = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

// SystemFund defines the structure for a system fund to be seeded
type SystemFund struct {
	ID           uuid.UUID
	Name         string
	FundType     domain.FundType
	CurrencyCode string
}

// SystemSeeder handles seeding of required system funds
type SystemSeeder struct {
	repo domain.FundRepository
}

// NewSystemSeeder creates a new SystemSeeder instance
func NewSystemSeeder(repo domain.FundRepository) *SystemSeeder {
	return &SystemSeeder{
		repo: repo,
	}
}

// Seed ensures all required system funds exist in the database
// If a fund doesn't exist, it creates it
func (s *SystemSeeder) Seed(ctx context.Context) error {
	systemFunds := []SystemFund{
		{
			ID:           SYS_HOUSE_CHAMPION,
			Name:         "House Champion Fund",
			FundType:     domain.FundTypeChampionFund,
			CurrencyCode: "GBP",
		},
		{
			ID:           SYS_TOPUP_RESERVE,
			Name:         "House Top-up Reserve",
			FundType:     domain.FundTypeTopupPledge,
			CurrencyCode: "GBP",
		},
	}

	for _, sysFund := range systemFunds {
		// Try to get the fund by ID
		_, err := s.repo.GetByID(ctx, sysFund.ID)
		if err != nil {
			// Fund doesn't exist, create it
			fund := &domain.Fund{
				ID:           sysFund.ID,
				Name:         sysFund.Name,
				FundType:     sysFund.FundType,
				CurrencyCode: sysFund.CurrencyCode,
			}

			// Validate before creating
			if err := fund.Validate(); err != nil {
				return err
			}

			if err := s.repo.Create(ctx, fund); err != nil {
				return err
			}
		}
		// If fund exists, no action needed
	}

	return nil
}
