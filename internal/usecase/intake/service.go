package intake

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/matchgiving/matchfund-backend/internal/domain"
	"github.com/matchgiving/matchfund-backend/internal/persistence"
)

// Allocator matches a donation against its campaign's fundings. Satisfied by
// the allocation service.
type Allocator interface {
	Allocate(ctx context.Context, donation *domain.Donation, alreadyMatched decimal.Decimal) (decimal.Decimal, error)
	Release(ctx context.Context, donation *domain.Donation) (decimal.Decimal, error)
}

// Service is the donation intake flow's entry point into the engine. The
// persist and allocate steps are wrapped independently in bounded retry
// loops: each retry draws a fresh session from the pool while the in-memory
// donation entity built by the caller is reused, so a dropped connection
// never silently loses constructed state.
type Service struct {
	DonationRepo domain.DonationRepository
	Allocator    Allocator
	Retrier      *persistence.Retrier
}

// NewService creates a new intake Service instance
func NewService(donationRepo domain.DonationRepository, allocator Allocator, retrier *persistence.Retrier) *Service {
	return &Service{
		DonationRepo: donationRepo,
		Allocator:    allocator,
		Retrier:      retrier,
	}
}

// CreateDonation durably persists the donation and then reserves match funds
// for it, returning the amount matched. If persistence retries are exhausted
// the donation must not be treated as durably created. A failure to match is
// reported through the returned amount, not an error: whether partial
// matching blocks the donation is the calling flow's policy, not the
// engine's.
func (s *Service) CreateDonation(ctx context.Context, donation *domain.Donation) (decimal.Decimal, error) {
	if err := donation.Validate(); err != nil {
		return decimal.Zero, err
	}

	err := s.Retrier.Run(ctx, "persist donation", func(ctx context.Context) error {
		return s.DonationRepo.Create(ctx, donation)
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to persist donation %s: %w", donation.ID, err)
	}

	matched := decimal.Zero
	err = s.Retrier.Run(ctx, "allocate match funds", func(ctx context.Context) error {
		var allocErr error
		matched, allocErr = s.Allocator.Allocate(ctx, donation, decimal.Zero)
		return allocErr
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to allocate match funds for donation %s: %w", donation.ID, err)
	}

	return matched, nil
}

// CancelDonation releases any matched funds and marks the donation cancelled
func (s *Service) CancelDonation(ctx context.Context, donation *domain.Donation) error {
	if _, err := s.Allocator.Release(ctx, donation); err != nil {
		return fmt.Errorf("failed to release match funds for donation %s: %w", donation.ID, err)
	}

	if err := s.DonationRepo.UpdateStatus(ctx, donation.ID, domain.DonationStatusCancelled); err != nil {
		return fmt.Errorf("failed to cancel donation %s: %w", donation.ID, err)
	}

	return nil
}
