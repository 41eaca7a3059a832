package allocation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matchgiving/matchfund-backend/internal/domain"
	"github.com/matchgiving/matchfund-backend/internal/metrics"
	"github.com/matchgiving/matchfund-backend/internal/usecase/matching"
)

// ErrCurrencyMismatch indicates a candidate funding's currency differs from
// the donation's. This is a data error, never silently ignored.
var ErrCurrencyMismatch = errors.New("funding currency does not match donation currency")

// Service orchestrates match fund allocation and release for single donations
type Service struct {
	FundingRepo    domain.FundingRepository
	WithdrawalRepo domain.WithdrawalRepository
	Adapter        *matching.Adapter
}

// NewService creates a new allocation Service instance
func NewService(
	fundingRepo domain.FundingRepository,
	withdrawalRepo domain.WithdrawalRepository,
	adapter *matching.Adapter,
) *Service {
	return &Service{
		FundingRepo:    fundingRepo,
		WithdrawalRepo: withdrawalRepo,
		Adapter:        adapter,
	}
}

// Allocate covers as much of the donation as possible from the campaign's
// fundings, lowest allocation order first, and returns the newly matched
// amount.
//
// The fetched snapshot only orders the walk; the balance store resolves
// contention. When another allocator wins a race on a funding the grant comes
// back short and the loop compensates by moving to the next funding. Either
// every intended withdrawal is persisted or none are: on a terminal lock
// error all amounts taken so far are given back before returning.
func (s *Service) Allocate(ctx context.Context, donation *domain.Donation, alreadyMatched decimal.Decimal) (decimal.Decimal, error) {
	start := time.Now()
	status := "failure"
	defer func() {
		metrics.RecordAllocationDuration(status, time.Since(start).Seconds())
	}()

	amountLeftToMatch := donation.Amount.Sub(alreadyMatched)
	if amountLeftToMatch.LessThanOrEqual(decimal.Zero) {
		status = "success"
		return decimal.Zero, nil
	}

	fundings, err := s.FundingRepo.ListForCampaign(ctx, donation.CampaignID, donation.CurrencyCode)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list fundings for campaign %s: %w", donation.CampaignID, err)
	}

	withdrawals := make([]*domain.FundingWithdrawal, 0, len(fundings))
	totalTaken := decimal.Zero

	for _, funding := range fundings {
		if amountLeftToMatch.LessThanOrEqual(decimal.Zero) {
			break
		}

		if funding.CurrencyCode != donation.CurrencyCode {
			s.giveBackAll(ctx, withdrawals)
			return decimal.Zero, fmt.Errorf("%w: funding %s is %s, donation is %s",
				ErrCurrencyMismatch, funding.ID, funding.CurrencyCode, donation.CurrencyCode)
		}

		requested := decimal.Min(funding.AmountAvailable, amountLeftToMatch)
		if requested.LessThanOrEqual(decimal.Zero) {
			continue
		}

		taken, err := s.Adapter.TakeUpTo(ctx, funding.ID, requested)
		if err != nil {
			// Terminal: undo everything taken so far, persist nothing
			s.giveBackAll(ctx, withdrawals)
			return decimal.Zero, err
		}

		if taken.LessThan(requested) {
			log.Printf("[INFO] funding %s granted %s of requested %s for donation %s",
				funding.ID, taken, requested, donation.ID)
		}

		if taken.GreaterThan(decimal.Zero) {
			withdrawals = append(withdrawals, &domain.FundingWithdrawal{
				ID:                uuid.New(),
				CampaignFundingID: funding.ID,
				DonationID:        donation.ID,
				Amount:            taken,
				CreatedAt:         time.Now(),
			})
			totalTaken = totalTaken.Add(taken)
			amountLeftToMatch = amountLeftToMatch.Sub(taken)
		}
	}

	if len(withdrawals) > 0 {
		if err := s.WithdrawalRepo.CreateBatch(ctx, withdrawals); err != nil {
			// Ledger rows failed to land: give the money back so the counter
			// stays authoritative.
			s.giveBackAll(ctx, withdrawals)
			return decimal.Zero, fmt.Errorf("failed to persist withdrawals for donation %s: %w", donation.ID, err)
		}
	}

	status = "success"
	metrics.MatchedAmount.WithLabelValues("allocate").Add(totalTaken.InexactFloat64())
	return totalTaken, nil
}

// Release gives a donation's matched funds back to their fundings and removes
// the withdrawal rows. Safe to call more than once: a donation with no
// withdrawals releases nothing.
//
// The counter is restored first, so if row deletion fails the balance is
// already correct. Stale withdrawal rows are the one transient inconsistency
// tolerated; a later corrective sweep reconciles them against the ledger
// invariant.
func (s *Service) Release(ctx context.Context, donation *domain.Donation) (decimal.Decimal, error) {
	withdrawals, err := s.WithdrawalRepo.ListForDonation(ctx, donation.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list withdrawals for donation %s: %w", donation.ID, err)
	}

	if len(withdrawals) == 0 {
		return decimal.Zero, nil
	}

	released, err := s.Adapter.ReleaseAllForDonation(ctx, donation.ID, withdrawals)
	if err != nil {
		return released, err
	}

	if _, err := s.WithdrawalRepo.DeleteForDonation(ctx, donation.ID); err != nil {
		log.Printf("[ERROR] failed to delete withdrawals for donation %s, leaving for corrective sweep: %v",
			donation.ID, err)
	}

	metrics.ReleasedAmount.Add(released.InexactFloat64())
	return released, nil
}

// giveBackAll undoes the amounts captured by the pending withdrawals. Errors
// here are logged only: the caller is already on an error path and the
// counter retries internally.
func (s *Service) giveBackAll(ctx context.Context, withdrawals []*domain.FundingWithdrawal) {
	for _, w := range withdrawals {
		if err := s.Adapter.GiveBack(ctx, w.CampaignFundingID, w.Amount); err != nil {
			log.Printf("[ERROR] failed to give back %s to funding %s: %v", w.Amount, w.CampaignFundingID, err)
		}
	}
}
