package redistribution

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matchgiving/matchfund-backend/internal/domain"
	"github.com/matchgiving/matchfund-backend/internal/metrics"
	"github.com/matchgiving/matchfund-backend/internal/usecase/matching"
)

const defaultBatchSize = 100

// Allocator matches a donation against its campaign's fundings. Satisfied by
// the allocation service.
type Allocator interface {
	Allocate(ctx context.Context, donation *domain.Donation, alreadyMatched decimal.Decimal) (decimal.Decimal, error)
}

// Service migrates already-allocated matching from lower-priority fundings to
// higher-priority ones once capacity frees up (typically after a campaign
// closes), and catches up still-unmatched successful donations.
//
// Run and RetrospectiveMatch are independent writers over the same counters
// and ledger rows. They must not run against the same campaign concurrently:
// the scheduler serializes them under one maintenance lease. A lock-level fix
// for interleaved runs is an open gap, not solved here.
type Service struct {
	DonationRepo   domain.DonationRepository
	FundingRepo    domain.FundingRepository
	WithdrawalRepo domain.WithdrawalRepository
	Adapter        *matching.Adapter
	Allocator      Allocator
	BatchSize      int
}

// NewService creates a new redistribution Service instance
func NewService(
	donationRepo domain.DonationRepository,
	fundingRepo domain.FundingRepository,
	withdrawalRepo domain.WithdrawalRepository,
	adapter *matching.Adapter,
	allocator Allocator,
) *Service {
	return &Service{
		DonationRepo:   donationRepo,
		FundingRepo:    fundingRepo,
		WithdrawalRepo: withdrawalRepo,
		Adapter:        adapter,
		Allocator:      allocator,
		BatchSize:      defaultBatchSize,
	}
}

// Run redistributes one batch of candidate donations and returns how many
// withdrawals were moved to a better-ranked funding. Per-donation failures
// are logged and skipped so one bad row cannot stall the whole sweep.
func (s *Service) Run(ctx context.Context) (int, error) {
	donations, err := s.DonationRepo.ListRedistributionCandidates(ctx, s.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list redistribution candidates: %w", err)
	}

	moved := 0
	for _, donation := range donations {
		n, err := s.redistributeDonation(ctx, donation)
		if err != nil {
			log.Printf("[ERROR] redistribute donation %s: %v", donation.ID, err)
			continue
		}
		moved += n
	}

	if moved > 0 {
		log.Printf("[INFO] redistribution moved %d withdrawals to higher-priority fundings", moved)
	}
	return moved, nil
}

// redistributeDonation attempts to move each of the donation's withdrawals to
// the best-ranked funding with capacity. A swap is all-or-nothing: the full
// withdrawal amount is taken from the better funding before the original is
// given back and the ledger row replaced. A partial grab is returned
// immediately and the original allocation left untouched.
func (s *Service) redistributeDonation(ctx context.Context, donation *domain.Donation) (int, error) {
	withdrawals, err := s.WithdrawalRepo.ListForDonation(ctx, donation.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	if len(withdrawals) == 0 {
		return 0, nil
	}

	fundings, err := s.FundingRepo.ListForCampaign(ctx, donation.CampaignID, donation.CurrencyCode)
	if err != nil {
		return 0, fmt.Errorf("failed to list fundings: %w", err)
	}

	byID := make(map[uuid.UUID]*domain.CampaignFunding, len(fundings))
	for _, f := range fundings {
		byID[f.ID] = f
	}

	moved := 0
	for _, w := range withdrawals {
		current, ok := byID[w.CampaignFundingID]
		if !ok {
			log.Printf("[ERROR] withdrawal %s references funding %s outside campaign %s",
				w.ID, w.CampaignFundingID, donation.CampaignID)
			continue
		}

		swapped, err := s.trySwap(ctx, w, current, fundings)
		if err != nil {
			return moved, err
		}
		if swapped {
			moved++
		}
	}

	return moved, nil
}

func (s *Service) trySwap(ctx context.Context, w *domain.FundingWithdrawal, current *domain.CampaignFunding, fundings []*domain.CampaignFunding) (bool, error) {
	// Fundings arrive ordered best-first; stop once ranks are no better
	for _, better := range fundings {
		if better.AllocationOrder >= current.AllocationOrder {
			break
		}

		taken, err := s.Adapter.TakeUpTo(ctx, better.ID, w.Amount)
		if err != nil {
			return false, err
		}

		if taken.LessThan(w.Amount) {
			// No partial swaps: return whatever was grabbed and move on
			if taken.GreaterThan(decimal.Zero) {
				if err := s.Adapter.GiveBack(ctx, better.ID, taken); err != nil {
					return false, err
				}
			}
			continue
		}

		if err := s.Adapter.GiveBack(ctx, current.ID, w.Amount); err != nil {
			// Undo the take so the swap stays all-or-nothing
			if gbErr := s.Adapter.GiveBack(ctx, better.ID, taken); gbErr != nil {
				log.Printf("[ERROR] failed to undo take of %s from funding %s: %v", taken, better.ID, gbErr)
			}
			return false, err
		}

		replacement := &domain.FundingWithdrawal{
			ID:                uuid.New(),
			CampaignFundingID: better.ID,
			DonationID:        w.DonationID,
			Amount:            w.Amount,
			CreatedAt:         time.Now(),
		}
		if err := s.WithdrawalRepo.Replace(ctx, w.ID, replacement); err != nil {
			return false, fmt.Errorf("failed to replace withdrawal %s: %w", w.ID, err)
		}

		metrics.MatchedAmount.WithLabelValues("redistribute").Add(w.Amount.InexactFloat64())
		return true, nil
	}

	return false, nil
}

// RetrospectiveMatch allocates match funds to successful donations that are
// still under-matched, using the ordinary allocator. Returns the total amount
// newly matched across the batch.
func (s *Service) RetrospectiveMatch(ctx context.Context) (decimal.Decimal, error) {
	donations, err := s.DonationRepo.ListUnmatchedSuccessful(ctx, s.BatchSize)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list unmatched donations: %w", err)
	}

	total := decimal.Zero
	for _, donation := range donations {
		withdrawals, err := s.WithdrawalRepo.ListForDonation(ctx, donation.ID)
		if err != nil {
			log.Printf("[ERROR] list withdrawals for donation %s: %v", donation.ID, err)
			continue
		}

		alreadyMatched := domain.SumWithdrawals(withdrawals)
		matched, err := s.Allocator.Allocate(ctx, donation, alreadyMatched)
		if err != nil {
			log.Printf("[ERROR] retrospective match donation %s: %v", donation.ID, err)
			continue
		}

		if matched.GreaterThan(decimal.Zero) {
			metrics.MatchedAmount.WithLabelValues("retrospective").Add(matched.InexactFloat64())
			total = total.Add(matched)
		}
	}

	return total, nil
}
