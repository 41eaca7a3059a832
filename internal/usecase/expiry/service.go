package expiry

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matchgiving/matchfund-backend/internal/domain"
	"github.com/matchgiving/matchfund-backend/internal/metrics"
)

const defaultBatchSize = 100

// Releaser gives a donation's matched funds back. Satisfied by the
// allocation service.
type Releaser interface {
	Release(ctx context.Context, donation *domain.Donation) (decimal.Decimal, error)
}

// Service releases match funds reserved by pending donations whose payment
// never completed. The reservation window is tuned to slightly exceed the
// donor-facing payment UI's own timeout so funds are only reclaimed from
// genuinely abandoned donations.
type Service struct {
	DonationRepo domain.DonationRepository
	Releaser     Releaser
	Window       time.Duration
	BatchSize    int
}

// NewService creates a new expiry Service instance
func NewService(donationRepo domain.DonationRepository, releaser Releaser, window time.Duration) *Service {
	return &Service{
		DonationRepo: donationRepo,
		Releaser:     releaser,
		Window:       window,
		BatchSize:    defaultBatchSize,
	}
}

// Sweep finds pending donations older than the reservation window that still
// hold withdrawals, releases each one exactly as a cancellation would, and
// marks it cancelled. Returns how many donations were released.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.Window)

	donations, err := s.DonationRepo.ListExpiredPending(ctx, cutoff, s.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired pending donations: %w", err)
	}

	released := 0
	for _, donation := range donations {
		amount, err := s.Releaser.Release(ctx, donation)
		if err != nil {
			log.Printf("[ERROR] release expired donation %s: %v", donation.ID, err)
			continue
		}

		if err := s.DonationRepo.UpdateStatus(ctx, donation.ID, domain.DonationStatusCancelled); err != nil {
			log.Printf("[ERROR] mark expired donation %s cancelled: %v", donation.ID, err)
			continue
		}

		log.Printf("[INFO] released %s of expired reservation for donation %s", amount, donation.ID)
		metrics.ExpiredReservations.Inc()
		released++
	}

	return released, nil
}
