package matching

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matchgiving/matchfund-backend/internal/domain"
)

// ErrTerminalLock is returned when the balance store stays unavailable after
// bounded retries. It is fatal to the allocation attempt: continuing with a
// stale view risks double allocation, so callers must abort and propagate.
var ErrTerminalLock = errors.New("balance store unavailable after retries")

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 50 * time.Millisecond
)

// Adapter is the only component allowed to mutate the fast allocation
// counter. It exposes atomic take-up-to and give-back operations with strict
// bounds and bounded retries over a transiently-failing store.
type Adapter struct {
	store       domain.BalanceStore
	maxAttempts int
	retryDelay  time.Duration
}

// NewAdapter creates a matching adapter over the given balance store
func NewAdapter(store domain.BalanceStore) *Adapter {
	return &Adapter{
		store:       store,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
	}
}

// TakeUpTo atomically reduces the funding's balance by
// min(requested, available), clamped at zero, and returns the amount actually
// taken. Returns ErrTerminalLock once store retries are exhausted.
func (a *Adapter) TakeUpTo(ctx context.Context, fundingID uuid.UUID, requested decimal.Decimal) (decimal.Decimal, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("requested amount must be positive, got %s", requested)
	}

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		taken, err := a.store.Decrement(ctx, fundingID, requested)
		if err == nil {
			return taken, nil
		}
		lastErr = err
		log.Printf("[ERROR] take from funding %s attempt %d/%d: %v", fundingID, attempt, a.maxAttempts, err)
		if attempt < a.maxAttempts {
			a.sleep(ctx)
		}
	}

	return decimal.Zero, fmt.Errorf("%w: %v", ErrTerminalLock, lastErr)
}

// GiveBack atomically increases the funding's balance by amount. The store
// caps the balance at the funding's original commitment; clamping should
// never be needed in correct operation.
func (a *Adapter) GiveBack(ctx context.Context, fundingID uuid.UUID, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("give-back amount must be positive, got %s", amount)
	}

	var lastErr error
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		err := a.store.Increment(ctx, fundingID, amount)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Printf("[ERROR] give back to funding %s attempt %d/%d: %v", fundingID, attempt, a.maxAttempts, err)
		if attempt < a.maxAttempts {
			a.sleep(ctx)
		}
	}

	return fmt.Errorf("%w: %v", ErrTerminalLock, lastErr)
}

// ReleaseAllForDonation gives back every withdrawal amount held by a donation
// and returns the total released.
func (a *Adapter) ReleaseAllForDonation(ctx context.Context, donationID uuid.UUID, withdrawals []*domain.FundingWithdrawal) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, w := range withdrawals {
		if w.DonationID != donationID {
			return total, fmt.Errorf("withdrawal %s does not belong to donation %s", w.ID, donationID)
		}
		if err := a.GiveBack(ctx, w.CampaignFundingID, w.Amount); err != nil {
			return total, err
		}
		total = total.Add(w.Amount)
	}
	return total, nil
}

// Available returns the funding's current fast-counter balance
func (a *Adapter) Available(ctx context.Context, fundingID uuid.UUID) (decimal.Decimal, error) {
	return a.store.Available(ctx, fundingID)
}

// sleep waits a small randomized interval to desynchronize competing retries
func (a *Adapter) sleep(ctx context.Context) {
	jitter := time.Duration(rand.Int63n(int64(a.retryDelay)))
	select {
	case <-time.After(a.retryDelay + jitter):
	case <-ctx.Done():
	}
}
