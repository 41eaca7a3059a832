package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundRepository defines the interface for fund persistence operations
type FundRepository interface {
	// GetByID retrieves a fund by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Fund, error)

	// Create creates a new fund
	Create(ctx context.Context, fund *Fund) error
}

// FundingRepository defines the interface for campaign funding persistence operations
type FundingRepository interface {
	// GetByID retrieves a campaign funding by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*CampaignFunding, error)

	// Create creates a new campaign funding
	Create(ctx context.Context, funding *CampaignFunding) error

	// ListForCampaign returns the candidate fundings for a campaign in the
	// given currency, ordered by (allocation_order ASC, id ASC). The snapshot
	// is advisory: the balance store is the allocation authority and callers
	// must tolerate a funding holding less than the snapshot suggests.
	ListForCampaign(ctx context.Context, campaignID uuid.UUID, currencyCode string) ([]*CampaignFunding, error)

	// ListAllForCampaign returns every funding attached to a campaign
	// regardless of currency, for reporting
	ListAllForCampaign(ctx context.Context, campaignID uuid.UUID) ([]*CampaignFunding, error)
}

// WithdrawalRepository defines the interface for funding withdrawal persistence operations
type WithdrawalRepository interface {
	// CreateBatch persists a set of withdrawals in one transaction
	CreateBatch(ctx context.Context, withdrawals []*FundingWithdrawal) error

	// ListForDonation retrieves all active withdrawals owned by a donation
	ListForDonation(ctx context.Context, donationID uuid.UUID) ([]*FundingWithdrawal, error)

	// DeleteForDonation removes all of a donation's withdrawals in one
	// transaction and returns how many rows were removed
	DeleteForDonation(ctx context.Context, donationID uuid.UUID) (int, error)

	// Replace atomically deletes an existing withdrawal and persists its
	// replacement against a different funding
	Replace(ctx context.Context, oldID uuid.UUID, replacement *FundingWithdrawal) error

	// SumForFunding returns the total active withdrawal amount against a funding
	SumForFunding(ctx context.Context, fundingID uuid.UUID) (decimal.Decimal, error)
}

// DonationRepository defines the interface for donation persistence operations
type DonationRepository interface {
	// GetByID retrieves a donation by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Donation, error)

	// Create creates a new donation
	Create(ctx context.Context, donation *Donation) error

	// UpdateStatus moves a donation to a new lifecycle status
	UpdateStatus(ctx context.Context, id uuid.UUID, status DonationStatus) error

	// ListExpiredPending returns pending donations created before the cutoff
	// that still hold at least one withdrawal
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*Donation, error)

	// ListRedistributionCandidates returns successful donations on closed
	// campaigns that hold a withdrawal against a funding ranked worse than
	// another funding with capacity on the same campaign
	ListRedistributionCandidates(ctx context.Context, limit int) ([]*Donation, error)

	// ListUnmatchedSuccessful returns successful donations whose withdrawals
	// sum to less than the donation amount, for retrospective matching
	ListUnmatchedSuccessful(ctx context.Context, limit int) ([]*Donation, error)
}

// BalanceStore is the fast allocation counter: a shared, atomically-updatable
// view of each funding's remaining balance. Only the matching adapter may
// call Decrement and Increment.
type BalanceStore interface {
	// Decrement atomically reduces the funding's balance by
	// min(amount, available), clamped at zero, and returns the amount
	// actually taken
	Decrement(ctx context.Context, fundingID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)

	// Increment atomically increases the funding's balance by amount,
	// capped at the funding's original commitment
	Increment(ctx context.Context, fundingID uuid.UUID, amount decimal.Decimal) error

	// Available returns the funding's current balance
	Available(ctx context.Context, fundingID uuid.UUID) (decimal.Decimal, error)
}

// TaskLockRepository is a named lease used to serialize scheduled maintenance
// tasks across instances. Acquire returns false without error when another
// holder owns a live lease.
type TaskLockRepository interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}
