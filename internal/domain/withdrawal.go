package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FundingWithdrawal is an append-style ledger entry recording that a specific
// donation consumed a specific amount from a specific campaign funding.
// Withdrawals are created when money is taken and deleted (never edited) when
// the money is released back. They never outlive their donation.
type FundingWithdrawal struct {
	ID                uuid.UUID
	CampaignFundingID uuid.UUID
	DonationID        uuid.UUID
	Amount            decimal.Decimal // always positive while active
	CreatedAt         time.Time
}

// Validate ensures the withdrawal adheres to domain rules
func (w *FundingWithdrawal) Validate() error {
	if w.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("withdrawal amount must be positive")
	}

	if w.CampaignFundingID == uuid.Nil {
		return errors.New("withdrawal must reference a campaign funding")
	}

	if w.DonationID == uuid.Nil {
		return errors.New("withdrawal must reference a donation")
	}

	return nil
}

// SumWithdrawals returns the total amount across a donation's withdrawals
func SumWithdrawals(withdrawals []*FundingWithdrawal) decimal.Decimal {
	total := decimal.Zero
	for _, w := range withdrawals {
		total = total.Add(w.Amount)
	}
	return total
}
