package domain

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CampaignFunding represents the allocation of one fund's capacity to a
// campaign. A fund can back more than one campaign; the funding row holds the
// mutable remaining balance that allocation draws down.
//
// Amount never changes after creation. AmountAvailable is mutated only
// through the matching adapter.
type CampaignFunding struct {
	ID              uuid.UUID
	FundID          uuid.UUID
	CampaignID      uuid.UUID
	FundType        FundType
	Amount          decimal.Decimal // original commitment, immutable
	AmountAvailable decimal.Decimal // current remaining balance
	AllocationOrder int             // inherited from fund type, lower = used first
	CurrencyCode    string
	Shared          bool // linked to more than one campaign
}

// Validate ensures the funding adheres to domain rules
// Returns an error if validation fails
// CRITICAL: 0 <= AmountAvailable <= Amount must hold at all times
func (cf *CampaignFunding) Validate() error {
	if cf.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("funding amount must be positive")
	}

	if cf.AmountAvailable.LessThan(decimal.Zero) {
		return errors.New("funding amount available cannot be negative")
	}

	if cf.AmountAvailable.GreaterThan(cf.Amount) {
		return errors.New("funding amount available cannot exceed original amount")
	}

	if !cf.FundType.IsValid() {
		return errors.New("fund type must be PLEDGE, CHAMPION_FUND, or TOPUP_PLEDGE")
	}

	if cf.AllocationOrder != cf.FundType.AllocationOrder() {
		return errors.New("allocation order must match the fund type's rank")
	}

	if cf.CurrencyCode == "" {
		return errors.New("funding currency code cannot be empty")
	}

	return nil
}
