package domain

import (
	"errors"

	"github.com/google/uuid"
)

// FundType represents the kind of committed match money behind a fund
type FundType string

const (
	FundTypePledge       FundType = "PLEDGE"
	FundTypeChampionFund FundType = "CHAMPION_FUND"
	FundTypeTopupPledge  FundType = "TOPUP_PLEDGE"
)

// AllocationOrder returns the priority rank for the fund type.
// Lower values are consumed first: pledges before champion funds,
// champion funds before top-up pledges.
func (ft FundType) AllocationOrder() int {
	switch ft {
	case FundTypePledge:
		return 100
	case FundTypeChampionFund:
		return 200
	case FundTypeTopupPledge:
		return 300
	}
	return 0
}

// IsValid reports whether the fund type is one of the known variants
func (ft FundType) IsValid() bool {
	switch ft {
	case FundTypePledge, FundTypeChampionFund, FundTypeTopupPledge:
		return true
	}
	return false
}

// Fund represents a named, committed block of match money in the domain layer.
// Immutable once created except for metadata edits; never deleted while any
// CampaignFunding references it.
type Fund struct {
	ID           uuid.UUID
	Name         string
	FundType     FundType
	CurrencyCode string
}

// Validate ensures the fund adheres to domain rules
// Returns an error if validation fails
func (f *Fund) Validate() error {
	if f.Name == "" {
		return errors.New("fund name cannot be empty")
	}

	if !f.FundType.IsValid() {
		return errors.New("fund type must be PLEDGE, CHAMPION_FUND, or TOPUP_PLEDGE")
	}

	if f.CurrencyCode == "" {
		return errors.New("fund currency code cannot be empty")
	}

	return nil
}
