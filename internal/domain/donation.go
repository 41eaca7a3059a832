package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DonationStatus represents a donation's lifecycle state
type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "PENDING"
	DonationStatusCollected DonationStatus = "COLLECTED"
	DonationStatusPaid      DonationStatus = "PAID"
	DonationStatusCancelled DonationStatus = "CANCELLED"
	DonationStatusRefunded  DonationStatus = "REFUNDED"
	DonationStatusFailed    DonationStatus = "FAILED"
)

// Donation represents a donor's gift toward a campaign. The engine only cares
// about the fields that drive matching: amount, currency, lifecycle status and
// creation time (which drives reservation expiry). A donation owns zero or
// more funding withdrawals for its entire lifetime.
type Donation struct {
	ID           uuid.UUID
	CampaignID   uuid.UUID
	Amount       decimal.Decimal
	CurrencyCode string
	Status       DonationStatus
	CreatedAt    time.Time
}

// Validate ensures the donation adheres to domain rules
func (d *Donation) Validate() error {
	if d.Amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("donation amount must be positive")
	}

	if d.CurrencyCode == "" {
		return errors.New("donation currency code cannot be empty")
	}

	if d.CampaignID == uuid.Nil {
		return errors.New("donation must reference a campaign")
	}

	return nil
}

// IsSuccessful reports whether the donation completed its payment path
func (d *Donation) IsSuccessful() bool {
	return d.Status == DonationStatusCollected || d.Status == DonationStatusPaid
}

// ReservationExpired reports whether a pending donation has held its matched
// funds longer than the reservation window and should be released.
func (d *Donation) ReservationExpired(now time.Time, window time.Duration) bool {
	if d.Status != DonationStatusPending {
		return false
	}
	return now.Sub(d.CreatedAt) > window
}
