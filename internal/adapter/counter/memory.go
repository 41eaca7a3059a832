package counter

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matchgiving/matchfund-backend/internal/domain"
)

// MemoryStore is an in-process implementation of domain.BalanceStore backed
// by a mutex-guarded map. Used by tests and by single-instance deployments
// that recover balances from the ledger on startup.
type MemoryStore struct {
	mu       sync.Mutex
	balances map[uuid.UUID]*memoryBalance
}

type memoryBalance struct {
	amount    decimal.Decimal // original commitment, cap for increments
	available decimal.Decimal
}

// NewMemoryStore creates an empty in-memory balance store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[uuid.UUID]*memoryBalance),
	}
}

// Register seeds the store with a funding's commitment and current balance
func (s *MemoryStore) Register(funding *domain.CampaignFunding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[funding.ID] = &memoryBalance{
		amount:    funding.Amount,
		available: funding.AmountAvailable,
	}
}

// Decrement atomically takes min(amount, available), clamped at zero
func (s *MemoryStore) Decrement(ctx context.Context, fundingID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[fundingID]
	if !ok {
		return decimal.Zero, fmt.Errorf("funding %s not registered in balance store", fundingID)
	}

	taken := decimal.Min(amount, b.available)
	if taken.LessThan(decimal.Zero) {
		taken = decimal.Zero
	}
	b.available = b.available.Sub(taken)

	return taken, nil
}

// Increment atomically gives amount back, capped at the original commitment
func (s *MemoryStore) Increment(ctx context.Context, fundingID uuid.UUID, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[fundingID]
	if !ok {
		return fmt.Errorf("funding %s not registered in balance store", fundingID)
	}

	b.available = decimal.Min(b.available.Add(amount), b.amount)
	return nil
}

// Available returns the funding's current balance
func (s *MemoryStore) Available(ctx context.Context, fundingID uuid.UUID) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.balances[fundingID]
	if !ok {
		return decimal.Zero, fmt.Errorf("funding %s not registered in balance store", fundingID)
	}
	return b.available, nil
}
