package allocation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/matchgiving/matchfund-backend/internal/adapter/counter"
	"github.com/matchgiving/matchfund-backend/internal/domain"
	"github.com/matchgiving/matchfund-backend/internal/usecase/matching"
)

// MockFundingRepository is a mock implementation of FundingRepository for testing
type MockFundingRepository struct {
	mock.Mock
}

func (m *MockFundingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CampaignFunding, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CampaignFunding), args.Error(1)
}

func (m *MockFundingRepository) Create(ctx context.Context, funding *domain.CampaignFunding) error {
	args := m.Called(ctx, funding)
	return args.Error(0)
}

func (m *MockFundingRepository) ListForCampaign(ctx context.Context, campaignID uuid.UUID, currencyCode string) ([]*domain.CampaignFunding, error) {
	args := m.Called(ctx, campaignID, currencyCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CampaignFunding), args.Error(1)
}

func (m *MockFundingRepository) ListAllForCampaign(ctx context.Context, campaignID uuid.UUID) ([]*domain.CampaignFunding, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CampaignFunding), args.Error(1)
}

// MockWithdrawalRepository is a mock implementation of WithdrawalRepository for testing
type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) CreateBatch(ctx context.Context, withdrawals []*domain.FundingWithdrawal) error {
	args := m.Called(ctx, withdrawals)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) ListForDonation(ctx context.Context, donationID uuid.UUID) ([]*domain.FundingWithdrawal, error) {
	args := m.Called(ctx, donationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FundingWithdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) DeleteForDonation(ctx context.Context, donationID uuid.UUID) (int, error) {
	args := m.Called(ctx, donationID)
	return args.Int(0), args.Error(1)
}

func (m *MockWithdrawalRepository) Replace(ctx context.Context, oldID uuid.UUID, replacement *domain.FundingWithdrawal) error {
	args := m.Called(ctx, oldID, replacement)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) SumForFunding(ctx context.Context, fundingID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, fundingID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func makeFunding(campaignID uuid.UUID, fundType domain.FundType, amount, available int64) *domain.CampaignFunding {
	return &domain.CampaignFunding{
		ID:              uuid.New(),
		FundID:          uuid.New(),
		CampaignID:      campaignID,
		FundType:        fundType,
		Amount:          decimal.NewFromInt(amount),
		AmountAvailable: decimal.NewFromInt(available),
		AllocationOrder: fundType.AllocationOrder(),
		CurrencyCode:    "GBP",
	}
}

func makeDonation(campaignID uuid.UUID, amount int64) *domain.Donation {
	return &domain.Donation{
		ID:           uuid.New(),
		CampaignID:   campaignID,
		Amount:       decimal.NewFromInt(amount),
		CurrencyCode: "GBP",
		Status:       domain.DonationStatusPending,
		CreatedAt:    time.Now(),
	}
}

func TestAllocate_PriorityOrdering(t *testing.T) {
	// Fundings with allocation orders [100, 200, 300] and balances [5, 100, 100]:
	// a donation of 10 takes 5 from the pledge, 5 from the champion fund,
	// and leaves the top-up pledge untouched.
	ctx := context.Background()
	campaignID := uuid.New()

	pledge := makeFunding(campaignID, domain.FundTypePledge, 5, 5)
	champion := makeFunding(campaignID, domain.FundTypeChampionFund, 100, 100)
	topup := makeFunding(campaignID, domain.FundTypeTopupPledge, 100, 100)

	store := counter.NewMemoryStore()
	store.Register(pledge)
	store.Register(champion)
	store.Register(topup)

	mockFundingRepo := new(MockFundingRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)
	service := NewService(mockFundingRepo, mockWithdrawalRepo, matching.NewAdapter(store))

	donation := makeDonation(campaignID, 10)

	mockFundingRepo.On("ListForCampaign", ctx, campaignID, "GBP").
		Return([]*domain.CampaignFunding{pledge, champion, topup}, nil)

	var persisted []*domain.FundingWithdrawal
	mockWithdrawalRepo.On("CreateBatch", ctx, mock.MatchedBy(func(ws []*domain.FundingWithdrawal) bool {
		persisted = ws
		return len(ws) == 2
	})).Return(nil)

	matched, err := service.Allocate(ctx, donation, decimal.Zero)

	require.NoError(t, err)
	assert.True(t, matched.Equal(decimal.NewFromInt(10)))

	require.Len(t, persisted, 2)
	assert.Equal(t, pledge.ID, persisted[0].CampaignFundingID)
	assert.True(t, persisted[0].Amount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, champion.ID, persisted[1].CampaignFundingID)
	assert.True(t, persisted[1].Amount.Equal(decimal.NewFromInt(5)))

	// Top-up pledge untouched
	topupAvailable, _ := store.Available(ctx, topup.ID)
	assert.True(t, topupAvailable.Equal(decimal.NewFromInt(100)))

	mockFundingRepo.AssertExpectations(t)
	mockWithdrawalRepo.AssertExpectations(t)
}

func TestAllocate_NothingLeftToMatch(t *testing.T) {
	ctx := context.Background()
	campaignID := uuid.New()

	mockFundingRepo := new(MockFundingRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)
	service := NewService(mockFundingRepo, mockWithdrawalRepo, matching.NewAdapter(counter.NewMemoryStore()))

	donation := makeDonation(campaignID, 25)

	matched, err := service.Allocate(ctx, donation, decimal.NewFromInt(25))

	require.NoError(t, err)
	assert.True(t, matched.Equal(decimal.Zero))
	mockFundingRepo.AssertNotCalled(t, "ListForCampaign", mock.Anything, mock.Anything, mock.Anything)
}

func TestAllocate_CurrencyMismatchAborts(t *testing.T) {
	ctx := context.Background()
	campaignID := uuid.New()

	funding := makeFunding(campaignID, domain.FundTypePledge, 100, 100)
	funding.CurrencyCode = "USD"

	store := counter.NewMemoryStore()
	store.Register(funding)

	mockFundingRepo := new(MockFundingRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)
	service := NewService(mockFundingRepo, mockWithdrawalRepo, matching.NewAdapter(store))

	donation := makeDonation(campaignID, 10)

	mockFundingRepo.On("ListForCampaign", ctx, campaignID, "GBP").
		Return([]*domain.CampaignFunding{funding}, nil)

	_, err := service.Allocate(ctx, donation, decimal.Zero)

	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	mockWithdrawalRepo.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

// terminalStore fails every operation, driving the adapter to ErrTerminalLock
type terminalStore struct{}

func (s *terminalStore) Decrement(ctx context.Context, fundingID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, assert.AnError
}

func (s *terminalStore) Increment(ctx context.Context, fundingID uuid.UUID, amount decimal.Decimal) error {
	return assert.AnError
}

func (s *terminalStore) Available(ctx context.Context, fundingID uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, assert.AnError
}

func TestAllocate_TerminalLockPersistsNothing(t *testing.T) {
	ctx := context.Background()
	campaignID := uuid.New()

	funding := makeFunding(campaignID, domain.FundTypePledge, 100, 100)

	mockFundingRepo := new(MockFundingRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)
	service := NewService(mockFundingRepo, mockWithdrawalRepo, matching.NewAdapter(&terminalStore{}))

	donation := makeDonation(campaignID, 10)

	mockFundingRepo.On("ListForCampaign", ctx, campaignID, "GBP").
		Return([]*domain.CampaignFunding{funding}, nil)

	_, err := service.Allocate(ctx, donation, decimal.Zero)

	assert.ErrorIs(t, err, matching.ErrTerminalLock)
	mockWithdrawalRepo.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestRelease_RestoresBalanceAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	campaignID := uuid.New()

	funding := makeFunding(campaignID, domain.FundTypePledge, 100, 90)
	store := counter.NewMemoryStore()
	store.Register(funding)

	mockFundingRepo := new(MockFundingRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)
	service := NewService(mockFundingRepo, mockWithdrawalRepo, matching.NewAdapter(store))

	donation := makeDonation(campaignID, 10)
	withdrawals := []*domain.FundingWithdrawal{
		{ID: uuid.New(), CampaignFundingID: funding.ID, DonationID: donation.ID, Amount: decimal.NewFromInt(10)},
	}

	// First release finds one withdrawal; the second finds none
	mockWithdrawalRepo.On("ListForDonation", ctx, donation.ID).Return(withdrawals, nil).Once()
	mockWithdrawalRepo.On("ListForDonation", ctx, donation.ID).Return([]*domain.FundingWithdrawal{}, nil).Once()
	mockWithdrawalRepo.On("DeleteForDonation", ctx, donation.ID).Return(1, nil).Once()

	released, err := service.Release(ctx, donation)
	require.NoError(t, err)
	assert.True(t, released.Equal(decimal.NewFromInt(10)))

	available, _ := store.Available(ctx, funding.ID)
	assert.True(t, available.Equal(decimal.NewFromInt(100)))

	// Second release is a no-op
	released, err = service.Release(ctx, donation)
	require.NoError(t, err)
	assert.True(t, released.Equal(decimal.Zero))

	available, _ = store.Available(ctx, funding.ID)
	assert.True(t, available.Equal(decimal.NewFromInt(100)), "balance unchanged by repeated release")

	mockWithdrawalRepo.AssertExpectations(t)
}

func TestAllocate_PartialRaceFill(t *testing.T) {
	// Two donations of 10 race for funding A (available 10). The sum granted
	// from A never exceeds 10, and the loser's shortfall is pushed to the
	// next-priority funding.
	ctx := context.Background()
	campaignID := uuid.New()

	fundingA := makeFunding(campaignID, domain.FundTypePledge, 10, 10)
	fundingB := makeFunding(campaignID, domain.FundTypeChampionFund, 100, 100)

	store := counter.NewMemoryStore()
	store.Register(fundingA)
	store.Register(fundingB)

	mockFundingRepo := new(MockFundingRepository)
	mockWithdrawalRepo := new(MockWithdrawalRepository)
	service := NewService(mockFundingRepo, mockWithdrawalRepo, matching.NewAdapter(store))

	// Both allocators see the same stale snapshot of funding A
	mockFundingRepo.On("ListForCampaign", ctx, campaignID, "GBP").
		Return([]*domain.CampaignFunding{fundingA, fundingB}, nil)
	mockWithdrawalRepo.On("CreateBatch", ctx, mock.Anything).Return(nil)

	var wg sync.WaitGroup
	matchedAmounts := make([]decimal.Decimal, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			donation := makeDonation(campaignID, 10)
			matched, err := service.Allocate(ctx, donation, decimal.Zero)
			assert.NoError(t, err)
			matchedAmounts[idx] = matched
		}(i)
	}
	wg.Wait()

	// Both donations end up fully matched
	assert.True(t, matchedAmounts[0].Equal(decimal.NewFromInt(10)))
	assert.True(t, matchedAmounts[1].Equal(decimal.NewFromInt(10)))

	// Funding A was never over-drawn
	availableA, _ := store.Available(ctx, fundingA.ID)
	assert.True(t, availableA.Equal(decimal.Zero))

	// The overflow landed on funding B
	availableB, _ := store.Available(ctx, fundingB.ID)
	assert.True(t, availableB.Equal(decimal.NewFromInt(90)))
}
