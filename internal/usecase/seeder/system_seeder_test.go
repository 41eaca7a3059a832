package seeder

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/matchgiving/matchfund-backend/internal/domain"
)

// MockFundRepository is a mock implementation of FundRepository
type MockFundRepository struct {
	mock.Mock
}

func (m *MockFundRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Fund, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Fund), args.Error(1)
}

func (m *MockFundRepository) Create(ctx context.Context, fund *domain.Fund) error {
	args := m.Called(ctx, fund)
	return args.Error(0)
}

func TestSystemSeeder_Seed_FundsMissing(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockFundRepository)
	seeder := NewSystemSeeder(mockRepo)

	// Mock GetByID to return "not found" errors for all system funds
	mockRepo.On("GetByID", ctx, SYS_HOUSE_CHAMPION).Return(nil, errors.New("not found"))
	mockRepo.On("GetByID", ctx, SYS_TOPUP_RESERVE).Return(nil, errors.New("not found"))

	// Mock Create to succeed for all funds
	mockRepo.On("Create", ctx, mock.MatchedBy(func(fund *domain.Fund) bool {
		return fund.ID == SYS_HOUSE_CHAMPION &&
			fund.Name == "House Champion Fund" &&
			fund.FundType == domain.FundTypeChampionFund &&
			fund.CurrencyCode == "GBP"
	})).Return(nil)

	mockRepo.On("Create", ctx, mock.MatchedBy(func(fund *domain.Fund) bool {
		return fund.ID == SYS_TOPUP_RESERVE &&
			fund.Name == "House Top-up Reserve" &&
			fund.FundType == domain.FundTypeTopupPledge &&
			fund.CurrencyCode == "GBP"
	})).Return(nil)

	// Execute
	err := seeder.Seed(ctx)

	// Assert
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	// Verify Create was called 2 times (once for each system fund)
	mockRepo.AssertNumberOfCalls(t, "Create", 2)
}

func TestSystemSeeder_Seed_FundsExist(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockFundRepository)
	seeder := NewSystemSeeder(mockRepo)

	// Mock GetByID to return existing funds for all system funds
	mockRepo.On("GetByID", ctx, SYS_HOUSE_CHAMPION).Return(&domain.Fund{
		ID:           SYS_HOUSE_CHAMPION,
		Name:         "House Champion Fund",
		FundType:     domain.FundTypeChampionFund,
		CurrencyCode: "GBP",
	}, nil)

	mockRepo.On("GetByID", ctx, SYS_TOPUP_RESERVE).Return(&domain.Fund{
		ID:           SYS_TOPUP_RESERVE,
		Name:         "House Top-up Reserve",
		FundType:     domain.FundTypeTopupPledge,
		CurrencyCode: "GBP",
	}, nil)

	// Execute
	err := seeder.Seed(ctx)

	// Assert
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	// Verify Create was NOT called (funds already exist)
	mockRepo.AssertNotCalled(t, "Create")
}

func TestSystemSeeder_Seed_PartialFundsExist(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockFundRepository)
	seeder := NewSystemSeeder(mockRepo)

	// Mock: First fund exists, second is missing
	mockRepo.On("GetByID", ctx, SYS_HOUSE_CHAMPION).Return(&domain.Fund{
		ID:           SYS_HOUSE_CHAMPION,
		Name:         "House Champion Fund",
		FundType:     domain.FundTypeChampionFund,
		CurrencyCode: "GBP",
	}, nil)

	mockRepo.On("GetByID", ctx, SYS_TOPUP_RESERVE).Return(nil, errors.New("not found"))

	// Mock Create for the missing fund
	mockRepo.On("Create", ctx, mock.MatchedBy(func(fund *domain.Fund) bool {
		return fund.ID == SYS_TOPUP_RESERVE
	})).Return(nil)

	// Execute
	err := seeder.Seed(ctx)

	// Assert
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	// Verify Create was called once (for the missing fund)
	mockRepo.AssertNumberOfCalls(t, "Create", 1)
}
