package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/matchgiving/matchfund-backend/internal/domain"
)

// MockDonationIntake is a mock implementation of the DonationIntake interface
type MockDonationIntake struct {
	mock.Mock
}

func (m *MockDonationIntake) CreateDonation(ctx context.Context, donation *domain.Donation) (decimal.Decimal, error) {
	args := m.Called(ctx, donation)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockDonationIntake) CancelDonation(ctx context.Context, donation *domain.Donation) error {
	args := m.Called(ctx, donation)
	return args.Error(0)
}

// MockReporter is a mock implementation of the Reporter interface
type MockReporter struct {
	mock.Mock
}

func (m *MockReporter) FundsRemaining(ctx context.Context, campaignID uuid.UUID) (decimal.Decimal, string, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).(decimal.Decimal), args.String(1), args.Error(2)
}

func (m *MockReporter) MatchedByFundType(ctx context.Context, donationID uuid.UUID) (map[domain.FundType]decimal.Decimal, error) {
	args := m.Called(ctx, donationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.FundType]decimal.Decimal), args.Error(1)
}

// MockDonationRepository is a mock implementation of DonationRepository
type MockDonationRepository struct {
	mock.Mock
}

func (m *MockDonationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Donation), args.Error(1)
}

func (m *MockDonationRepository) Create(ctx context.Context, donation *domain.Donation) error {
	args := m.Called(ctx, donation)
	return args.Error(0)
}

func (m *MockDonationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DonationStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockDonationRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Donation, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Donation), args.Error(1)
}

func (m *MockDonationRepository) ListRedistributionCandidates(ctx context.Context, limit int) ([]*domain.Donation, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Donation), args.Error(1)
}

func (m *MockDonationRepository) ListUnmatchedSuccessful(ctx context.Context, limit int) ([]*domain.Donation, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Donation), args.Error(1)
}

func newTestMux(intake *MockDonationIntake, reporter *MockReporter, donations *MockDonationRepository) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(intake, reporter, donations).Register(mux)
	return mux
}

func TestCreateDonation(t *testing.T) {
	intake := new(MockDonationIntake)
	reporter := new(MockReporter)
	donations := new(MockDonationRepository)
	mux := newTestMux(intake, reporter, donations)

	campaignID := uuid.New()
	intake.On("CreateDonation", mock.Anything, mock.MatchedBy(func(d *domain.Donation) bool {
		return d.CampaignID == campaignID &&
			d.Amount.Equal(decimal.NewFromInt(50)) &&
			d.CurrencyCode == "GBP" &&
			d.Status == domain.DonationStatusPending
	})).Return(decimal.NewFromInt(50), nil)

	body := `{"campaign_id":"` + campaignID.String() + `","amount":"50","currency_code":"GBP"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/donations", strings.NewReader(body))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "50", resp["matched_amount"])
	assert.NotEmpty(t, resp["donation_id"])
	intake.AssertExpectations(t)
}

func TestCreateDonation_InvalidAmount(t *testing.T) {
	intake := new(MockDonationIntake)
	reporter := new(MockReporter)
	donations := new(MockDonationRepository)
	mux := newTestMux(intake, reporter, donations)

	body := `{"campaign_id":"` + uuid.NewString() + `","amount":"fifty","currency_code":"GBP"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/donations", strings.NewReader(body))
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	intake.AssertNotCalled(t, "CreateDonation", mock.Anything, mock.Anything)
}

func TestCancelDonation(t *testing.T) {
	intake := new(MockDonationIntake)
	reporter := new(MockReporter)
	donations := new(MockDonationRepository)
	mux := newTestMux(intake, reporter, donations)

	donation := &domain.Donation{
		ID:           uuid.New(),
		CampaignID:   uuid.New(),
		Amount:       decimal.NewFromInt(25),
		CurrencyCode: "GBP",
		Status:       domain.DonationStatusPending,
		CreatedAt:    time.Now(),
	}
	donations.On("GetByID", mock.Anything, donation.ID).Return(donation, nil)
	intake.On("CancelDonation", mock.Anything, donation).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/donations/"+donation.ID.String()+"/cancel", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	intake.AssertExpectations(t)
}

func TestCancelDonation_NotFound(t *testing.T) {
	intake := new(MockDonationIntake)
	reporter := new(MockReporter)
	donations := new(MockDonationRepository)
	mux := newTestMux(intake, reporter, donations)

	id := uuid.New()
	donations.On("GetByID", mock.Anything, id).Return(nil, errors.New("donation not found"))

	req := httptest.NewRequest(http.MethodPost, "/v1/donations/"+id.String()+"/cancel", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	intake.AssertNotCalled(t, "CancelDonation", mock.Anything, mock.Anything)
}

func TestFundsRemaining(t *testing.T) {
	intake := new(MockDonationIntake)
	reporter := new(MockReporter)
	donations := new(MockDonationRepository)
	mux := newTestMux(intake, reporter, donations)

	campaignID := uuid.New()
	reporter.On("FundsRemaining", mock.Anything, campaignID).Return(decimal.NewFromInt(200), "GBP", nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/campaigns/"+campaignID.String()+"/funds-remaining", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "200", resp["amount"])
	assert.Equal(t, "GBP", resp["currency_code"])
}

func TestMatchedBreakdown(t *testing.T) {
	intake := new(MockDonationIntake)
	reporter := new(MockReporter)
	donations := new(MockDonationRepository)
	mux := newTestMux(intake, reporter, donations)

	donationID := uuid.New()
	reporter.On("MatchedByFundType", mock.Anything, donationID).Return(map[domain.FundType]decimal.Decimal{
		domain.FundTypePledge:       decimal.NewFromInt(7),
		domain.FundTypeChampionFund: decimal.NewFromInt(3),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/donations/"+donationID.String()+"/matched", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "7", resp[string(domain.FundTypePledge)])
	assert.Equal(t, "3", resp[string(domain.FundTypeChampionFund)])
}
