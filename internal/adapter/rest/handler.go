package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/matchgiving/matchfund-backend/internal/domain"
	"github.com/matchgiving/matchfund-backend/internal/usecase/reporting"
)

// DonationIntake is the donation lifecycle surface exposed over HTTP.
// Satisfied by the intake service.
type DonationIntake interface {
	CreateDonation(ctx context.Context, donation *domain.Donation) (decimal.Decimal, error)
	CancelDonation(ctx context.Context, donation *domain.Donation) error
}

// Reporter answers read-only funding questions. Satisfied by the reporting
// service.
type Reporter interface {
	FundsRemaining(ctx context.Context, campaignID uuid.UUID) (decimal.Decimal, string, error)
	MatchedByFundType(ctx context.Context, donationID uuid.UUID) (map[domain.FundType]decimal.Decimal, error)
}

// Handler serves the engine's JSON API
type Handler struct {
	Intake    DonationIntake
	Reporter  Reporter
	Donations domain.DonationRepository
}

// NewHandler creates a new REST handler
func NewHandler(intake DonationIntake, reporter Reporter, donations domain.DonationRepository) *Handler {
	return &Handler{
		Intake:    intake,
		Reporter:  reporter,
		Donations: donations,
	}
}

// Register mounts the API routes on the given mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/donations", h.createDonation)
	mux.HandleFunc("POST /v1/donations/{id}/cancel", h.cancelDonation)
	mux.HandleFunc("GET /v1/donations/{id}/matched", h.matchedBreakdown)
	mux.HandleFunc("GET /v1/campaigns/{id}/funds-remaining", h.fundsRemaining)
}

type createDonationRequest struct {
	CampaignID   string `json:"campaign_id"`
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currency_code"`
}

type createDonationResponse struct {
	DonationID    string `json:"donation_id"`
	MatchedAmount string `json:"matched_amount"`
}

func (h *Handler) createDonation(w http.ResponseWriter, r *http.Request) {
	var req createDonationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	campaignID, err := uuid.Parse(req.CampaignID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign_id")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	donation := &domain.Donation{
		ID:           uuid.New(),
		CampaignID:   campaignID,
		Amount:       amount,
		CurrencyCode: req.CurrencyCode,
		Status:       domain.DonationStatusPending,
		CreatedAt:    time.Now(),
	}

	matched, err := h.Intake.CreateDonation(r.Context(), donation)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createDonationResponse{
		DonationID:    donation.ID.String(),
		MatchedAmount: matched.String(),
	})
}

func (h *Handler) cancelDonation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid donation id")
		return
	}

	donation, err := h.Donations.GetByID(r.Context(), id)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	if err := h.Intake.CancelDonation(r.Context(), donation); err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) matchedBreakdown(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid donation id")
		return
	}

	breakdown, err := h.Reporter.MatchedByFundType(r.Context(), id)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	body := make(map[string]string, len(breakdown))
	for fundType, amount := range breakdown {
		body[string(fundType)] = amount.String()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) fundsRemaining(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid campaign id")
		return
	}

	total, currency, err := h.Reporter.FundsRemaining(r.Context(), id)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"amount":        total.String(),
		"currency_code": currency,
	})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[ERROR] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeMappedError converts domain errors to HTTP status codes
func writeMappedError(w http.ResponseWriter, err error) {
	msg := err.Error()

	switch {
	case strings.Contains(msg, "not found"):
		writeError(w, http.StatusNotFound, msg)
	case strings.Contains(msg, "must be positive") ||
		strings.Contains(msg, "cannot be empty") ||
		strings.Contains(msg, "must reference") ||
		errors.Is(err, reporting.ErrMixedCurrencies):
		writeError(w, http.StatusBadRequest, msg)
	default:
		writeError(w, http.StatusInternalServerError, msg)
	}
}
