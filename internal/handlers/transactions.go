package handlers

import (
	"encoding/json"
	"net/http"

	"till/internal/middleware"
	"till/internal/models"
	"till/internal/money"
	"till/internal/services"
	"till/internal/validator"

	"github.com/go-chi/chi/v5"
)

type recordRequest struct {
	Type      string  `json:"type"`
	Currency  string  `json:"currency"`
	Amount    string  `json:"amount"`
	PaymentID *string `json:"payment_id,omitempty"`
	DepositID *string `json:"deposit_id,omitempty"`
	RentalID  *string `json:"rental_id,omitempty"`
}

func (h *Handler) RecordIn(w http.ResponseWriter, r *http.Request) {
	h.recordTransaction(w, r, true)
}

func (h *Handler) RecordOut(w http.ResponseWriter, r *http.Request) {
	h.recordTransaction(w, r, false)
}

func (h *Handler) recordTransaction(w http.ResponseWriter, r *http.Request, inbound bool) {
	staffID, _ := middleware.StaffIDFromContext(r.Context())
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validator.ValidateCurrency(req.Currency); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := money.ParseMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	svcReq := services.RecordRequest{
		SessionID: chi.URLParam(r, "sessionID"),
		StaffID:   staffID,
		Type:      models.TransactionType(req.Type),
		Currency:  req.Currency,
		Amount:    amount,
		PaymentID: req.PaymentID,
		DepositID: req.DepositID,
		RentalID:  req.RentalID,
	}
	var entry models.TillTransaction
	if inbound {
		entry, err = h.till.RecordIn(r.Context(), svcReq)
	} else {
		entry, err = h.till.RecordOut(r.Context(), svcReq)
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

type dropLineRequest struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type dropRequest struct {
	Lines []dropLineRequest `json:"lines"`
}

// RecordDrop moves cash in one or more currencies from the drawer to the
// safe as a single all-or-nothing operation.
func (h *Handler) RecordDrop(w http.ResponseWriter, r *http.Request) {
	staffID, _ := middleware.StaffIDFromContext(r.Context())
	var req dropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	lines := make([]services.DropLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		if err := validator.ValidateCurrency(line.Currency); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		amount, err := money.ParseMinor(line.Amount)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid amount for "+line.Currency)
			return
		}
		lines = append(lines, services.DropLine{Currency: line.Currency, Amount: amount})
	}
	entries, err := h.till.RecordMultiCurrencyDrop(r.Context(), services.MultiCurrencyDropRequest{
		SessionID: chi.URLParam(r, "sessionID"),
		StaffID:   staffID,
		Lines:     lines,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, entries)
}

type voidRequest struct {
	Reason     string `json:"reason"`
	ApprovedBy string `json:"approved_by"`
}

// VoidTransaction reverses a ledger entry under dual control: the caller
// requests, a different manager approves.
func (h *Handler) VoidTransaction(w http.ResponseWriter, r *http.Request) {
	staffID, _ := middleware.StaffIDFromContext(r.Context())
	var req voidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reversal, err := h.till.VoidTransaction(r.Context(), services.VoidRequest{
		TransactionID: chi.URLParam(r, "transactionID"),
		RequestedBy:   staffID,
		ApprovedBy:    req.ApprovedBy,
		Reason:        req.Reason,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, reversal)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	entries, err := h.till.ListSessionTransactions(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
