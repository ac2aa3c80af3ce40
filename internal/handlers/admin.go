package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"till/internal/middleware"
	"till/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type setRateRequest struct {
	// ShopID nil sets the organization-wide default rate.
	ShopID   *string `json:"shop_id,omitempty"`
	Currency string  `json:"currency"`
	BuyRate  string  `json:"buy_rate"`
}

// SetRate activates a new buy rate for a currency and retires the previous
// one for the same scope.
func (h *Handler) SetRate(w http.ResponseWriter, r *http.Request) {
	managerID, _ := middleware.StaffIDFromContext(r.Context())
	var req setRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validator.ValidateCurrency(req.Currency); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	buyRate, err := decimal.NewFromString(req.BuyRate)
	if err != nil || !buyRate.IsPositive() {
		respondError(w, http.StatusBadRequest, "buy_rate must be a positive decimal")
		return
	}
	var rateID string
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		id, err := h.rates.SetRate(r.Context(), tx, req.ShopID, req.Currency, buyRate.StringFixedBank(6), managerID)
		if err != nil {
			return err
		}
		rateID = id
		data, _ := json.Marshal(map[string]any{
			"currency": req.Currency,
			"buy_rate": buyRate.StringFixedBank(6),
			"shop_id":  req.ShopID,
		})
		return h.audit.Log(r.Context(), tx, managerID, "rate_set", "exchange_rate", id, string(data))
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not set rate")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": rateID})
}

func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = parsed
	}
	logs, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

// PromoteManager grants manager authority to another staff member.
func (h *Handler) PromoteManager(w http.ResponseWriter, r *http.Request) {
	managerID, _ := middleware.StaffIDFromContext(r.Context())
	staffID := chi.URLParam(r, "staffID")
	if _, err := h.staff.GetByID(r.Context(), staffID); err != nil {
		respondError(w, http.StatusNotFound, "staff not found")
		return
	}
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.managers.Promote(r.Context(), tx, staffID, &managerID); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, managerID, "manager_promote", "staff", staffID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not promote staff")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "promoted"})
}
