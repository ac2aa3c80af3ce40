package handlers

import (
	"encoding/json"
	"net/http"

	"till/internal/middleware"
	"till/internal/money"
	"till/internal/services"
	"till/internal/validator"

	"github.com/go-chi/chi/v5"
)

type logShortageRequest struct {
	ShopID       string  `json:"shop_id"`
	SessionID    string  `json:"session_id"`
	DailyCloseID *string `json:"daily_close_id,omitempty"`
	StaffID      string  `json:"staff_id"`
	Currency     string  `json:"currency"`
	Amount       string  `json:"amount"`
	Reason       string  `json:"reason"`
}

func (h *Handler) LogShortage(w http.ResponseWriter, r *http.Request) {
	managerID, _ := middleware.StaffIDFromContext(r.Context())
	var req logShortageRequest
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
	entry, err := h.shortages.LogShortage(r.Context(), services.LogShortageRequest{
		ShopID:       req.ShopID,
		SessionID:    req.SessionID,
		DailyCloseID: req.DailyCloseID,
		StaffID:      req.StaffID,
		Currency:     req.Currency,
		Amount:       amount,
		Reason:       req.Reason,
		ManagerID:    managerID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) ListShopShortages(w http.ResponseWriter, r *http.Request) {
	shopID := r.URL.Query().Get("shop_id")
	if shopID == "" {
		respondError(w, http.StatusBadRequest, "shop_id is required")
		return
	}
	from, err := parseDate(r.URL.Query().Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid from date, expected YYYY-MM-DD")
		return
	}
	to := from.AddDate(0, 0, 1)
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid to date, expected YYYY-MM-DD")
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}
	entries, err := h.shortages.ListByShop(r.Context(), shopID, from, to)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) ListStaffShortages(w http.ResponseWriter, r *http.Request) {
	entries, err := h.shortages.ListByStaff(r.Context(), chi.URLParam(r, "staffID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}
