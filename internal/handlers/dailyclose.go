package handlers

import (
	"encoding/json"
	"net/http"

	"till/internal/middleware"
	"till/internal/services"

	"github.com/go-chi/chi/v5"
)

type dailyCloseRequest struct {
	ShopID string `json:"shop_id"`
	Date   string `json:"date"`
}

// PerformDailyClose aggregates the shop-day's closed sessions into one close
// record. Every session must already be closed or verified.
func (h *Handler) PerformDailyClose(w http.ResponseWriter, r *http.Request) {
	managerID, _ := middleware.StaffIDFromContext(r.Context())
	var req dailyCloseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ShopID == "" {
		respondError(w, http.StatusBadRequest, "shop_id is required")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	day, err := h.dailyClose.PerformClose(r.Context(), services.DailyCloseRequest{
		ShopID:    req.ShopID,
		Date:      date,
		ManagerID: managerID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, day)
}

type reopenRequest struct {
	ShopID string `json:"shop_id"`
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

func (h *Handler) ReopenDay(w http.ResponseWriter, r *http.Request) {
	managerID, _ := middleware.StaffIDFromContext(r.Context())
	var req reopenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	err = h.dailyClose.Reopen(r.Context(), services.ReopenRequest{
		ShopID:    req.ShopID,
		Date:      date,
		Reason:    req.Reason,
		ManagerID: managerID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reopened"})
}

func (h *Handler) DayStatus(w http.ResponseWriter, r *http.Request) {
	shopID := r.URL.Query().Get("shop_id")
	if shopID == "" {
		respondError(w, http.StatusBadRequest, "shop_id is required")
		return
	}
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	closed, err := h.dailyClose.IsDayClosed(r.Context(), shopID, date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"closed": closed})
}

func (h *Handler) DaySummary(w http.ResponseWriter, r *http.Request) {
	shopID := r.URL.Query().Get("shop_id")
	if shopID == "" {
		respondError(w, http.StatusBadRequest, "shop_id is required")
		return
	}
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	day, err := h.dailyClose.DailySummary(r.Context(), shopID, date)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, day)
}

// DayHistory returns the full audit trail for a daily close, including every
// reopen. The close row itself keeps only the latest reopen.
func (h *Handler) DayHistory(w http.ResponseWriter, r *http.Request) {
	logs, err := h.audit.ListByEntity(r.Context(), "daily_close", chi.URLParam(r, "closeID"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}
