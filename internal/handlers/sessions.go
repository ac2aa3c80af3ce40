package handlers

import (
	"encoding/json"
	"net/http"

	"till/internal/middleware"
	"till/internal/money"
	"till/internal/services"
	"till/internal/websocket"

	"github.com/go-chi/chi/v5"
)

type openSessionRequest struct {
	ShopID       string `json:"shop_id"`
	OpeningFloat string `json:"opening_float"`
}

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	staffID, _ := middleware.StaffIDFromContext(r.Context())
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ShopID == "" {
		respondError(w, http.StatusBadRequest, "shop_id is required")
		return
	}
	openingFloat, err := money.ParseMinor(req.OpeningFloat)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid opening_float")
		return
	}
	session, err := h.till.OpenSession(r.Context(), services.OpenSessionRequest{
		ShopID:       req.ShopID,
		StaffID:      staffID,
		OpeningFloat: openingFloat,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	summary, err := h.till.SessionSummary(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session":       summary.Session,
		"balances":      formatBalances(summary.Balances),
		"expected_cash": money.FormatMinor(summary.ExpectedCash),
	})
}

type closeSessionRequest struct {
	// ActualCounted maps currency code to the physically counted amount.
	ActualCounted map[string]string `json:"actual_counted"`
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	staffID, _ := middleware.StaffIDFromContext(r.Context())
	var req closeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	counted := make(map[string]int64, len(req.ActualCounted))
	for currency, raw := range req.ActualCounted {
		amount, err := money.ParseMinor(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid counted amount for "+currency)
			return
		}
		counted[currency] = amount
	}
	session, err := h.till.CloseSession(r.Context(), services.CloseSessionRequest{
		SessionID:     chi.URLParam(r, "sessionID"),
		StaffID:       staffID,
		ActualCounted: counted,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

type verifySessionRequest struct {
	Notes *string `json:"notes,omitempty"`
}

func (h *Handler) VerifySession(w http.ResponseWriter, r *http.Request) {
	verifierID, _ := middleware.StaffIDFromContext(r.Context())
	var req verifySessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	err := h.till.VerifySession(r.Context(), services.VerifySessionRequest{
		SessionID:  chi.URLParam(r, "sessionID"),
		VerifierID: verifierID,
		Notes:      req.Notes,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "verified"})
}

// ListSessions returns every session opened on a shop-day.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
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
	sessions, err := h.sessions.ListByShopDay(r.Context(), h.reader, shopID, date, date.AddDate(0, 0, 1))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

// ListVarianceSessions surfaces the shop-day's sessions that closed outside
// tolerance, for the reconciliation screen.
func (h *Handler) ListVarianceSessions(w http.ResponseWriter, r *http.Request) {
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
	sessions, err := h.sessions.ListWithVariance(r.Context(), shopID, date, date.AddDate(0, 0, 1))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

// ServeDrawerWS upgrades to a websocket that streams drawer balance updates
// for the authenticated staff member.
func (h *Handler) ServeDrawerWS(w http.ResponseWriter, r *http.Request) {
	staffID, ok := middleware.StaffIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	websocket.ServeWS(w, r, h.hub, staffID)
}
