package handlers

import (
	"encoding/json"
	"net/http"

	"till/internal/middleware"
	"till/internal/models"
	"till/internal/services"
	"till/internal/validator"

	"github.com/go-chi/chi/v5"
)

type countLineRequest struct {
	Denomination string `json:"denomination"`
	Quantity     int    `json:"quantity"`
}

type countBreakdownRequest struct {
	Currency string             `json:"currency"`
	Lines    []countLineRequest `json:"lines"`
}

type saveCountRequest struct {
	CountType  string                  `json:"count_type"`
	Breakdowns []countBreakdownRequest `json:"breakdowns"`
	IsFinal    bool                    `json:"is_final"`
	Notes      *string                 `json:"notes,omitempty"`
}

// SaveCount records a denomination count for the session. Drafts overwrite
// each other; a final count locks the (session, type) pair.
func (h *Handler) SaveCount(w http.ResponseWriter, r *http.Request) {
	staffID, _ := middleware.StaffIDFromContext(r.Context())
	var req saveCountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	breakdowns := make([]services.BreakdownInput, 0, len(req.Breakdowns))
	for _, breakdown := range req.Breakdowns {
		if err := validator.ValidateCurrency(breakdown.Currency); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		lines := make([]models.DenominationLine, 0, len(breakdown.Lines))
		for _, line := range breakdown.Lines {
			denomination, err := parseDenomination(line.Denomination)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid denomination for "+breakdown.Currency)
				return
			}
			lines = append(lines, models.DenominationLine{
				Denomination: denomination,
				Quantity:     line.Quantity,
			})
		}
		breakdowns = append(breakdowns, services.BreakdownInput{
			Currency: breakdown.Currency,
			Lines:    lines,
		})
	}
	count, err := h.reconcile.SaveCount(r.Context(), services.SaveCountRequest{
		SessionID:  chi.URLParam(r, "sessionID"),
		CountType:  models.CountType(req.CountType),
		Breakdowns: breakdowns,
		IsFinal:    req.IsFinal,
		CountedBy:  staffID,
		Notes:      req.Notes,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, count)
}

func (h *Handler) ListCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.reconcile.ListCounts(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, counts)
}
