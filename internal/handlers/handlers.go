package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"till/internal/money"
	"till/internal/rates"
	"till/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func formatBalances(balances map[string]int64) map[string]string {
	formatted := make(map[string]string, len(balances))
	for currency, balance := range balances {
		formatted[currency] = money.FormatMinor(balance)
	}
	return formatted
}

// parseDate accepts YYYY-MM-DD and normalizes to midnight UTC.
func parseDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}

// parseDenomination parses a denomination face value ("1000", "0.25") into
// minor units. Denominations must be positive.
func parseDenomination(raw string) (int64, error) {
	value, err := money.ParseMinor(raw)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, money.ErrInvalidAmount
	}
	return value, nil
}

// respondServiceError maps service sentinels onto HTTP statuses. Anything
// unrecognized is an internal error and the detail stays out of the response.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrUnsupportedType),
		errors.Is(err, services.ErrDirectionMismatch),
		errors.Is(err, services.ErrReasonRequired),
		errors.Is(err, services.ErrEmptyDrop),
		errors.Is(err, services.ErrInvalidCountType),
		errors.Is(err, services.ErrEmptyCount),
		errors.Is(err, services.ErrInvalidLine):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrDayCloseNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrSelfApproval),
		errors.Is(err, services.ErrSelfVerification),
		errors.Is(err, services.ErrNotManager):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrSessionNotOpen),
		errors.Is(err, services.ErrSessionNotClosed),
		errors.Is(err, services.ErrInsufficientCash),
		errors.Is(err, services.ErrAlreadyVoided),
		errors.Is(err, services.ErrCannotVoidReversal),
		errors.Is(err, services.ErrFinalCountExists),
		errors.Is(err, services.ErrDayAlreadyClosed),
		errors.Is(err, services.ErrDayAlreadyOpen),
		errors.Is(err, services.ErrSessionsStillOpen):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, rates.ErrRateNotSet):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
