package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"till/internal/db"
	"till/internal/models"
	"till/internal/money"
	"till/internal/rates"
	"till/internal/store"
	"till/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotOpen      = errors.New("session is not open")
	ErrSessionNotClosed    = errors.New("session is not closed")
	ErrInsufficientCash    = errors.New("insufficient cash in drawer")
	ErrUnsupportedType     = errors.New("unsupported transaction type")
	ErrDirectionMismatch   = errors.New("transaction type does not allow this direction")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadyVoided       = errors.New("transaction already voided")
	ErrCannotVoidReversal  = errors.New("cannot void a void reversal")
	ErrSelfApproval        = errors.New("void approver must differ from requester")
	ErrSelfVerification    = errors.New("verifier must differ from session owner")
	ErrNotManager          = errors.New("manager authority required")
	ErrReasonRequired      = errors.New("reason is required")
	ErrEmptyDrop           = errors.New("drop requires at least one currency line")
)

type SessionStore interface {
	Create(ctx context.Context, tx store.Execer, session models.TillSession) error
	GetByID(ctx context.Context, sessionID string) (models.TillSession, error)
	GetForUpdate(ctx context.Context, tx store.Getter, sessionID string) (models.TillSession, error)
	UpdateTotals(ctx context.Context, tx store.Execer, session models.TillSession) error
	Close(ctx context.Context, tx store.Execer, sessionID string, status models.SessionStatus, closingVariances string, closedAt time.Time) error
	Verify(ctx context.Context, tx store.Execer, sessionID, verifierID string, verifiedAt time.Time, notes *string) error
	Balances(ctx context.Context, sessionID string) (map[string]int64, error)
	BalancesForUpdate(ctx context.Context, tx store.Selecter, sessionID string) (map[string]int64, error)
	UpsertBalance(ctx context.Context, tx store.Execer, sessionID, currency string, balance int64) error
}

type TransactionStore interface {
	Create(ctx context.Context, tx store.Execer, entry models.TillTransaction) error
	GetForUpdate(ctx context.Context, tx store.Getter, transactionID string) (models.TillTransaction, error)
	MarkVoided(ctx context.Context, tx store.Execer, transactionID, voidedBy, reason, approvedBy string, voidedAt time.Time) error
	MarkVerifiedBySession(ctx context.Context, tx store.Execer, sessionID, verifierID string, verifiedAt time.Time) error
	LinkRelated(ctx context.Context, transactionID, relatedID string) error
	ListBySession(ctx context.Context, sessionID string) ([]models.TillTransaction, error)
}

type RateService interface {
	ConvertToBase(ctx context.Context, shopID, currency string, amountMinor int64) (rates.Conversion, error)
	CurrentBuyRate(ctx context.Context, shopID, currency string) (rates.Rate, error)
}

type ManagerStore interface {
	IsManager(ctx context.Context, staffID string) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type DrawerHub interface {
	BroadcastDrawer(staffID string, update websocket.DrawerUpdate)
}

// TillService owns the session lifecycle, the transaction ledger and the
// void/compensation engine.
type TillService struct {
	txRunner     db.TxRunner
	sessions     SessionStore
	transactions TransactionStore
	rates        RateService
	managers     ManagerStore
	audit        AuditStore
	hub          DrawerHub
	// varianceTolerance is the per-currency closing slack (minor units).
	varianceTolerance int64
}

func NewTillService(txRunner db.TxRunner, sessions SessionStore, transactions TransactionStore, rateSvc RateService, managers ManagerStore, audit AuditStore, hub DrawerHub, varianceTolerance int64) *TillService {
	return &TillService{
		txRunner:          txRunner,
		sessions:          sessions,
		transactions:      transactions,
		rates:             rateSvc,
		managers:          managers,
		audit:             audit,
		hub:               hub,
		varianceTolerance: varianceTolerance,
	}
}

type OpenSessionRequest struct {
	ShopID       string
	StaffID      string
	OpeningFloat int64
}

func (s *TillService) OpenSession(ctx context.Context, req OpenSessionRequest) (models.TillSession, error) {
	if req.OpeningFloat < 0 {
		return models.TillSession{}, ErrInvalidAmount
	}
	session := models.TillSession{
		ID:               uuid.NewString(),
		ShopID:           req.ShopID,
		StaffID:          req.StaffID,
		Status:           models.SessionOpen,
		OpeningFloat:     req.OpeningFloat,
		ClosingVariances: "{}",
		OpenedAt:         time.Now().UTC(),
	}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.sessions.Create(ctx, tx, session); err != nil {
			return err
		}
		// Seed the base-currency drawer balance with the float so running
		// balances always include it.
		if err := s.sessions.UpsertBalance(ctx, tx, session.ID, models.BaseCurrency, req.OpeningFloat); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"shop_id":       req.ShopID,
			"opening_float": req.OpeningFloat,
		})
		return s.audit.Log(ctx, tx, req.StaffID, "till_session_open", "till_session", session.ID, string(data))
	})
	if err != nil {
		return models.TillSession{}, err
	}
	return session, nil
}

type RecordRequest struct {
	SessionID string
	StaffID   string
	Type      models.TransactionType
	Currency  string
	Amount    int64
	PaymentID *string
	DepositID *string
	RentalID  *string
}

// RecordIn records a drawer inflow (cash payment, electronic payment,
// top-up). Foreign currency amounts are converted through the rate service
// and fail hard when no rate is configured.
func (s *TillService) RecordIn(ctx context.Context, req RecordRequest) (models.TillTransaction, error) {
	return s.record(ctx, req, models.DirectionIn)
}

// RecordOut records a drawer outflow (refund, payout, single-currency drop).
func (s *TillService) RecordOut(ctx context.Context, req RecordRequest) (models.TillTransaction, error) {
	return s.record(ctx, req, models.DirectionOut)
}

func (s *TillService) record(ctx context.Context, req RecordRequest, direction models.Direction) (models.TillTransaction, error) {
	if req.Amount <= 0 {
		return models.TillTransaction{}, ErrInvalidAmount
	}
	effect, ok := txEffects[req.Type]
	if !ok {
		return models.TillTransaction{}, ErrUnsupportedType
	}
	if effect.direction != direction {
		return models.TillTransaction{}, ErrDirectionMismatch
	}
	var entry models.TillTransaction
	var balanceAfter int64
	var staffID string
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		session, err := s.lockOpenSession(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		staffID = session.StaffID
		conversion, err := s.rates.ConvertToBase(ctx, session.ShopID, req.Currency, req.Amount)
		if err != nil {
			return err
		}
		balances, err := s.sessions.BalancesForUpdate(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		if direction == models.DirectionOut && movesCash(req.Type) && balances[req.Currency] < req.Amount {
			return ErrInsufficientCash
		}
		entry = models.TillTransaction{
			ID:           uuid.NewString(),
			SessionID:    req.SessionID,
			Type:         req.Type,
			Direction:    direction,
			Amount:       req.Amount,
			Currency:     req.Currency,
			ExchangeRate: conversion.Rate,
			AmountBase:   conversion.AmountBase,
			RateSource:   conversion.Source,
			PaymentID:    req.PaymentID,
			DepositID:    req.DepositID,
			RentalID:     req.RentalID,
			CreatedAt:    time.Now().UTC(),
		}
		if conversion.RateID != "" {
			rateID := conversion.RateID
			entry.ExchangeRateID = &rateID
		}
		if err := s.transactions.Create(ctx, tx, entry); err != nil {
			return err
		}
		if err := applyEffect(&session, balances, entry, 1); err != nil {
			return err
		}
		if err := s.sessions.UpdateTotals(ctx, tx, session); err != nil {
			return err
		}
		if movesCash(req.Type) {
			if err := s.sessions.UpsertBalance(ctx, tx, req.SessionID, req.Currency, balances[req.Currency]); err != nil {
				return err
			}
		}
		balanceAfter = balances[req.Currency]
		data, _ := json.Marshal(map[string]any{
			"type":        req.Type,
			"direction":   direction,
			"amount":      req.Amount,
			"currency":    req.Currency,
			"amount_base": conversion.AmountBase,
		})
		return s.audit.Log(ctx, tx, session.StaffID, "till_record", "till_transaction", entry.ID, string(data))
	})
	if err != nil {
		return models.TillTransaction{}, err
	}
	if movesCash(req.Type) {
		s.hub.BroadcastDrawer(staffID, websocket.DrawerUpdate{
			SessionID: req.SessionID,
			Currency:  req.Currency,
			Balance:   money.FormatMinor(balanceAfter),
		})
	}
	return entry, nil
}

type DropLine struct {
	Currency string
	Amount   int64
}

type MultiCurrencyDropRequest struct {
	SessionID string
	StaffID   string
	Lines     []DropLine
}

// RecordMultiCurrencyDrop moves cash in several currencies from the drawer
// to the safe as one logical operation. Every line is validated against its
// drawer balance before any entry is written; the whole drop commits or
// none of it does.
func (s *TillService) RecordMultiCurrencyDrop(ctx context.Context, req MultiCurrencyDropRequest) ([]models.TillTransaction, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyDrop
	}
	for _, line := range req.Lines {
		if line.Amount <= 0 {
			return nil, ErrInvalidAmount
		}
	}
	var entries []models.TillTransaction
	var staffID string
	touched := map[string]int64{}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		entries = entries[:0]
		session, err := s.lockOpenSession(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		staffID = session.StaffID
		balances, err := s.sessions.BalancesForUpdate(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		// Validate all lines against a scratch copy first so a failing line
		// later in the list cannot leave earlier lines half applied.
		remaining := make(map[string]int64, len(balances))
		for currency, balance := range balances {
			remaining[currency] = balance
		}
		for _, line := range req.Lines {
			if remaining[line.Currency] < line.Amount {
				return ErrInsufficientCash
			}
			remaining[line.Currency] -= line.Amount
		}
		now := time.Now().UTC()
		for _, line := range req.Lines {
			conversion, err := s.rates.ConvertToBase(ctx, session.ShopID, line.Currency, line.Amount)
			if err != nil {
				return err
			}
			entry := models.TillTransaction{
				ID:           uuid.NewString(),
				SessionID:    req.SessionID,
				Type:         models.TxDrop,
				Direction:    models.DirectionOut,
				Amount:       line.Amount,
				Currency:     line.Currency,
				ExchangeRate: conversion.Rate,
				AmountBase:   conversion.AmountBase,
				RateSource:   conversion.Source,
				CreatedAt:    now,
			}
			if conversion.RateID != "" {
				rateID := conversion.RateID
				entry.ExchangeRateID = &rateID
			}
			if err := s.transactions.Create(ctx, tx, entry); err != nil {
				return err
			}
			if err := applyEffect(&session, balances, entry, 1); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		if err := s.sessions.UpdateTotals(ctx, tx, session); err != nil {
			return err
		}
		for _, line := range req.Lines {
			if err := s.sessions.UpsertBalance(ctx, tx, req.SessionID, line.Currency, balances[line.Currency]); err != nil {
				return err
			}
			touched[line.Currency] = balances[line.Currency]
		}
		data, _ := json.Marshal(map[string]any{
			"lines":         len(req.Lines),
			"total_dropped": session.TotalDropped,
		})
		return s.audit.Log(ctx, tx, session.StaffID, "till_drop", "till_session", req.SessionID, string(data))
	})
	if err != nil {
		return nil, err
	}
	for currency, balance := range touched {
		s.hub.BroadcastDrawer(staffID, websocket.DrawerUpdate{
			SessionID: req.SessionID,
			Currency:  currency,
			Balance:   money.FormatMinor(balance),
		})
	}
	return entries, nil
}

type VoidRequest struct {
	TransactionID string
	RequestedBy   string
	ApprovedBy    string
	Reason        string
}

// VoidTransaction reverses a ledger entry through a compensating entry
// under dual control. The original row keeps its amount and direction; only
// void metadata changes. Linking the original to its compensating entry is
// a best-effort second step: if it fails the void stands.
func (s *TillService) VoidTransaction(ctx context.Context, req VoidRequest) (models.TillTransaction, error) {
	if req.Reason == "" {
		return models.TillTransaction{}, ErrReasonRequired
	}
	if req.RequestedBy == req.ApprovedBy {
		return models.TillTransaction{}, ErrSelfApproval
	}
	isManager, err := s.managers.IsManager(ctx, req.ApprovedBy)
	if err != nil {
		return models.TillTransaction{}, err
	}
	if !isManager {
		return models.TillTransaction{}, ErrNotManager
	}
	var original models.TillTransaction
	var reversal models.TillTransaction
	var balanceAfter int64
	var staffID string
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		original, err = s.transactions.GetForUpdate(ctx, tx, req.TransactionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return err
		}
		if original.IsVoided {
			return ErrAlreadyVoided
		}
		if original.Type == models.TxVoidReversal {
			return ErrCannotVoidReversal
		}
		session, err := s.lockOpenSession(ctx, tx, original.SessionID)
		if err != nil {
			return err
		}
		staffID = session.StaffID
		now := time.Now().UTC()
		originalID := original.ID
		reversal = models.TillTransaction{
			ID:                    uuid.NewString(),
			SessionID:             original.SessionID,
			Type:                  models.TxVoidReversal,
			Direction:             oppositeDirection(original.Direction),
			Amount:                original.Amount,
			Currency:              original.Currency,
			ExchangeRate:          original.ExchangeRate,
			AmountBase:            original.AmountBase,
			RateSource:            original.RateSource,
			ExchangeRateID:        original.ExchangeRateID,
			OriginalTransactionID: &originalID,
			CreatedAt:             now,
		}
		if err := s.transactions.Create(ctx, tx, reversal); err != nil {
			return err
		}
		if err := s.transactions.MarkVoided(ctx, tx, original.ID, req.RequestedBy, req.Reason, req.ApprovedBy, now); err != nil {
			return err
		}
		balances, err := s.sessions.BalancesForUpdate(ctx, tx, original.SessionID)
		if err != nil {
			return err
		}
		// Reverse the original's effect, not a re-derivation of it.
		if err := applyEffect(&session, balances, original, -1); err != nil {
			return err
		}
		if err := s.sessions.UpdateTotals(ctx, tx, session); err != nil {
			return err
		}
		if movesCash(original.Type) {
			if err := s.sessions.UpsertBalance(ctx, tx, original.SessionID, original.Currency, balances[original.Currency]); err != nil {
				return err
			}
		}
		balanceAfter = balances[original.Currency]
		data, _ := json.Marshal(map[string]string{
			"original_transaction_id": original.ID,
			"reason":                  req.Reason,
			"approved_by":             req.ApprovedBy,
		})
		return s.audit.Log(ctx, tx, req.RequestedBy, "till_void", "till_transaction", reversal.ID, string(data))
	})
	if err != nil {
		return models.TillTransaction{}, err
	}
	// The void has committed; the back-link is advisory.
	if err := s.transactions.LinkRelated(ctx, original.ID, reversal.ID); err != nil {
		log.Printf("void %s committed but linking original %s failed: %v", reversal.ID, original.ID, err)
	}
	if movesCash(original.Type) {
		s.hub.BroadcastDrawer(staffID, websocket.DrawerUpdate{
			SessionID: original.SessionID,
			Currency:  original.Currency,
			Balance:   money.FormatMinor(balanceAfter),
		})
	}
	return reversal, nil
}

type CloseSessionRequest struct {
	SessionID string
	StaffID   string
	// ActualCounted is the physically counted cash per currency.
	ActualCounted map[string]int64
}

func (s *TillService) CloseSession(ctx context.Context, req CloseSessionRequest) (models.TillSession, error) {
	var closed models.TillSession
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		session, err := s.lockOpenSession(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		balances, err := s.sessions.BalancesForUpdate(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		variances := map[string]int64{}
		withVariance := false
		for currency, expected := range balances {
			variance := req.ActualCounted[currency] - expected
			variances[currency] = variance
			if abs(variance) > s.varianceTolerance {
				withVariance = true
			}
		}
		for currency, counted := range req.ActualCounted {
			if _, seen := balances[currency]; seen {
				continue
			}
			variances[currency] = counted
			if abs(counted) > s.varianceTolerance {
				withVariance = true
			}
		}
		status := models.SessionClosed
		if withVariance {
			status = models.SessionClosedWithVariance
		}
		varianceJSON, err := json.Marshal(variances)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := s.sessions.Close(ctx, tx, req.SessionID, status, string(varianceJSON), now); err != nil {
			return err
		}
		closed = session
		closed.Status = status
		closed.ClosingVariances = string(varianceJSON)
		closed.ClosedAt = &now
		data, _ := json.Marshal(map[string]any{
			"status":    status,
			"variances": variances,
		})
		return s.audit.Log(ctx, tx, req.StaffID, "till_session_close", "till_session", req.SessionID, string(data))
	})
	if err != nil {
		return models.TillSession{}, err
	}
	return closed, nil
}

type VerifySessionRequest struct {
	SessionID  string
	VerifierID string
	Notes      *string
}

// VerifySession is the terminal manager sign-off. Verification is
// irreversible and the verifier must not own the session.
func (s *TillService) VerifySession(ctx context.Context, req VerifySessionRequest) error {
	isManager, err := s.managers.IsManager(ctx, req.VerifierID)
	if err != nil {
		return err
	}
	if !isManager {
		return ErrNotManager
	}
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		session, err := s.sessions.GetForUpdate(ctx, tx, req.SessionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSessionNotFound
			}
			return err
		}
		if session.Status != models.SessionClosed && session.Status != models.SessionClosedWithVariance {
			return ErrSessionNotClosed
		}
		if session.StaffID == req.VerifierID {
			return ErrSelfVerification
		}
		now := time.Now().UTC()
		if err := s.sessions.Verify(ctx, tx, req.SessionID, req.VerifierID, now, req.Notes); err != nil {
			return err
		}
		// The sign-off covers every surviving entry, not just the session row.
		if err := s.transactions.MarkVerifiedBySession(ctx, tx, req.SessionID, req.VerifierID, now); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, req.VerifierID, "till_session_verify", "till_session", req.SessionID, "{}")
	})
}

// SessionSummary is the read-only view exposed to rental/booking callers.
type SessionSummary struct {
	Session      models.TillSession `json:"session"`
	Balances     map[string]int64   `json:"balances"`
	ExpectedCash int64              `json:"expected_cash"`
}

func (s *TillService) SessionSummary(ctx context.Context, sessionID string) (SessionSummary, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SessionSummary{}, ErrSessionNotFound
		}
		return SessionSummary{}, err
	}
	balances, err := s.sessions.Balances(ctx, sessionID)
	if err != nil {
		return SessionSummary{}, err
	}
	return SessionSummary{
		Session:      session,
		Balances:     balances,
		ExpectedCash: session.ExpectedCash(),
	}, nil
}

func (s *TillService) ListSessionTransactions(ctx context.Context, sessionID string) ([]models.TillTransaction, error) {
	return s.transactions.ListBySession(ctx, sessionID)
}

func (s *TillService) lockOpenSession(ctx context.Context, tx store.Tx, sessionID string) (models.TillSession, error) {
	session, err := s.sessions.GetForUpdate(ctx, tx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TillSession{}, ErrSessionNotFound
		}
		return models.TillSession{}, err
	}
	if session.Status != models.SessionOpen {
		return models.TillSession{}, ErrSessionNotOpen
	}
	return session, nil
}

func oppositeDirection(direction models.Direction) models.Direction {
	if direction == models.DirectionIn {
		return models.DirectionOut
	}
	return models.DirectionIn
}

func abs(value int64) int64 {
	if value < 0 {
		return -value
	}
	return value
}
