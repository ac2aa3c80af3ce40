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
	"till/internal/rates"
	"till/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type ShortageStore interface {
	Insert(ctx context.Context, tx store.Execer, entry models.ShortageLog) error
	ListByShop(ctx context.Context, shopID string, from, to time.Time) ([]models.ShortageLog, error)
	ListByStaff(ctx context.Context, staffID string) ([]models.ShortageLog, error)
}

// ShortageService records manager-held accountability entries for missing
// cash. Records are append-only.
type ShortageService struct {
	txRunner  db.TxRunner
	shortages ShortageStore
	sessions  SessionStore
	managers  ManagerStore
	rates     RateService
	audit     AuditStore
}

func NewShortageService(txRunner db.TxRunner, shortages ShortageStore, sessions SessionStore, managers ManagerStore, rateSvc RateService, audit AuditStore) *ShortageService {
	return &ShortageService{
		txRunner:  txRunner,
		shortages: shortages,
		sessions:  sessions,
		managers:  managers,
		rates:     rateSvc,
		audit:     audit,
	}
}

type LogShortageRequest struct {
	ShopID       string
	SessionID    string
	DailyCloseID *string
	StaffID      string
	Currency     string
	Amount       int64
	Reason       string
	ManagerID    string
}

// LogShortage normalizes the amount to its absolute value, converts it to
// the base currency and appends an immutable record. A missing rate falls
// back to a multiplier of 1; the fallback is logged and flagged on the row.
func (s *ShortageService) LogShortage(ctx context.Context, req LogShortageRequest) (models.ShortageLog, error) {
	if req.Reason == "" {
		return models.ShortageLog{}, ErrReasonRequired
	}
	if req.Amount == 0 {
		return models.ShortageLog{}, ErrInvalidAmount
	}
	isManager, err := s.managers.IsManager(ctx, req.ManagerID)
	if err != nil {
		return models.ShortageLog{}, err
	}
	if !isManager {
		return models.ShortageLog{}, ErrNotManager
	}
	if _, err := s.sessions.GetByID(ctx, req.SessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ShortageLog{}, ErrSessionNotFound
		}
		return models.ShortageLog{}, err
	}
	amount := abs(req.Amount)
	amountBase := amount
	rateSource := rates.SourceBase
	if req.Currency != models.BaseCurrency {
		rate, err := s.rates.CurrentBuyRate(ctx, req.ShopID, req.Currency)
		switch {
		case err == nil:
			amountBase = decimal.NewFromInt(amount).Mul(rate.BuyRate).RoundBank(0).IntPart()
			rateSource = rate.Source
		case errors.Is(err, rates.ErrRateNotSet):
			log.Printf("shortage for session %s: no %s rate, using multiplier 1", req.SessionID, req.Currency)
			rateSource = rates.SourceFallback
		default:
			return models.ShortageLog{}, err
		}
	}
	entry := models.ShortageLog{
		ID:           uuid.NewString(),
		ShopID:       req.ShopID,
		SessionID:    req.SessionID,
		DailyCloseID: req.DailyCloseID,
		StaffID:      req.StaffID,
		Currency:     req.Currency,
		Amount:       amount,
		AmountBase:   amountBase,
		RateSource:   rateSource,
		Reason:       req.Reason,
		LoggedBy:     req.ManagerID,
		CreatedAt:    time.Now().UTC(),
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.shortages.Insert(ctx, tx, entry); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"staff_id": req.StaffID,
			"currency": req.Currency,
			"amount":   amount,
		})
		return s.audit.Log(ctx, tx, req.ManagerID, "till_shortage_log", "till_shortage", entry.ID, string(data))
	})
	if err != nil {
		return models.ShortageLog{}, err
	}
	return entry, nil
}

func (s *ShortageService) ListByShop(ctx context.Context, shopID string, from, to time.Time) ([]models.ShortageLog, error) {
	return s.shortages.ListByShop(ctx, shopID, from, to)
}

func (s *ShortageService) ListByStaff(ctx context.Context, staffID string) ([]models.ShortageLog, error) {
	return s.shortages.ListByStaff(ctx, staffID)
}
