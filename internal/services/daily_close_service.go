package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"till/internal/db"
	"till/internal/models"
	"till/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrDayAlreadyClosed  = errors.New("day already closed")
	ErrDayAlreadyOpen    = errors.New("day is already open")
	ErrDayCloseNotFound  = errors.New("no daily close record for that date")
	ErrSessionsStillOpen = errors.New("sessions are still open for that day")
)

type DailyCloseStore interface {
	GetByShopDate(ctx context.Context, shopID string, date time.Time) (models.DailyClose, error)
	GetForUpdate(ctx context.Context, tx store.Getter, shopID string, date time.Time) (models.DailyClose, error)
	Create(ctx context.Context, tx store.Execer, day models.DailyClose) error
	RecordClose(ctx context.Context, tx store.Execer, day models.DailyClose) error
	RecordReopen(ctx context.Context, tx store.Execer, closeID, reason, reopenedBy string, reopenedAt time.Time) error
}

type DaySessionStore interface {
	ListByShopDay(ctx context.Context, q store.Selecter, shopID string, dayStart, dayEnd time.Time) ([]models.TillSession, error)
	UpdateStatus(ctx context.Context, tx store.Execer, sessionID string, status models.SessionStatus) error
}

// DailyCloseService aggregates a shop-day's sessions into one close record
// and handles reopening with a mandatory reason.
type DailyCloseService struct {
	txRunner db.TxRunner
	closes   DailyCloseStore
	sessions DaySessionStore
	audit    AuditStore
}

func NewDailyCloseService(txRunner db.TxRunner, closes DailyCloseStore, sessions DaySessionStore, audit AuditStore) *DailyCloseService {
	return &DailyCloseService{
		txRunner: txRunner,
		closes:   closes,
		sessions: sessions,
		audit:    audit,
	}
}

type DailyCloseRequest struct {
	ShopID    string
	Date      time.Time
	ManagerID string
}

// PerformClose lazily creates the day's close record, aggregates every
// session opened on the shop-day and marks the day closed. Sessions that
// ended Closed/ClosedWithVariance move to Reconciling; Verified sessions
// are left alone.
func (s *DailyCloseService) PerformClose(ctx context.Context, req DailyCloseRequest) (models.DailyClose, error) {
	date := dayStart(req.Date)
	var result models.DailyClose
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		day, err := s.closes.GetForUpdate(ctx, tx, req.ShopID, date)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			day = models.DailyClose{
				ID:        uuid.NewString(),
				ShopID:    req.ShopID,
				CloseDate: date,
				Status:    models.DayOpen,
				CreatedAt: time.Now().UTC(),
			}
			if err := s.closes.Create(ctx, tx, day); err != nil {
				return err
			}
		}
		if day.Status != models.DayOpen {
			return ErrDayAlreadyClosed
		}
		sessions, err := s.sessions.ListByShopDay(ctx, tx, req.ShopID, date, date.Add(24*time.Hour))
		if err != nil {
			return err
		}
		for _, session := range sessions {
			if session.Status == models.SessionOpen {
				return ErrSessionsStillOpen
			}
		}
		day.TotalCashIn = 0
		day.TotalCashOut = 0
		day.TotalDropped = 0
		day.TotalElectronic = 0
		day.TotalVariance = 0
		day.SessionCount = len(sessions)
		day.SessionsWithVariance = 0
		for _, session := range sessions {
			day.TotalCashIn += session.TotalCashIn
			day.TotalCashOut += session.TotalCashOut
			day.TotalDropped += session.TotalDropped
			day.TotalElectronic += session.TotalCard + session.TotalBankTransfer + session.TotalMobileWallet
			day.TotalVariance += baseCurrencyVariance(session.ClosingVariances)
			if session.Status == models.SessionClosedWithVariance {
				day.SessionsWithVariance++
			}
			if session.Status == models.SessionClosed || session.Status == models.SessionClosedWithVariance {
				if err := s.sessions.UpdateStatus(ctx, tx, session.ID, models.SessionReconciling); err != nil {
					return err
				}
			}
		}
		now := time.Now().UTC()
		day.Status = models.DayClosed
		day.ClosedBy = &req.ManagerID
		day.ClosedAt = &now
		if err := s.closes.RecordClose(ctx, tx, day); err != nil {
			return err
		}
		result = day
		data, _ := json.Marshal(map[string]any{
			"close_date":             date.Format("2006-01-02"),
			"session_count":          day.SessionCount,
			"sessions_with_variance": day.SessionsWithVariance,
		})
		return s.audit.Log(ctx, tx, req.ManagerID, "daily_close", "daily_close", day.ID, string(data))
	})
	if err != nil {
		return models.DailyClose{}, err
	}
	return result, nil
}

type ReopenRequest struct {
	ShopID    string
	Date      time.Time
	Reason    string
	ManagerID string
}

// Reopen flips a closed day back to open. The day row keeps only the
// latest reopen; the audit log carries the full history.
func (s *DailyCloseService) Reopen(ctx context.Context, req ReopenRequest) error {
	if req.Reason == "" {
		return ErrReasonRequired
	}
	date := dayStart(req.Date)
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		day, err := s.closes.GetForUpdate(ctx, tx, req.ShopID, date)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrDayCloseNotFound
			}
			return err
		}
		if day.Status == models.DayOpen {
			return ErrDayAlreadyOpen
		}
		now := time.Now().UTC()
		if err := s.closes.RecordReopen(ctx, tx, day.ID, req.Reason, req.ManagerID, now); err != nil {
			return err
		}
		// Aggregated sessions become editable again.
		sessions, err := s.sessions.ListByShopDay(ctx, tx, req.ShopID, date, date.Add(24*time.Hour))
		if err != nil {
			return err
		}
		for _, session := range sessions {
			if session.Status != models.SessionReconciling {
				continue
			}
			status := models.SessionClosed
			if hasVariance(session.ClosingVariances) {
				status = models.SessionClosedWithVariance
			}
			if err := s.sessions.UpdateStatus(ctx, tx, session.ID, status); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]string{
			"reason": req.Reason,
		})
		return s.audit.Log(ctx, tx, req.ManagerID, "daily_close_reopen", "daily_close", day.ID, string(data))
	})
}

// IsDayClosed reports whether the shop-day has been closed (or reconciled).
// A missing record means the day is still open.
func (s *DailyCloseService) IsDayClosed(ctx context.Context, shopID string, date time.Time) (bool, error) {
	day, err := s.closes.GetByShopDate(ctx, shopID, dayStart(date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return day.Status == models.DayClosed || day.Status == models.DayReconciled, nil
}

func (s *DailyCloseService) DailySummary(ctx context.Context, shopID string, date time.Time) (models.DailyClose, error) {
	day, err := s.closes.GetByShopDate(ctx, shopID, dayStart(date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DailyClose{}, ErrDayCloseNotFound
		}
		return models.DailyClose{}, err
	}
	return day, nil
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// baseCurrencyVariance extracts the base-currency component of a session's
// closing variances. Foreign-currency variances stay visible per session
// but are not rolled into the daily base total.
func baseCurrencyVariance(closingVariances string) int64 {
	var variances map[string]int64
	if err := json.Unmarshal([]byte(closingVariances), &variances); err != nil {
		return 0
	}
	return variances[models.BaseCurrency]
}

func hasVariance(closingVariances string) bool {
	var variances map[string]int64
	if err := json.Unmarshal([]byte(closingVariances), &variances); err != nil {
		return false
	}
	for _, variance := range variances {
		if variance != 0 {
			return true
		}
	}
	return false
}
