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
)

var (
	ErrInvalidCountType = errors.New("invalid count type")
	ErrEmptyCount       = errors.New("count requires at least one breakdown")
	ErrInvalidLine      = errors.New("invalid denomination line")
	ErrFinalCountExists = errors.New("a final count of this type already exists")
)

type CountStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, sessionID string, countType models.CountType) (models.TillDenominationCount, error)
	Insert(ctx context.Context, tx store.Execer, count models.TillDenominationCount) error
	Replace(ctx context.Context, tx store.Execer, count models.TillDenominationCount) error
	ListBySession(ctx context.Context, sessionID string) ([]models.TillDenominationCount, error)
}

// ReconcileService captures denomination counts and computes variance
// against the session's authoritative balances.
type ReconcileService struct {
	txRunner db.TxRunner
	sessions SessionStore
	counts   CountStore
	rates    RateService
	audit    AuditStore
}

func NewReconcileService(txRunner db.TxRunner, sessions SessionStore, counts CountStore, rateSvc RateService, audit AuditStore) *ReconcileService {
	return &ReconcileService{
		txRunner: txRunner,
		sessions: sessions,
		counts:   counts,
		rates:    rateSvc,
		audit:    audit,
	}
}

type BreakdownInput struct {
	Currency string
	Lines    []models.DenominationLine
}

type SaveCountRequest struct {
	SessionID  string
	CountType  models.CountType
	Breakdowns []BreakdownInput
	IsFinal    bool
	CountedBy  string
	Notes      *string
}

// SaveCount saves a denomination count. A draft of the same (session, type)
// is overwritten; a final one locks the pair and every later save fails.
// Expected balances for closing counts come from the session's running
// balances, never from the caller.
func (r *ReconcileService) SaveCount(ctx context.Context, req SaveCountRequest) (models.TillDenominationCount, error) {
	if req.CountType != models.CountOpening && req.CountType != models.CountClosing {
		return models.TillDenominationCount{}, ErrInvalidCountType
	}
	if len(req.Breakdowns) == 0 {
		return models.TillDenominationCount{}, ErrEmptyCount
	}
	for _, breakdown := range req.Breakdowns {
		for _, line := range breakdown.Lines {
			if line.Denomination <= 0 || line.Quantity < 0 {
				return models.TillDenominationCount{}, ErrInvalidLine
			}
		}
	}
	var saved models.TillDenominationCount
	err := r.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		session, err := r.sessions.GetForUpdate(ctx, tx, req.SessionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSessionNotFound
			}
			return err
		}
		if session.Status != models.SessionOpen {
			return ErrSessionNotOpen
		}
		existing, err := r.counts.GetForUpdate(ctx, tx, req.SessionID, req.CountType)
		replacing := true
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			replacing = false
		} else if existing.IsFinal {
			return ErrFinalCountExists
		}
		balances, err := r.sessions.BalancesForUpdate(ctx, tx, req.SessionID)
		if err != nil {
			return err
		}
		breakdowns := make([]models.CurrencyBreakdown, 0, len(req.Breakdowns))
		var totalBase int64
		rateSource := rates.SourceShopRate
		for _, input := range req.Breakdowns {
			var total int64
			for _, line := range input.Lines {
				total += line.Denomination * int64(line.Quantity)
			}
			expected := balances[input.Currency]
			breakdowns = append(breakdowns, models.CurrencyBreakdown{
				Currency:        input.Currency,
				Lines:           input.Lines,
				Total:           total,
				ExpectedBalance: expected,
				Variance:        total - expected,
			})
			if input.Currency == models.BaseCurrency {
				totalBase += total
				continue
			}
			conversion, err := r.rates.ConvertToBase(ctx, session.ShopID, input.Currency, total)
			if err != nil {
				if !errors.Is(err, rates.ErrRateNotSet) {
					return err
				}
				// Explicit degradation: the raw counted amount stands in for
				// the converted one and the row is flagged as fallback.
				log.Printf("denomination count %s/%s: no %s rate, using raw amount", req.SessionID, req.CountType, input.Currency)
				totalBase += total
				rateSource = rates.SourceFallback
				continue
			}
			totalBase += conversion.AmountBase
		}
		breakdownJSON, err := json.Marshal(breakdowns)
		if err != nil {
			return err
		}
		saved = models.TillDenominationCount{
			ID:         uuid.NewString(),
			SessionID:  req.SessionID,
			CountType:  req.CountType,
			Breakdowns: string(breakdownJSON),
			TotalBase:  totalBase,
			RateSource: rateSource,
			IsFinal:    req.IsFinal,
			CountedBy:  req.CountedBy,
			CountedAt:  time.Now().UTC(),
			Notes:      req.Notes,
		}
		if replacing {
			saved.ID = existing.ID
			if err := r.counts.Replace(ctx, tx, saved); err != nil {
				return err
			}
		} else if err := r.counts.Insert(ctx, tx, saved); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]any{
			"count_type": req.CountType,
			"is_final":   req.IsFinal,
			"total_base": totalBase,
		})
		return r.audit.Log(ctx, tx, req.CountedBy, "till_count_save", "till_denomination_count", saved.ID, string(data))
	})
	if err != nil {
		return models.TillDenominationCount{}, err
	}
	return saved, nil
}

func (r *ReconcileService) ListCounts(ctx context.Context, sessionID string) ([]models.TillDenominationCount, error) {
	return r.counts.ListBySession(ctx, sessionID)
}
