package store

import (
	"context"
	"time"

	"till/internal/models"
)

type ShortageStore struct {
	db DB
}

func NewShortageStore(db DB) *ShortageStore {
	return &ShortageStore{db: db}
}

const shortageColumns = `
	id, shop_id, session_id, daily_close_id, staff_id, currency,
	amount, amount_base, rate_source, reason, logged_by, created_at
`

func (s *ShortageStore) Insert(ctx context.Context, tx Execer, entry models.ShortageLog) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO till_shortages (
			id, shop_id, session_id, daily_close_id, staff_id, currency,
			amount, amount_base, rate_source, reason, logged_by, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, entry.ID, entry.ShopID, entry.SessionID, entry.DailyCloseID,
		entry.StaffID, entry.Currency, entry.Amount, entry.AmountBase,
		entry.RateSource, entry.Reason, entry.LoggedBy, entry.CreatedAt)
	return err
}

func (s *ShortageStore) ListByShop(ctx context.Context, shopID string, from, to time.Time) ([]models.ShortageLog, error) {
	var rows []models.ShortageLog
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+shortageColumns+`
		FROM till_shortages
		WHERE shop_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
	`, shopID, from, to)
	return rows, err
}

func (s *ShortageStore) ListByStaff(ctx context.Context, staffID string) ([]models.ShortageLog, error) {
	var rows []models.ShortageLog
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+shortageColumns+`
		FROM till_shortages
		WHERE staff_id = $1
		ORDER BY created_at DESC
	`, staffID)
	return rows, err
}
