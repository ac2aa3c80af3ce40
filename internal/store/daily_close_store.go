package store

import (
	"context"
	"time"

	"till/internal/models"
)

type DailyCloseStore struct {
	db DB
}

func NewDailyCloseStore(db DB) *DailyCloseStore {
	return &DailyCloseStore{db: db}
}

const dailyCloseColumns = `
	id, shop_id, close_date, status,
	total_cash_in, total_cash_out, total_dropped, total_electronic,
	total_variance, session_count, sessions_with_variance,
	closed_by, closed_at, was_reopened, reopen_reason, reopened_by, reopened_at,
	created_at
`

func (s *DailyCloseStore) GetByShopDate(ctx context.Context, shopID string, date time.Time) (models.DailyClose, error) {
	var row models.DailyClose
	err := s.db.GetContext(ctx, &row, `
		SELECT `+dailyCloseColumns+`
		FROM daily_closes
		WHERE shop_id = $1 AND close_date = $2
	`, shopID, date)
	return row, err
}

func (s *DailyCloseStore) GetForUpdate(ctx context.Context, tx Getter, shopID string, date time.Time) (models.DailyClose, error) {
	var row models.DailyClose
	err := tx.GetContext(ctx, &row, `
		SELECT `+dailyCloseColumns+`
		FROM daily_closes
		WHERE shop_id = $1 AND close_date = $2
		FOR UPDATE
	`, shopID, date)
	return row, err
}

func (s *DailyCloseStore) Create(ctx context.Context, tx Execer, close models.DailyClose) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO daily_closes (id, shop_id, close_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, close.ID, close.ShopID, close.CloseDate, close.Status, close.CreatedAt)
	return err
}

func (s *DailyCloseStore) RecordClose(ctx context.Context, tx Execer, close models.DailyClose) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE daily_closes
		SET status = $1, total_cash_in = $2, total_cash_out = $3,
		    total_dropped = $4, total_electronic = $5, total_variance = $6,
		    session_count = $7, sessions_with_variance = $8,
		    closed_by = $9, closed_at = $10
		WHERE id = $11
	`, close.Status, close.TotalCashIn, close.TotalCashOut, close.TotalDropped,
		close.TotalElectronic, close.TotalVariance, close.SessionCount,
		close.SessionsWithVariance, close.ClosedBy, close.ClosedAt, close.ID)
	return err
}

// RecordReopen keeps only the latest reopen in the row; the full history
// lives in the audit log.
func (s *DailyCloseStore) RecordReopen(ctx context.Context, tx Execer, closeID, reason, reopenedBy string, reopenedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE daily_closes
		SET status = $1, was_reopened = TRUE, reopen_reason = $2,
		    reopened_by = $3, reopened_at = $4
		WHERE id = $5
	`, models.DayOpen, reason, reopenedBy, reopenedAt, closeID)
	return err
}
