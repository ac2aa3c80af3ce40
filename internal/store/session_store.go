package store

import (
	"context"
	"time"

	"till/internal/models"
)

type SessionStore struct {
	db DB
}

func NewSessionStore(db DB) *SessionStore {
	return &SessionStore{db: db}
}

const sessionColumns = `
	id, shop_id, staff_id, status, opening_float,
	total_cash_in, total_cash_out, total_card, total_bank_transfer,
	total_mobile_wallet, total_dropped, total_topped_up,
	closing_variances, opened_at, closed_at, verified_by, verified_at, verify_notes
`

func (s *SessionStore) Create(ctx context.Context, tx Execer, session models.TillSession) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO till_sessions (id, shop_id, staff_id, status, opening_float, closing_variances, opened_at)
		VALUES ($1, $2, $3, $4, $5, '{}', $6)
	`, session.ID, session.ShopID, session.StaffID, session.Status, session.OpeningFloat, session.OpenedAt)
	return err
}

func (s *SessionStore) GetByID(ctx context.Context, sessionID string) (models.TillSession, error) {
	var row models.TillSession
	err := s.db.GetContext(ctx, &row, `
		SELECT `+sessionColumns+`
		FROM till_sessions
		WHERE id = $1
	`, sessionID)
	return row, err
}

// GetForUpdate locks the session row for the duration of the enclosing
// transaction. Every read-modify-write of session totals goes through here.
func (s *SessionStore) GetForUpdate(ctx context.Context, tx Getter, sessionID string) (models.TillSession, error) {
	var row models.TillSession
	err := tx.GetContext(ctx, &row, `
		SELECT `+sessionColumns+`
		FROM till_sessions
		WHERE id = $1
		FOR UPDATE
	`, sessionID)
	return row, err
}

// UpdateTotals persists the rollup buckets after a record or void.
func (s *SessionStore) UpdateTotals(ctx context.Context, tx Execer, session models.TillSession) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE till_sessions
		SET total_cash_in = $1, total_cash_out = $2, total_card = $3,
		    total_bank_transfer = $4, total_mobile_wallet = $5,
		    total_dropped = $6, total_topped_up = $7
		WHERE id = $8
	`, session.TotalCashIn, session.TotalCashOut, session.TotalCard,
		session.TotalBankTransfer, session.TotalMobileWallet,
		session.TotalDropped, session.TotalToppedUp, session.ID)
	return err
}

func (s *SessionStore) Close(ctx context.Context, tx Execer, sessionID string, status models.SessionStatus, closingVariances string, closedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE till_sessions
		SET status = $1, closing_variances = $2, closed_at = $3
		WHERE id = $4
	`, status, closingVariances, closedAt, sessionID)
	return err
}

func (s *SessionStore) Verify(ctx context.Context, tx Execer, sessionID, verifierID string, verifiedAt time.Time, notes *string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE till_sessions
		SET status = $1, verified_by = $2, verified_at = $3, verify_notes = $4
		WHERE id = $5
	`, models.SessionVerified, verifierID, verifiedAt, notes, sessionID)
	return err
}

func (s *SessionStore) UpdateStatus(ctx context.Context, tx Execer, sessionID string, status models.SessionStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE till_sessions
		SET status = $1
		WHERE id = $2
	`, status, sessionID)
	return err
}

// ListByShopDay returns every session opened on the given shop-day,
// regardless of status. Pass the transaction as q when the result feeds a
// daily close so the aggregation and the status flips see one snapshot.
func (s *SessionStore) ListByShopDay(ctx context.Context, q Selecter, shopID string, dayStart, dayEnd time.Time) ([]models.TillSession, error) {
	var rows []models.TillSession
	err := q.SelectContext(ctx, &rows, `
		SELECT `+sessionColumns+`
		FROM till_sessions
		WHERE shop_id = $1 AND opened_at >= $2 AND opened_at < $3
		ORDER BY opened_at
	`, shopID, dayStart, dayEnd)
	return rows, err
}

func (s *SessionStore) ListWithVariance(ctx context.Context, shopID string, dayStart, dayEnd time.Time) ([]models.TillSession, error) {
	var rows []models.TillSession
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+sessionColumns+`
		FROM till_sessions
		WHERE shop_id = $1 AND opened_at >= $2 AND opened_at < $3
		  AND closing_variances <> '{}'
		ORDER BY opened_at
	`, shopID, dayStart, dayEnd)
	return rows, err
}

type balanceRow struct {
	Currency string `db:"currency"`
	Balance  int64  `db:"balance"`
}

// Balances returns the per-currency running drawer balances for a session.
func (s *SessionStore) Balances(ctx context.Context, sessionID string) (map[string]int64, error) {
	var rows []balanceRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT currency, balance
		FROM till_session_balances
		WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return nil, err
	}
	balances := make(map[string]int64, len(rows))
	for _, row := range rows {
		balances[row.Currency] = row.Balance
	}
	return balances, nil
}

// BalancesForUpdate locks the session's balance rows for read-modify-write.
func (s *SessionStore) BalancesForUpdate(ctx context.Context, tx Selecter, sessionID string) (map[string]int64, error) {
	var rows []balanceRow
	err := tx.SelectContext(ctx, &rows, `
		SELECT currency, balance
		FROM till_session_balances
		WHERE session_id = $1
		FOR UPDATE
	`, sessionID)
	if err != nil {
		return nil, err
	}
	balances := make(map[string]int64, len(rows))
	for _, row := range rows {
		balances[row.Currency] = row.Balance
	}
	return balances, nil
}

func (s *SessionStore) UpsertBalance(ctx context.Context, tx Execer, sessionID, currency string, balance int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO till_session_balances (session_id, currency, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, currency) DO UPDATE SET balance = EXCLUDED.balance
	`, sessionID, currency, balance)
	return err
}
