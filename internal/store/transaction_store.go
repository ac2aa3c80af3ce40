package store

import (
	"context"
	"time"

	"till/internal/models"
)

type TillTransactionStore struct {
	db DB
}

func NewTillTransactionStore(db DB) *TillTransactionStore {
	return &TillTransactionStore{db: db}
}

const transactionColumns = `
	id, session_id, type, direction, amount, currency, exchange_rate,
	amount_base, rate_source, exchange_rate_id, payment_id, deposit_id, rental_id,
	is_voided, voided_at, voided_by, void_reason, void_approved_by,
	original_transaction_id, related_transaction_id,
	is_verified, verified_by, verified_at, created_at
`

func (s *TillTransactionStore) Create(ctx context.Context, tx Execer, entry models.TillTransaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO till_transactions (
			id, session_id, type, direction, amount, currency, exchange_rate,
			amount_base, rate_source, exchange_rate_id, payment_id, deposit_id, rental_id,
			original_transaction_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, entry.ID, entry.SessionID, entry.Type, entry.Direction, entry.Amount,
		entry.Currency, entry.ExchangeRate, entry.AmountBase, entry.RateSource,
		entry.ExchangeRateID, entry.PaymentID, entry.DepositID, entry.RentalID,
		entry.OriginalTransactionID, entry.CreatedAt)
	return err
}

func (s *TillTransactionStore) GetForUpdate(ctx context.Context, tx Getter, transactionID string) (models.TillTransaction, error) {
	var row models.TillTransaction
	err := tx.GetContext(ctx, &row, `
		SELECT `+transactionColumns+`
		FROM till_transactions
		WHERE id = $1
		FOR UPDATE
	`, transactionID)
	return row, err
}

// MarkVoided flags the original entry. Amount, currency and direction are
// never touched; reversal happens through a compensating entry.
func (s *TillTransactionStore) MarkVoided(ctx context.Context, tx Execer, transactionID, voidedBy, reason, approvedBy string, voidedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE till_transactions
		SET is_voided = TRUE, voided_at = $1, voided_by = $2, void_reason = $3, void_approved_by = $4
		WHERE id = $5
	`, voidedAt, voidedBy, reason, approvedBy, transactionID)
	return err
}

// LinkRelated points the original at its compensating entry. Called outside
// the void transaction as a best-effort second step.
func (s *TillTransactionStore) LinkRelated(ctx context.Context, transactionID, relatedID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE till_transactions
		SET related_transaction_id = $1
		WHERE id = $2
	`, relatedID, transactionID)
	return err
}

// MarkVerifiedBySession applies the manager's line-level sign-off to every
// non-voided entry of a session, as part of the session verify transaction.
func (s *TillTransactionStore) MarkVerifiedBySession(ctx context.Context, tx Execer, sessionID, verifierID string, verifiedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE till_transactions
		SET is_verified = TRUE, verified_by = $1, verified_at = $2
		WHERE session_id = $3 AND is_voided = FALSE
	`, verifierID, verifiedAt, sessionID)
	return err
}

func (s *TillTransactionStore) ListBySession(ctx context.Context, sessionID string) ([]models.TillTransaction, error) {
	var rows []models.TillTransaction
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM till_transactions
		WHERE session_id = $1
		ORDER BY created_at
	`, sessionID)
	return rows, err
}
