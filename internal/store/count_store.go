package store

import (
	"context"

	"till/internal/models"
)

type CountStore struct {
	db DB
}

func NewCountStore(db DB) *CountStore {
	return &CountStore{db: db}
}

const countColumns = `
	id, session_id, count_type, breakdowns, total_base, rate_source,
	is_final, counted_by, counted_at, notes
`

// GetForUpdate loads the existing count for (session, type), locking it so a
// concurrent save cannot race the draft-overwrite / final-lock decision.
// Returns sql.ErrNoRows when no count exists yet.
func (s *CountStore) GetForUpdate(ctx context.Context, tx Getter, sessionID string, countType models.CountType) (models.TillDenominationCount, error) {
	var row models.TillDenominationCount
	err := tx.GetContext(ctx, &row, `
		SELECT `+countColumns+`
		FROM till_denomination_counts
		WHERE session_id = $1 AND count_type = $2
		FOR UPDATE
	`, sessionID, countType)
	return row, err
}

func (s *CountStore) Insert(ctx context.Context, tx Execer, count models.TillDenominationCount) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO till_denomination_counts (
			id, session_id, count_type, breakdowns, total_base, rate_source,
			is_final, counted_by, counted_at, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, count.ID, count.SessionID, count.CountType, count.Breakdowns,
		count.TotalBase, count.RateSource, count.IsFinal, count.CountedBy,
		count.CountedAt, count.Notes)
	return err
}

// Replace overwrites a draft in place, keeping the original row id stable.
func (s *CountStore) Replace(ctx context.Context, tx Execer, count models.TillDenominationCount) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE till_denomination_counts
		SET breakdowns = $1, total_base = $2, rate_source = $3, is_final = $4,
		    counted_by = $5, counted_at = $6, notes = $7
		WHERE id = $8
	`, count.Breakdowns, count.TotalBase, count.RateSource, count.IsFinal,
		count.CountedBy, count.CountedAt, count.Notes, count.ID)
	return err
}

func (s *CountStore) ListBySession(ctx context.Context, sessionID string) ([]models.TillDenominationCount, error) {
	var rows []models.TillDenominationCount
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+countColumns+`
		FROM till_denomination_counts
		WHERE session_id = $1
		ORDER BY counted_at
	`, sessionID)
	return rows, err
}
