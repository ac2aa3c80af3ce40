package store

import (
	"context"
	"database/sql"
	"errors"
)

// ManagerStore tracks which staff members hold manager authority. Manager
// identity gates session verification, void approval, daily close/reopen
// and shortage logging.
type ManagerStore struct {
	db DB
}

func NewManagerStore(db DB) *ManagerStore {
	return &ManagerStore{db: db}
}

func (s *ManagerStore) IsManager(ctx context.Context, staffID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM managers WHERE staff_id = $1)
	`, staffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return exists, nil
}

func (s *ManagerStore) Promote(ctx context.Context, tx Execer, staffID string, promotedBy *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO managers (staff_id, promoted_by)
		VALUES ($1, $2)
		ON CONFLICT (staff_id) DO NOTHING
	`, staffID, promotedBy)
	return err
}

func (s *ManagerStore) HasAnyManager(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM managers)`)
	return exists, err
}
