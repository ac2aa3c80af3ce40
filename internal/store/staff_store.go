package store

import (
	"context"

	"till/internal/models"
)

type StaffStore struct {
	db DB
}

func NewStaffStore(db DB) *StaffStore {
	return &StaffStore{db: db}
}

func (s *StaffStore) Create(ctx context.Context, tx Execer, id, username, email, passwordHash string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO staff (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
	`, id, username, email, passwordHash)
	return err
}

func (s *StaffStore) GetByUsername(ctx context.Context, username string) (models.Staff, error) {
	var row models.Staff
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, email, password_hash, created_at
		FROM staff
		WHERE username = $1
	`, username)
	return row, err
}

func (s *StaffStore) GetByID(ctx context.Context, staffID string) (models.Staff, error) {
	var row models.Staff
	err := s.db.GetContext(ctx, &row, `
		SELECT id, username, email, password_hash, created_at
		FROM staff
		WHERE id = $1
	`, staffID)
	return row, err
}
