package store

import (
	"context"

	"clearing/internal/models"
)

const userColumns = `id, business_id, username, email, password_hash, is_owner, created_at`

type UserStore struct {
	db DB
}

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, tx Execer, user models.User) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, business_id, username, email, password_hash, is_owner)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.BusinessID, user.Username, user.Email, user.PasswordHash, user.IsOwner)
	return err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return row, err
}

func (s *UserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	var row models.User
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return row, err
}

func (s *UserStore) ListByBusiness(ctx context.Context, businessID string) ([]models.User, error) {
	var rows []models.User
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+userColumns+`
		FROM users
		WHERE business_id = $1
		ORDER BY created_at
	`, businessID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
