package store

import (
	"context"
	"database/sql"
	"errors"
)

type RoleStore struct {
	db DB
}

func NewRoleStore(db DB) *RoleStore {
	return &RoleStore{db: db}
}

// Membership reports whether the user belongs to the business and whether they own it.
func (s *RoleStore) Membership(ctx context.Context, userID, businessID string) (bool, bool, error) {
	var isOwner bool
	err := s.db.GetContext(ctx, &isOwner, `
		SELECT is_owner
		FROM users
		WHERE id = $1 AND business_id = $2
	`, userID, businessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, isOwner, nil
}

func (s *RoleStore) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM user_permissions
		WHERE user_id = $1 AND permission = $2
	`, userID, permission)
	return count > 0, err
}

func (s *RoleStore) Grant(ctx context.Context, tx Execer, userID, permission string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO user_permissions (user_id, permission)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, permission)
	return err
}

func (s *RoleStore) List(ctx context.Context, userID string) ([]string, error) {
	var perms []string
	err := s.db.SelectContext(ctx, &perms, `
		SELECT permission
		FROM user_permissions
		WHERE user_id = $1
		ORDER BY permission
	`, userID)
	if err != nil {
		return nil, err
	}
	return perms, nil
}
