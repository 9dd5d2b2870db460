package store

import "context"

type BusinessStore struct {
	db DB
}

func NewBusinessStore(db DB) *BusinessStore {
	return &BusinessStore{db: db}
}

func (s *BusinessStore) Create(ctx context.Context, tx Execer, id, name string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO businesses (id, name) VALUES ($1, $2)`, id, name)
	return err
}
