package store

import (
	"context"
	"database/sql"
	"errors"

	"clearing/internal/models"
)

type LedgerAccountStore struct {
	db DB
}

func NewLedgerAccountStore(db DB) *LedgerAccountStore {
	return &LedgerAccountStore{db: db}
}

func (s *LedgerAccountStore) Create(ctx context.Context, tx Execer, account models.LedgerAccount) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_accounts (id, business_id, code, name, system_account)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (business_id, code) DO NOTHING
	`, account.ID, account.BusinessID, account.Code, account.Name, account.SystemAccount)
	return err
}

func (s *LedgerAccountStore) Exists(ctx context.Context, businessID, accountID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM ledger_accounts
		WHERE id = $1 AND business_id = $2
	`, accountID, businessID)
	return count > 0, err
}

// FindBySystemAccount returns the id of the tenant's ledger account carrying tag, or nil.
func (s *LedgerAccountStore) FindBySystemAccount(ctx context.Context, q Getter, businessID, tag string) (*string, error) {
	var id string
	err := q.GetContext(ctx, &id, `
		SELECT id
		FROM ledger_accounts
		WHERE business_id = $1 AND system_account = $2
		ORDER BY code
		LIMIT 1
	`, businessID, tag)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &id, nil
}
