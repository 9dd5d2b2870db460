package store

import (
	"context"

	"clearing/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const clearingAccountColumns = `id, business_id, code, name, name_en, type, account_id, system_account,
	balance, is_active, created_at, updated_at`

type ClearingAccountStore struct {
	db DB
}

// AccountStatistics is one row of the pending-entry rollup per account.
type AccountStatistics struct {
	ID            string          `db:"id"`
	Code          string          `db:"code"`
	Name          string          `db:"name"`
	NameEn        *string         `db:"name_en"`
	Type          string          `db:"type"`
	Balance       decimal.Decimal `db:"balance"`
	PendingCount  int             `db:"pending_count"`
	PendingAmount decimal.Decimal `db:"pending_amount"`
}

type accountOwnerRow struct {
	ID         string `db:"id"`
	BusinessID string `db:"business_id"`
}

func NewClearingAccountStore(db DB) *ClearingAccountStore {
	return &ClearingAccountStore{db: db}
}

func (s *ClearingAccountStore) Create(ctx context.Context, tx Execer, account models.ClearingAccount) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO clearing_accounts (id, business_id, code, name, name_en, type, account_id, system_account, balance, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, account.ID, account.BusinessID, account.Code, account.Name, account.NameEn, account.Type,
		account.AccountID, account.SystemAccount, account.Balance, account.IsActive)
	return err
}

// Update writes the descriptive fields; balance is only ever moved by AdjustBalance.
func (s *ClearingAccountStore) Update(ctx context.Context, tx Execer, account models.ClearingAccount) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE clearing_accounts
		SET code = $1, name = $2, name_en = $3, type = $4, account_id = $5, is_active = $6, updated_at = NOW()
		WHERE id = $7 AND business_id = $8
	`, account.Code, account.Name, account.NameEn, account.Type, account.AccountID, account.IsActive,
		account.ID, account.BusinessID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Upsert inserts or refreshes a catalog account matched by business and code.
// It reports whether a new row was inserted.
func (s *ClearingAccountStore) Upsert(ctx context.Context, tx Getter, account models.ClearingAccount) (bool, error) {
	var inserted bool
	err := tx.GetContext(ctx, &inserted, `
		INSERT INTO clearing_accounts (id, business_id, code, name, name_en, type, account_id, system_account, balance, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, TRUE)
		ON CONFLICT (business_id, code) DO UPDATE
		SET name = EXCLUDED.name,
		    name_en = EXCLUDED.name_en,
		    type = EXCLUDED.type,
		    account_id = COALESCE(EXCLUDED.account_id, clearing_accounts.account_id),
		    system_account = EXCLUDED.system_account,
		    updated_at = NOW()
		RETURNING (xmax = 0) AS inserted
	`, account.ID, account.BusinessID, account.Code, account.Name, account.NameEn, account.Type,
		account.AccountID, account.SystemAccount)
	return inserted, err
}

func (s *ClearingAccountStore) GetByID(ctx context.Context, businessID, accountID string) (models.ClearingAccount, error) {
	var row models.ClearingAccount
	err := s.db.GetContext(ctx, &row, `
		SELECT `+clearingAccountColumns+`
		FROM clearing_accounts
		WHERE id = $1 AND business_id = $2
	`, accountID, businessID)
	if err != nil {
		return models.ClearingAccount{}, err
	}
	return row, nil
}

func (s *ClearingAccountStore) CodeExists(ctx context.Context, businessID, code, excludeID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM clearing_accounts
		WHERE business_id = $1 AND code = $2 AND id <> $3
	`, businessID, code, excludeID)
	return count > 0, err
}

func (s *ClearingAccountStore) List(ctx context.Context, businessID string, includeInactive bool) ([]models.ClearingAccount, error) {
	var rows []models.ClearingAccount
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+clearingAccountColumns+`
		FROM clearing_accounts
		WHERE business_id = $1 AND ($2 OR is_active)
		ORDER BY code
	`, businessID, includeInactive)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ClearingAccountStore) ListByIDs(ctx context.Context, businessID string, accountIDs []string) ([]models.ClearingAccount, error) {
	var rows []models.ClearingAccount
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+clearingAccountColumns+`
		FROM clearing_accounts
		WHERE business_id = $1 AND id = ANY($2)
		ORDER BY code
	`, businessID, pq.Array(accountIDs))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LockByIDs takes row locks on the accounts in id order so concurrent baskets cannot deadlock.
func (s *ClearingAccountStore) LockByIDs(ctx context.Context, tx Selecter, accountIDs []string) ([]models.ClearingAccount, error) {
	var rows []models.ClearingAccount
	err := tx.SelectContext(ctx, &rows, `
		SELECT `+clearingAccountColumns+`
		FROM clearing_accounts
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, pq.Array(accountIDs))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AdjustBalance moves the running balance by delta and returns the new balance.
func (s *ClearingAccountStore) AdjustBalance(ctx context.Context, tx Getter, accountID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.GetContext(ctx, &balance, `
		UPDATE clearing_accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`, delta, accountID)
	return balance, err
}

// OwnerOf maps each known account id to its business.
func (s *ClearingAccountStore) OwnerOf(ctx context.Context, accountIDs []string) (map[string]string, error) {
	var rows []accountOwnerRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, business_id
		FROM clearing_accounts
		WHERE id = ANY($1)
	`, pq.Array(accountIDs))
	if err != nil {
		return nil, err
	}
	owners := make(map[string]string, len(rows))
	for _, row := range rows {
		owners[row.ID] = row.BusinessID
	}
	return owners, nil
}

func (s *ClearingAccountStore) IDsByBusiness(ctx context.Context, businessID string, activeOnly bool) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id
		FROM clearing_accounts
		WHERE business_id = $1 AND (NOT $2 OR is_active)
		ORDER BY code
	`, businessID, activeOnly)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *ClearingAccountStore) Statistics(ctx context.Context, businessID string) ([]AccountStatistics, error) {
	var rows []AccountStatistics
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id,
		       a.code,
		       a.name,
		       a.name_en,
		       a.type,
		       a.balance,
		       COUNT(e.id) AS pending_count,
		       COALESCE(SUM(e.amount), 0) AS pending_amount
		FROM clearing_accounts a
		LEFT JOIN clearing_entries e ON e.clearing_account_id = a.id AND e.status = 'pending'
		WHERE a.business_id = $1 AND a.is_active
		GROUP BY a.id, a.code, a.name, a.name_en, a.type, a.balance
		ORDER BY a.code
	`, businessID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
