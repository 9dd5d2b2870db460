package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clearing/internal/models"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const clearingEntryColumns = `id, clearing_account_id, entry_date, amount, reference_type, reference_id,
	reference_number, description, status, matched_at, reconciliation_id, created_at, updated_at`

type ClearingEntryStore struct {
	db DB
}

type EntryFilter struct {
	AccountIDs []string
	Status     string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

type PendingSummary struct {
	Count int             `db:"pending_count"`
	Sum   decimal.Decimal `db:"pending_sum"`
}

func NewClearingEntryStore(db DB) *ClearingEntryStore {
	return &ClearingEntryStore{db: db}
}

func (s *ClearingEntryStore) Create(ctx context.Context, tx Execer, entry models.ClearingEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO clearing_entries (id, clearing_account_id, entry_date, amount, reference_type, reference_id, reference_number, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.ClearingAccountID, entry.EntryDate, entry.Amount, entry.ReferenceType,
		entry.ReferenceID, entry.ReferenceNumber, entry.Description, entry.Status)
	return err
}

func (s *ClearingEntryStore) GetByID(ctx context.Context, entryID string) (models.ClearingEntry, error) {
	var row models.ClearingEntry
	err := s.db.GetContext(ctx, &row, `
		SELECT `+clearingEntryColumns+`
		FROM clearing_entries
		WHERE id = $1
	`, entryID)
	if err != nil {
		return models.ClearingEntry{}, err
	}
	return row, nil
}

func (s *ClearingEntryStore) GetForUpdate(ctx context.Context, tx Getter, entryID string) (models.ClearingEntry, error) {
	var row models.ClearingEntry
	err := tx.GetContext(ctx, &row, `
		SELECT `+clearingEntryColumns+`
		FROM clearing_entries
		WHERE id = $1
		FOR UPDATE
	`, entryID)
	if err != nil {
		return models.ClearingEntry{}, err
	}
	return row, nil
}

// UpdatePending rewrites a pending entry. Zero rows means it was settled or removed meanwhile.
func (s *ClearingEntryStore) UpdatePending(ctx context.Context, tx Execer, entry models.ClearingEntry) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE clearing_entries
		SET entry_date = $1, amount = $2, reference_type = $3, reference_id = $4,
		    reference_number = $5, description = $6, updated_at = NOW()
		WHERE id = $7 AND status = 'pending'
	`, entry.EntryDate, entry.Amount, entry.ReferenceType, entry.ReferenceID,
		entry.ReferenceNumber, entry.Description, entry.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *ClearingEntryStore) DeletePending(ctx context.Context, tx Execer, entryID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM clearing_entries WHERE id = $1 AND status = 'pending'`, entryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LockPending returns the still-pending subset of entryIDs, locked in id order.
func (s *ClearingEntryStore) LockPending(ctx context.Context, tx Selecter, entryIDs []string) ([]models.ClearingEntry, error) {
	var rows []models.ClearingEntry
	err := tx.SelectContext(ctx, &rows, `
		SELECT `+clearingEntryColumns+`
		FROM clearing_entries
		WHERE id = ANY($1) AND status = 'pending'
		ORDER BY id
		FOR UPDATE
	`, pq.Array(entryIDs))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkMatched flips pending entries to matched and reports how many rows changed.
func (s *ClearingEntryStore) MarkMatched(ctx context.Context, tx Execer, entryIDs []string, reconciliationID string, matchedAt time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE clearing_entries
		SET status = 'matched', matched_at = $1, reconciliation_id = $2, updated_at = NOW()
		WHERE id = ANY($3) AND status = 'pending'
	`, matchedAt, reconciliationID, pq.Array(entryIDs))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *ClearingEntryStore) List(ctx context.Context, filter EntryFilter) ([]models.ClearingEntry, int, error) {
	where, args := entryWhere(filter)
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM clearing_entries WHERE `+where, args...); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + clearingEntryColumns + ` FROM clearing_entries WHERE ` + where +
		` ORDER BY entry_date DESC, created_at DESC LIMIT $` + itoa(len(args)+1) + ` OFFSET $` + itoa(len(args)+2)
	args = append(args, filter.Limit, filter.Offset)
	var rows []models.ClearingEntry
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *ClearingEntryStore) ListPending(ctx context.Context, accountIDs []string) ([]models.ClearingEntry, error) {
	var rows []models.ClearingEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+clearingEntryColumns+`
		FROM clearing_entries
		WHERE clearing_account_id = ANY($1) AND status = 'pending'
		ORDER BY entry_date, created_at
	`, pq.Array(accountIDs))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ClearingEntryStore) ListByReconciliation(ctx context.Context, reconciliationID string) ([]models.ClearingEntry, error) {
	var rows []models.ClearingEntry
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+clearingEntryColumns+`
		FROM clearing_entries
		WHERE reconciliation_id = $1
		ORDER BY entry_date, id
	`, reconciliationID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ClearingEntryStore) PendingSummary(ctx context.Context, accountID string) (PendingSummary, error) {
	var summary PendingSummary
	err := s.db.GetContext(ctx, &summary, `
		SELECT COUNT(1) AS pending_count, COALESCE(SUM(amount), 0) AS pending_sum
		FROM clearing_entries
		WHERE clearing_account_id = $1 AND status = 'pending'
	`, accountID)
	return summary, err
}

func entryWhere(filter EntryFilter) (string, []any) {
	clauses := []string{"clearing_account_id = ANY($1)"}
	args := []any{pq.Array(filter.AccountIDs)}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, "status = $"+itoa(len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, "entry_date >= $"+itoa(len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, "entry_date <= $"+itoa(len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

func itoa(value int) string {
	return fmt.Sprintf("%d", value)
}
