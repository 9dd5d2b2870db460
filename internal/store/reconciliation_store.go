package store

import (
	"context"

	"clearing/internal/models"
)

const reconciliationColumns = `id, business_id, type, name, period_start, period_end, status, total_items,
	matched_items, unmatched_items, total_amount, matched_amount, created_by, finalized_by, finalized_at, created_at`

type ReconciliationStore struct {
	db DB
}

func NewReconciliationStore(db DB) *ReconciliationStore {
	return &ReconciliationStore{db: db}
}

func (s *ReconciliationStore) Create(ctx context.Context, tx Execer, rec models.Reconciliation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reconciliations (id, business_id, type, name, period_start, period_end, status, total_items,
		                             matched_items, unmatched_items, total_amount, matched_amount, created_by,
		                             finalized_by, finalized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, rec.ID, rec.BusinessID, rec.Type, rec.Name, rec.PeriodStart, rec.PeriodEnd, rec.Status, rec.TotalItems,
		rec.MatchedItems, rec.UnmatchedItems, rec.TotalAmount, rec.MatchedAmount, rec.CreatedBy,
		rec.FinalizedBy, rec.FinalizedAt)
	return err
}

func (s *ReconciliationStore) CreateMatch(ctx context.Context, tx Execer, match models.ReconciliationMatch) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reconciliation_matches (id, reconciliation_id, match_type, amount, notes)
		VALUES ($1, $2, $3, $4, $5)
	`, match.ID, match.ReconciliationID, match.MatchType, match.Amount, match.Notes)
	return err
}

func (s *ReconciliationStore) GetByID(ctx context.Context, businessID, reconciliationID string) (models.Reconciliation, error) {
	var row models.Reconciliation
	err := s.db.GetContext(ctx, &row, `
		SELECT `+reconciliationColumns+`
		FROM reconciliations
		WHERE id = $1 AND business_id = $2
	`, reconciliationID, businessID)
	if err != nil {
		return models.Reconciliation{}, err
	}
	return row, nil
}

func (s *ReconciliationStore) ListMatches(ctx context.Context, reconciliationID string) ([]models.ReconciliationMatch, error) {
	var rows []models.ReconciliationMatch
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, reconciliation_id, match_type, amount, notes, created_at
		FROM reconciliation_matches
		WHERE reconciliation_id = $1
		ORDER BY created_at
	`, reconciliationID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ReconciliationStore) List(ctx context.Context, businessID string, limit, offset int) ([]models.Reconciliation, error) {
	var rows []models.Reconciliation
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+reconciliationColumns+`
		FROM reconciliations
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, businessID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
