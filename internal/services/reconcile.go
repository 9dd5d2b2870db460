package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clearing/internal/apperr"
	"clearing/internal/lock"
	"clearing/internal/logging"
	"clearing/internal/models"
	"clearing/internal/money"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type ReconcileRequest struct {
	DebitEntryIDs  []string
	CreditEntryIDs []string
	Notes          *string
}

type ReconcileResult struct {
	ReconciliationID string
	MatchType        string
	TotalDebit       decimal.Decimal
	TotalCredit      decimal.Decimal
	EntriesCount     int
	Message          string
}

type ReconciliationDetail struct {
	Reconciliation models.Reconciliation
	Matches        []models.ReconciliationMatch
	Entries        []models.ClearingEntry
}

// ReconcileBasket settles a balanced set of debit and credit entries in one transaction:
// it records the reconciliation and its match, flips the entries to matched and takes
// their amounts out of the owning account balances.
func (s *ClearingService) ReconcileBasket(ctx context.Context, scope Scope, req ReconcileRequest) (ReconcileResult, error) {
	if len(req.DebitEntryIDs) == 0 || len(req.CreditEntryIDs) == 0 {
		return ReconcileResult{}, ErrEmptyBasketSide
	}
	allIDs := make([]string, 0, len(req.DebitEntryIDs)+len(req.CreditEntryIDs))
	allIDs = append(allIDs, req.DebitEntryIDs...)
	allIDs = append(allIDs, req.CreditEntryIDs...)
	if hasDuplicates(allIDs) {
		return ReconcileResult{}, ErrDuplicateEntryID
	}

	release, err := s.locker.Obtain(ctx, lock.ReconcileKey(scope.BusinessID))
	if err != nil {
		return ReconcileResult{}, err
	}
	defer release(ctx)

	log := logging.FromContext(ctx).WithFields(logrus.Fields{
		"business_id":  scope.BusinessID,
		"debit_count":  len(req.DebitEntryIDs),
		"credit_count": len(req.CreditEntryIDs),
		"requested_by": scope.UserID,
	})

	var result ReconcileResult
	var balances map[string]decimal.Decimal
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.entries.LockPending(ctx, tx, allIDs)
		if err != nil {
			return err
		}
		byID, err := s.ownedEntries(ctx, scope.BusinessID, locked)
		if err != nil {
			return err
		}
		debits, err := pickSide(byID, req.DebitEntryIDs)
		if err != nil {
			return err
		}
		credits, err := pickSide(byID, req.CreditEntryIDs)
		if err != nil {
			return err
		}
		totalDebit, totalCredit, err := basketTotals(debits, credits)
		if err != nil {
			return err
		}
		if !money.Balanced(totalDebit, totalCredit) {
			return apperr.BadRequest("basket_unbalanced", fmt.Sprintf(
				"basket is not balanced: debit %s, credit %s", money.Format(totalDebit), money.Format(totalCredit)))
		}
		matchType := classifyMatch(len(debits), len(credits))

		settled := append(append([]models.ClearingEntry{}, debits...), credits...)
		deltas := make(map[string]decimal.Decimal)
		for _, entry := range settled {
			deltas[entry.ClearingAccountID] = deltas[entry.ClearingAccountID].Sub(entry.Amount)
		}
		accountIDs := make([]string, 0, len(deltas))
		for id := range deltas {
			accountIDs = append(accountIDs, id)
		}
		accounts, err := s.accounts.LockByIDs(ctx, tx, accountIDs)
		if err != nil {
			return err
		}

		now := s.now()
		periodStart, periodEnd := entryPeriod(settled)
		rec := models.Reconciliation{
			ID:             uuid.NewString(),
			BusinessID:     scope.BusinessID,
			Type:           reconciliationType(accounts),
			Name:           "Basket reconciliation " + now.Format("2006-01-02"),
			PeriodStart:    periodStart,
			PeriodEnd:      periodEnd,
			Status:         models.ReconciliationStatusFinalized,
			TotalItems:     len(settled),
			MatchedItems:   len(settled),
			UnmatchedItems: 0,
			TotalAmount:    totalDebit,
			MatchedAmount:  totalDebit,
			CreatedBy:      scope.UserID,
			FinalizedBy:    &scope.UserID,
			FinalizedAt:    &now,
		}
		if err := s.reconciliations.Create(ctx, tx, rec); err != nil {
			return err
		}
		if err := s.reconciliations.CreateMatch(ctx, tx, models.ReconciliationMatch{
			ID:               uuid.NewString(),
			ReconciliationID: rec.ID,
			MatchType:        matchType,
			Amount:           totalDebit,
			Notes:            req.Notes,
		}); err != nil {
			return err
		}
		rows, err := s.entries.MarkMatched(ctx, tx, allIDs, rec.ID, now)
		if err != nil {
			return err
		}
		// LockPending already holds every id; this only trips if a store ignores the row locks.
		if rows != int64(len(allIDs)) {
			return ErrBasketConflict
		}
		balances = make(map[string]decimal.Decimal, len(accountIDs))
		for _, account := range accounts {
			balance, err := s.accounts.AdjustBalance(ctx, tx, account.ID, deltas[account.ID])
			if err != nil {
				return err
			}
			balances[account.ID] = balance
		}
		if err := s.logAudit(ctx, tx, scope, "reconcile_basket", "reconciliation", rec.ID, map[string]any{
			"match_type":       matchType,
			"total_debit":      totalDebit.String(),
			"total_credit":     totalCredit.String(),
			"debit_entry_ids":  req.DebitEntryIDs,
			"credit_entry_ids": req.CreditEntryIDs,
		}); err != nil {
			return err
		}
		result = ReconcileResult{
			ReconciliationID: rec.ID,
			MatchType:        matchType,
			TotalDebit:       totalDebit,
			TotalCredit:      totalCredit,
			EntriesCount:     len(settled),
			Message:          fmt.Sprintf("Reconciled %d entries (%s)", len(settled), money.Format(totalDebit)),
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Info("basket reconciliation rejected")
		return ReconcileResult{}, err
	}
	log.WithFields(logrus.Fields{
		"reconciliation_id": result.ReconciliationID,
		"match_type":        result.MatchType,
		"total":             result.TotalDebit.String(),
	}).Info("basket reconciled")
	s.pushBalances(ctx, scope.BusinessID, balances)
	return result, nil
}

func (s *ClearingService) GetReconciliation(ctx context.Context, scope Scope, reconciliationID string) (ReconciliationDetail, error) {
	rec, err := s.reconciliations.GetByID(ctx, scope.BusinessID, reconciliationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReconciliationDetail{}, ErrReconciliationNotFound
		}
		return ReconciliationDetail{}, fmt.Errorf("services.GetReconciliation: %w", err)
	}
	matches, err := s.reconciliations.ListMatches(ctx, rec.ID)
	if err != nil {
		return ReconciliationDetail{}, fmt.Errorf("services.GetReconciliation: %w", err)
	}
	entries, err := s.entries.ListByReconciliation(ctx, rec.ID)
	if err != nil {
		return ReconciliationDetail{}, fmt.Errorf("services.GetReconciliation: %w", err)
	}
	return ReconciliationDetail{Reconciliation: rec, Matches: matches, Entries: entries}, nil
}

func (s *ClearingService) ListReconciliations(ctx context.Context, scope Scope, page, limit int) ([]models.Reconciliation, error) {
	page, limit = normalizePage(page, limit)
	recs, err := s.reconciliations.List(ctx, scope.BusinessID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("services.ListReconciliations: %w", err)
	}
	if recs == nil {
		recs = []models.Reconciliation{}
	}
	return recs, nil
}

// ownedEntries indexes the locked entries whose account belongs to the business.
// Anything else is treated as if it did not exist.
func (s *ClearingService) ownedEntries(ctx context.Context, businessID string, entries []models.ClearingEntry) (map[string]models.ClearingEntry, error) {
	accountIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		accountIDs = append(accountIDs, entry.ClearingAccountID)
	}
	owned, err := s.guard.FilterOwned(ctx, businessID, accountIDs)
	if err != nil {
		return nil, err
	}
	ownedSet := make(map[string]struct{}, len(owned))
	for _, id := range owned {
		ownedSet[id] = struct{}{}
	}
	byID := make(map[string]models.ClearingEntry, len(entries))
	for _, entry := range entries {
		if _, ok := ownedSet[entry.ClearingAccountID]; ok {
			byID[entry.ID] = entry
		}
	}
	return byID, nil
}

func pickSide(byID map[string]models.ClearingEntry, ids []string) ([]models.ClearingEntry, error) {
	side := make([]models.ClearingEntry, 0, len(ids))
	for _, id := range ids {
		entry, ok := byID[id]
		if !ok {
			return nil, ErrEntriesUnavailable
		}
		side = append(side, entry)
	}
	return side, nil
}

// basketTotals returns the debit sum and the credit magnitude, rejecting entries on the wrong side.
func basketTotals(debits, credits []models.ClearingEntry) (decimal.Decimal, decimal.Decimal, error) {
	totalDebit := decimal.Zero
	for _, entry := range debits {
		if !entry.Amount.IsPositive() {
			return decimal.Zero, decimal.Zero, ErrEntryWrongSide
		}
		totalDebit = totalDebit.Add(entry.Amount)
	}
	totalCredit := decimal.Zero
	for _, entry := range credits {
		if !entry.Amount.IsNegative() {
			return decimal.Zero, decimal.Zero, ErrEntryWrongSide
		}
		totalCredit = totalCredit.Add(entry.Amount.Abs())
	}
	return totalDebit, totalCredit, nil
}

func classifyMatch(debits, credits int) string {
	switch {
	case debits == 1 && credits == 1:
		return models.MatchTypeOneToOne
	case debits == 1:
		return models.MatchTypeOneToMany
	case credits == 1:
		return models.MatchTypeManyToOne
	default:
		return models.MatchTypeManyToMany
	}
}

func reconciliationType(accounts []models.ClearingAccount) string {
	if len(accounts) == 0 {
		return models.ReconciliationTypeOther
	}
	for _, account := range accounts {
		if account.Type != models.AccountTypeBank {
			return models.ReconciliationTypeOther
		}
	}
	return models.ReconciliationTypeBank
}

func entryPeriod(entries []models.ClearingEntry) (start, end time.Time) {
	for i, entry := range entries {
		if i == 0 || entry.EntryDate.Before(start) {
			start = entry.EntryDate
		}
		if i == 0 || entry.EntryDate.After(end) {
			end = entry.EntryDate
		}
	}
	return start, end
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
