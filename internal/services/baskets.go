package services

import (
	"context"
	"fmt"

	"clearing/internal/models"

	"github.com/shopspring/decimal"
)

// Basket is one account's pending entries with both side totals.
type Basket struct {
	Account     models.ClearingAccount
	Entries     []models.ClearingEntry
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// GetUnreconciledEntries groups pending entries per account, ordered by account code.
// With no accountIDs every active account of the business is used; foreign ids are dropped.
// Accounts without pending entries produce no basket.
func (s *ClearingService) GetUnreconciledEntries(ctx context.Context, scope Scope, accountIDs []string) ([]Basket, error) {
	var ids []string
	var err error
	if len(accountIDs) > 0 {
		ids, err = s.guard.FilterOwned(ctx, scope.BusinessID, accountIDs)
	} else {
		ids, err = s.guard.OwnedAccountIDs(ctx, scope.BusinessID, true)
	}
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Basket{}, nil
	}
	accounts, err := s.accounts.ListByIDs(ctx, scope.BusinessID, ids)
	if err != nil {
		return nil, fmt.Errorf("services.GetUnreconciledEntries: %w", err)
	}
	pending, err := s.entries.ListPending(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("services.GetUnreconciledEntries: %w", err)
	}
	byAccount := make(map[string][]models.ClearingEntry, len(accounts))
	for _, entry := range pending {
		byAccount[entry.ClearingAccountID] = append(byAccount[entry.ClearingAccountID], entry)
	}
	baskets := make([]Basket, 0, len(byAccount))
	for _, account := range accounts {
		entries := byAccount[account.ID]
		if len(entries) == 0 {
			continue
		}
		debit, credit := sideTotals(entries)
		baskets = append(baskets, Basket{
			Account:     account,
			Entries:     entries,
			TotalDebit:  debit,
			TotalCredit: credit,
		})
	}
	return baskets, nil
}

// sideTotals sums positive amounts as debit and the magnitude of negative amounts as credit.
func sideTotals(entries []models.ClearingEntry) (decimal.Decimal, decimal.Decimal) {
	debit := decimal.Zero
	credit := decimal.Zero
	for _, entry := range entries {
		if entry.Amount.IsPositive() {
			debit = debit.Add(entry.Amount)
		} else {
			credit = credit.Add(entry.Amount.Abs())
		}
	}
	return debit, credit
}
