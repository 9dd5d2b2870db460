package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clearing/internal/apperr"
	"clearing/internal/models"
	"clearing/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const (
	defaultEntryLimit = 50
	maxEntryLimit     = 200
)

type CreateEntryInput struct {
	ClearingAccountID string
	EntryDate         time.Time
	Amount            decimal.Decimal
	ReferenceType     *string
	ReferenceID       *string
	ReferenceNumber   *string
	Description       *string
}

// UpdateEntryInput is a patch; nil fields are left unchanged.
type UpdateEntryInput struct {
	EntryDate       *time.Time
	Amount          *decimal.Decimal
	ReferenceType   *string
	ReferenceID     *string
	ReferenceNumber *string
	Description     *string
}

type EntryFilter struct {
	AccountID string
	Status    string
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

type EntryPage struct {
	Items []models.ClearingEntry
	Total int
	Page  int
	Limit int
}

func (s *ClearingService) CreateEntry(ctx context.Context, scope Scope, input CreateEntryInput) (models.ClearingEntry, error) {
	if input.Amount.IsZero() {
		return models.ClearingEntry{}, ErrZeroAmount
	}
	if err := s.guard.CheckAccount(ctx, scope.BusinessID, input.ClearingAccountID); err != nil {
		return models.ClearingEntry{}, err
	}
	if input.EntryDate.IsZero() {
		input.EntryDate = s.now()
	}
	entry := models.ClearingEntry{
		ID:                uuid.NewString(),
		ClearingAccountID: input.ClearingAccountID,
		EntryDate:         input.EntryDate,
		Amount:            input.Amount,
		ReferenceType:     input.ReferenceType,
		ReferenceID:       input.ReferenceID,
		ReferenceNumber:   input.ReferenceNumber,
		Description:       input.Description,
		Status:            models.EntryStatusPending,
	}
	var balance decimal.Decimal
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.accounts.LockByIDs(ctx, tx, []string{entry.ClearingAccountID}); err != nil {
			return err
		}
		if err := s.entries.Create(ctx, tx, entry); err != nil {
			return err
		}
		var err error
		balance, err = s.accounts.AdjustBalance(ctx, tx, entry.ClearingAccountID, entry.Amount)
		if err != nil {
			return err
		}
		return s.logAudit(ctx, tx, scope, "create_clearing_entry", "clearing_entry", entry.ID, map[string]any{
			"clearing_account_id": entry.ClearingAccountID,
			"amount":              entry.Amount.String(),
		})
	})
	if err != nil {
		return models.ClearingEntry{}, err
	}
	s.pushBalances(ctx, scope.BusinessID, map[string]decimal.Decimal{entry.ClearingAccountID: balance})
	return s.entries.GetByID(ctx, entry.ID)
}

func (s *ClearingService) UpdateEntry(ctx context.Context, scope Scope, entryID string, patch UpdateEntryInput) (models.ClearingEntry, error) {
	if patch.Amount != nil && patch.Amount.IsZero() {
		return models.ClearingEntry{}, ErrZeroAmount
	}
	var accountID string
	var balance decimal.Decimal
	var touched bool
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		entry, err := s.lockOwnedEntry(ctx, tx, scope.BusinessID, entryID)
		if err != nil {
			return err
		}
		accountID = entry.ClearingAccountID
		delta := decimal.Zero
		if patch.Amount != nil {
			delta = patch.Amount.Sub(entry.Amount)
			entry.Amount = *patch.Amount
		}
		if patch.EntryDate != nil {
			entry.EntryDate = *patch.EntryDate
		}
		if patch.ReferenceType != nil {
			entry.ReferenceType = patch.ReferenceType
		}
		if patch.ReferenceID != nil {
			entry.ReferenceID = patch.ReferenceID
		}
		if patch.ReferenceNumber != nil {
			entry.ReferenceNumber = patch.ReferenceNumber
		}
		if patch.Description != nil {
			entry.Description = patch.Description
		}
		if !delta.IsZero() {
			if _, err := s.accounts.LockByIDs(ctx, tx, []string{accountID}); err != nil {
				return err
			}
		}
		rows, err := s.entries.UpdatePending(ctx, tx, entry)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrEntryChanged
		}
		if !delta.IsZero() {
			balance, err = s.accounts.AdjustBalance(ctx, tx, accountID, delta)
			if err != nil {
				return err
			}
			touched = true
		}
		return s.logAudit(ctx, tx, scope, "update_clearing_entry", "clearing_entry", entry.ID, map[string]any{
			"amount": entry.Amount.String(),
			"delta":  delta.String(),
		})
	})
	if err != nil {
		return models.ClearingEntry{}, err
	}
	if touched {
		s.pushBalances(ctx, scope.BusinessID, map[string]decimal.Decimal{accountID: balance})
	}
	return s.entries.GetByID(ctx, entryID)
}

// DeleteEntry removes a pending entry and takes its amount back out of the account balance.
func (s *ClearingService) DeleteEntry(ctx context.Context, scope Scope, entryID string) error {
	var accountID string
	var balance decimal.Decimal
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		entry, err := s.lockOwnedEntry(ctx, tx, scope.BusinessID, entryID)
		if err != nil {
			return err
		}
		accountID = entry.ClearingAccountID
		if _, err := s.accounts.LockByIDs(ctx, tx, []string{accountID}); err != nil {
			return err
		}
		rows, err := s.entries.DeletePending(ctx, tx, entry.ID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrEntryChanged
		}
		balance, err = s.accounts.AdjustBalance(ctx, tx, accountID, entry.Amount.Neg())
		if err != nil {
			return err
		}
		return s.logAudit(ctx, tx, scope, "delete_clearing_entry", "clearing_entry", entry.ID, map[string]any{
			"clearing_account_id": accountID,
			"amount":              entry.Amount.String(),
		})
	})
	if err != nil {
		return err
	}
	s.pushBalances(ctx, scope.BusinessID, map[string]decimal.Decimal{accountID: balance})
	return nil
}

func (s *ClearingService) FindAllEntries(ctx context.Context, scope Scope, filter EntryFilter) (EntryPage, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return EntryPage{}, ErrInvalidDateRange
	}
	if filter.Status != "" && filter.Status != models.EntryStatusPending && filter.Status != models.EntryStatusMatched {
		return EntryPage{}, ErrInvalidStatus
	}
	page, limit := normalizePage(filter.Page, filter.Limit)
	var accountIDs []string
	if filter.AccountID != "" {
		if err := s.guard.CheckAccount(ctx, scope.BusinessID, filter.AccountID); err != nil {
			return EntryPage{}, err
		}
		accountIDs = []string{filter.AccountID}
	} else {
		owned, err := s.guard.OwnedAccountIDs(ctx, scope.BusinessID, false)
		if err != nil {
			return EntryPage{}, err
		}
		accountIDs = owned
	}
	if len(accountIDs) == 0 {
		return EntryPage{Items: []models.ClearingEntry{}, Page: page, Limit: limit}, nil
	}
	items, total, err := s.entries.List(ctx, store.EntryFilter{
		AccountIDs: accountIDs,
		Status:     filter.Status,
		From:       filter.From,
		To:         filter.To,
		Limit:      limit,
		Offset:     (page - 1) * limit,
	})
	if err != nil {
		return EntryPage{}, fmt.Errorf("services.FindAllEntries: %w", err)
	}
	if items == nil {
		items = []models.ClearingEntry{}
	}
	return EntryPage{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// FindEntryByID re-checks the owning account so entry ids cannot be probed across businesses.
func (s *ClearingService) FindEntryByID(ctx context.Context, scope Scope, entryID string) (models.ClearingEntry, error) {
	entry, err := s.entries.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ClearingEntry{}, ErrEntryNotFound
		}
		return models.ClearingEntry{}, fmt.Errorf("services.FindEntryByID: %w", err)
	}
	if err := s.guard.CheckAccount(ctx, scope.BusinessID, entry.ClearingAccountID); err != nil {
		return models.ClearingEntry{}, asEntryNotFound(err)
	}
	return entry, nil
}

func (s *ClearingService) lockOwnedEntry(ctx context.Context, tx store.Getter, businessID, entryID string) (models.ClearingEntry, error) {
	entry, err := s.entries.GetForUpdate(ctx, tx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ClearingEntry{}, ErrEntryNotFound
		}
		return models.ClearingEntry{}, err
	}
	if err := s.guard.CheckAccount(ctx, businessID, entry.ClearingAccountID); err != nil {
		return models.ClearingEntry{}, asEntryNotFound(err)
	}
	if entry.Status != models.EntryStatusPending {
		return models.ClearingEntry{}, ErrEntryNotPending
	}
	return entry, nil
}

// asEntryNotFound reports a foreign entry exactly like a missing one.
func asEntryNotFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return ErrEntryNotFound
	}
	return err
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultEntryLimit
	}
	if limit > maxEntryLimit {
		limit = maxEntryLimit
	}
	return page, limit
}
