package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"clearing/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type CreateAccountInput struct {
	Code          string
	Name          string
	NameEn        *string
	Type          string
	AccountID     *string
	SystemAccount *string
}

// UpdateAccountInput is a patch; nil fields are left unchanged.
type UpdateAccountInput struct {
	Code      *string
	Name      *string
	NameEn    *string
	Type      *string
	AccountID *string
	IsActive  *bool
}

type AccountBalance struct {
	Account      models.ClearingAccount
	PendingSum   decimal.Decimal
	PendingCount int
	Difference   decimal.Decimal
}

func (b AccountBalance) InBalance() bool {
	return b.Difference.IsZero()
}

func (s *ClearingService) CreateAccount(ctx context.Context, scope Scope, input CreateAccountInput) (models.ClearingAccount, error) {
	input.Code = strings.TrimSpace(input.Code)
	if !models.ValidAccountType(input.Type) {
		return models.ClearingAccount{}, ErrInvalidAccountType
	}
	if err := s.checkLedgerAccount(ctx, scope.BusinessID, input.AccountID); err != nil {
		return models.ClearingAccount{}, err
	}
	taken, err := s.accounts.CodeExists(ctx, scope.BusinessID, input.Code, "")
	if err != nil {
		return models.ClearingAccount{}, fmt.Errorf("services.CreateAccount: %w", err)
	}
	if taken {
		return models.ClearingAccount{}, ErrAccountCodeTaken
	}
	account := models.ClearingAccount{
		ID:            uuid.NewString(),
		BusinessID:    scope.BusinessID,
		Code:          input.Code,
		Name:          input.Name,
		NameEn:        input.NameEn,
		Type:          input.Type,
		AccountID:     input.AccountID,
		SystemAccount: input.SystemAccount,
		Balance:       decimal.Zero,
		IsActive:      true,
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.accounts.Create(ctx, tx, account); err != nil {
			return err
		}
		return s.logAudit(ctx, tx, scope, "create_clearing_account", "clearing_account", account.ID, map[string]any{
			"code": account.Code,
			"type": account.Type,
		})
	})
	if err != nil {
		return models.ClearingAccount{}, err
	}
	return s.accounts.GetByID(ctx, scope.BusinessID, account.ID)
}

func (s *ClearingService) UpdateAccount(ctx context.Context, scope Scope, accountID string, patch UpdateAccountInput) (models.ClearingAccount, error) {
	account, err := s.GetAccount(ctx, scope, accountID)
	if err != nil {
		return models.ClearingAccount{}, err
	}
	if patch.Code != nil {
		code := strings.TrimSpace(*patch.Code)
		if code != account.Code {
			taken, err := s.accounts.CodeExists(ctx, scope.BusinessID, code, account.ID)
			if err != nil {
				return models.ClearingAccount{}, fmt.Errorf("services.UpdateAccount: %w", err)
			}
			if taken {
				return models.ClearingAccount{}, ErrAccountCodeTaken
			}
		}
		account.Code = code
	}
	if patch.Type != nil {
		if !models.ValidAccountType(*patch.Type) {
			return models.ClearingAccount{}, ErrInvalidAccountType
		}
		account.Type = *patch.Type
	}
	if patch.AccountID != nil {
		if err := s.checkLedgerAccount(ctx, scope.BusinessID, patch.AccountID); err != nil {
			return models.ClearingAccount{}, err
		}
		account.AccountID = patch.AccountID
	}
	if patch.Name != nil {
		account.Name = *patch.Name
	}
	if patch.NameEn != nil {
		account.NameEn = patch.NameEn
	}
	if patch.IsActive != nil {
		account.IsActive = *patch.IsActive
	}
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		rows, err := s.accounts.Update(ctx, tx, account)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAccountNotFound
		}
		return s.logAudit(ctx, tx, scope, "update_clearing_account", "clearing_account", account.ID, map[string]any{
			"code":      account.Code,
			"type":      account.Type,
			"is_active": account.IsActive,
		})
	})
	if err != nil {
		return models.ClearingAccount{}, err
	}
	return s.GetAccount(ctx, scope, accountID)
}

func (s *ClearingService) GetAccount(ctx context.Context, scope Scope, accountID string) (models.ClearingAccount, error) {
	account, err := s.accounts.GetByID(ctx, scope.BusinessID, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ClearingAccount{}, ErrAccountNotFound
		}
		return models.ClearingAccount{}, fmt.Errorf("services.GetAccount: %w", err)
	}
	return account, nil
}

func (s *ClearingService) ListAccounts(ctx context.Context, scope Scope, includeInactive bool) ([]models.ClearingAccount, error) {
	accounts, err := s.accounts.List(ctx, scope.BusinessID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("services.ListAccounts: %w", err)
	}
	return accounts, nil
}

// GetAccountBalance pairs the stored running balance with a live sum of pending entries.
func (s *ClearingService) GetAccountBalance(ctx context.Context, scope Scope, accountID string) (AccountBalance, error) {
	account, err := s.GetAccount(ctx, scope, accountID)
	if err != nil {
		return AccountBalance{}, err
	}
	summary, err := s.entries.PendingSummary(ctx, account.ID)
	if err != nil {
		return AccountBalance{}, fmt.Errorf("services.GetAccountBalance: %w", err)
	}
	return AccountBalance{
		Account:      account,
		PendingSum:   summary.Sum,
		PendingCount: summary.Count,
		Difference:   account.Balance.Sub(summary.Sum),
	}, nil
}

func (s *ClearingService) checkLedgerAccount(ctx context.Context, businessID string, accountID *string) error {
	if accountID == nil {
		return nil
	}
	ok, err := s.ledger.Exists(ctx, businessID, *accountID)
	if err != nil {
		return fmt.Errorf("services.checkLedgerAccount: %w", err)
	}
	if !ok {
		return ErrLedgerAccountNotFound
	}
	return nil
}
