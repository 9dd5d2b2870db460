package handlers

import (
	"context"

	"clearing/internal/models"
	"clearing/internal/services"
	"clearing/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, user models.User) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
	ListByBusiness(ctx context.Context, businessID string) ([]models.User, error)
}

type BusinessStore interface {
	Create(ctx context.Context, tx store.Execer, id, name string) error
}

type RoleStore interface {
	Membership(ctx context.Context, userID, businessID string) (bool, bool, error)
	HasPermission(ctx context.Context, userID, permission string) (bool, error)
	Grant(ctx context.Context, tx store.Execer, userID, permission string) error
	List(ctx context.Context, userID string) ([]string, error)
}

type LedgerStore interface {
	Create(ctx context.Context, tx store.Execer, account models.LedgerAccount) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, businessID, actorID, action, entityType, entityID, data string) error
	List(ctx context.Context, businessID string, limit, offset int) ([]store.AuditLog, error)
}

type ClearingService interface {
	CreateAccount(ctx context.Context, scope services.Scope, input services.CreateAccountInput) (models.ClearingAccount, error)
	UpdateAccount(ctx context.Context, scope services.Scope, accountID string, patch services.UpdateAccountInput) (models.ClearingAccount, error)
	GetAccount(ctx context.Context, scope services.Scope, accountID string) (models.ClearingAccount, error)
	ListAccounts(ctx context.Context, scope services.Scope, includeInactive bool) ([]models.ClearingAccount, error)
	GetAccountBalance(ctx context.Context, scope services.Scope, accountID string) (services.AccountBalance, error)
	SeedClearingAccounts(ctx context.Context, scope services.Scope) (services.SeedResult, error)

	CreateEntry(ctx context.Context, scope services.Scope, input services.CreateEntryInput) (models.ClearingEntry, error)
	UpdateEntry(ctx context.Context, scope services.Scope, entryID string, patch services.UpdateEntryInput) (models.ClearingEntry, error)
	DeleteEntry(ctx context.Context, scope services.Scope, entryID string) error
	FindAllEntries(ctx context.Context, scope services.Scope, filter services.EntryFilter) (services.EntryPage, error)
	FindEntryByID(ctx context.Context, scope services.Scope, entryID string) (models.ClearingEntry, error)

	GetUnreconciledEntries(ctx context.Context, scope services.Scope, accountIDs []string) ([]services.Basket, error)
	ReconcileBasket(ctx context.Context, scope services.Scope, req services.ReconcileRequest) (services.ReconcileResult, error)
	GetReconciliation(ctx context.Context, scope services.Scope, reconciliationID string) (services.ReconciliationDetail, error)
	ListReconciliations(ctx context.Context, scope services.Scope, page, limit int) ([]models.Reconciliation, error)
	GetStatistics(ctx context.Context, scope services.Scope) (services.Statistics, error)
}
