package services

import (
	"context"
	"encoding/json"
	"time"

	"clearing/internal/apperr"
	"clearing/internal/db"
	"clearing/internal/lock"
	"clearing/internal/logging"
	"clearing/internal/models"
	"clearing/internal/money"
	"clearing/internal/store"
	"clearing/internal/websocket"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrAccountNotFound        = apperr.NotFound("account_not_found", "clearing account not found")
	ErrLedgerAccountNotFound  = apperr.NotFound("ledger_account_not_found", "ledger account not found")
	ErrEntryNotFound          = apperr.NotFound("entry_not_found", "clearing entry not found")
	ErrReconciliationNotFound = apperr.NotFound("reconciliation_not_found", "reconciliation not found")
	ErrAccountCodeTaken       = apperr.Conflict("account_code_taken", "account code already exists")
	ErrInvalidAccountType     = apperr.BadRequest("invalid_account_type", "type must be one of bank, revenue, expense, other")
	ErrZeroAmount             = apperr.BadRequest("zero_amount", "amount must be non-zero")
	ErrEntryNotPending        = apperr.BadRequest("entry_not_pending", "only pending entries can be changed")
	ErrEntryChanged           = apperr.Conflict("entry_changed", "entry was settled or removed concurrently")
	ErrInvalidDateRange       = apperr.BadRequest("invalid_date_range", "from must not be after to")
	ErrInvalidStatus          = apperr.BadRequest("invalid_status", "status must be pending or matched")
	ErrEmptyBasketSide        = apperr.BadRequest("empty_basket_side", "both debit and credit entries are required")
	ErrDuplicateEntryID       = apperr.BadRequest("duplicate_entry_id", "an entry id appears more than once in the basket")
	ErrEntriesUnavailable     = apperr.BadRequest("entries_unavailable", "entries missing or already settled")
	ErrEntryWrongSide         = apperr.BadRequest("entry_wrong_side", "debit entries must be positive and credit entries negative")
	ErrBasketConflict         = apperr.Conflict("basket_conflict", "entries were settled concurrently")
)

// Scope is the caller a service operation acts for.
type Scope struct {
	BusinessID string
	UserID     string
}

type ClearingAccountStore interface {
	Create(ctx context.Context, tx store.Execer, account models.ClearingAccount) error
	Update(ctx context.Context, tx store.Execer, account models.ClearingAccount) (int64, error)
	Upsert(ctx context.Context, tx store.Getter, account models.ClearingAccount) (bool, error)
	GetByID(ctx context.Context, businessID, accountID string) (models.ClearingAccount, error)
	CodeExists(ctx context.Context, businessID, code, excludeID string) (bool, error)
	List(ctx context.Context, businessID string, includeInactive bool) ([]models.ClearingAccount, error)
	ListByIDs(ctx context.Context, businessID string, accountIDs []string) ([]models.ClearingAccount, error)
	LockByIDs(ctx context.Context, tx store.Selecter, accountIDs []string) ([]models.ClearingAccount, error)
	AdjustBalance(ctx context.Context, tx store.Getter, accountID string, delta decimal.Decimal) (decimal.Decimal, error)
	Statistics(ctx context.Context, businessID string) ([]store.AccountStatistics, error)
}

type ClearingEntryStore interface {
	Create(ctx context.Context, tx store.Execer, entry models.ClearingEntry) error
	GetByID(ctx context.Context, entryID string) (models.ClearingEntry, error)
	GetForUpdate(ctx context.Context, tx store.Getter, entryID string) (models.ClearingEntry, error)
	UpdatePending(ctx context.Context, tx store.Execer, entry models.ClearingEntry) (int64, error)
	DeletePending(ctx context.Context, tx store.Execer, entryID string) (int64, error)
	LockPending(ctx context.Context, tx store.Selecter, entryIDs []string) ([]models.ClearingEntry, error)
	MarkMatched(ctx context.Context, tx store.Execer, entryIDs []string, reconciliationID string, matchedAt time.Time) (int64, error)
	List(ctx context.Context, filter store.EntryFilter) ([]models.ClearingEntry, int, error)
	ListPending(ctx context.Context, accountIDs []string) ([]models.ClearingEntry, error)
	ListByReconciliation(ctx context.Context, reconciliationID string) ([]models.ClearingEntry, error)
	PendingSummary(ctx context.Context, accountID string) (store.PendingSummary, error)
}

type ReconciliationStore interface {
	Create(ctx context.Context, tx store.Execer, rec models.Reconciliation) error
	CreateMatch(ctx context.Context, tx store.Execer, match models.ReconciliationMatch) error
	GetByID(ctx context.Context, businessID, reconciliationID string) (models.Reconciliation, error)
	ListMatches(ctx context.Context, reconciliationID string) ([]models.ReconciliationMatch, error)
	List(ctx context.Context, businessID string, limit, offset int) ([]models.Reconciliation, error)
}

type LedgerAccountStore interface {
	Exists(ctx context.Context, businessID, accountID string) (bool, error)
	FindBySystemAccount(ctx context.Context, q store.Getter, businessID, tag string) (*string, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, businessID, actorID, action, entityType, entityID, data string) error
}

type TenantGuard interface {
	CheckAccount(ctx context.Context, businessID, accountID string) error
	OwnedAccountIDs(ctx context.Context, businessID string, activeOnly bool) ([]string, error)
	FilterOwned(ctx context.Context, businessID string, accountIDs []string) ([]string, error)
}

type BalanceHub interface {
	BroadcastBalance(businessID string, update websocket.BalanceUpdate)
}

type ClearingService struct {
	txRunner        db.TxRunner
	accounts        ClearingAccountStore
	entries         ClearingEntryStore
	reconciliations ReconciliationStore
	ledger          LedgerAccountStore
	audit           AuditStore
	guard           TenantGuard
	locker          lock.Locker
	hub             BalanceHub
	now             func() time.Time
}

func NewClearingService(txRunner db.TxRunner, accounts ClearingAccountStore, entries ClearingEntryStore, reconciliations ReconciliationStore, ledger LedgerAccountStore, audit AuditStore, guard TenantGuard, locker lock.Locker, hub BalanceHub) *ClearingService {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	return &ClearingService{
		txRunner:        txRunner,
		accounts:        accounts,
		entries:         entries,
		reconciliations: reconciliations,
		ledger:          ledger,
		audit:           audit,
		guard:           guard,
		locker:          locker,
		hub:             hub,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *ClearingService) logAudit(ctx context.Context, tx store.Execer, scope Scope, action, entityType, entityID string, data map[string]any) error {
	payload, _ := json.Marshal(data)
	return s.audit.Log(ctx, tx, scope.BusinessID, scope.UserID, action, entityType, entityID, string(payload))
}

// pushBalances runs after commit; a failed lookup only costs the websocket update.
func (s *ClearingService) pushBalances(ctx context.Context, businessID string, balances map[string]decimal.Decimal) {
	if s.hub == nil {
		return
	}
	for accountID, balance := range balances {
		summary, err := s.entries.PendingSummary(ctx, accountID)
		if err != nil {
			logging.LogError(ctx, "services", "pushBalances", logrus.Fields{"account_id": accountID}, err)
			continue
		}
		s.hub.BroadcastBalance(businessID, websocket.BalanceUpdate{
			AccountID:    accountID,
			Balance:      money.Format(balance),
			PendingCount: summary.Count,
		})
	}
}
