package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"clearing/internal/auth"
	"clearing/internal/config"
	"clearing/internal/db"
	"clearing/internal/models"
	"clearing/internal/services"
	"clearing/internal/store"
	"clearing/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus/hooks/test"
)

const (
	testSecret   = "secret"
	testUserID   = "11111111-1111-1111-1111-111111111111"
	testBusiness = "22222222-2222-2222-2222-222222222222"
	testAccount  = "33333333-3333-3333-3333-333333333333"
	testEntryA   = "44444444-4444-4444-4444-444444444444"
	testEntryB   = "55555555-5555-5555-5555-555555555555"
	testOther    = "66666666-6666-6666-6666-666666666666"
	testMissing  = "77777777-7777-7777-7777-777777777777"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, user models.User) error
	getByEmailFn func(ctx context.Context, email string) (models.User, error)
	getByIDFn    func(ctx context.Context, userID string) (models.User, error)
	listFn       func(ctx context.Context, businessID string) ([]models.User, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, user models.User) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, user)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, nil
	}
	return s.getByIDFn(ctx, userID)
}

func (s stubUserStore) ListByBusiness(ctx context.Context, businessID string) ([]models.User, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, businessID)
}

type stubBusinessStore struct {
	createFn func(ctx context.Context, tx store.Execer, id, name string) error
}

func (s stubBusinessStore) Create(ctx context.Context, tx store.Execer, id, name string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, name)
}

// stubRoleStore treats every caller as the owner unless membershipFn says otherwise.
type stubRoleStore struct {
	membershipFn    func(ctx context.Context, userID, businessID string) (bool, bool, error)
	hasPermissionFn func(ctx context.Context, userID, permission string) (bool, error)
	grantFn         func(ctx context.Context, tx store.Execer, userID, permission string) error
	listFn          func(ctx context.Context, userID string) ([]string, error)
}

func (s stubRoleStore) Membership(ctx context.Context, userID, businessID string) (bool, bool, error) {
	if s.membershipFn == nil {
		return true, true, nil
	}
	return s.membershipFn(ctx, userID, businessID)
}

func (s stubRoleStore) HasPermission(ctx context.Context, userID, permission string) (bool, error) {
	if s.hasPermissionFn == nil {
		return false, nil
	}
	return s.hasPermissionFn(ctx, userID, permission)
}

func (s stubRoleStore) Grant(ctx context.Context, tx store.Execer, userID, permission string) error {
	if s.grantFn == nil {
		return nil
	}
	return s.grantFn(ctx, tx, userID, permission)
}

func (s stubRoleStore) List(ctx context.Context, userID string) ([]string, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, userID)
}

type stubLedgerStore struct {
	createFn func(ctx context.Context, tx store.Execer, account models.LedgerAccount) error
}

func (s stubLedgerStore) Create(ctx context.Context, tx store.Execer, account models.LedgerAccount) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, account)
}

type stubAuditStore struct {
	logFn  func(ctx context.Context, tx store.Execer, businessID, actorID, action, entityType, entityID, data string) error
	listFn func(ctx context.Context, businessID string, limit, offset int) ([]store.AuditLog, error)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, businessID, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, businessID, actorID, action, entityType, entityID, data)
}

func (s stubAuditStore) List(ctx context.Context, businessID string, limit, offset int) ([]store.AuditLog, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, businessID, limit, offset)
}

type stubService struct {
	createAccountFn   func(ctx context.Context, scope services.Scope, input services.CreateAccountInput) (models.ClearingAccount, error)
	updateAccountFn   func(ctx context.Context, scope services.Scope, accountID string, patch services.UpdateAccountInput) (models.ClearingAccount, error)
	getAccountFn      func(ctx context.Context, scope services.Scope, accountID string) (models.ClearingAccount, error)
	listAccountsFn    func(ctx context.Context, scope services.Scope, includeInactive bool) ([]models.ClearingAccount, error)
	accountBalanceFn  func(ctx context.Context, scope services.Scope, accountID string) (services.AccountBalance, error)
	seedFn            func(ctx context.Context, scope services.Scope) (services.SeedResult, error)
	createEntryFn     func(ctx context.Context, scope services.Scope, input services.CreateEntryInput) (models.ClearingEntry, error)
	updateEntryFn     func(ctx context.Context, scope services.Scope, entryID string, patch services.UpdateEntryInput) (models.ClearingEntry, error)
	deleteEntryFn     func(ctx context.Context, scope services.Scope, entryID string) error
	findEntriesFn     func(ctx context.Context, scope services.Scope, filter services.EntryFilter) (services.EntryPage, error)
	findEntryFn       func(ctx context.Context, scope services.Scope, entryID string) (models.ClearingEntry, error)
	unreconciledFn    func(ctx context.Context, scope services.Scope, accountIDs []string) ([]services.Basket, error)
	reconcileFn       func(ctx context.Context, scope services.Scope, req services.ReconcileRequest) (services.ReconcileResult, error)
	reconciliationFn  func(ctx context.Context, scope services.Scope, reconciliationID string) (services.ReconciliationDetail, error)
	reconciliationsFn func(ctx context.Context, scope services.Scope, page, limit int) ([]models.Reconciliation, error)
	statisticsFn      func(ctx context.Context, scope services.Scope) (services.Statistics, error)
}

func (s stubService) CreateAccount(ctx context.Context, scope services.Scope, input services.CreateAccountInput) (models.ClearingAccount, error) {
	if s.createAccountFn == nil {
		return models.ClearingAccount{}, nil
	}
	return s.createAccountFn(ctx, scope, input)
}

func (s stubService) UpdateAccount(ctx context.Context, scope services.Scope, accountID string, patch services.UpdateAccountInput) (models.ClearingAccount, error) {
	if s.updateAccountFn == nil {
		return models.ClearingAccount{}, nil
	}
	return s.updateAccountFn(ctx, scope, accountID, patch)
}

func (s stubService) GetAccount(ctx context.Context, scope services.Scope, accountID string) (models.ClearingAccount, error) {
	if s.getAccountFn == nil {
		return models.ClearingAccount{}, nil
	}
	return s.getAccountFn(ctx, scope, accountID)
}

func (s stubService) ListAccounts(ctx context.Context, scope services.Scope, includeInactive bool) ([]models.ClearingAccount, error) {
	if s.listAccountsFn == nil {
		return nil, nil
	}
	return s.listAccountsFn(ctx, scope, includeInactive)
}

func (s stubService) GetAccountBalance(ctx context.Context, scope services.Scope, accountID string) (services.AccountBalance, error) {
	if s.accountBalanceFn == nil {
		return services.AccountBalance{}, nil
	}
	return s.accountBalanceFn(ctx, scope, accountID)
}

func (s stubService) SeedClearingAccounts(ctx context.Context, scope services.Scope) (services.SeedResult, error) {
	if s.seedFn == nil {
		return services.SeedResult{}, nil
	}
	return s.seedFn(ctx, scope)
}

func (s stubService) CreateEntry(ctx context.Context, scope services.Scope, input services.CreateEntryInput) (models.ClearingEntry, error) {
	if s.createEntryFn == nil {
		return models.ClearingEntry{}, nil
	}
	return s.createEntryFn(ctx, scope, input)
}

func (s stubService) UpdateEntry(ctx context.Context, scope services.Scope, entryID string, patch services.UpdateEntryInput) (models.ClearingEntry, error) {
	if s.updateEntryFn == nil {
		return models.ClearingEntry{}, nil
	}
	return s.updateEntryFn(ctx, scope, entryID, patch)
}

func (s stubService) DeleteEntry(ctx context.Context, scope services.Scope, entryID string) error {
	if s.deleteEntryFn == nil {
		return nil
	}
	return s.deleteEntryFn(ctx, scope, entryID)
}

func (s stubService) FindAllEntries(ctx context.Context, scope services.Scope, filter services.EntryFilter) (services.EntryPage, error) {
	if s.findEntriesFn == nil {
		return services.EntryPage{}, nil
	}
	return s.findEntriesFn(ctx, scope, filter)
}

func (s stubService) FindEntryByID(ctx context.Context, scope services.Scope, entryID string) (models.ClearingEntry, error) {
	if s.findEntryFn == nil {
		return models.ClearingEntry{}, nil
	}
	return s.findEntryFn(ctx, scope, entryID)
}

func (s stubService) GetUnreconciledEntries(ctx context.Context, scope services.Scope, accountIDs []string) ([]services.Basket, error) {
	if s.unreconciledFn == nil {
		return nil, nil
	}
	return s.unreconciledFn(ctx, scope, accountIDs)
}

func (s stubService) ReconcileBasket(ctx context.Context, scope services.Scope, req services.ReconcileRequest) (services.ReconcileResult, error) {
	if s.reconcileFn == nil {
		return services.ReconcileResult{}, nil
	}
	return s.reconcileFn(ctx, scope, req)
}

func (s stubService) GetReconciliation(ctx context.Context, scope services.Scope, reconciliationID string) (services.ReconciliationDetail, error) {
	if s.reconciliationFn == nil {
		return services.ReconciliationDetail{}, nil
	}
	return s.reconciliationFn(ctx, scope, reconciliationID)
}

func (s stubService) ListReconciliations(ctx context.Context, scope services.Scope, page, limit int) ([]models.Reconciliation, error) {
	if s.reconciliationsFn == nil {
		return nil, nil
	}
	return s.reconciliationsFn(ctx, scope, page, limit)
}

func (s stubService) GetStatistics(ctx context.Context, scope services.Scope) (services.Statistics, error) {
	if s.statisticsFn == nil {
		return services.Statistics{}, nil
	}
	return s.statisticsFn(ctx, scope)
}

type testDeps struct {
	txRunner   db.TxRunner
	users      UserStore
	businesses BusinessStore
	roles      RoleStore
	ledger     LedgerStore
	audit      AuditStore
	service    ClearingService
}

func newTestHandler(deps testDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	if deps.txRunner == nil {
		deps.txRunner = fakeTxRunner{}
	}
	if deps.users == nil {
		deps.users = stubUserStore{}
	}
	if deps.businesses == nil {
		deps.businesses = stubBusinessStore{}
	}
	if deps.roles == nil {
		deps.roles = stubRoleStore{}
	}
	if deps.ledger == nil {
		deps.ledger = stubLedgerStore{}
	}
	if deps.audit == nil {
		deps.audit = stubAuditStore{}
	}
	if deps.service == nil {
		deps.service = stubService{}
	}
	logger, _ := test.NewNullLogger()
	return New(deps.txRunner, cfg, logger, deps.users, deps.businesses, deps.roles, deps.ledger, deps.audit, deps.service, websocket.NewHub(cfg.Origins()))
}

// do sends a request through the full router, authenticated as the test user unless token is "-".
func do(t *testing.T, h *Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token == "" {
		token = testToken(t)
	}
	if token != "-" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func testToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, testUserID, testBusiness, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(dest); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error errorBody `json:"error"`
	}
	decodeJSON(t, rr, &body)
	return body.Error.Code
}

func expectScope(t *testing.T, scope services.Scope) {
	t.Helper()
	if scope.BusinessID != testBusiness || scope.UserID != testUserID {
		t.Fatalf("unexpected scope %+v", scope)
	}
}

func stringPtr(value string) *string {
	return &value
}
