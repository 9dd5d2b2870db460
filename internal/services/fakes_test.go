package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"clearing/internal/models"
	"clearing/internal/store"
	"clearing/internal/tenant"
	"clearing/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// memDB is a small in-memory stand-in for the clearing tables.
type memDB struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	seq      int
	accounts map[string]models.ClearingAccount
	entries  map[string]models.ClearingEntry
	recs     map[string]models.Reconciliation
	matches  []models.ReconciliationMatch
	ledger   map[string]models.LedgerAccount
	audits   []memAuditRow
}

type memAuditRow struct {
	BusinessID string
	ActorID    string
	Action     string
	EntityID   string
}

func newMemDB() *memDB {
	return &memDB{
		accounts: map[string]models.ClearingAccount{},
		entries:  map[string]models.ClearingEntry{},
		recs:     map[string]models.Reconciliation{},
		ledger:   map[string]models.LedgerAccount{},
	}
}

func (m *memDB) tick() time.Time {
	m.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Second)
}

type memSnapshot struct {
	seq      int
	accounts map[string]models.ClearingAccount
	entries  map[string]models.ClearingEntry
	recs     map[string]models.Reconciliation
	matches  []models.ReconciliationMatch
	audits   []memAuditRow
}

func (m *memDB) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := memSnapshot{
		seq:      m.seq,
		accounts: make(map[string]models.ClearingAccount, len(m.accounts)),
		entries:  make(map[string]models.ClearingEntry, len(m.entries)),
		recs:     make(map[string]models.Reconciliation, len(m.recs)),
		matches:  append([]models.ReconciliationMatch(nil), m.matches...),
		audits:   append([]memAuditRow(nil), m.audits...),
	}
	for k, v := range m.accounts {
		snap.accounts[k] = v
	}
	for k, v := range m.entries {
		snap.entries[k] = v
	}
	for k, v := range m.recs {
		snap.recs[k] = v
	}
	return snap
}

func (m *memDB) restore(snap memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq = snap.seq
	m.accounts = snap.accounts
	m.entries = snap.entries
	m.recs = snap.recs
	m.matches = snap.matches
	m.audits = snap.audits
}

// memTxRunner runs transactions one at a time and rolls the maps back on error.
type memTxRunner struct {
	db *memDB
}

func (r memTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	r.db.txMu.Lock()
	defer r.db.txMu.Unlock()
	snap := r.db.snapshot()
	if err := fn(nil); err != nil {
		r.db.restore(snap)
		return err
	}
	return nil
}

type memAccounts struct{ db *memDB }

func (s memAccounts) Create(_ context.Context, _ store.Execer, account models.ClearingAccount) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	account.CreatedAt = s.db.tick()
	account.UpdatedAt = account.CreatedAt
	s.db.accounts[account.ID] = account
	return nil
}

func (s memAccounts) Update(_ context.Context, _ store.Execer, account models.ClearingAccount) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	current, ok := s.db.accounts[account.ID]
	if !ok || current.BusinessID != account.BusinessID {
		return 0, nil
	}
	account.Balance = current.Balance
	account.CreatedAt = current.CreatedAt
	account.UpdatedAt = s.db.tick()
	s.db.accounts[account.ID] = account
	return 1, nil
}

func (s memAccounts) Upsert(_ context.Context, _ store.Getter, account models.ClearingAccount) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for id, current := range s.db.accounts {
		if current.BusinessID == account.BusinessID && current.Code == account.Code {
			current.Name = account.Name
			current.NameEn = account.NameEn
			current.Type = account.Type
			if account.AccountID != nil {
				current.AccountID = account.AccountID
			}
			current.SystemAccount = account.SystemAccount
			current.UpdatedAt = s.db.tick()
			s.db.accounts[id] = current
			return false, nil
		}
	}
	account.Balance = decimal.Zero
	account.IsActive = true
	account.CreatedAt = s.db.tick()
	s.db.accounts[account.ID] = account
	return true, nil
}

func (s memAccounts) GetByID(_ context.Context, businessID, accountID string) (models.ClearingAccount, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	account, ok := s.db.accounts[accountID]
	if !ok || account.BusinessID != businessID {
		return models.ClearingAccount{}, sql.ErrNoRows
	}
	return account, nil
}

func (s memAccounts) CodeExists(_ context.Context, businessID, code, excludeID string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, account := range s.db.accounts {
		if account.BusinessID == businessID && account.Code == code && account.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s memAccounts) sortedByCode(keep func(models.ClearingAccount) bool) []models.ClearingAccount {
	var rows []models.ClearingAccount
	for _, account := range s.db.accounts {
		if keep(account) {
			rows = append(rows, account)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	return rows
}

func (s memAccounts) List(_ context.Context, businessID string, includeInactive bool) ([]models.ClearingAccount, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.sortedByCode(func(a models.ClearingAccount) bool {
		return a.BusinessID == businessID && (includeInactive || a.IsActive)
	}), nil
}

func (s memAccounts) ListByIDs(_ context.Context, businessID string, accountIDs []string) ([]models.ClearingAccount, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	wanted := toSet(accountIDs)
	return s.sortedByCode(func(a models.ClearingAccount) bool {
		_, ok := wanted[a.ID]
		return ok && a.BusinessID == businessID
	}), nil
}

func (s memAccounts) LockByIDs(_ context.Context, _ store.Selecter, accountIDs []string) ([]models.ClearingAccount, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var rows []models.ClearingAccount
	for _, id := range accountIDs {
		if account, ok := s.db.accounts[id]; ok {
			rows = append(rows, account)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (s memAccounts) AdjustBalance(_ context.Context, _ store.Getter, accountID string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	account, ok := s.db.accounts[accountID]
	if !ok {
		return decimal.Zero, sql.ErrNoRows
	}
	account.Balance = account.Balance.Add(delta)
	s.db.accounts[accountID] = account
	return account.Balance, nil
}

func (s memAccounts) Statistics(_ context.Context, businessID string) ([]store.AccountStatistics, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	accounts := s.sortedByCode(func(a models.ClearingAccount) bool { return a.BusinessID == businessID && a.IsActive })
	rows := make([]store.AccountStatistics, 0, len(accounts))
	for _, account := range accounts {
		row := store.AccountStatistics{
			ID: account.ID, Code: account.Code, Name: account.Name, NameEn: account.NameEn,
			Type: account.Type, Balance: account.Balance, PendingAmount: decimal.Zero,
		}
		for _, entry := range s.db.entries {
			if entry.ClearingAccountID == account.ID && entry.Status == models.EntryStatusPending {
				row.PendingCount++
				row.PendingAmount = row.PendingAmount.Add(entry.Amount)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s memAccounts) OwnerOf(_ context.Context, accountIDs []string) (map[string]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	owners := map[string]string{}
	for _, id := range accountIDs {
		if account, ok := s.db.accounts[id]; ok {
			owners[id] = account.BusinessID
		}
	}
	return owners, nil
}

func (s memAccounts) IDsByBusiness(_ context.Context, businessID string, activeOnly bool) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	accounts := s.sortedByCode(func(a models.ClearingAccount) bool {
		return a.BusinessID == businessID && (!activeOnly || a.IsActive)
	})
	ids := make([]string, 0, len(accounts))
	for _, account := range accounts {
		ids = append(ids, account.ID)
	}
	return ids, nil
}

type memEntries struct {
	db            *memDB
	markMatchedFn func(ids []string) (int64, bool)
}

func (s memEntries) Create(_ context.Context, _ store.Execer, entry models.ClearingEntry) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	entry.CreatedAt = s.db.tick()
	entry.UpdatedAt = entry.CreatedAt
	s.db.entries[entry.ID] = entry
	return nil
}

func (s memEntries) GetByID(_ context.Context, entryID string) (models.ClearingEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	entry, ok := s.db.entries[entryID]
	if !ok {
		return models.ClearingEntry{}, sql.ErrNoRows
	}
	return entry, nil
}

func (s memEntries) GetForUpdate(ctx context.Context, _ store.Getter, entryID string) (models.ClearingEntry, error) {
	return s.GetByID(ctx, entryID)
}

func (s memEntries) UpdatePending(_ context.Context, _ store.Execer, entry models.ClearingEntry) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	current, ok := s.db.entries[entry.ID]
	if !ok || current.Status != models.EntryStatusPending {
		return 0, nil
	}
	entry.Status = current.Status
	entry.CreatedAt = current.CreatedAt
	entry.UpdatedAt = s.db.tick()
	s.db.entries[entry.ID] = entry
	return 1, nil
}

func (s memEntries) DeletePending(_ context.Context, _ store.Execer, entryID string) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	current, ok := s.db.entries[entryID]
	if !ok || current.Status != models.EntryStatusPending {
		return 0, nil
	}
	delete(s.db.entries, entryID)
	return 1, nil
}

func (s memEntries) LockPending(_ context.Context, _ store.Selecter, entryIDs []string) ([]models.ClearingEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var rows []models.ClearingEntry
	for id := range toSet(entryIDs) {
		if entry, ok := s.db.entries[id]; ok && entry.Status == models.EntryStatusPending {
			rows = append(rows, entry)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows, nil
}

func (s memEntries) MarkMatched(_ context.Context, _ store.Execer, entryIDs []string, reconciliationID string, matchedAt time.Time) (int64, error) {
	if s.markMatchedFn != nil {
		if rows, override := s.markMatchedFn(entryIDs); override {
			return rows, nil
		}
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var rows int64
	for _, id := range entryIDs {
		entry, ok := s.db.entries[id]
		if !ok || entry.Status != models.EntryStatusPending {
			continue
		}
		at := matchedAt
		recID := reconciliationID
		entry.Status = models.EntryStatusMatched
		entry.MatchedAt = &at
		entry.ReconciliationID = &recID
		s.db.entries[id] = entry
		rows++
	}
	return rows, nil
}

func (s memEntries) sorted(keep func(models.ClearingEntry) bool) []models.ClearingEntry {
	var rows []models.ClearingEntry
	for _, entry := range s.db.entries {
		if keep(entry) {
			rows = append(rows, entry)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].EntryDate.Equal(rows[j].EntryDate) {
			return rows[i].EntryDate.Before(rows[j].EntryDate)
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	return rows
}

func (s memEntries) List(_ context.Context, filter store.EntryFilter) ([]models.ClearingEntry, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	accounts := toSet(filter.AccountIDs)
	rows := s.sorted(func(e models.ClearingEntry) bool {
		if _, ok := accounts[e.ClearingAccountID]; !ok {
			return false
		}
		if filter.Status != "" && e.Status != filter.Status {
			return false
		}
		if filter.From != nil && e.EntryDate.Before(*filter.From) {
			return false
		}
		if filter.To != nil && e.EntryDate.After(*filter.To) {
			return false
		}
		return true
	})
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	total := len(rows)
	if filter.Offset >= total {
		return []models.ClearingEntry{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return rows[filter.Offset:end], total, nil
}

func (s memEntries) ListPending(_ context.Context, accountIDs []string) ([]models.ClearingEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	accounts := toSet(accountIDs)
	return s.sorted(func(e models.ClearingEntry) bool {
		_, ok := accounts[e.ClearingAccountID]
		return ok && e.Status == models.EntryStatusPending
	}), nil
}

func (s memEntries) ListByReconciliation(_ context.Context, reconciliationID string) ([]models.ClearingEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.sorted(func(e models.ClearingEntry) bool {
		return e.ReconciliationID != nil && *e.ReconciliationID == reconciliationID
	}), nil
}

func (s memEntries) PendingSummary(_ context.Context, accountID string) (store.PendingSummary, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	summary := store.PendingSummary{Sum: decimal.Zero}
	for _, entry := range s.db.entries {
		if entry.ClearingAccountID == accountID && entry.Status == models.EntryStatusPending {
			summary.Count++
			summary.Sum = summary.Sum.Add(entry.Amount)
		}
	}
	return summary, nil
}

type memReconciliations struct{ db *memDB }

func (s memReconciliations) Create(_ context.Context, _ store.Execer, rec models.Reconciliation) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rec.CreatedAt = s.db.tick()
	s.db.recs[rec.ID] = rec
	return nil
}

func (s memReconciliations) CreateMatch(_ context.Context, _ store.Execer, match models.ReconciliationMatch) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	match.CreatedAt = s.db.tick()
	s.db.matches = append(s.db.matches, match)
	return nil
}

func (s memReconciliations) GetByID(_ context.Context, businessID, reconciliationID string) (models.Reconciliation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rec, ok := s.db.recs[reconciliationID]
	if !ok || rec.BusinessID != businessID {
		return models.Reconciliation{}, sql.ErrNoRows
	}
	return rec, nil
}

func (s memReconciliations) ListMatches(_ context.Context, reconciliationID string) ([]models.ReconciliationMatch, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var rows []models.ReconciliationMatch
	for _, match := range s.db.matches {
		if match.ReconciliationID == reconciliationID {
			rows = append(rows, match)
		}
	}
	return rows, nil
}

func (s memReconciliations) List(_ context.Context, businessID string, limit, offset int) ([]models.Reconciliation, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var rows []models.Reconciliation
	for _, rec := range s.db.recs {
		if rec.BusinessID == businessID {
			rows = append(rows, rec)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	if offset >= len(rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], nil
}

type memLedger struct{ db *memDB }

func (s memLedger) Exists(_ context.Context, businessID, accountID string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	account, ok := s.db.ledger[accountID]
	return ok && account.BusinessID == businessID, nil
}

func (s memLedger) FindBySystemAccount(_ context.Context, _ store.Getter, businessID, tag string) (*string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var match *models.LedgerAccount
	for _, account := range s.db.ledger {
		if account.BusinessID != businessID || account.SystemAccount == nil || *account.SystemAccount != tag {
			continue
		}
		if match == nil || account.Code < match.Code {
			match = &account
		}
	}
	if match == nil {
		return nil, nil
	}
	id := match.ID
	return &id, nil
}

type memAudit struct{ db *memDB }

func (s memAudit) Log(_ context.Context, _ store.Execer, businessID, actorID, action, _, entityID, _ string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	s.db.audits = append(s.db.audits, memAuditRow{BusinessID: businessID, ActorID: actorID, Action: action, EntityID: entityID})
	return nil
}

type recordingHub struct {
	mu      sync.Mutex
	updates map[string][]websocket.BalanceUpdate
}

func (h *recordingHub) BroadcastBalance(businessID string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.updates == nil {
		h.updates = map[string][]websocket.BalanceUpdate{}
	}
	h.updates[businessID] = append(h.updates[businessID], update)
}

type fixture struct {
	db      *memDB
	entries *memEntries
	hub     *recordingHub
	service *ClearingService
}

var (
	bizA   = Scope{BusinessID: "biz-a", UserID: "user-a"}
	bizB   = Scope{BusinessID: "biz-b", UserID: "user-b"}
	testAt = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := newMemDB()
	entries := &memEntries{db: mem}
	accounts := memAccounts{db: mem}
	hub := &recordingHub{}
	service := NewClearingService(
		memTxRunner{db: mem},
		accounts,
		entries,
		memReconciliations{db: mem},
		memLedger{db: mem},
		memAudit{db: mem},
		tenant.NewGuard(accounts),
		nil,
		hub,
	)
	service.now = func() time.Time { return testAt }
	return &fixture{db: mem, entries: entries, hub: hub, service: service}
}

func (f *fixture) addAccount(t *testing.T, scope Scope, id, code, accountType string) {
	t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.accounts[id] = models.ClearingAccount{
		ID: id, BusinessID: scope.BusinessID, Code: code, Name: code, Type: accountType,
		Balance: decimal.Zero, IsActive: true, CreatedAt: f.db.tick(),
	}
}

func (f *fixture) addEntry(t *testing.T, scope Scope, accountID, amount string, day int) models.ClearingEntry {
	t.Helper()
	entry, err := f.service.CreateEntry(context.Background(), scope, CreateEntryInput{
		ClearingAccountID: accountID,
		EntryDate:         time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
		Amount:            decimal.RequireFromString(amount),
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return entry
}

func (f *fixture) account(id string) models.ClearingAccount {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.accounts[id]
}

func (f *fixture) entry(id string) models.ClearingEntry {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.entries[id]
}

func (f *fixture) counts() (recs, matches int) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return len(f.db.recs), len(f.db.matches)
}

// assertBalancesConsistent checks that every stored balance equals its pending entry sum.
func (f *fixture) assertBalancesConsistent(t *testing.T) {
	t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for id, account := range f.db.accounts {
		sum := decimal.Zero
		for _, entry := range f.db.entries {
			if entry.ClearingAccountID == id && entry.Status == models.EntryStatusPending {
				sum = sum.Add(entry.Amount)
			}
		}
		if !account.Balance.Equal(sum) {
			t.Fatalf("account %s balance %s != pending sum %s", id, account.Balance, sum)
		}
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func ids(entries ...models.ClearingEntry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.ID)
	}
	return out
}
