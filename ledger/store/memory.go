// Package store provides an in-memory ledger.Store for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopbook/ledger/ledger"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// memoryData is the mutable state shared between the base store and
// its transaction views.
type memoryData struct {
	businesses map[int64]ledger.Business
	users      map[int64]ledger.User
	customers  map[int64]ledger.Customer
	entries    map[int64]ledger.LedgerEntry
	activity   []ledger.ActivityLog

	nextBusinessID int64
	nextUserID     int64
	nextCustomerID int64
	nextEntryID    int64
	nextActivityID int64
}

// Memory implements ledger.Store with maps behind a single mutex.
// WithTx serializes callers under the write lock, which gives the same
// validate-then-write atomicity the SQL stores get from transactions.
//
// The tx view returned inside WithTx is a separate value: inTx is set
// only on the view, never on the shared base store, so concurrent
// callers outside the transaction still contend on the mutex. Same
// structure as the sqlite store's tx-scoped Store.
type Memory struct {
	mu   *sync.RWMutex
	data *memoryData
	inTx bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		mu: &sync.RWMutex{},
		data: &memoryData{
			businesses: make(map[int64]ledger.Business),
			users:      make(map[int64]ledger.User),
			customers:  make(map[int64]ledger.Customer),
			entries:    make(map[int64]ledger.LedgerEntry),
		},
	}
}

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) rlock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.RLock()
	return m.mu.RUnlock
}

// WithTx runs fn against a tx view while holding the write lock, so a
// validate-then-write sequence sees no interleaved writers. There is no
// rollback: tests that exercise failure paths fail before any write.
// Good enough for a test double; the SQL stores do the real thing.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&Memory{mu: m.mu, data: m.data, inTx: true})
}

// =============================================================================
// BUSINESSES & USERS
// =============================================================================

func (m *Memory) CreateBusiness(_ context.Context, b ledger.Business) (ledger.Business, error) {
	defer m.lock()()
	m.data.nextBusinessID++
	b.ID = m.data.nextBusinessID
	b.CreatedAt = time.Now().UTC()
	m.data.businesses[b.ID] = b
	return b, nil
}

func (m *Memory) GetBusiness(_ context.Context, id int64) (*ledger.Business, error) {
	defer m.rlock()()
	b, ok := m.data.businesses[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *Memory) CreateUser(_ context.Context, u ledger.User) (ledger.User, error) {
	defer m.lock()()
	m.data.nextUserID++
	u.ID = m.data.nextUserID
	m.data.users[u.ID] = u
	return u, nil
}

func (m *Memory) GetUserByToken(_ context.Context, token string) (*ledger.User, error) {
	defer m.rlock()()
	if token == "" {
		return nil, nil
	}
	for _, u := range m.data.users {
		if u.APIToken == token && u.IsActive {
			copied := u
			return &copied, nil
		}
	}
	return nil, nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Memory) CreateCustomer(_ context.Context, c ledger.Customer) (ledger.Customer, error) {
	defer m.lock()()
	m.data.nextCustomerID++
	c.ID = m.data.nextCustomerID
	m.data.customers[c.ID] = c
	return c, nil
}

func (m *Memory) GetCustomer(_ context.Context, id int64) (*ledger.Customer, error) {
	defer m.rlock()()
	c, ok := m.data.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) UpdateCustomer(_ context.Context, id int64, upd ledger.CustomerUpdate) (*ledger.Customer, error) {
	defer m.lock()()
	c, ok := m.data.customers[id]
	if !ok {
		return nil, nil
	}
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.Email != nil {
		c.Email = *upd.Email
	}
	if upd.Phone != nil {
		c.Phone = *upd.Phone
	}
	if upd.RelationshipType != nil {
		c.RelationshipType = *upd.RelationshipType
	}
	if upd.Notes != nil {
		c.Notes = *upd.Notes
	}
	m.data.customers[id] = c
	return &c, nil
}

func (m *Memory) DeleteCustomer(_ context.Context, id int64) error {
	defer m.lock()()
	if _, ok := m.data.customers[id]; !ok {
		return ledger.ErrCustomerNotFound
	}
	delete(m.data.customers, id)
	// Cascade, as the SQL schema does via foreign keys.
	for entryID, e := range m.data.entries {
		if e.CustomerID == id {
			delete(m.data.entries, entryID)
		}
	}
	return nil
}

func (m *Memory) ListCustomers(_ context.Context, businessID int64) ([]ledger.Customer, error) {
	defer m.rlock()()
	out := []ledger.Customer{}
	for _, c := range m.data.customers {
		if c.BusinessID == businessID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

func (m *Memory) InsertEntry(_ context.Context, e ledger.LedgerEntry) (ledger.LedgerEntry, error) {
	defer m.lock()()
	m.data.nextEntryID++
	e.ID = m.data.nextEntryID
	e.CreatedAt = time.Now().UTC()
	m.data.entries[e.ID] = e
	return e, nil
}

func (m *Memory) GetEntry(_ context.Context, id int64) (*ledger.LedgerEntry, error) {
	defer m.rlock()()
	e, ok := m.data.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) UpdateEntry(_ context.Context, id int64, upd ledger.EntryUpdate) (*ledger.LedgerEntry, error) {
	defer m.lock()()
	e, ok := m.data.entries[id]
	if !ok {
		return nil, ledger.ErrEntryNotFound
	}
	if upd.EntryType != nil {
		e.EntryType = *upd.EntryType
	}
	if upd.Amount != nil {
		e.Amount = *upd.Amount
	}
	if upd.Description != nil {
		e.Description = *upd.Description
	}
	if upd.ImageURL != nil {
		e.ImageURL = *upd.ImageURL
	}
	m.data.entries[id] = e
	return &e, nil
}

func (m *Memory) DeleteEntry(_ context.Context, id int64) error {
	defer m.lock()()
	if _, ok := m.data.entries[id]; !ok {
		return ledger.ErrEntryNotFound
	}
	delete(m.data.entries, id)
	return nil
}

func (m *Memory) EntriesByCustomer(_ context.Context, customerID int64) ([]ledger.LedgerEntry, error) {
	defer m.rlock()()
	return m.entriesWhere(func(e ledger.LedgerEntry) bool {
		return e.CustomerID == customerID
	}), nil
}

func (m *Memory) EntriesByCustomerExcluding(_ context.Context, customerID, entryID int64) ([]ledger.LedgerEntry, error) {
	defer m.rlock()()
	return m.entriesWhere(func(e ledger.LedgerEntry) bool {
		return e.CustomerID == customerID && e.ID != entryID
	}), nil
}

func (m *Memory) EntriesByCustomerAndType(_ context.Context, customerID int64, t ledger.EntryType) ([]ledger.LedgerEntry, error) {
	defer m.rlock()()
	return m.entriesWhere(func(e ledger.LedgerEntry) bool {
		return e.CustomerID == customerID && e.EntryType == t
	}), nil
}

func (m *Memory) EntriesByBusiness(_ context.Context, businessID int64) ([]ledger.LedgerEntry, error) {
	defer m.rlock()()
	return m.entriesWhere(func(e ledger.LedgerEntry) bool {
		return e.BusinessID == businessID
	}), nil
}

func (m *Memory) entriesWhere(keep func(ledger.LedgerEntry) bool) []ledger.LedgerEntry {
	out := []ledger.LedgerEntry{}
	for _, e := range m.data.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// =============================================================================
// AGGREGATES
// =============================================================================

// AggregateBalances mirrors the SQL stores' grouped sum with an inner
// join: only customers with at least one entry produce a row.
func (m *Memory) AggregateBalances(_ context.Context, businessID int64) ([]ledger.CustomerBalance, error) {
	defer m.rlock()()

	sums := map[int64]decimal.Decimal{}
	for _, e := range m.data.entries {
		c, ok := m.data.customers[e.CustomerID]
		if !ok || c.BusinessID != businessID {
			continue
		}
		sums[e.CustomerID] = sums[e.CustomerID].Add(e.Signed())
	}

	out := []ledger.CustomerBalance{}
	for customerID, balance := range sums {
		c := m.data.customers[customerID]
		out = append(out, ledger.CustomerBalance{
			CustomerID: c.ID,
			Name:       c.Name,
			Email:      c.Email,
			Phone:      c.Phone,
			Balance:    balance,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	return out, nil
}

// =============================================================================
// ACTIVITY
// =============================================================================

func (m *Memory) AppendActivity(_ context.Context, a ledger.ActivityLog) error {
	defer m.lock()()
	m.data.nextActivityID++
	a.ID = m.data.nextActivityID
	a.Timestamp = time.Now().UTC()
	m.data.activity = append(m.data.activity, a)
	return nil
}

// Activity returns the recorded activity log, oldest first. Test hook.
func (m *Memory) Activity() []ledger.ActivityLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.ActivityLog, len(m.data.activity))
	copy(out, m.data.activity)
	return out
}
