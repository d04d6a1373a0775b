/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Implements the persistence contract using database/sql + go-sqlite3.
  The same SQL shapes transfer to the postgres store with minor dialect
  changes; the two are kept structurally parallel on purpose.

AMOUNT REPRESENTATION:
  Amounts are stored as INTEGER cents, never REAL. The settlement
  aggregates run SUM() in the database, and summing integers is exact
  where summing floats is not. The cents boundary lives in toCents /
  fromCents and nowhere else.

KEY TABLES:
  businesses, users:        tenancy and access-guard principals
  customers:                ON DELETE CASCADE from businesses
  ledger_entries:           ON DELETE CASCADE from customers
  payments,
  payment_ledger_entry:     persisted settlement schema (unused by the
                            balance math today, kept for allocation
                            tracking)
  activity_logs:            append-only audit trail

CONCURRENCY:
  WithTx serializes writers behind a mutex and a sql transaction, so a
  balance read and the entry write it guards commit together. SQLite is
  opened in WAL mode: readers don't block behind the single writer.

USAGE:
  store, err := sqlite.New("./data/ledger.db")   // or ":memory:"
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/shopbook/ledger/ledger"
)

// Store implements ledger.Store over SQLite.
type Store struct {
	db *sql.DB
	q  querier
	mu *sync.Mutex

	inTx bool
}

// querier is satisfied by both *sql.DB and *sql.Tx so every query
// method works inside and outside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, q: db, mu: &sync.Mutex{}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS businesses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		staff_role TEXT,
		business_id INTEGER REFERENCES businesses(id) ON DELETE CASCADE,
		api_token TEXT UNIQUE,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_users_api_token ON users(api_token);

	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		business_id INTEGER NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
		relationship_type TEXT,
		notes TEXT,
		created_by_id INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_customers_business ON customers(business_id);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
		business_id INTEGER NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
		entry_type TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		description TEXT,
		image_url TEXT,
		created_by_id INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Hot path: every balance check scans the customer's entries.
	CREATE INDEX IF NOT EXISTS idx_entries_customer ON ledger_entries(customer_id);
	CREATE INDEX IF NOT EXISTS idx_entries_business ON ledger_entries(business_id);
	CREATE INDEX IF NOT EXISTS idx_entries_customer_type ON ledger_entries(customer_id, entry_type);

	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id INTEGER NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
		business_id INTEGER NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
		amount_cents INTEGER NOT NULL,
		status TEXT NOT NULL,
		paid_at TEXT,
		created_at TEXT NOT NULL,
		created_by_id INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payment_ledger_entry (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		payment_id INTEGER NOT NULL REFERENCES payments(id) ON DELETE CASCADE,
		ledger_entry_id INTEGER NOT NULL REFERENCES ledger_entries(id) ON DELETE CASCADE,
		amount_cents INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		business_id INTEGER,
		action TEXT NOT NULL,
		details TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activity_business ON activity_logs(business_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// AMOUNT ENCODING
// =============================================================================

func toCents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

const timeFormat = time.RFC3339Nano

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn against a transactional view of the store. The mutex
// keeps SQLite's single writer from ever seeing SQLITE_BUSY from our
// own process.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &Store{db: s.db, q: sqlTx, mu: s.mu, inTx: true}
	if err := fn(txStore); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// BUSINESSES
// =============================================================================

func (s *Store) CreateBusiness(ctx context.Context, b ledger.Business) (ledger.Business, error) {
	b.CreatedAt = time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO businesses (name, created_at) VALUES (?, ?)`,
		b.Name, b.CreatedAt.Format(timeFormat))
	if err != nil {
		return ledger.Business{}, fmt.Errorf("insert business: %w", err)
	}
	b.ID, err = res.LastInsertId()
	return b, err
}

func (s *Store) GetBusiness(ctx context.Context, id int64) (*ledger.Business, error) {
	var b ledger.Business
	var createdAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM businesses WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get business %d: %w", id, err)
	}
	b.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return &b, nil
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u ledger.User) (ledger.User, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO users (email, role, staff_role, business_id, api_token, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Email, string(u.Role), string(u.StaffRole), u.BusinessID, u.APIToken, u.IsActive)
	if err != nil {
		return ledger.User{}, fmt.Errorf("insert user: %w", err)
	}
	u.ID, err = res.LastInsertId()
	return u, err
}

func (s *Store) GetUserByToken(ctx context.Context, token string) (*ledger.User, error) {
	if token == "" {
		return nil, nil
	}
	var u ledger.User
	var role, staffRole string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, email, role, COALESCE(staff_role, ''), COALESCE(business_id, 0), api_token, is_active
		 FROM users WHERE api_token = ? AND is_active = 1`, token).
		Scan(&u.ID, &u.Email, &role, &staffRole, &u.BusinessID, &u.APIToken, &u.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by token: %w", err)
	}
	u.Role = ledger.Role(role)
	u.StaffRole = ledger.StaffRole(staffRole)
	return &u, nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) CreateCustomer(ctx context.Context, c ledger.Customer) (ledger.Customer, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO customers (name, email, phone, business_id, relationship_type, notes, created_by_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Email, c.Phone, c.BusinessID, c.RelationshipType, c.Notes, c.CreatedByID)
	if err != nil {
		return ledger.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return c, err
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (*ledger.Customer, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), business_id,
		        COALESCE(relationship_type, ''), COALESCE(notes, ''), created_by_id
		 FROM customers WHERE id = ?`, id)
	var c ledger.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.BusinessID,
		&c.RelationshipType, &c.Notes, &c.CreatedByID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer %d: %w", id, err)
	}
	return &c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, id int64, upd ledger.CustomerUpdate) (*ledger.Customer, error) {
	current, err := s.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, nil
	}

	if upd.Name != nil {
		current.Name = *upd.Name
	}
	if upd.Email != nil {
		current.Email = *upd.Email
	}
	if upd.Phone != nil {
		current.Phone = *upd.Phone
	}
	if upd.RelationshipType != nil {
		current.RelationshipType = *upd.RelationshipType
	}
	if upd.Notes != nil {
		current.Notes = *upd.Notes
	}

	_, err = s.q.ExecContext(ctx,
		`UPDATE customers SET name = ?, email = ?, phone = ?, relationship_type = ?, notes = ?
		 WHERE id = ?`,
		current.Name, current.Email, current.Phone, current.RelationshipType, current.Notes, id)
	if err != nil {
		return nil, fmt.Errorf("update customer %d: %w", id, err)
	}
	return current, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ledger.ErrCustomerNotFound
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context, businessID int64) ([]ledger.Customer, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), business_id,
		        COALESCE(relationship_type, ''), COALESCE(notes, ''), created_by_id
		 FROM customers WHERE business_id = ? ORDER BY id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	out := []ledger.Customer{}
	for rows.Next() {
		var c ledger.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.BusinessID,
			&c.RelationshipType, &c.Notes, &c.CreatedByID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

const entryColumns = `id, customer_id, business_id, entry_type, amount_cents,
	COALESCE(description, ''), COALESCE(image_url, ''), created_by_id, created_at`

func (s *Store) InsertEntry(ctx context.Context, e ledger.LedgerEntry) (ledger.LedgerEntry, error) {
	e.CreatedAt = time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO ledger_entries (customer_id, business_id, entry_type, amount_cents,
		                             description, image_url, created_by_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CustomerID, e.BusinessID, string(e.EntryType), toCents(e.Amount),
		e.Description, e.ImageURL, e.CreatedByID, e.CreatedAt.Format(timeFormat))
	if err != nil {
		return ledger.LedgerEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	e.ID, err = res.LastInsertId()
	e.Amount = fromCents(toCents(e.Amount))
	return e, err
}

func (s *Store) GetEntry(ctx context.Context, id int64) (*ledger.LedgerEntry, error) {
	entries, err := s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s *Store) UpdateEntry(ctx context.Context, id int64, upd ledger.EntryUpdate) (*ledger.LedgerEntry, error) {
	current, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ledger.ErrEntryNotFound
	}

	if upd.EntryType != nil {
		current.EntryType = *upd.EntryType
	}
	if upd.Amount != nil {
		current.Amount = *upd.Amount
	}
	if upd.Description != nil {
		current.Description = *upd.Description
	}
	if upd.ImageURL != nil {
		current.ImageURL = *upd.ImageURL
	}

	_, err = s.q.ExecContext(ctx,
		`UPDATE ledger_entries SET entry_type = ?, amount_cents = ?, description = ?, image_url = ?
		 WHERE id = ?`,
		string(current.EntryType), toCents(current.Amount), current.Description, current.ImageURL, id)
	if err != nil {
		return nil, fmt.Errorf("update ledger entry %d: %w", id, err)
	}
	current.Amount = fromCents(toCents(current.Amount))
	return current, nil
}

func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete ledger entry %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

func (s *Store) EntriesByCustomer(ctx context.Context, customerID int64) ([]ledger.LedgerEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE customer_id = ? ORDER BY id`, customerID)
}

func (s *Store) EntriesByCustomerExcluding(ctx context.Context, customerID, entryID int64) ([]ledger.LedgerEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE customer_id = ? AND id != ? ORDER BY id`,
		customerID, entryID)
}

func (s *Store) EntriesByCustomerAndType(ctx context.Context, customerID int64, t ledger.EntryType) ([]ledger.LedgerEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE customer_id = ? AND entry_type = ? ORDER BY id`,
		customerID, string(t))
}

func (s *Store) EntriesByBusiness(ctx context.Context, businessID int64) ([]ledger.LedgerEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE business_id = ? ORDER BY id`, businessID)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.LedgerEntry, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	out := []ledger.LedgerEntry{}
	for rows.Next() {
		var e ledger.LedgerEntry
		var entryType, createdAt string
		var cents int64
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.BusinessID, &entryType, &cents,
			&e.Description, &e.ImageURL, &e.CreatedByID, &createdAt); err != nil {
			return nil, err
		}
		e.EntryType = ledger.EntryType(entryType)
		e.Amount = fromCents(cents)
		e.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// AGGREGATES
// =============================================================================

// AggregateBalances groups the signed sum in SQL. The inner join drops
// customers without entries, which is what the settlement reports want.
// Summing integer cents keeps the result exact.
func (s *Store) AggregateBalances(ctx context.Context, businessID int64) ([]ledger.CustomerBalance, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT c.id, c.name, COALESCE(c.email, ''), COALESCE(c.phone, ''),
		        COALESCE(SUM(CASE WHEN le.entry_type = 'credit' THEN le.amount_cents
		                          ELSE -le.amount_cents END), 0)
		 FROM customers c
		 JOIN ledger_entries le ON le.customer_id = c.id
		 WHERE c.business_id = ?
		 GROUP BY c.id
		 ORDER BY c.id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("aggregate balances: %w", err)
	}
	defer rows.Close()

	out := []ledger.CustomerBalance{}
	for rows.Next() {
		var cb ledger.CustomerBalance
		var cents int64
		if err := rows.Scan(&cb.CustomerID, &cb.Name, &cb.Email, &cb.Phone, &cents); err != nil {
			return nil, err
		}
		cb.Balance = fromCents(cents)
		out = append(out, cb)
	}
	return out, rows.Err()
}

// =============================================================================
// ACTIVITY
// =============================================================================

func (s *Store) AppendActivity(ctx context.Context, a ledger.ActivityLog) error {
	a.Timestamp = time.Now().UTC()
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO activity_logs (user_id, business_id, action, details, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		a.UserID, a.BusinessID, a.Action, a.Details, a.Timestamp.Format(timeFormat))
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}
