/*
Package postgres provides a PostgreSQL-backed implementation of
ledger.Store using pgx.

PURPOSE:
  Production store for deployments that outgrow SQLite. Structurally
  parallel to store/sqlite: same tables, same query shapes, Postgres
  dialect (NUMERIC amounts, RETURNING, $n placeholders).

AMOUNT REPRESENTATION:
  Amounts are NUMERIC(12,2). They cross the wire as text (::text on
  reads, StringFixed(2) on writes) and are parsed with shopspring
  decimal, so no float64 ever touches an amount and SUM() stays exact.

CONCURRENCY:
  WithTx wraps fn in a database transaction; Postgres's own isolation
  does the rest. No process-level mutex is needed here.

USAGE:
  store, err := postgres.New(ctx, os.Getenv("DATABASE_URL"))
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shopbook/ledger/ledger"
)

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx so every query method
// works inside and outside WithTx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements ledger.Store over PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	db   dbtx
	inTx bool
}

// New connects to connString, pings, and migrates the schema.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	store := &Store{pool: pool, db: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS businesses (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL,
		staff_role TEXT,
		business_id BIGINT REFERENCES businesses(id) ON DELETE CASCADE,
		api_token TEXT UNIQUE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_users_api_token ON users(api_token);

	CREATE TABLE IF NOT EXISTS customers (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		business_id BIGINT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
		relationship_type TEXT,
		notes TEXT,
		created_by_id BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_customers_business ON customers(business_id);

	CREATE TABLE IF NOT EXISTS ledger_entries (
		id BIGSERIAL PRIMARY KEY,
		customer_id BIGINT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
		business_id BIGINT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
		entry_type TEXT NOT NULL,
		amount NUMERIC(12,2) NOT NULL,
		description TEXT,
		image_url TEXT,
		created_by_id BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_entries_customer ON ledger_entries(customer_id);
	CREATE INDEX IF NOT EXISTS idx_entries_business ON ledger_entries(business_id);
	CREATE INDEX IF NOT EXISTS idx_entries_customer_type ON ledger_entries(customer_id, entry_type);

	CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		customer_id BIGINT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
		business_id BIGINT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
		amount NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL,
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_by_id BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payment_ledger_entry (
		id BIGSERIAL PRIMARY KEY,
		payment_id BIGINT NOT NULL REFERENCES payments(id) ON DELETE CASCADE,
		ledger_entry_id BIGINT NOT NULL REFERENCES ledger_entries(id) ON DELETE CASCADE,
		amount NUMERIC(12,2) NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity_logs (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT,
		business_id BIGINT,
		action TEXT NOT NULL,
		details TEXT,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_activity_business ON activity_logs(business_id);
	`
	_, err := s.db.Exec(ctx, schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	txStore := &Store{pool: s.pool, db: tx, inTx: true}
	if err := fn(txStore); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// =============================================================================
// BUSINESSES
// =============================================================================

func (s *Store) CreateBusiness(ctx context.Context, b ledger.Business) (ledger.Business, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO businesses (name) VALUES ($1) RETURNING id, created_at`,
		b.Name).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return ledger.Business{}, fmt.Errorf("insert business: %w", err)
	}
	return b, nil
}

func (s *Store) GetBusiness(ctx context.Context, id int64) (*ledger.Business, error) {
	var b ledger.Business
	err := s.db.QueryRow(ctx,
		`SELECT id, name, created_at FROM businesses WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get business %d: %w", id, err)
	}
	return &b, nil
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u ledger.User) (ledger.User, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (email, role, staff_role, business_id, api_token, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		u.Email, string(u.Role), string(u.StaffRole), u.BusinessID, u.APIToken, u.IsActive).
		Scan(&u.ID)
	if err != nil {
		return ledger.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUserByToken(ctx context.Context, token string) (*ledger.User, error) {
	if token == "" {
		return nil, nil
	}
	var u ledger.User
	var role, staffRole string
	err := s.db.QueryRow(ctx,
		`SELECT id, email, role, COALESCE(staff_role, ''), COALESCE(business_id, 0), api_token, is_active
		 FROM users WHERE api_token = $1 AND is_active`, token).
		Scan(&u.ID, &u.Email, &role, &staffRole, &u.BusinessID, &u.APIToken, &u.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
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
	err := s.db.QueryRow(ctx,
		`INSERT INTO customers (name, email, phone, business_id, relationship_type, notes, created_by_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		c.Name, c.Email, c.Phone, c.BusinessID, c.RelationshipType, c.Notes, c.CreatedByID).
		Scan(&c.ID)
	if err != nil {
		return ledger.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return c, nil
}

const customerColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''), business_id,
	COALESCE(relationship_type, ''), COALESCE(notes, ''), created_by_id`

func (s *Store) GetCustomer(ctx context.Context, id int64) (*ledger.Customer, error) {
	var c ledger.Customer
	err := s.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.BusinessID,
			&c.RelationshipType, &c.Notes, &c.CreatedByID)
	if errors.Is(err, pgx.ErrNoRows) {
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

	_, err = s.db.Exec(ctx,
		`UPDATE customers SET name = $1, email = $2, phone = $3, relationship_type = $4, notes = $5
		 WHERE id = $6`,
		current.Name, current.Email, current.Phone, current.RelationshipType, current.Notes, id)
	if err != nil {
		return nil, fmt.Errorf("update customer %d: %w", id, err)
	}
	return current, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrCustomerNotFound
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context, businessID int64) ([]ledger.Customer, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE business_id = $1 ORDER BY id`, businessID)
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

const entryColumns = `id, customer_id, business_id, entry_type, amount::text,
	COALESCE(description, ''), COALESCE(image_url, ''), created_by_id, created_at`

func (s *Store) InsertEntry(ctx context.Context, e ledger.LedgerEntry) (ledger.LedgerEntry, error) {
	err := s.db.QueryRow(ctx,
		`INSERT INTO ledger_entries (customer_id, business_id, entry_type, amount,
		                             description, image_url, created_by_id)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
		 RETURNING id, created_at`,
		e.CustomerID, e.BusinessID, string(e.EntryType), e.Amount.StringFixed(2),
		e.Description, e.ImageURL, e.CreatedByID).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return ledger.LedgerEntry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	e.Amount = e.Amount.Round(2)
	return e, nil
}

func (s *Store) GetEntry(ctx context.Context, id int64) (*ledger.LedgerEntry, error) {
	entries, err := s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)
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

	_, err = s.db.Exec(ctx,
		`UPDATE ledger_entries SET entry_type = $1, amount = $2::numeric, description = $3, image_url = $4
		 WHERE id = $5`,
		string(current.EntryType), current.Amount.StringFixed(2), current.Description, current.ImageURL, id)
	if err != nil {
		return nil, fmt.Errorf("update ledger entry %d: %w", id, err)
	}
	current.Amount = current.Amount.Round(2)
	return current, nil
}

func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM ledger_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete ledger entry %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

func (s *Store) EntriesByCustomer(ctx context.Context, customerID int64) ([]ledger.LedgerEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE customer_id = $1 ORDER BY id`, customerID)
}

func (s *Store) EntriesByCustomerExcluding(ctx context.Context, customerID, entryID int64) ([]ledger.LedgerEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE customer_id = $1 AND id != $2 ORDER BY id`,
		customerID, entryID)
}

func (s *Store) EntriesByCustomerAndType(ctx context.Context, customerID int64, t ledger.EntryType) ([]ledger.LedgerEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE customer_id = $1 AND entry_type = $2 ORDER BY id`,
		customerID, string(t))
}

func (s *Store) EntriesByBusiness(ctx context.Context, businessID int64) ([]ledger.LedgerEntry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE business_id = $1 ORDER BY id`, businessID)
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.LedgerEntry, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	out := []ledger.LedgerEntry{}
	for rows.Next() {
		var e ledger.LedgerEntry
		var entryType, amount string
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.BusinessID, &entryType, &amount,
			&e.Description, &e.ImageURL, &e.CreatedByID, &createdAt); err != nil {
			return nil, err
		}
		e.EntryType = ledger.EntryType(entryType)
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		e.CreatedAt = createdAt
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (s *Store) AggregateBalances(ctx context.Context, businessID int64) ([]ledger.CustomerBalance, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id, c.name, COALESCE(c.email, ''), COALESCE(c.phone, ''),
		        COALESCE(SUM(CASE WHEN le.entry_type = 'credit' THEN le.amount
		                          ELSE -le.amount END), 0)::text
		 FROM customers c
		 JOIN ledger_entries le ON le.customer_id = c.id
		 WHERE c.business_id = $1
		 GROUP BY c.id
		 ORDER BY c.id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("aggregate balances: %w", err)
	}
	defer rows.Close()

	out := []ledger.CustomerBalance{}
	for rows.Next() {
		var cb ledger.CustomerBalance
		var balance string
		if err := rows.Scan(&cb.CustomerID, &cb.Name, &cb.Email, &cb.Phone, &balance); err != nil {
			return nil, err
		}
		cb.Balance, err = decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("parse balance %q: %w", balance, err)
		}
		out = append(out, cb)
	}
	return out, rows.Err()
}

// =============================================================================
// ACTIVITY
// =============================================================================

func (s *Store) AppendActivity(ctx context.Context, a ledger.ActivityLog) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO activity_logs (user_id, business_id, action, details)
		 VALUES ($1, $2, $3, $4)`,
		a.UserID, a.BusinessID, a.Action, a.Details)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}
