/*
Package sqlite provides a SQLite-backed implementation of record.Store.

PURPOSE:
  Implements the generic four-operation record store over SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

SCHEMA:
  sales:      contracts (unique contract_number)
  payments:   transactions against sales (unique reference_number)
  stands:     plot/stand directory (unique stand_number)
  customers:  customer directory
  agencies:   selling-agency directory

UNIQUE INDEXES:
  Generated identifiers are advisory until insert; these indexes are what
  turns a duplicate allocation into a retryable conflict instead of
  corrupt data:
  - idx_sales_contract_number
  - idx_payments_reference_number (partial: non-empty references only)
  - idx_stands_stand_number

VALUE ENCODING:
  Money is TEXT (decimal strings - float columns would reintroduce the
  rounding the domain avoids), dates are RFC 3339 TEXT, area is REAL,
  flags are INTEGER. The domain layer already hands records over in this
  encoding; record.Record accessors coerce on the way out.

DYNAMIC CRUD:
  Insert/Update build their SQL from the record's keys. Field names are
  validated against the migrated schema before they reach the SQL string,
  so filters and patches cannot inject.

WAL MODE:
  Opened with WAL for concurrent readers and better crash recovery,
  foreign keys on.

USAGE:
  st, err := sqlite.New("./data/sales.db")
  if err != nil { ... }
  defer st.Close()
  svc := sales.NewService(st, logger)

SEE ALSO:
  - record/record.go: Interface definition
  - record/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/karland/sales-engine/record"
)

// Store implements record.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		contract_number TEXT NOT NULL,
		stand_id TEXT,
		customer_id TEXT,
		agency_id TEXT,
		total_price TEXT NOT NULL,
		deposit_amount TEXT,
		balance_remaining TEXT,
		payment_plan TEXT,
		sale_date TEXT,
		status TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_contract_number ON sales(contract_number);
	CREATE INDEX IF NOT EXISTS idx_sales_status ON sales(status);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_date TEXT,
		payment_method TEXT,
		reference_number TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_reference_number
		ON payments(reference_number) WHERE reference_number <> '';
	CREATE INDEX IF NOT EXISTS idx_payments_sale_id ON payments(sale_id);

	CREATE TABLE IF NOT EXISTS stands (
		id TEXT PRIMARY KEY,
		stand_number TEXT NOT NULL,
		location TEXT,
		area_sqm REAL,
		price TEXT,
		status TEXT,
		agency_id TEXT,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_stands_stand_number ON stands(stand_number);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		first_name TEXT,
		last_name TEXT,
		id_number TEXT,
		email TEXT,
		phone TEXT,
		address TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agencies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact_person TEXT,
		phone TEXT,
		email TEXT,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// tableColumns whitelists every column per table. Field names in queries
// and patches must appear here before they are interpolated into SQL.
var tableColumns = map[string]map[string]bool{
	"sales": cols("id", "contract_number", "stand_id", "customer_id", "agency_id",
		"total_price", "deposit_amount", "balance_remaining", "payment_plan",
		"sale_date", "status", "notes", "created_at"),
	"payments": cols("id", "sale_id", "amount", "payment_date", "payment_method",
		"reference_number", "notes", "created_at"),
	"stands": cols("id", "stand_number", "location", "area_sqm", "price",
		"status", "agency_id", "created_at"),
	"customers": cols("id", "first_name", "last_name", "id_number", "email",
		"phone", "address", "notes", "created_at"),
	"agencies": cols("id", "name", "contact_person", "phone", "email",
		"is_active", "created_at"),
}

func cols(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func validField(table, field string) error {
	columns, ok := tableColumns[table]
	if !ok {
		return fmt.Errorf("%q: %w", table, record.ErrUnknownTable)
	}
	if !columns[field] {
		return fmt.Errorf("unknown field %s.%s", table, field)
	}
	return nil
}

// =============================================================================
// QUERY
// =============================================================================

func (s *Store) Query(ctx context.Context, q record.Query) ([]record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := tableColumns[q.Table]; !ok {
		return nil, fmt.Errorf("%q: %w", q.Table, record.ErrUnknownTable)
	}

	var sb strings.Builder
	var args []any
	sb.WriteString("SELECT * FROM " + q.Table)

	if len(q.Filters) > 0 {
		var conds []string
		for _, f := range q.Filters {
			if err := validField(q.Table, f.Field); err != nil {
				return nil, err
			}
			switch f.Op {
			case record.OpEq:
				conds = append(conds, f.Field+" = ?")
				args = append(args, bindValue(f.Value))
			case record.OpPrefix:
				prefix, _ := f.Value.(string)
				conds = append(conds, f.Field+" LIKE ? ESCAPE '\\'")
				args = append(args, escapeLike(prefix)+"%")
			case record.OpGt:
				// Numeric cast: money lives in TEXT columns and "0.00"
				// must not compare greater than "0".
				conds = append(conds, "CAST("+f.Field+" AS NUMERIC) > CAST(? AS NUMERIC)")
				args = append(args, bindValue(f.Value))
			default:
				return nil, fmt.Errorf("unsupported filter op %q", f.Op)
			}
		}
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if q.OrderBy != "" {
		if err := validField(q.Table, q.OrderBy); err != nil {
			return nil, err
		}
		sb.WriteString(" ORDER BY " + q.OrderBy)
		if q.Descending {
			sb.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Table, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// =============================================================================
// INSERT / UPDATE / DELETE
// =============================================================================

func (s *Store) Insert(ctx context.Context, table string, rec record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := tableColumns[table]; !ok {
		return nil, fmt.Errorf("%q: %w", table, record.ErrUnknownTable)
	}

	var fields []string
	var placeholders []string
	var args []any
	for field, value := range rec {
		if err := validField(table, field); err != nil {
			return nil, err
		}
		fields = append(fields, field)
		placeholders = append(placeholders, "?")
		args = append(args, bindValue(value))
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("insert into %s: empty record", table)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(fields, ", "), strings.Join(placeholders, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, mapWriteError(table, rec, err)
	}
	return s.getByID(ctx, table, rec.ID())
}

func (s *Store) Update(ctx context.Context, table, id string, patch record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := tableColumns[table]; !ok {
		return nil, fmt.Errorf("%q: %w", table, record.ErrUnknownTable)
	}

	var sets []string
	var args []any
	for field, value := range patch {
		if field == "id" {
			continue
		}
		if err := validField(table, field); err != nil {
			return nil, err
		}
		sets = append(sets, field+" = ?")
		args = append(args, bindValue(value))
	}
	if len(sets) == 0 {
		return s.getByID(ctx, table, id)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, mapWriteError(table, patch, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, &record.NotFoundError{Table: table, ID: id}
	}
	return s.getByID(ctx, table, id)
}

func (s *Store) Delete(ctx context.Context, table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := tableColumns[table]; !ok {
		return fmt.Errorf("%q: %w", table, record.ErrUnknownTable)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &record.NotFoundError{Table: table, ID: id}
	}
	return nil
}

func (s *Store) getByID(ctx context.Context, table, id string) (record.Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("read back %s/%s: %w", table, id, err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &record.NotFoundError{Table: table, ID: id}
	}
	return recs[0], nil
}

// =============================================================================
// HELPERS
// =============================================================================

// bindValue converts record values into driver-friendly types.
func bindValue(v any) any {
	switch t := v.(type) {
	case decimal.Decimal:
		return t.String()
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return v
	}
}

// escapeLike escapes LIKE wildcards so a prefix filter matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func scanRecords(rows *sql.Rows) ([]record.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []record.Record
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		rec := make(record.Record, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				rec[col] = string(v)
			default:
				rec[col] = v
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// mapWriteError converts a SQLite unique-constraint failure into the
// store-level conflict error the retry loops key off.
func mapWriteError(table string, rec record.Record, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
		field := constraintField(serr.Error())
		return &record.ConflictError{Table: table, Field: field, Value: rec.String(field)}
	}
	return fmt.Errorf("write %s: %w", table, err)
}

// constraintField extracts the column name from a message like
// "UNIQUE constraint failed: sales.contract_number".
func constraintField(msg string) string {
	if i := strings.LastIndex(msg, "."); i >= 0 && i+1 < len(msg) {
		return strings.TrimSpace(msg[i+1:])
	}
	return ""
}
