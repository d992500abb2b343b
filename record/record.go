/*
record.go - Generic record store interface

PURPOSE:
  Defines the interface between the domain logic and the backing store.
  The store exposes exactly four operations (Query, Insert, Update, Delete)
  over named tables of schemaless records. Any backend that can answer
  these four calls works: SQLite in production, an in-memory map in tests.

KEY TYPES:
  Record:  A single row as a field->value map
  Filter:  One query condition (equality, prefix, greater-than)
  Query:   Table + filters + ordering + optional limit
  Store:   The four-operation persistence interface

DESIGN:
  The domain packages (sequence, sales) receive a Store explicitly instead
  of importing a shared client handle. This keeps the allocator and the
  reconciler pure functions of (store state, inputs) and lets tests swap in
  the memory implementation without a live database.

VALUE COERCION:
  Different backends hand back different Go types for the same column
  (decimal.Decimal from the memory store, TEXT from SQLite). The Record
  accessors normalize: Decimal() and Time() accept native values and their
  string encodings.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - record/store/memory.go: In-memory for testing and dev mode

SEE ALSO:
  - errors.go: Store error taxonomy
  - sales/service.go: Primary consumer
*/
package record

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORD - One row, schemaless
// =============================================================================

// Record is a single stored row. Field names follow the table schema
// (snake_case, matching the wire format).
type Record map[string]any

// ID returns the record's "id" field as a string, or "".
func (r Record) ID() string { return r.String("id") }

// String returns the named field as a string. Non-string and missing
// values yield "".
func (r Record) String(field string) string {
	if s, ok := r[field].(string); ok {
		return s
	}
	return ""
}

// Decimal returns the named field as a decimal. Accepts decimal.Decimal,
// string, float64, and int64 values; anything else yields zero.
func (r Record) Decimal(field string) decimal.Decimal {
	switch v := r[field].(type) {
	case decimal.Decimal:
		return v
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case int:
		return decimal.NewFromInt(int64(v))
	default:
		return decimal.Zero
	}
}

// Time returns the named field as a time. Accepts time.Time and RFC 3339
// strings (with a date-only fallback); anything else yields the zero time.
func (r Record) Time(field string) time.Time {
	switch v := r[field].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Clone returns a shallow copy. Stores hand out clones so callers cannot
// mutate persisted state through a returned Record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// =============================================================================
// QUERY - Filters, ordering, limit
// =============================================================================

type Op string

const (
	OpEq     Op = "eq"     // field == value
	OpPrefix Op = "prefix" // string field starts with value
	OpGt     Op = "gt"     // field > value (numeric/decimal compare)
)

// Filter is a single query condition.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Filter        { return Filter{Field: field, Op: OpEq, Value: value} }
func HasPrefix(field, prefix string) Filter    { return Filter{Field: field, Op: OpPrefix, Value: prefix} }
func GreaterThan(field string, v any) Filter   { return Filter{Field: field, Op: OpGt, Value: v} }

// Query describes a table scan. Zero Limit means no limit.
type Query struct {
	Table      string
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// =============================================================================
// STORE - The four-operation persistence interface
// =============================================================================

// Store is the complete persistence surface the domain logic may use.
// All operations are context-aware network round trips in production.
type Store interface {
	// Query returns all records matching the filters, ordered and limited
	// as requested.
	Query(ctx context.Context, q Query) ([]Record, error)

	// Insert persists a new record and returns the stored row.
	// Returns a ConflictError when a unique index is violated.
	Insert(ctx context.Context, table string, rec Record) (Record, error)

	// Update applies a partial record to the row with the given id and
	// returns the stored row. Returns ErrNotFound for unknown ids.
	Update(ctx context.Context, table, id string, patch Record) (Record, error)

	// Delete removes the row with the given id.
	// Returns ErrNotFound for unknown ids.
	Delete(ctx context.Context, table, id string) error
}

// Get is a convenience wrapper: fetch a single record by id.
func Get(ctx context.Context, s Store, table, id string) (Record, error) {
	recs, err := s.Query(ctx, Query{
		Table:   table,
		Filters: []Filter{Eq("id", id)},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &NotFoundError{Table: table, ID: id}
	}
	return recs[0], nil
}
