// Package store provides record.Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/karland/sales-engine/record"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	tables  map[string][]record.Record
	uniques map[string][]string // table -> unique fields
}

func NewMemory() *Memory {
	return &Memory{
		tables:  make(map[string][]record.Record),
		uniques: make(map[string][]string),
	}
}

// AddUniqueIndex declares a unique field for a table. Inserts and updates
// that would duplicate an existing value fail with a ConflictError, the
// same behavior the SQLite store gets from its unique indexes.
func (m *Memory) AddUniqueIndex(table, field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uniques[table] = append(m.uniques[table], field)
}

func (m *Memory) Query(_ context.Context, q record.Query) ([]record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []record.Record
	for _, rec := range m.tables[q.Table] {
		if matches(rec, q.Filters) {
			result = append(result, rec.Clone())
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(result, func(i, j int) bool {
			c := compareValues(result[i][q.OrderBy], result[j][q.OrderBy])
			if q.Descending {
				return c > 0
			}
			return c < 0
		})
	}

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func (m *Memory) Insert(_ context.Context, table string, rec record.Record) (record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := rec.Clone()
	if err := m.checkUniqueLocked(table, stored, ""); err != nil {
		return nil, err
	}
	m.tables[table] = append(m.tables[table], stored)
	return stored.Clone(), nil
}

func (m *Memory) Update(_ context.Context, table, id string, patch record.Record) (record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, rec := range m.tables[table] {
		if rec.ID() != id {
			continue
		}
		merged := rec.Clone()
		for k, v := range patch {
			merged[k] = v
		}
		if err := m.checkUniqueLocked(table, merged, id); err != nil {
			return nil, err
		}
		m.tables[table][i] = merged
		return merged.Clone(), nil
	}
	return nil, &record.NotFoundError{Table: table, ID: id}
}

func (m *Memory) Delete(_ context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[table]
	for i, rec := range rows {
		if rec.ID() == id {
			m.tables[table] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return &record.NotFoundError{Table: table, ID: id}
}

// checkUniqueLocked scans declared unique fields. selfID excludes the row
// being updated from its own conflict check.
func (m *Memory) checkUniqueLocked(table string, candidate record.Record, selfID string) error {
	for _, field := range m.uniques[table] {
		value := candidate.String(field)
		if value == "" {
			continue
		}
		for _, existing := range m.tables[table] {
			if selfID != "" && existing.ID() == selfID {
				continue
			}
			if existing.String(field) == value {
				return &record.ConflictError{Table: table, Field: field, Value: value}
			}
		}
	}
	return nil
}

// =============================================================================
// FILTER EVALUATION
// =============================================================================

func matches(rec record.Record, filters []record.Filter) bool {
	for _, f := range filters {
		if !matchOne(rec, f) {
			return false
		}
	}
	return true
}

func matchOne(rec record.Record, f record.Filter) bool {
	switch f.Op {
	case record.OpEq:
		return compareValues(rec[f.Field], f.Value) == 0
	case record.OpPrefix:
		prefix, _ := f.Value.(string)
		return strings.HasPrefix(rec.String(f.Field), prefix)
	case record.OpGt:
		return compareValues(rec[f.Field], f.Value) > 0
	default:
		return false
	}
}

// compareValues orders two field values. Decimals (and their string or
// numeric encodings) compare numerically when either side is numeric;
// times chronologically; everything else by string form.
func compareValues(a, b any) int {
	ad, aNative := asDecimal(a)
	bd, bNative := asDecimal(b)
	switch {
	case aNative && bNative:
		return ad.Cmp(bd)
	case aNative:
		if d, err := decimal.NewFromString(asString(b)); err == nil {
			return ad.Cmp(d)
		}
	case bNative:
		if d, err := decimal.NewFromString(asString(a)); err == nil {
			return d.Cmp(bd)
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			return at.Compare(bt)
		}
	}
	return strings.Compare(asString(a), asString(b))
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	}
	return decimal.Zero, false
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case decimal.Decimal:
		return t.String()
	case nil:
		return ""
	default:
		return ""
	}
}
