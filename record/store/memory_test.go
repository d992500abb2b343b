/*
memory_test.go - Memory store behavior

The memory store must mirror the SQLite store's observable behavior:
same filter semantics, same error taxonomy, same unique index handling.
*/
package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karland/sales-engine/record"
	"github.com/karland/sales-engine/record/store"
)

func insertRow(t *testing.T, m *store.Memory, table string, rec record.Record) {
	t.Helper()
	_, err := m.Insert(context.Background(), table, rec)
	require.NoError(t, err)
}

// =============================================================================
// FILTERS
// =============================================================================

func TestMemory_PrefixFilter(t *testing.T) {
	// GIVEN: Rows from two different months
	// WHEN: Querying with a month prefix
	// THEN: Only matching rows come back

	m := store.NewMemory()
	ctx := context.Background()
	insertRow(t, m, "sales", record.Record{"id": "a", "contract_number": "CTR-025-01001-1501"})
	insertRow(t, m, "sales", record.Record{"id": "b", "contract_number": "CTR-025-02001-0101"})
	insertRow(t, m, "sales", record.Record{"id": "c", "contract_number": "KAR-2024-0095"})

	recs, err := m.Query(ctx, record.Query{
		Table:   "sales",
		Filters: []record.Filter{record.HasPrefix("contract_number", "CTR-025-01")},
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].ID())
}

func TestMemory_GreaterThan_NumericNotLexical(t *testing.T) {
	// GIVEN: Balances stored as decimal strings, including "9" vs "100"
	// WHEN: Filtering balance > 0
	// THEN: Comparison is numeric; "0.00" does not beat "0" lexically

	m := store.NewMemory()
	ctx := context.Background()
	insertRow(t, m, "sales", record.Record{"id": "zero", "balance_remaining": "0.00"})
	insertRow(t, m, "sales", record.Record{"id": "nine", "balance_remaining": "9"})
	insertRow(t, m, "sales", record.Record{"id": "hundred", "balance_remaining": "100"})

	recs, err := m.Query(ctx, record.Query{
		Table:   "sales",
		Filters: []record.Filter{record.GreaterThan("balance_remaining", decimal.Zero)},
	})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	for _, rec := range recs {
		assert.NotEqual(t, "zero", rec.ID())
	}
}

func TestMemory_OrderAndLimit(t *testing.T) {
	// GIVEN: Three rows with increasing created_at
	// WHEN: Querying newest-first with limit 2
	// THEN: The two newest come back, in order

	m := store.NewMemory()
	ctx := context.Background()
	base := time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		insertRow(t, m, "sales", record.Record{
			"id":         id,
			"created_at": base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
		})
	}

	recs, err := m.Query(ctx, record.Query{
		Table:      "sales",
		OrderBy:    "created_at",
		Descending: true,
		Limit:      2,
	})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "new", recs[0].ID())
	assert.Equal(t, "mid", recs[1].ID())
}

// =============================================================================
// WRITE SEMANTICS
// =============================================================================

func TestMemory_UniqueIndexConflict(t *testing.T) {
	// GIVEN: A unique index on contract_number
	// WHEN: Two rows claim the same number
	// THEN: The second insert fails with a ConflictError naming the field

	m := store.NewMemory()
	m.AddUniqueIndex("sales", "contract_number")
	ctx := context.Background()

	insertRow(t, m, "sales", record.Record{"id": "a", "contract_number": "CTR-025-01001-1501"})

	_, err := m.Insert(ctx, "sales", record.Record{"id": "b", "contract_number": "CTR-025-01001-1501"})
	require.Error(t, err)
	assert.True(t, record.IsConflict(err))
	var conflict *record.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "contract_number", conflict.Field)
}

func TestMemory_UpdateExcludesSelfFromUniqueCheck(t *testing.T) {
	// GIVEN: A row with a unique contract number
	// WHEN: Updating that same row without changing the number
	// THEN: The row does not conflict with itself

	m := store.NewMemory()
	m.AddUniqueIndex("sales", "contract_number")
	ctx := context.Background()

	insertRow(t, m, "sales", record.Record{"id": "a", "contract_number": "CTR-025-01001-1501", "notes": ""})

	updated, err := m.Update(ctx, "sales", "a", record.Record{"notes": "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.String("notes"))
}

func TestMemory_EmptyUniqueValueNotIndexed(t *testing.T) {
	// Payments without a reference number must not conflict with each other.
	m := store.NewMemory()
	m.AddUniqueIndex("payments", "reference_number")
	ctx := context.Background()

	insertRow(t, m, "payments", record.Record{"id": "p1", "reference_number": ""})
	_, err := m.Insert(ctx, "payments", record.Record{"id": "p2", "reference_number": ""})
	assert.NoError(t, err)
}

func TestMemory_NotFound(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	_, err := m.Update(ctx, "sales", "ghost", record.Record{"notes": "x"})
	assert.True(t, record.IsNotFound(err))

	err = m.Delete(ctx, "sales", "ghost")
	assert.True(t, record.IsNotFound(err))
}

func TestMemory_ReturnsClones(t *testing.T) {
	// GIVEN: A stored row
	// WHEN: A caller mutates the Record a query returned
	// THEN: The stored row is unaffected

	m := store.NewMemory()
	ctx := context.Background()
	insertRow(t, m, "sales", record.Record{"id": "a", "notes": "original"})

	recs, err := m.Query(ctx, record.Query{Table: "sales"})
	require.NoError(t, err)
	recs[0]["notes"] = "tampered"

	again, err := record.Get(ctx, m, "sales", "a")
	require.NoError(t, err)
	assert.Equal(t, "original", again.String("notes"))
}
