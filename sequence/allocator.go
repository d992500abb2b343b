/*
allocator.go - Sequence allocation for contract and transaction numbers

PURPOSE:
  Computes the next human-readable identifier for a new sale (contract
  number) or payment (transaction number) without a dedicated counter
  table. The highest previously issued sequence is recomputed on every
  allocation by scanning existing identifiers for the current period's
  prefix.

ALGORITHM:
  1. Build the month prefix for the tag and current date (CTR-025-01).
  2. Query the store for identifiers starting with that prefix. The scan
     is bounded by the prefix filter itself, never by a row count, so
     correctness does not depend on record volume.
  3. Track the maximum month sequence and, independently, the maximum day
     sequence among identifiers whose embedded day is today.
  4. Next = max + 1 for both components, zero-padded.

CONCURRENCY:
  Allocation is advisory. Two concurrent requests can compute the same
  number; the store's unique index rejects the second insert and the
  caller reallocates (see sales.Service). The allocator itself holds no
  state between calls.

FAILURE:
  A store read failure aborts allocation with no fallback value. The
  create flow must surface the error; inventing an identifier risks a
  collision with a row the scan could not see.

SEE ALSO:
  - format.go: Identifier formats and parsers
  - sales/service.go: Retry-on-conflict insert loop
*/
package sequence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/karland/sales-engine/record"
)

// Allocator computes period-scoped identifiers against a record store.
type Allocator struct {
	store record.Store

	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// New creates an allocator over the given store.
func New(store record.Store) *Allocator {
	return &Allocator{store: store}
}

func (a *Allocator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// ContractNumber returns the next contract number for today,
// e.g. CTR-025-01003-1502.
func (a *Allocator) ContractNumber(ctx context.Context) (string, error) {
	return a.next(ctx, "sales", "contract_number", ContractTag)
}

// TransactionNumber returns the next payment transaction number for
// today, e.g. TRX-025-01003-1502.
func (a *Allocator) TransactionNumber(ctx context.Context) (string, error) {
	return a.next(ctx, "payments", "reference_number", TransactionTag)
}

func (a *Allocator) next(ctx context.Context, table, field, tag string) (string, error) {
	at := a.now()
	prefix := MonthPrefix(tag, at)

	recs, err := a.store.Query(ctx, record.Query{
		Table:      table,
		Filters:    []record.Filter{record.HasPrefix(field, prefix)},
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		return "", fmt.Errorf("scan existing %s identifiers: %w", tag, err)
	}

	maxMonthSeq, maxDaySeq := 0, 0
	for _, rec := range recs {
		id := rec.String(field)
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if n := monthSequence(id); n > maxMonthSeq {
			maxMonthSeq = n
		}
		if n := daySequence(id, at.Day()); n > maxDaySeq {
			maxDaySeq = n
		}
	}

	return formatNumber(tag, at, maxMonthSeq+1, maxDaySeq+1), nil
}
