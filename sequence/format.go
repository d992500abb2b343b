/*
format.go - Identifier formats and sequence parsing

PURPOSE:
  Defines the human-readable identifier formats and the tolerant parsers
  that extract sequence components from existing identifiers.

CANONICAL FORMAT (contracts and transactions):
  TAG-YYY-MMNNN-DDNN   e.g. CTR-025-01001-1501

  TAG  CTR for sales contracts, TRX for payment transactions
  YYY  last three digits of the year (025 for 2025)
  MM   month, two digits
  NNN  sequence within (year, month), three digits
  DD   day of month, two digits
  NN   sequence within the calendar day, two digits

LEGACY FORMAT (parse-only, never generated):
  KAR-YYYY-NNNN        e.g. KAR-2025-0112

  Early contracts used a single yearly sequence. Historical rows keep it;
  ParseLegacyContractNumber makes them queryable. Legacy identifiers never
  match a CTR- month prefix, so they cannot influence allocation.

PARSE TOLERANCE:
  A row whose identifier matches the scan prefix but does not parse
  contributes 0 to the max-sequence computation. One corrupt historical
  row must never inflate the sequence or block new allocations.

SEE ALSO:
  - allocator.go: Uses these to compute the next identifier
*/
package sequence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Identifier tags.
const (
	ContractTag    = "CTR"
	TransactionTag = "TRX"

	legacyContractTag = "KAR"
)

// =============================================================================
// FORMATTING
// =============================================================================

// MonthPrefix returns the coarse period prefix for a tag and date,
// e.g. "CTR-025-01" for January 2025. All identifiers issued within that
// (year, month) start with this prefix.
func MonthPrefix(tag string, at time.Time) string {
	return fmt.Sprintf("%s-%03d-%02d", tag, at.Year()%1000, int(at.Month()))
}

// formatNumber assembles a full identifier from its components.
func formatNumber(tag string, at time.Time, monthSeq, daySeq int) string {
	return fmt.Sprintf("%s-%03d-%02d%03d-%02d%02d",
		tag, at.Year()%1000, int(at.Month()), monthSeq, at.Day(), daySeq)
}

// =============================================================================
// PARSING
// =============================================================================

// monthSequence extracts the NNN component from TAG-YYY-MMNNN-DDNN.
// Malformed identifiers yield 0.
func monthSequence(id string) int {
	parts := strings.Split(id, "-")
	if len(parts) < 3 || len(parts[2]) < 5 {
		return 0
	}
	n, err := strconv.Atoi(parts[2][2:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// daySequence extracts the NN component from TAG-YYY-MMNNN-DDNN, but only
// when the identifier's embedded DD matches the given day. Identifiers
// from other days (and malformed ones) yield 0, so the day counter resets
// at midnight by construction.
func daySequence(id string, day int) int {
	parts := strings.Split(id, "-")
	if len(parts) < 4 || len(parts[3]) < 4 {
		return 0
	}
	d, err := strconv.Atoi(parts[3][:2])
	if err != nil || d != day {
		return 0
	}
	n, err := strconv.Atoi(parts[3][2:])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ParseLegacyContractNumber parses the retired KAR-YYYY-NNNN contract
// format. Returns the year, the yearly sequence, and whether the
// identifier matched. New contract numbers are never issued in this
// format; this exists so historical rows stay queryable.
func ParseLegacyContractNumber(id string) (year, seq int, ok bool) {
	parts := strings.Split(id, "-")
	if len(parts) != 3 || parts[0] != legacyContractTag {
		return 0, 0, false
	}
	if len(parts[1]) != 4 || len(parts[2]) != 4 {
		return 0, 0, false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	seq, err = strconv.Atoi(parts[2])
	if err != nil || seq < 0 {
		return 0, 0, false
	}
	return year, seq, true
}
