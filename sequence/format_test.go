/*
format_test.go - Identifier format and parser tests
*/
package sequence

import (
	"testing"
	"time"
)

func TestMonthPrefix(t *testing.T) {
	// GIVEN: A date in January 2025
	// WHEN: Building the contract month prefix
	// THEN: Year is reduced to three digits, month zero-padded

	jan := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	if got := MonthPrefix(ContractTag, jan); got != "CTR-025-01" {
		t.Fatalf("expected CTR-025-01, got %s", got)
	}

	dec := time.Date(2031, time.December, 1, 0, 0, 0, 0, time.UTC)
	if got := MonthPrefix(TransactionTag, dec); got != "TRX-031-12" {
		t.Fatalf("expected TRX-031-12, got %s", got)
	}
}

func TestFormatNumber_Components(t *testing.T) {
	// GIVEN: Month sequence 3, day sequence 2 on 2025-01-15
	// WHEN: Formatting a contract number
	// THEN: All components are zero-padded in place

	at := time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC)
	got := formatNumber(ContractTag, at, 3, 2)
	if got != "CTR-025-01003-1502" {
		t.Fatalf("expected CTR-025-01003-1502, got %s", got)
	}
}

func TestMonthSequence(t *testing.T) {
	cases := []struct {
		id   string
		want int
	}{
		{"CTR-025-01003-1502", 3},
		{"CTR-025-01127-1501", 127},
		{"TRX-025-12001-0101", 1},
		{"CTR-025-01003", 3}, // day part missing still parses the month part
		{"CTR-025", 0},       // truncated
		{"CTR-025-01", 0},    // month part too short
		{"CTR-025-01xyz-1501", 0},
		{"KAR-2024-0095", 0}, // legacy format never contributes
		{"", 0},
	}
	for _, c := range cases {
		if got := monthSequence(c.id); got != c.want {
			t.Errorf("monthSequence(%q) = %d, want %d", c.id, got, c.want)
		}
	}
}

func TestDaySequence(t *testing.T) {
	// The day sequence only counts identifiers whose embedded day matches.
	cases := []struct {
		id   string
		day  int
		want int
	}{
		{"CTR-025-01003-1502", 15, 2},
		{"CTR-025-01003-1502", 16, 0}, // different day
		{"CTR-025-01012-0209", 2, 9},
		{"CTR-025-01003", 15, 0}, // no day part
		{"CTR-025-01003-15", 15, 0},
		{"CTR-025-01003-xy02", 15, 0},
	}
	for _, c := range cases {
		if got := daySequence(c.id, c.day); got != c.want {
			t.Errorf("daySequence(%q, %d) = %d, want %d", c.id, c.day, got, c.want)
		}
	}
}

func TestParseLegacyContractNumber(t *testing.T) {
	// GIVEN: A historical KAR-YYYY-NNNN contract number
	// WHEN: Parsing it
	// THEN: Year and yearly sequence come back

	year, seq, ok := ParseLegacyContractNumber("KAR-2024-0095")
	if !ok {
		t.Fatal("expected KAR-2024-0095 to parse")
	}
	if year != 2024 || seq != 95 {
		t.Fatalf("expected (2024, 95), got (%d, %d)", year, seq)
	}
}

func TestParseLegacyContractNumber_Rejects(t *testing.T) {
	bad := []string{
		"CTR-025-01003-1502", // canonical format is not legacy
		"KAR-2024",
		"KAR-2024-95",     // sequence must be four digits
		"KAR-24-0095",     // year must be four digits
		"KAR-2024-0095-1", // too many parts
		"kar-2024-0095",   // tag is case sensitive
		"",
	}
	for _, id := range bad {
		if _, _, ok := ParseLegacyContractNumber(id); ok {
			t.Errorf("expected %q to be rejected", id)
		}
	}
}
