/*
Package sales contains the domain core: sale and payment types, the
balance reconciler, and the service orchestrating create/update/delete
flows against a record store.

KEY CONCEPTS IN THIS FILE (types.go):
  - Sale: a contract tying a stand, a customer, and an agency together
    with a price, a running balance, and a derived status
  - Payment: one monetary transaction applied against a sale's balance
  - Status: pure function of balance vs total price

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money, never float64
  2. Derivation: status is computed from balance, not stored policy
  3. Wire mapping: records carry decimals and times as strings, the same
     encoding every backend stores

SEE ALSO:
  - reconcile.go: Balance/status maintenance after payment mutations
  - service.go: Orchestration and validation
*/
package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/karland/sales-engine/record"
)

// Store table names for the domain entities.
const (
	TableSales    = "sales"
	TablePayments = "payments"
)

// =============================================================================
// STATUS - Derived from balance
// =============================================================================

type Status string

const (
	StatusPending    Status = "pending"     // no payment received yet
	StatusInProgress Status = "in_progress" // partially paid
	StatusCompleted  Status = "completed"   // balance cleared
	StatusCancelled  Status = "cancelled"   // set explicitly, never derived
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// StatusForBalance derives a sale's status from its balance. This is a
// pure function: a cleared balance is completed, an untouched balance is
// pending, anything in between is in progress. Deleting every payment on
// a sale therefore returns it to pending. Cancellation is an explicit
// user action and is never produced here.
func StatusForBalance(balance, total decimal.Decimal) Status {
	if !balance.IsPositive() {
		return StatusCompleted
	}
	if balance.LessThan(total) {
		return StatusInProgress
	}
	return StatusPending
}

// clampBalance bounds a computed balance into [0, total].
func clampBalance(balance, total decimal.Decimal) decimal.Decimal {
	if balance.IsNegative() {
		return decimal.Zero
	}
	if balance.GreaterThan(total) {
		return total
	}
	return balance
}

// =============================================================================
// PAYMENT METHOD
// =============================================================================

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodMobileMoney  PaymentMethod = "mobile_money"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodMobileMoney:
		return true
	}
	return false
}

// =============================================================================
// SALE
// =============================================================================

type Sale struct {
	ID               string
	ContractNumber   string
	StandID          string
	CustomerID       string
	AgencyID         string
	TotalPrice       decimal.Decimal
	DepositAmount    decimal.Decimal
	BalanceRemaining decimal.Decimal
	PaymentPlan      string
	SaleDate         time.Time
	Status           Status
	Notes            string
	CreatedAt        time.Time
}

func (s *Sale) toRecord() record.Record {
	return record.Record{
		"id":                s.ID,
		"contract_number":   s.ContractNumber,
		"stand_id":          s.StandID,
		"customer_id":       s.CustomerID,
		"agency_id":         s.AgencyID,
		"total_price":       s.TotalPrice.String(),
		"deposit_amount":    s.DepositAmount.String(),
		"balance_remaining": s.BalanceRemaining.String(),
		"payment_plan":      s.PaymentPlan,
		"sale_date":         s.SaleDate.UTC().Format(time.RFC3339),
		"status":            string(s.Status),
		"notes":             s.Notes,
		"created_at":        s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func saleFromRecord(rec record.Record) *Sale {
	s := &Sale{
		ID:             rec.ID(),
		ContractNumber: rec.String("contract_number"),
		StandID:        rec.String("stand_id"),
		CustomerID:     rec.String("customer_id"),
		AgencyID:       rec.String("agency_id"),
		TotalPrice:     rec.Decimal("total_price"),
		DepositAmount:  rec.Decimal("deposit_amount"),
		PaymentPlan:    rec.String("payment_plan"),
		SaleDate:       rec.Time("sale_date"),
		Status:         Status(rec.String("status")),
		Notes:          rec.String("notes"),
		CreatedAt:      rec.Time("created_at"),
	}
	// Null balance means "no payment ever applied": fall back to total.
	if _, ok := rec["balance_remaining"]; ok && rec["balance_remaining"] != nil && rec.String("balance_remaining") != "" {
		s.BalanceRemaining = rec.Decimal("balance_remaining")
	} else {
		s.BalanceRemaining = s.TotalPrice
	}
	return s
}

// =============================================================================
// PAYMENT
// =============================================================================

type Payment struct {
	ID              string
	SaleID          string
	Amount          decimal.Decimal
	PaymentDate     time.Time
	Method          PaymentMethod
	ReferenceNumber string
	Notes           string
	CreatedAt       time.Time
}

func (p *Payment) toRecord() record.Record {
	return record.Record{
		"id":               p.ID,
		"sale_id":          p.SaleID,
		"amount":           p.Amount.String(),
		"payment_date":     p.PaymentDate.UTC().Format(time.RFC3339),
		"payment_method":   string(p.Method),
		"reference_number": p.ReferenceNumber,
		"notes":            p.Notes,
		"created_at":       p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func paymentFromRecord(rec record.Record) *Payment {
	return &Payment{
		ID:              rec.ID(),
		SaleID:          rec.String("sale_id"),
		Amount:          rec.Decimal("amount"),
		PaymentDate:     rec.Time("payment_date"),
		Method:          PaymentMethod(rec.String("payment_method")),
		ReferenceNumber: rec.String("reference_number"),
		Notes:           rec.String("notes"),
		CreatedAt:       rec.Time("created_at"),
	}
}
