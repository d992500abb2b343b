/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model from
  the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ENCODING:
  All monetary amounts cross the wire as decimal strings ("12500.00"),
  never JSON numbers, so no client or middlebox can round them.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/karland/sales-engine/sales"
)

// =============================================================================
// SALES
// =============================================================================

type SaleDTO struct {
	ID               string `json:"id"`
	ContractNumber   string `json:"contract_number"`
	StandID          string `json:"stand_id"`
	CustomerID       string `json:"customer_id"`
	AgencyID         string `json:"agency_id"`
	TotalPrice       string `json:"total_price"`
	DepositAmount    string `json:"deposit_amount"`
	BalanceRemaining string `json:"balance_remaining"`
	PaymentPlan      string `json:"payment_plan,omitempty"`
	SaleDate         string `json:"sale_date,omitempty"`
	Status           string `json:"status"`
	Notes            string `json:"notes,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// SaleRequest creates or updates a sale. Amounts are decimal strings;
// sale_date is YYYY-MM-DD.
type SaleRequest struct {
	StandID       string `json:"stand_id"`
	CustomerID    string `json:"customer_id"`
	AgencyID      string `json:"agency_id"`
	TotalPrice    string `json:"total_price"`
	DepositAmount string `json:"deposit_amount"`
	PaymentPlan   string `json:"payment_plan"`
	SaleDate      string `json:"sale_date"`
	Status        string `json:"status"` // updates only
	Notes         string `json:"notes"`
}

func toSaleDTO(s *sales.Sale) SaleDTO {
	return SaleDTO{
		ID:               s.ID,
		ContractNumber:   s.ContractNumber,
		StandID:          s.StandID,
		CustomerID:       s.CustomerID,
		AgencyID:         s.AgencyID,
		TotalPrice:       s.TotalPrice.String(),
		DepositAmount:    s.DepositAmount.String(),
		BalanceRemaining: s.BalanceRemaining.String(),
		PaymentPlan:      s.PaymentPlan,
		SaleDate:         formatDate(s.SaleDate),
		Status:           string(s.Status),
		Notes:            s.Notes,
		CreatedAt:        formatTime(s.CreatedAt),
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

type PaymentDTO struct {
	ID              string `json:"id"`
	SaleID          string `json:"sale_id"`
	Amount          string `json:"amount"`
	PaymentDate     string `json:"payment_date,omitempty"`
	PaymentMethod   string `json:"payment_method"`
	ReferenceNumber string `json:"reference_number"`
	Notes           string `json:"notes,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// PaymentRequest creates or updates a payment. An empty reference_number
// asks the server to allocate a transaction number.
type PaymentRequest struct {
	SaleID          string `json:"sale_id"`
	Amount          string `json:"amount"`
	PaymentDate     string `json:"payment_date"`
	PaymentMethod   string `json:"payment_method"`
	ReferenceNumber string `json:"reference_number"`
	Notes           string `json:"notes"`
}

func toPaymentDTO(p *sales.Payment) PaymentDTO {
	return PaymentDTO{
		ID:              p.ID,
		SaleID:          p.SaleID,
		Amount:          p.Amount.String(),
		PaymentDate:     formatDate(p.PaymentDate),
		PaymentMethod:   string(p.Method),
		ReferenceNumber: p.ReferenceNumber,
		Notes:           p.Notes,
		CreatedAt:       formatTime(p.CreatedAt),
	}
}

// =============================================================================
// COMMON
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseAmount parses a decimal string; empty means zero.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// parseDate parses YYYY-MM-DD; empty means the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
