/*
seed.go - Demo dataset loader

PURPOSE:
  Populates a fresh database with realistic data for development and
  demos: four agencies, three customers, a block of stands, two open
  sales contracts with payments against them, and one legacy-numbered
  contract so the old KAR format shows up in listings.

HOW IT WORKS:
  Directory rows are inserted straight through the store; sales and
  payments go through the service so contract/transaction numbers are
  allocated and balances reconciled exactly as they would be in
  production.

NOTE:
  Seed once on a fresh database. Rerunning conflicts on unique stand
  numbers and returns 409. Only wire this route in dev environments.

SEE ALSO:
  - handlers.go: Error mapping
  - sales/service.go: CreateSale/CreatePayment
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/karland/sales-engine/record"
	"github.com/karland/sales-engine/sales"
)

// SeedDemo loads the demo dataset.
// POST /api/seed
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	summary, err := h.loadDemoData(r.Context())
	if err != nil {
		if record.IsConflict(err) {
			writeError(w, http.StatusConflict, "Database already seeded", err)
			return
		}
		h.writeServiceError(w, "Failed to seed demo data", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type seedSummary struct {
	Agencies  int `json:"agencies"`
	Customers int `json:"customers"`
	Stands    int `json:"stands"`
	Sales     int `json:"sales"`
	Payments  int `json:"payments"`
}

func (h *Handler) loadDemoData(ctx context.Context) (seedSummary, error) {
	var sum seedSummary

	agencyIDs := make(map[string]string)
	for _, name := range []string{"Agency A", "Agency B", "Agency C", "Agency D"} {
		id := uuid.NewString()
		_, err := h.Store.Insert(ctx, "agencies", record.Record{
			"id":         id,
			"name":       name,
			"is_active":  true,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return sum, fmt.Errorf("seed agency %s: %w", name, err)
		}
		agencyIDs[name] = id
		sum.Agencies++
	}

	customerIDs := make(map[string]string)
	for _, c := range []struct{ first, last, phone string }{
		{"Thabo", "Ndlovu", "+263 77 210 4411"},
		{"Jane", "Dube", "+263 71 883 0902"},
		{"Simba", "Moyo", "+263 78 455 1276"},
	} {
		id := uuid.NewString()
		_, err := h.Store.Insert(ctx, "customers", record.Record{
			"id":         id,
			"first_name": c.first,
			"last_name":  c.last,
			"phone":      c.phone,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return sum, fmt.Errorf("seed customer %s %s: %w", c.first, c.last, err)
		}
		customerIDs[c.last] = id
		sum.Customers++
	}

	standIDs := make(map[string]string)
	for _, s := range []struct {
		number string
		area   float64
		price  string
		status string
		agency string
	}{
		{"PLOT-001", 300, "7500", "available", "Agency A"},
		{"PLOT-002", 400, "9200", "reserved", "Agency B"},
		{"PLOT-003", 280, "6900", "sold", "Agency C"},
		{"PLOT-004", 350, "8100", "available", "Agency A"},
		{"PLOT-005", 420, "9900", "available", "Agency B"},
		{"PLOT-007", 500, "12000", "sold", "Agency D"},
	} {
		id := uuid.NewString()
		_, err := h.Store.Insert(ctx, "stands", record.Record{
			"id":           id,
			"stand_number": s.number,
			"area_sqm":     s.area,
			"price":        s.price,
			"status":       s.status,
			"agency_id":    agencyIDs[s.agency],
			"created_at":   time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return sum, fmt.Errorf("seed stand %s: %w", s.number, err)
		}
		standIDs[s.number] = id
		sum.Stands++
	}

	// Open contract, partially paid.
	sale1, err := h.Service.CreateSale(ctx, sales.SaleInput{
		StandID:       standIDs["PLOT-003"],
		CustomerID:    customerIDs["Ndlovu"],
		AgencyID:      agencyIDs["Agency C"],
		TotalPrice:    decimal.NewFromInt(6900),
		DepositAmount: decimal.NewFromInt(900),
		PaymentPlan:   "monthly",
		SaleDate:      time.Now().UTC(),
	})
	if err != nil {
		return sum, fmt.Errorf("seed sale: %w", err)
	}
	sum.Sales++

	for _, p := range []struct {
		amount string
		method sales.PaymentMethod
	}{
		{"800", sales.MethodBankTransfer},
		{"1500", sales.MethodCash},
		{"500", sales.MethodMobileMoney},
	} {
		amount, _ := decimal.NewFromString(p.amount)
		if _, err := h.Service.CreatePayment(ctx, sales.PaymentInput{
			SaleID:      sale1.ID,
			Amount:      amount,
			PaymentDate: time.Now().UTC(),
			Method:      p.method,
		}); err != nil {
			return sum, fmt.Errorf("seed payment: %w", err)
		}
		sum.Payments++
	}

	// Fresh contract, nothing paid yet.
	if _, err := h.Service.CreateSale(ctx, sales.SaleInput{
		StandID:     standIDs["PLOT-007"],
		CustomerID:  customerIDs["Dube"],
		AgencyID:    agencyIDs["Agency D"],
		TotalPrice:  decimal.NewFromInt(12000),
		PaymentPlan: "quarterly",
		SaleDate:    time.Now().UTC(),
	}); err != nil {
		return sum, fmt.Errorf("seed sale: %w", err)
	}
	sum.Sales++

	// Historical contract in the retired numbering scheme.
	_, err = h.Store.Insert(ctx, "sales", record.Record{
		"id":                uuid.NewString(),
		"contract_number":   "KAR-2024-0095",
		"stand_id":          standIDs["PLOT-002"],
		"customer_id":       customerIDs["Moyo"],
		"agency_id":         agencyIDs["Agency B"],
		"total_price":       "9200",
		"deposit_amount":    "0",
		"balance_remaining": "0",
		"payment_plan":      "lump_sum",
		"sale_date":         "2024-06-14T00:00:00Z",
		"status":            string(sales.StatusCompleted),
		"notes":             "migrated from the legacy register",
		"created_at":        "2024-06-14T08:30:00Z",
	})
	if err != nil {
		return sum, fmt.Errorf("seed legacy sale: %w", err)
	}
	sum.Sales++

	return sum, nil
}
