/*
handlers_test.go - HTTP API tests

Runs the full router over the in-memory store. Covers the JSON
contract, status code mapping, and the directory passthrough.
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/karland/sales-engine/record/store"
	"github.com/karland/sales-engine/sales"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mem := store.NewMemory()
	mem.AddUniqueIndex("sales", "contract_number")
	mem.AddUniqueIndex("payments", "reference_number")
	mem.AddUniqueIndex("stands", "stand_number")

	h := NewHandler(mem, nil)
	h.Service.Allocator().Now = func() time.Time {
		return time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC)
	}

	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func createTestSale(t *testing.T, srv *httptest.Server, total, deposit string) map[string]any {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/sales", SaleRequest{
		StandID:       "stand-1",
		CustomerID:    "cust-1",
		AgencyID:      "agency-1",
		TotalPrice:    total,
		DepositAmount: deposit,
		PaymentPlan:   "monthly",
		SaleDate:      "2025-01-10",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 creating sale, got %d: %v", resp.StatusCode, body)
	}
	return body
}

// =============================================================================
// SALES
// =============================================================================

func TestAPI_CreateSale(t *testing.T) {
	// GIVEN: A valid sale request with a deposit
	// WHEN: POSTing to /api/sales
	// THEN: 201 with an allocated contract number and the reduced balance

	srv := newTestServer(t)

	body := createTestSale(t, srv, "6900", "900")
	if body["contract_number"] != "CTR-025-01001-1501" {
		t.Errorf("Wrong contract_number: %v", body["contract_number"])
	}
	if body["balance_remaining"] != "6000" {
		t.Errorf("Wrong balance: %v", body["balance_remaining"])
	}
	if body["status"] != string(sales.StatusInProgress) {
		t.Errorf("Wrong status: %v", body["status"])
	}
}

func TestAPI_CreateSale_ValidationError(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/sales", SaleRequest{
		CustomerID: "cust-1",
		AgencyID:   "agency-1",
		TotalPrice: "1000",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for missing stand_id, got %d: %v", resp.StatusCode, body)
	}
}

func TestAPI_GetSale_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/sales/ghost", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestAPI_OutstandingSales(t *testing.T) {
	// GIVEN: One open sale and one fully paid sale
	// WHEN: Listing /api/sales/outstanding
	// THEN: Only the open one appears

	srv := newTestServer(t)

	open := createTestSale(t, srv, "1000", "0")
	paid := createTestSale(t, srv, "500", "0")
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/payments", PaymentRequest{
		SaleID: paid["id"].(string),
		Amount: "500",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 creating payment, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/sales/outstanding", nil)
	listResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer listResp.Body.Close()

	var list []SaleDTO
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != open["id"].(string) {
		t.Fatalf("Expected only the open sale, got %d entries", len(list))
	}
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestAPI_CreatePayment_ReconcilesSale(t *testing.T) {
	// GIVEN: An open 1000 sale
	// WHEN: Recording a 400 payment
	// THEN: 201 with an allocated reference; the sale's balance drops to 600

	srv := newTestServer(t)
	sale := createTestSale(t, srv, "1000", "0")

	resp, payment := doJSON(t, http.MethodPost, srv.URL+"/api/payments", PaymentRequest{
		SaleID:        sale["id"].(string),
		Amount:        "400",
		PaymentDate:   "2025-01-15",
		PaymentMethod: "bank_transfer",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", resp.StatusCode, payment)
	}
	if payment["reference_number"] != "TRX-025-01001-1501" {
		t.Errorf("Wrong reference_number: %v", payment["reference_number"])
	}

	_, after := doJSON(t, http.MethodGet, srv.URL+"/api/sales/"+sale["id"].(string), nil)
	if after["balance_remaining"] != "600" {
		t.Errorf("Expected balance 600 after payment, got %v", after["balance_remaining"])
	}
	if after["status"] != string(sales.StatusInProgress) {
		t.Errorf("Expected in_progress, got %v", after["status"])
	}
}

func TestAPI_CreatePayment_Overpayment(t *testing.T) {
	srv := newTestServer(t)
	sale := createTestSale(t, srv, "1000", "0")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/payments", PaymentRequest{
		SaleID: sale["id"].(string),
		Amount: "1001",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for overpayment, got %d: %v", resp.StatusCode, body)
	}
}

func TestAPI_DeletePayment_RestoresBalance(t *testing.T) {
	srv := newTestServer(t)
	sale := createTestSale(t, srv, "1000", "0")

	_, payment := doJSON(t, http.MethodPost, srv.URL+"/api/payments", PaymentRequest{
		SaleID: sale["id"].(string),
		Amount: "1000",
	})

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/api/payments/"+payment["id"].(string), nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.StatusCode)
	}

	_, after := doJSON(t, http.MethodGet, srv.URL+"/api/sales/"+sale["id"].(string), nil)
	if after["balance_remaining"] != "1000" {
		t.Errorf("Expected balance restored to 1000, got %v", after["balance_remaining"])
	}
	if after["status"] != string(sales.StatusPending) {
		t.Errorf("Expected pending after full reversal, got %v", after["status"])
	}
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestAPI_Stands_CRUD(t *testing.T) {
	srv := newTestServer(t)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/stands", map[string]any{
		"stand_number": "PLOT-001",
		"location":     "Phase 2",
		"price":        "7500",
		"status":       "available",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", resp.StatusCode, created)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("Expected a generated id")
	}

	// Duplicate stand number conflicts
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/stands", map[string]any{
		"stand_number": "PLOT-001",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Expected 409 for duplicate stand number, got %d", resp.StatusCode)
	}

	// Unknown fields are dropped, not stored
	resp, updated := doJSON(t, http.MethodPut, srv.URL+"/api/stands/"+id, map[string]any{
		"stand_number": "PLOT-001",
		"status":       "sold",
		"injected":     "nope",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if updated["status"] != "sold" {
		t.Errorf("Expected status sold, got %v", updated["status"])
	}
	if _, ok := updated["injected"]; ok {
		t.Error("Unknown field leaked into the stored record")
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/stands/"+id, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.StatusCode)
	}
}

func TestAPI_Customers_RequiredFields(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/customers", map[string]any{
		"first_name": "Thabo",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for missing last_name, got %d", resp.StatusCode)
	}
}

// =============================================================================
// SEED
// =============================================================================

func TestAPI_Seed(t *testing.T) {
	// GIVEN: A fresh store
	// WHEN: POSTing /api/seed
	// THEN: The demo dataset loads and the legacy contract is listed

	srv := newTestServer(t)

	resp, summary := doJSON(t, http.MethodPost, srv.URL+"/api/seed", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", resp.StatusCode, summary)
	}
	if summary["sales"] != float64(3) {
		t.Errorf("Expected 3 seeded sales, got %v", summary["sales"])
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/sales", nil)
	listResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer listResp.Body.Close()
	var list []SaleDTO
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}

	legacySeen := false
	for _, s := range list {
		if s.ContractNumber == "KAR-2024-0095" {
			legacySeen = true
		}
	}
	if !legacySeen {
		t.Error("Expected the legacy KAR contract in the listing")
	}

	// Seeding twice conflicts on the unique stand numbers
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/seed", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Expected 409 on reseed, got %d", resp.StatusCode)
	}
}
