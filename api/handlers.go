/*
handlers.go - HTTP API handlers

PURPOSE:
  Exposes the sales engine via REST. Handles HTTP request/response and
  JSON serialization, delegates everything else to the sales service.

ENDPOINTS:
  Sales:
    GET    /api/sales                 List all sales
    GET    /api/sales/outstanding     Sales that can still receive payments
    POST   /api/sales                 Create sale (allocates contract number)
    GET    /api/sales/{id}            Get sale
    PUT    /api/sales/{id}            Update sale (recomputes balance)
    DELETE /api/sales/{id}            Delete sale and its payments
    GET    /api/sales/{id}/payments   Payments for one sale

  Payments:
    GET    /api/payments              List all payments
    POST   /api/payments              Create payment (allocates reference,
                                      reconciles the sale)
    GET    /api/payments/{id}         Get payment
    PUT    /api/payments/{id}         Update payment (reconciles)
    DELETE /api/payments/{id}         Delete payment (reconciles)

  Directory (see directory.go):
    /api/stands, /api/customers, /api/agencies

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, balance violations, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate reference, allocation exhausted)
  - 500: Store/internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/karland/sales-engine/record"
	"github.com/karland/sales-engine/sales"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *sales.Service
	Store   record.Store
	logger  *zap.Logger
}

// NewHandler creates a new handler over the given store.
func NewHandler(store record.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service: sales.NewService(store, logger),
		Store:   store,
		logger:  logger,
	}
}

// =============================================================================
// SALES ENDPOINTS
// =============================================================================

// ListSales returns all sales, newest first.
// GET /api/sales
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListSales(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list sales", err)
		return
	}
	dtos := make([]SaleDTO, 0, len(list))
	for _, s := range list {
		dtos = append(dtos, toSaleDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListOutstandingSales returns sales with a positive balance.
// GET /api/sales/outstanding
func (h *Handler) ListOutstandingSales(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListOutstanding(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list outstanding sales", err)
		return
	}
	dtos := make([]SaleDTO, 0, len(list))
	for _, s := range list {
		dtos = append(dtos, toSaleDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSale creates a sale with a freshly allocated contract number.
// POST /api/sales
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeSaleInput(w, r)
	if !ok {
		return
	}
	sale, err := h.Service.CreateSale(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, "Failed to create sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

// GetSale returns one sale.
// GET /api/sales/{id}
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.Service.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get sale", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

// UpdateSale applies edits and recomputes balance and status.
// PUT /api/sales/{id}
func (h *Handler) UpdateSale(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeSaleInput(w, r)
	if !ok {
		return
	}
	sale, err := h.Service.UpdateSale(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeServiceError(w, "Failed to update sale", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

// DeleteSale removes a sale and its payments.
// DELETE /api/sales/{id}
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteSale(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "Failed to delete sale", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSalePayments returns the payments recorded against one sale.
// GET /api/sales/{id}/payments
func (h *Handler) ListSalePayments(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListPaymentsBySale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to list payments", err)
		return
	}
	dtos := make([]PaymentDTO, 0, len(list))
	for _, p := range list {
		dtos = append(dtos, toPaymentDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) decodeSaleInput(w http.ResponseWriter, r *http.Request) (sales.SaleInput, bool) {
	var req SaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return sales.SaleInput{}, false
	}
	total, err := parseAmount(req.TotalPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total_price", err)
		return sales.SaleInput{}, false
	}
	deposit, err := parseAmount(req.DepositAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid deposit_amount", err)
		return sales.SaleInput{}, false
	}
	saleDate, err := parseDate(req.SaleDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sale_date format (use YYYY-MM-DD)", err)
		return sales.SaleInput{}, false
	}
	return sales.SaleInput{
		StandID:       req.StandID,
		CustomerID:    req.CustomerID,
		AgencyID:      req.AgencyID,
		TotalPrice:    total,
		DepositAmount: deposit,
		PaymentPlan:   req.PaymentPlan,
		SaleDate:      saleDate,
		Status:        sales.Status(req.Status),
		Notes:         req.Notes,
	}, true
}

// =============================================================================
// PAYMENT ENDPOINTS
// =============================================================================

// ListPayments returns all payments, most recent first.
// GET /api/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.ListPayments(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list payments", err)
		return
	}
	dtos := make([]PaymentDTO, 0, len(list))
	for _, p := range list {
		dtos = append(dtos, toPaymentDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePayment records a payment and reconciles the sale's balance.
// POST /api/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodePaymentInput(w, r)
	if !ok {
		return
	}
	payment, err := h.Service.CreatePayment(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, "Failed to create payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(payment))
}

// GetPayment returns one payment.
// GET /api/payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.Service.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(payment))
}

// UpdatePayment edits a payment and reconciles the sale.
// PUT /api/payments/{id}
func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodePaymentInput(w, r)
	if !ok {
		return
	}
	payment, err := h.Service.UpdatePayment(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeServiceError(w, "Failed to update payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(payment))
}

// DeletePayment removes a payment and returns its amount to the sale.
// DELETE /api/payments/{id}
func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeletePayment(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, "Failed to delete payment", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodePaymentInput(w http.ResponseWriter, r *http.Request) (sales.PaymentInput, bool) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return sales.PaymentInput{}, false
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return sales.PaymentInput{}, false
	}
	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment_date format (use YYYY-MM-DD)", err)
		return sales.PaymentInput{}, false
	}
	return sales.PaymentInput{
		SaleID:          req.SaleID,
		Amount:          amount,
		PaymentDate:     paymentDate,
		Method:          sales.PaymentMethod(req.PaymentMethod),
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
	}, true
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeServiceError maps domain and store errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, fallback string, err error) {
	switch {
	case record.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, sales.ErrBalanceExceeded):
		writeError(w, http.StatusBadRequest, "Amount exceeds remaining balance", err)
	case errors.Is(err, sales.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, sales.ErrDuplicateReference):
		writeError(w, http.StatusConflict, "Reference number already in use", err)
	case errors.Is(err, sales.ErrAllocationExhausted):
		writeError(w, http.StatusConflict, "Could not allocate a unique identifier, try again", err)
	default:
		h.logger.Error(fallback, zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallback, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
