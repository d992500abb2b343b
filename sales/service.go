/*
service.go - Sales and payments orchestration

PURPOSE:
  High-level operations over the record store: sale CRUD with contract
  number allocation, payment CRUD with transaction number allocation and
  balance reconciliation. Handlers call this layer; it owns validation
  and the ordering of store writes.

ALLOCATION RETRY:
  Generated identifiers are advisory until the insert lands. When the
  store rejects an insert with a unique-constraint conflict (a concurrent
  request won the number), the service reallocates and retries, up to
  maxAllocAttempts, then fails with ErrAllocationExhausted.

WRITE ORDERING (payments):
  1. Validate against the sale's current balance (no write on failure)
  2. Insert/update/delete the payment
  3. Reconcile the sale (failure logged, never undoes step 2)

SEE ALSO:
  - reconcile.go: Step 3
  - sequence/allocator.go: Identifier computation
*/
package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/karland/sales-engine/record"
	"github.com/karland/sales-engine/sequence"
)

// maxAllocAttempts bounds the reallocation loop on identifier conflicts.
const maxAllocAttempts = 3

// Service provides sales and payment operations on a record store.
type Service struct {
	store      record.Store
	alloc      *sequence.Allocator
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewService creates a new Service. A nil logger disables logging.
func NewService(store record.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		alloc:      sequence.New(store),
		reconciler: NewReconciler(store, logger),
		logger:     logger,
	}
}

// Allocator exposes the sequence allocator, mainly so tests and dev
// tooling can pin its clock.
func (s *Service) Allocator() *sequence.Allocator { return s.alloc }

// =============================================================================
// SALES
// =============================================================================

// SaleInput carries the caller-editable fields of a sale.
type SaleInput struct {
	StandID       string
	CustomerID    string
	AgencyID      string
	TotalPrice    decimal.Decimal
	DepositAmount decimal.Decimal
	PaymentPlan   string
	SaleDate      time.Time
	Status        Status // update only; empty means derive
	Notes         string
}

func (in *SaleInput) validate() error {
	if in.StandID == "" {
		return &ValidationError{Field: "stand_id", Message: "required"}
	}
	if in.CustomerID == "" {
		return &ValidationError{Field: "customer_id", Message: "required"}
	}
	if in.AgencyID == "" {
		return &ValidationError{Field: "agency_id", Message: "required"}
	}
	if in.TotalPrice.IsNegative() {
		return &ValidationError{Field: "total_price", Message: "must not be negative"}
	}
	if in.DepositAmount.IsNegative() {
		return &ValidationError{Field: "deposit_amount", Message: "must not be negative"}
	}
	if in.DepositAmount.GreaterThan(in.TotalPrice) {
		return &ValidationError{Field: "deposit_amount", Message: "cannot exceed total price"}
	}
	return nil
}

// CreateSale validates the input, allocates a contract number, and
// persists the sale. The initial balance is total minus deposit; status
// is derived from it.
func (s *Service) CreateSale(ctx context.Context, in SaleInput) (*Sale, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	balance := clampBalance(in.TotalPrice.Sub(in.DepositAmount), in.TotalPrice)
	sale := &Sale{
		ID:               uuid.NewString(),
		StandID:          in.StandID,
		CustomerID:       in.CustomerID,
		AgencyID:         in.AgencyID,
		TotalPrice:       in.TotalPrice,
		DepositAmount:    in.DepositAmount,
		BalanceRemaining: balance,
		PaymentPlan:      in.PaymentPlan,
		SaleDate:         in.SaleDate,
		Status:           StatusForBalance(balance, in.TotalPrice),
		Notes:            in.Notes,
		CreatedAt:        time.Now().UTC(),
	}

	for attempt := 1; attempt <= maxAllocAttempts; attempt++ {
		number, err := s.alloc.ContractNumber(ctx)
		if err != nil {
			return nil, err
		}
		sale.ContractNumber = number

		created, err := s.store.Insert(ctx, TableSales, sale.toRecord())
		if err == nil {
			s.logger.Info("sale created",
				zap.String("sale_id", sale.ID),
				zap.String("contract_number", number))
			return saleFromRecord(created), nil
		}
		if !record.IsConflict(err) {
			return nil, fmt.Errorf("insert sale: %w", err)
		}
		s.logger.Warn("contract number collision, reallocating",
			zap.String("contract_number", number),
			zap.Int("attempt", attempt))
	}
	return nil, ErrAllocationExhausted
}

// GetSale returns a sale by id.
func (s *Service) GetSale(ctx context.Context, id string) (*Sale, error) {
	rec, err := record.Get(ctx, s.store, TableSales, id)
	if err != nil {
		return nil, err
	}
	return saleFromRecord(rec), nil
}

// ListSales returns all sales, newest first.
func (s *Service) ListSales(ctx context.Context) ([]*Sale, error) {
	recs, err := s.store.Query(ctx, record.Query{
		Table:      TableSales,
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	sales := make([]*Sale, 0, len(recs))
	for _, rec := range recs {
		sales = append(sales, saleFromRecord(rec))
	}
	return sales, nil
}

// ListOutstanding returns sales that can still receive payments:
// positive balance and not cancelled. Used by the payment form.
func (s *Service) ListOutstanding(ctx context.Context) ([]*Sale, error) {
	recs, err := s.store.Query(ctx, record.Query{
		Table:      TableSales,
		Filters:    []record.Filter{record.GreaterThan("balance_remaining", decimal.Zero)},
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	var sales []*Sale
	for _, rec := range recs {
		sale := saleFromRecord(rec)
		if sale.Status == StatusCancelled {
			continue
		}
		sales = append(sales, sale)
	}
	return sales, nil
}

// UpdateSale applies the input to an existing sale and recomputes the
// balance: from the sum of payments when any exist, otherwise from
// total minus deposit. Status is derived unless the caller sets
// cancelled explicitly.
func (s *Service) UpdateSale(ctx context.Context, id string, in SaleInput) (*Sale, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: "unknown status"}
	}
	if _, err := record.Get(ctx, s.store, TableSales, id); err != nil {
		return nil, err
	}

	payments, err := s.ListPaymentsBySale(ctx, id)
	if err != nil {
		return nil, err
	}

	var balance decimal.Decimal
	if len(payments) > 0 {
		paid := decimal.Zero
		for _, p := range payments {
			paid = paid.Add(p.Amount)
		}
		balance = in.TotalPrice.Sub(paid)
	} else {
		balance = in.TotalPrice.Sub(in.DepositAmount)
	}
	balance = clampBalance(balance, in.TotalPrice)

	status := StatusForBalance(balance, in.TotalPrice)
	if in.Status == StatusCancelled {
		status = StatusCancelled
	}

	updated, err := s.store.Update(ctx, TableSales, id, record.Record{
		"stand_id":          in.StandID,
		"customer_id":       in.CustomerID,
		"agency_id":         in.AgencyID,
		"total_price":       in.TotalPrice.String(),
		"deposit_amount":    in.DepositAmount.String(),
		"balance_remaining": balance.String(),
		"payment_plan":      in.PaymentPlan,
		"sale_date":         in.SaleDate.UTC().Format(time.RFC3339),
		"status":            string(status),
		"notes":             in.Notes,
	})
	if err != nil {
		return nil, err
	}
	return saleFromRecord(updated), nil
}

// DeleteSale removes a sale and its payments.
func (s *Service) DeleteSale(ctx context.Context, id string) error {
	payments, err := s.ListPaymentsBySale(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if err := s.store.Delete(ctx, TablePayments, p.ID); err != nil && !record.IsNotFound(err) {
			return fmt.Errorf("delete payment %s: %w", p.ID, err)
		}
	}
	return s.store.Delete(ctx, TableSales, id)
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentInput carries the caller-editable fields of a payment.
type PaymentInput struct {
	SaleID          string
	Amount          decimal.Decimal
	PaymentDate     time.Time
	Method          PaymentMethod
	ReferenceNumber string // empty means auto-generate
	Notes           string
}

func (in *PaymentInput) validate() error {
	if in.SaleID == "" {
		return &ValidationError{Field: "sale_id", Message: "required"}
	}
	if !in.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if in.Method != "" && !in.Method.Valid() {
		return &ValidationError{Field: "payment_method", Message: "unknown payment method"}
	}
	return nil
}

// CreatePayment validates the amount against the sale's balance, persists
// the payment (allocating a transaction number when none is supplied),
// then reconciles the sale. Validation failures happen before any write.
func (s *Service) CreatePayment(ctx context.Context, in PaymentInput) (*Payment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	sale, err := s.GetSale(ctx, in.SaleID)
	if err != nil {
		return nil, err
	}
	if sale.Status == StatusCancelled {
		return nil, &ValidationError{Field: "sale_id", Message: "sale is cancelled"}
	}
	if in.Amount.GreaterThan(sale.BalanceRemaining) {
		return nil, &BalanceExceededError{
			SaleID:    in.SaleID,
			Available: sale.BalanceRemaining,
			Requested: in.Amount,
		}
	}

	payment := &Payment{
		ID:          uuid.NewString(),
		SaleID:      in.SaleID,
		Amount:      in.Amount,
		PaymentDate: in.PaymentDate,
		Method:      in.Method,
		Notes:       in.Notes,
		CreatedAt:   time.Now().UTC(),
	}
	if payment.Method == "" {
		payment.Method = MethodCash
	}

	if in.ReferenceNumber != "" {
		payment.ReferenceNumber = in.ReferenceNumber
		if _, err := s.store.Insert(ctx, TablePayments, payment.toRecord()); err != nil {
			if record.IsConflict(err) {
				return nil, ErrDuplicateReference
			}
			return nil, fmt.Errorf("insert payment: %w", err)
		}
	} else if err := s.insertWithAllocatedReference(ctx, payment); err != nil {
		return nil, err
	}

	s.reconciler.ApplyPayment(ctx, in.SaleID, payment.Amount)

	s.logger.Info("payment created",
		zap.String("payment_id", payment.ID),
		zap.String("sale_id", in.SaleID),
		zap.String("reference_number", payment.ReferenceNumber),
		zap.String("amount", payment.Amount.String()))
	return payment, nil
}

// insertWithAllocatedReference allocates a transaction number and inserts,
// reallocating on conflict.
func (s *Service) insertWithAllocatedReference(ctx context.Context, payment *Payment) error {
	for attempt := 1; attempt <= maxAllocAttempts; attempt++ {
		number, err := s.alloc.TransactionNumber(ctx)
		if err != nil {
			return err
		}
		payment.ReferenceNumber = number

		_, err = s.store.Insert(ctx, TablePayments, payment.toRecord())
		if err == nil {
			return nil
		}
		if !record.IsConflict(err) {
			return fmt.Errorf("insert payment: %w", err)
		}
		s.logger.Warn("transaction number collision, reallocating",
			zap.String("reference_number", number),
			zap.Int("attempt", attempt))
	}
	return ErrAllocationExhausted
}

// GetPayment returns a payment by id.
func (s *Service) GetPayment(ctx context.Context, id string) (*Payment, error) {
	rec, err := record.Get(ctx, s.store, TablePayments, id)
	if err != nil {
		return nil, err
	}
	return paymentFromRecord(rec), nil
}

// ListPayments returns all payments, most recent payment date first.
func (s *Service) ListPayments(ctx context.Context) ([]*Payment, error) {
	return s.listPayments(ctx, nil)
}

// ListPaymentsBySale returns a sale's payments, most recent first.
func (s *Service) ListPaymentsBySale(ctx context.Context, saleID string) ([]*Payment, error) {
	return s.listPayments(ctx, []record.Filter{record.Eq("sale_id", saleID)})
}

func (s *Service) listPayments(ctx context.Context, filters []record.Filter) ([]*Payment, error) {
	recs, err := s.store.Query(ctx, record.Query{
		Table:      TablePayments,
		Filters:    filters,
		OrderBy:    "payment_date",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	payments := make([]*Payment, 0, len(recs))
	for _, rec := range recs {
		payments = append(payments, paymentFromRecord(rec))
	}
	return payments, nil
}

// UpdatePayment edits a payment and reconciles the sale as if the old
// payment were deleted and the new one created. The new amount may not
// exceed the sale's balance plus the payment's original amount.
func (s *Service) UpdatePayment(ctx context.Context, id string, in PaymentInput) (*Payment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	old, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.SaleID != old.SaleID {
		return nil, &ValidationError{Field: "sale_id", Message: "payment cannot move to another sale"}
	}

	sale, err := s.GetSale(ctx, old.SaleID)
	if err != nil {
		return nil, err
	}
	maxAllowed := sale.BalanceRemaining.Add(old.Amount)
	if in.Amount.GreaterThan(maxAllowed) {
		return nil, &BalanceExceededError{
			SaleID:    old.SaleID,
			Available: maxAllowed,
			Requested: in.Amount,
		}
	}

	patch := record.Record{
		"amount":       in.Amount.String(),
		"payment_date": in.PaymentDate.UTC().Format(time.RFC3339),
		"notes":        in.Notes,
	}
	if in.Method != "" {
		patch["payment_method"] = string(in.Method)
	}
	if in.ReferenceNumber != "" {
		patch["reference_number"] = in.ReferenceNumber
	}

	updated, err := s.store.Update(ctx, TablePayments, id, patch)
	if err != nil {
		if record.IsConflict(err) {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}

	s.reconciler.AmendPayment(ctx, old.SaleID, old.Amount, in.Amount)
	return paymentFromRecord(updated), nil
}

// DeletePayment removes a payment and returns its amount to the sale's
// balance.
func (s *Service) DeletePayment(ctx context.Context, id string) error {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, TablePayments, id); err != nil {
		return err
	}

	s.reconciler.ReversePayment(ctx, payment.SaleID, payment.Amount)

	s.logger.Info("payment deleted",
		zap.String("payment_id", id),
		zap.String("sale_id", payment.SaleID),
		zap.String("amount", payment.Amount.String()))
	return nil
}
