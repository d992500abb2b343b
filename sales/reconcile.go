/*
reconcile.go - Balance reconciliation after payment mutations

PURPOSE:
  Keeps Sale.balance_remaining and Sale.status consistent with the set of
  payments attached to the sale. Runs synchronously after each payment
  create/update/delete.

INVARIANTS:
  - balance_remaining stays within [0, total_price] (clamped)
  - status = StatusForBalance(balance, total) after every pass

PARTIAL-FAILURE POLICY:
  Reconciliation runs after the payment write has already succeeded. If
  the sale cannot be read or updated at that point, the inconsistency is
  logged and the payment is NOT rolled back: the system prefers "payment
  recorded, balance possibly stale" over losing a payment record. There
  is no automatic retry. The methods therefore return nothing; the
  caller's operation has already succeeded.

SEE ALSO:
  - service.go: Calls these after payment writes
  - types.go: StatusForBalance, clampBalance
*/
package sales

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/karland/sales-engine/record"
)

// Reconciler maintains a sale's derived balance and status.
type Reconciler struct {
	store  record.Store
	logger *zap.Logger
}

// NewReconciler creates a reconciler. A nil logger disables logging.
func NewReconciler(store record.Store, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, logger: logger}
}

// ApplyPayment subtracts a newly created payment from the sale's balance.
func (r *Reconciler) ApplyPayment(ctx context.Context, saleID string, amount decimal.Decimal) {
	r.reconcile(ctx, saleID, "apply", func(balance, total decimal.Decimal) decimal.Decimal {
		return balance.Sub(amount)
	})
}

// ReversePayment returns a deleted payment's amount to the sale's balance.
func (r *Reconciler) ReversePayment(ctx context.Context, saleID string, amount decimal.Decimal) {
	r.reconcile(ctx, saleID, "reverse", func(balance, total decimal.Decimal) decimal.Decimal {
		return balance.Add(amount)
	})
}

// AmendPayment adjusts the balance after a payment's amount changed.
// Equivalent to reversing the old amount and applying the new one.
func (r *Reconciler) AmendPayment(ctx context.Context, saleID string, oldAmount, newAmount decimal.Decimal) {
	r.reconcile(ctx, saleID, "amend", func(balance, total decimal.Decimal) decimal.Decimal {
		restored := clampBalance(balance.Add(oldAmount), total)
		return restored.Sub(newAmount)
	})
}

// reconcile reads the sale, recomputes balance and status, and writes
// back. Store failures at either step are logged and swallowed per the
// partial-failure policy above.
func (r *Reconciler) reconcile(ctx context.Context, saleID, op string, compute func(balance, total decimal.Decimal) decimal.Decimal) {
	rec, err := record.Get(ctx, r.store, TableSales, saleID)
	if err != nil {
		r.logger.Error("balance reconciliation skipped, sale read failed; payment write stands",
			zap.String("sale_id", saleID),
			zap.String("op", op),
			zap.Error(err))
		return
	}
	sale := saleFromRecord(rec)

	balance := clampBalance(compute(sale.BalanceRemaining, sale.TotalPrice), sale.TotalPrice)
	status := StatusForBalance(balance, sale.TotalPrice)
	if sale.Status == StatusCancelled {
		// Cancellation is an explicit user action; reconciliation only
		// moves the balance.
		status = StatusCancelled
	}

	_, err = r.store.Update(ctx, TableSales, saleID, record.Record{
		"balance_remaining": balance.String(),
		"status":            string(status),
	})
	if err != nil {
		r.logger.Error("balance reconciliation write failed; payment write stands",
			zap.String("sale_id", saleID),
			zap.String("op", op),
			zap.String("balance", balance.String()),
			zap.Error(err))
	}
}
