// Package refund implements the two-step refund flow: a cashier initiates,
// a manager approves, and only approval moves money.
package refund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos_settlement/pkg/apperr"
	"pos_settlement/pkg/audit"
	"pos_settlement/pkg/database"
	"pos_settlement/pkg/ledger"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const referenceRefund = "refund"

// Options configures a Workflow.
type Options struct {
	Location   *time.Location
	Now        func() time.Time
	MaxRetries int
	Backoff    time.Duration
}

// Workflow initiates, approves and lists refunds.
type Workflow struct {
	db     *gorm.DB
	ledger *ledger.Ledger

	loc     *time.Location
	now     func() time.Time
	retries int
	backoff time.Duration
}

// NewWorkflow returns a Workflow booking cash refunds through l.
func NewWorkflow(db *gorm.DB, l *ledger.Ledger, opts Options) *Workflow {
	w := &Workflow{
		db:      db,
		ledger:  l,
		loc:     opts.Location,
		now:     opts.Now,
		retries: opts.MaxRetries,
		backoff: opts.Backoff,
	}
	if w.loc == nil {
		w.loc = time.UTC
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.retries < 1 {
		w.retries = 3
	}
	if w.backoff == 0 {
		w.backoff = 25 * time.Millisecond
	}
	return w
}

// InitiateRequest asks for part of a payment back. Mode defaults to the
// payment's own mode.
type InitiateRequest struct {
	OrderID     int
	PaymentID   int
	Amount      decimal.Decimal
	Mode        models.PaymentMode
	Reason      string
	RequestedBy int
}

// Initiate records a pending refund. No money moves.
func (w *Workflow) Initiate(ctx context.Context, req InitiateRequest) (*models.Refund, error) {
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, apperr.New(apperr.CodeInvalidAmount, "refund amount must be greater than zero")
	}
	if req.Mode != "" && (!req.Mode.Valid() || req.Mode == models.PaymentModeSplit) {
		return nil, apperr.New(apperr.CodeInvalidPaymentMode, fmt.Sprintf("invalid refund mode %q", req.Mode))
	}

	var refund models.Refund
	err := database.WithRetry(ctx, w.retries, w.backoff, func(int) error {
		return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var order models.Order
			err := tx.First(&order, "id = ?", req.OrderID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.CodeOrderNotFound, "order not found")
			}
			if err != nil {
				return fmt.Errorf("failed to load order: %w", err)
			}

			payment, err := lockPayment(tx, req.PaymentID)
			if err != nil {
				return err
			}
			if payment.OrderID != order.ID {
				return apperr.New(apperr.CodePaymentNotFound, "payment does not belong to this order")
			}
			if payment.Status != models.PaymentStatusCompleted {
				return apperr.New(apperr.CodePaymentNotRefundable, fmt.Sprintf("payment is %s", payment.Status))
			}

			mode := req.Mode
			if mode == "" {
				if payment.Mode == models.PaymentModeSplit {
					return apperr.New(apperr.CodeInvalidPaymentMode, "refund mode is required for split payments")
				}
				mode = payment.Mode
			}

			pending, err := pendingTotal(tx, payment.ID)
			if err != nil {
				return err
			}
			refundable := payment.RefundableAmount().Sub(pending)
			if amount.GreaterThan(refundable) {
				return apperr.New(apperr.CodeRefundExceedsPayment,
					fmt.Sprintf("refund %s exceeds refundable %s", amount.StringFixed(2), decimal.Max(refundable, decimal.Zero).StringFixed(2)))
			}

			now := w.now()
			number, err := utils.NextDocumentNumber(tx, payment.OutletID, utils.PrefixRefund, now.In(w.loc))
			if err != nil {
				return err
			}

			refund = models.Refund{
				OutletID:     payment.OutletID,
				OrderID:      order.ID,
				PaymentID:    payment.ID,
				RefundNumber: number,
				Amount:       amount,
				Mode:         mode,
				Status:       models.RefundStatusPending,
				Reason:       req.Reason,
				RequestedBy:  req.RequestedBy,
				CreatedAt:    now.UTC(),
			}
			if err := tx.Create(&refund).Error; err != nil {
				return fmt.Errorf("failed to insert refund: %w", err)
			}

			return audit.WriteLog(tx, audit.LogOptions{
				OutletID:    &refund.OutletID,
				ActorID:     &req.RequestedBy,
				EntityType:  audit.EntityRefund,
				EntityID:    refund.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("%s requested %s against %s", refund.RefundNumber, amount.StringFixed(2), payment.PaymentNumber),
				After:       refund,
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// ApproveResult is the committed outcome of an approval.
type ApproveResult struct {
	Refund      models.Refund           `json:"refund"`
	Payment     models.Payment          `json:"payment"`
	LedgerEntry *models.CashLedgerEntry `json:"ledgerEntry,omitempty"`
}

// Approve moves a pending refund to approved, raises the payment's refund
// amount and books cash refunds in the ledger. The order's paid and due
// amounts are left as they are.
func (w *Workflow) Approve(ctx context.Context, refundID, approvedBy int) (*ApproveResult, error) {
	var result *ApproveResult
	err := database.WithRetry(ctx, w.retries, w.backoff, func(int) error {
		return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var refund models.Refund
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&refund, "id = ?", refundID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.CodeRefundNotFound, "refund not found")
			}
			if err != nil {
				return fmt.Errorf("failed to lock refund: %w", err)
			}
			if refund.Status != models.RefundStatusPending {
				return apperr.New(apperr.CodeRefundNotPending, fmt.Sprintf("refund %s is already %s", refund.RefundNumber, refund.Status))
			}

			payment, err := lockPayment(tx, refund.PaymentID)
			if err != nil {
				return err
			}
			refunded := payment.RefundAmount.Add(refund.Amount)
			if refunded.GreaterThan(payment.TotalAmount) {
				return apperr.New(apperr.CodeRefundExceedsPayment, "refund exceeds the remaining payment amount")
			}

			now := w.now().UTC()
			if err := tx.Model(&models.Refund{}).Where("id = ?", refund.ID).Updates(map[string]interface{}{
				"status":      models.RefundStatusApproved,
				"approved_by": approvedBy,
				"approved_at": now,
			}).Error; err != nil {
				return fmt.Errorf("failed to approve refund: %w", err)
			}
			if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).
				Update("refund_amount", refunded).Error; err != nil {
				return fmt.Errorf("failed to update payment refund amount: %w", err)
			}

			res := &ApproveResult{}
			if refund.Mode == models.PaymentModeCash {
				refType := referenceRefund
				entry, err := w.ledger.Append(tx, ledger.AppendParams{
					OutletID:      refund.OutletID,
					Type:          models.LedgerEntryRefund,
					Amount:        refund.Amount.Neg(),
					ReferenceType: &refType,
					ReferenceID:   &refund.ID,
					Description:   fmt.Sprintf("Cash refund %s for %s", refund.RefundNumber, payment.PaymentNumber),
					CreatedBy:     &approvedBy,
				})
				if err != nil {
					return err
				}
				res.LedgerEntry = entry
			}

			if err := tx.First(&res.Refund, "id = ?", refund.ID).Error; err != nil {
				return fmt.Errorf("failed to reload refund: %w", err)
			}
			if err := tx.First(&res.Payment, "id = ?", payment.ID).Error; err != nil {
				return fmt.Errorf("failed to reload payment: %w", err)
			}

			if err := audit.WriteLog(tx, audit.LogOptions{
				OutletID:    &refund.OutletID,
				ActorID:     &approvedBy,
				EntityType:  audit.EntityRefund,
				EntityID:    refund.ID,
				Action:      models.AuditActionApprove,
				Description: fmt.Sprintf("%s approved for %s", refund.RefundNumber, refund.Amount.StringFixed(2)),
				After:       res.Refund,
			}); err != nil {
				return err
			}

			result = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List returns an outlet's refunds, newest first. An empty status lists all.
func (w *Workflow) List(ctx context.Context, outletID int, status models.RefundStatus) ([]models.Refund, error) {
	q := w.db.WithContext(ctx).Where("outlet_id = ?", outletID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var refunds []models.Refund
	if err := q.Order("id DESC").Find(&refunds).Error; err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return refunds, nil
}

func lockPayment(tx *gorm.DB, paymentID int) (*models.Payment, error) {
	var payment models.Payment
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payment, "id = ?", paymentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodePaymentNotFound, "payment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}
	return &payment, nil
}

// pendingTotal sums refunds still waiting for approval on a payment.
func pendingTotal(tx *gorm.DB, paymentID int) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := tx.Model(&models.Refund{}).
		Where("payment_id = ? AND status = ?", paymentID, models.RefundStatusPending).
		Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum pending refunds: %w", err)
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total, nil
}
