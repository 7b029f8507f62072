package payment

import (
	"errors"
	"fmt"

	"pos_settlement/pkg/apperr"
	"pos_settlement/pkg/audit"
	"pos_settlement/pkg/ledger"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/release"
	"pos_settlement/pkg/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const referencePayment = "payment"

type settlementPlan struct {
	mode             models.PaymentMode
	amount           decimal.Decimal
	tip              decimal.Decimal
	reference        *string
	gatewayPaymentID *string
	metadata         models.JSONMap
	receivedBy       *int
	splits           []models.SplitPaymentEntry
	// cash amounts that land in the drawer, one ledger entry each
	cash        []decimal.Decimal
	requireFull bool
}

// settle is the settlement transaction body. The order lock comes first so
// every later read sees the winner of any concurrent settlement.
func (p *Processor) settle(tx *gorm.DB, orderID, outletID int, plan settlementPlan) (*Result, error) {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.New(apperr.CodeOrderNotFound, "order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if order.IsSettled() {
		return nil, apperr.New(apperr.CodeConflict, "order was settled by a concurrent payment")
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, apperr.New(apperr.CodeOrderNotPayable, "order is cancelled")
	}
	if plan.requireFull && plan.amount.LessThan(order.OutstandingAmount()) {
		return nil, apperr.New(apperr.CodeSplitInsufficient,
			fmt.Sprintf("splits total %s but %s is due", plan.amount.StringFixed(2), order.OutstandingAmount().StringFixed(2)))
	}

	now := p.now()
	local := now.In(p.loc)

	number, err := utils.NextDocumentNumber(tx, outletID, utils.PrefixPayment, local)
	if err != nil {
		return nil, err
	}

	var invoice *models.Invoice
	var inv models.Invoice
	err = tx.Where("order_id = ?", order.ID).First(&inv).Error
	switch {
	case err == nil:
		invoice = &inv
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}

	payment := models.Payment{
		OutletID:         outletID,
		OrderID:          order.ID,
		PaymentNumber:    number,
		Mode:             plan.mode,
		Amount:           plan.amount,
		TipAmount:        plan.tip,
		TotalAmount:      plan.amount.Add(plan.tip),
		RefundAmount:     decimal.Zero,
		Status:           models.PaymentStatusCompleted,
		Reference:        plan.reference,
		GatewayPaymentID: plan.gatewayPaymentID,
		BusinessDate:     utils.BusinessDate(local),
		Metadata:         plan.metadata,
		ReceivedBy:       plan.receivedBy,
		CreatedAt:        now.UTC(),
	}
	if invoice != nil {
		payment.InvoiceID = &invoice.ID
	}
	for _, s := range plan.splits {
		s.CreatedAt = now.UTC()
		payment.Splits = append(payment.Splits, s)
	}
	if err := tx.Create(&payment).Error; err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	paid, err := paidTotal(tx, order.ID)
	if err != nil {
		return nil, err
	}
	due := order.TotalAmount.Sub(paid)
	if due.IsNegative() {
		due = decimal.Zero
	}
	settled := !due.IsPositive()
	billStatus := models.BillStatusPending
	switch {
	case settled:
		billStatus = models.BillStatusCompleted
	case paid.IsPositive():
		billStatus = models.BillStatusPartial
	}

	updates := map[string]interface{}{
		"paid_amount":    paid,
		"due_amount":     due,
		"payment_status": billStatus,
	}
	if settled {
		updates["status"] = models.OrderStatusCompleted
		updates["completed_at"] = now.UTC()
	}
	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	if invoice != nil {
		invoiceUpdates := map[string]interface{}{"payment_status": billStatus}
		if settled {
			invoiceUpdates["paid_at"] = now.UTC()
		}
		if err := tx.Model(&models.Invoice{}).Where("id = ?", invoice.ID).Updates(invoiceUpdates).Error; err != nil {
			return nil, fmt.Errorf("failed to update invoice: %w", err)
		}
	}

	result := &Result{Payment: payment, Settled: settled}

	for _, cash := range plan.cash {
		refType := referencePayment
		entry, err := p.ledger.Append(tx, ledger.AppendParams{
			OutletID:      outletID,
			Type:          models.LedgerEntrySale,
			Amount:        cash,
			ReferenceType: &refType,
			ReferenceID:   &payment.ID,
			Description:   fmt.Sprintf("Cash sale %s for order %s", payment.PaymentNumber, order.OrderNumber),
			CreatedBy:     plan.receivedBy,
		})
		if err != nil {
			return nil, err
		}
		result.LedgerEntries = append(result.LedgerEntries, *entry)
	}

	if settled {
		released, err := p.release.ReleaseOnFullSettlement(tx, release.Request{
			OrderID:   order.ID,
			TableID:   order.TableID,
			SessionID: order.TableSessionID,
			ActorID:   plan.receivedBy,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to release order %d: %w", order.ID, err)
		}
		result.Release = released
	}

	if err := tx.First(&result.Order, "id = ?", order.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}

	if err := audit.WriteLog(tx, audit.LogOptions{
		OutletID:    &outletID,
		ActorID:     plan.receivedBy,
		EntityType:  audit.EntityPayment,
		EntityID:    payment.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("%s %s %s on order %s", payment.PaymentNumber, payment.Mode, payment.TotalAmount.StringFixed(2), order.OrderNumber),
		After:       payment,
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// paidTotal sums completed payment totals for an order.
func paidTotal(tx *gorm.DB, orderID int) (decimal.Decimal, error) {
	var totals []decimal.Decimal
	if err := tx.Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, models.PaymentStatusCompleted).
		Pluck("total_amount", &totals).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum payments: %w", err)
	}

	paid := decimal.Zero
	for _, t := range totals {
		paid = paid.Add(t)
	}
	return paid.Round(2), nil
}
