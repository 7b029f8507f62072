package payment

import (
	"context"
	"log"

	"pos_settlement/pkg/models"
	"pos_settlement/pkg/services"
)

// notify hands post-commit side effects to the notifier. Nothing here can
// fail the settlement.
func (p *Processor) notify(ctx context.Context, result *Result) {
	if p.notifier == nil || result == nil {
		return
	}
	order := result.Order

	p.notifier.PublishAsync(services.TopicOrderUpdate, services.EventPayload{
		OutletID: order.OutletID,
		OrderID:  order.ID,
		Entity:   "order",
		Data:     order,
	})
	p.notifier.PublishAsync(services.TopicBillStatus, services.EventPayload{
		OutletID: order.OutletID,
		OrderID:  order.ID,
		Entity:   "payment",
		Data: map[string]interface{}{
			"paymentNumber": result.Payment.PaymentNumber,
			"mode":          result.Payment.Mode,
			"totalAmount":   result.Payment.TotalAmount,
			"paidAmount":    order.PaidAmount,
			"dueAmount":     order.DueAmount,
			"paymentStatus": order.PaymentStatus,
		},
	})

	if result.Release != nil {
		if result.Release.TablesChanged() {
			p.notifier.PublishAsync(services.TopicTableUpdate, services.EventPayload{
				OutletID: order.OutletID,
				OrderID:  order.ID,
				Entity:   "table",
				Data:     result.Release,
			})
		}
		if result.Release.Served.Total() > 0 {
			p.notifier.PublishAsync(services.TopicKOTUpdate, services.EventPayload{
				OutletID: order.OutletID,
				OrderID:  order.ID,
				Entity:   "kitchen_ticket",
				Data:     result.Release.Served,
			})
		}
	}

	if result.Settled && order.CustomerPhone != nil && *order.CustomerPhone != "" {
		p.queueReceipt(ctx, result)
	}
}

func (p *Processor) queueReceipt(ctx context.Context, result *Result) {
	order := result.Order

	var outlet models.Outlet
	if err := p.db.WithContext(ctx).First(&outlet, "id = ?", order.OutletID).Error; err != nil {
		log.Printf("[payment] receipt for order %d skipped: %v", order.ID, err)
		return
	}

	invoiceNumber := order.OrderNumber
	var invoice models.Invoice
	if err := p.db.WithContext(ctx).Where("order_id = ?", order.ID).First(&invoice).Error; err == nil {
		invoiceNumber = invoice.InvoiceNumber
	}

	var items []models.OrderItem
	if err := p.db.WithContext(ctx).Where("order_id = ?", order.ID).Order("id ASC").Find(&items).Error; err != nil {
		log.Printf("[payment] receipt lines for order %d unavailable: %v", order.ID, err)
	}

	p.notifier.SendReceiptAsync(*order.CustomerPhone, services.ReceiptInvoice{
		InvoiceNumber: invoiceNumber,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		GrandTotal:    order.TotalAmount.StringFixed(2),
		PaidAmount:    order.PaidAmount.StringFixed(2),
		PaymentNumber: result.Payment.PaymentNumber,
		PaymentMode:   string(result.Payment.Mode),
		PaidAt:        result.Payment.CreatedAt,
		Lines:         items,
	}, services.ReceiptOutlet{
		ID:      outlet.ID,
		Name:    outlet.Name,
		Address: outlet.Address,
		Phone:   outlet.Phone,
	})
}
