package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"pos_settlement/pkg/models"

	"gorm.io/gorm"
)

type archiveFunc func(ctx context.Context, name, contentType string, data []byte) (string, error)

type pushFunc func(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error)

// ReceiptDelivery archives the receipt to GCS and pushes it to the
// customer's registered devices.
type ReceiptDelivery struct {
	db      *gorm.DB
	archive archiveFunc
	push    pushFunc
}

// NewReceiptDelivery wires whichever of GCS and FCM were initialized.
func NewReceiptDelivery(db *gorm.DB) *ReceiptDelivery {
	r := &ReceiptDelivery{db: db}
	if GCSEnabled() {
		r.archive = UploadObject
	}
	if FCMEnabled() {
		r.push = SendBulkPushNotifications
	}
	return r
}

// ReceiptObjectName is where a receipt lives in the bucket.
func ReceiptObjectName(outletID int, invoiceNumber string) string {
	return fmt.Sprintf("receipts/%d/%s.json", outletID, invoiceNumber)
}

// SendReceipt archives the receipt to the bucket when one is configured and
// pushes a notification to the devices registered for the customer's phone.
func (r *ReceiptDelivery) SendReceipt(ctx context.Context, phone string, invoice ReceiptInvoice, outlet ReceiptOutlet) error {
	data := map[string]string{
		"type":          "receipt",
		"invoiceNumber": invoice.InvoiceNumber,
		"orderId":       fmt.Sprintf("%d", invoice.OrderID),
		"amount":        invoice.PaidAmount,
	}

	if r.archive != nil {
		body, err := json.Marshal(map[string]interface{}{
			"invoice": invoice,
			"outlet":  outlet,
			"phone":   phone,
		})
		if err != nil {
			return fmt.Errorf("failed to encode receipt: %w", err)
		}
		url, err := r.archive(ctx, ReceiptObjectName(outlet.ID, invoice.InvoiceNumber), "application/json", body)
		if err != nil {
			return fmt.Errorf("failed to archive receipt: %w", err)
		}
		data["receiptUrl"] = url
	}

	if r.push == nil {
		log.Printf("[receipts] push disabled, %s for %s archived only", invoice.InvoiceNumber, phone)
		return nil
	}

	var tokens []models.UserDeviceToken
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).Find(&tokens).Error; err != nil {
		return fmt.Errorf("failed to load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		log.Printf("[receipts] no devices registered for %s", phone)
		return nil
	}

	deviceTokens := make([]string, 0, len(tokens))
	for _, t := range tokens {
		deviceTokens = append(deviceTokens, t.DeviceToken)
	}

	title := fmt.Sprintf("Receipt from %s", outlet.Name)
	body := fmt.Sprintf("Paid %s for order %s", invoice.PaidAmount, invoice.OrderNumber)
	delivered, err := r.push(ctx, deviceTokens, title, body, data)
	if err != nil {
		return fmt.Errorf("failed to push receipt: %w", err)
	}
	if len(delivered) == 0 {
		return fmt.Errorf("receipt %s reached none of %d devices", invoice.InvoiceNumber, len(deviceTokens))
	}
	return nil
}
