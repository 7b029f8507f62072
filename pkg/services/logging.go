package services

import (
	"context"
	"encoding/json"
	"log"
)

// LogPublisher writes events to the log. Used when FCM is not configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, topic string, payload EventPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	log.Printf("[events] %s outlet=%d order=%d %s", topic, payload.OutletID, payload.OrderID, body)
	return nil
}

// LogReceiptSender writes receipts to the log. Used when GCS/FCM are not configured.
type LogReceiptSender struct{}

func (LogReceiptSender) SendReceipt(_ context.Context, phone string, invoice ReceiptInvoice, outlet ReceiptOutlet) error {
	log.Printf("[receipts] %s for order %d at %s -> %s", invoice.InvoiceNumber, invoice.OrderID, outlet.Name, phone)
	return nil
}
