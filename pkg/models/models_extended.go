package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// JSONMap type for JSONB fields in PostgreSQL
type JSONMap map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONMap source %T", value)
	}
	if len(bytes) == 0 {
		*j = nil
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Order model - totals are computed upstream; settlement only moves paid/due/status
type Order struct {
	ID             int             `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OutletID       int             `gorm:"index;not null;column:outlet_id" json:"outletId"`
	OrderNumber    string          `gorm:"not null;column:order_number" json:"orderNumber"`
	TableID        *int            `gorm:"column:table_id" json:"tableId"`
	TableSessionID *int            `gorm:"column:table_session_id" json:"tableSessionId"`
	CustomerName   *string         `gorm:"column:customer_name" json:"customerName"`
	CustomerPhone  *string         `gorm:"column:customer_phone" json:"customerPhone"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0;column:total_amount" json:"totalAmount"`
	PaidAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0;column:paid_amount" json:"paidAmount"`
	DueAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0;column:due_amount" json:"dueAmount"`
	PaymentStatus  BillStatus      `gorm:"type:text;default:'pending';column:payment_status" json:"paymentStatus"`
	Status         OrderStatus     `gorm:"type:text;default:'open';column:status" json:"status"`
	CreatedAt      time.Time       `gorm:"autoCreateTime;column:created_at" json:"createdAt"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime;column:updated_at" json:"updatedAt"`
	CompletedAt    *time.Time      `gorm:"column:completed_at" json:"completedAt"`

	// Relationships
	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// TableName specifies the table name for Order model
func (Order) TableName() string {
	return "orders"
}

// IsSettled reports whether the order can no longer accept payments.
func (o Order) IsSettled() bool {
	return o.Status == OrderStatusCompleted || o.PaymentStatus == BillStatusCompleted
}

// OutstandingAmount is max(0, total - paid) computed from the stored totals.
func (o Order) OutstandingAmount() decimal.Decimal {
	due := o.TotalAmount.Sub(o.PaidAmount)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// OrderItem model
type OrderItem struct {
	ID        int             `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OrderID   int             `gorm:"index;not null;column:order_id" json:"orderId"`
	Name      string          `gorm:"not null;column:name" json:"name"`
	Quantity  int             `gorm:"not null;column:quantity" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null;column:unit_price" json:"unitPrice"`
	Status    KitchenStatus   `gorm:"type:text;default:'pending';column:status" json:"status"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime;column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name for OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// Invoice model
type Invoice struct {
	ID            int             `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OrderID       int             `gorm:"uniqueIndex;not null;column:order_id" json:"orderId"`
	OutletID      int             `gorm:"not null;column:outlet_id" json:"outletId"`
	InvoiceNumber string          `gorm:"not null;column:invoice_number" json:"invoiceNumber"`
	GrandTotal    decimal.Decimal `gorm:"type:numeric(12,2);not null;column:grand_total" json:"grandTotal"`
	PaymentStatus BillStatus      `gorm:"type:text;default:'pending';column:payment_status" json:"paymentStatus"`
	PaidAt        *time.Time      `gorm:"column:paid_at" json:"paidAt"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;column:created_at" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime;column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name for Invoice model
func (Invoice) TableName() string {
	return "invoices"
}

// Payment model - one row per settlement attempt, immutable except RefundAmount
type Payment struct {
	ID               int             `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OutletID         int             `gorm:"not null;uniqueIndex:idx_payments_outlet_number;column:outlet_id" json:"outletId"`
	OrderID          int             `gorm:"index;not null;column:order_id" json:"orderId"`
	InvoiceID        *int            `gorm:"column:invoice_id" json:"invoiceId"`
	PaymentNumber    string          `gorm:"not null;uniqueIndex:idx_payments_outlet_number;column:payment_number" json:"paymentNumber"`
	Mode             PaymentMode     `gorm:"type:text;not null;column:mode" json:"mode"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null;column:amount" json:"amount"`
	TipAmount        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0;column:tip_amount" json:"tipAmount"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null;column:total_amount" json:"totalAmount"`
	RefundAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0;column:refund_amount" json:"refundAmount"`
	Status           PaymentStatus   `gorm:"type:text;not null;column:status" json:"status"`
	Reference        *string         `gorm:"column:reference" json:"reference"`
	GatewayPaymentID *string         `gorm:"column:gateway_payment_id" json:"gatewayPaymentId"`
	BusinessDate     string          `gorm:"type:varchar(10);index;not null;column:business_date" json:"businessDate"`
	Metadata         JSONMap         `gorm:"type:jsonb;column:metadata" json:"metadata"`
	ReceivedBy       *int            `gorm:"column:received_by" json:"receivedBy"`
	CreatedAt        time.Time       `gorm:"column:created_at" json:"createdAt"`

	// Relationships
	Splits []SplitPaymentEntry `gorm:"foreignKey:PaymentID" json:"splits,omitempty"`
}

// TableName specifies the table name for Payment model
func (Payment) TableName() string {
	return "payments"
}

// RefundableAmount is what is left of the payment after recorded refunds.
func (p Payment) RefundableAmount() decimal.Decimal {
	left := p.TotalAmount.Sub(p.RefundAmount)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// SplitPaymentEntry model - a single mode/amount leg of a split payment
type SplitPaymentEntry struct {
	ID               int             `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	PaymentID        int             `gorm:"index;not null;column:payment_id" json:"paymentId"`
	Mode             PaymentMode     `gorm:"type:text;not null;column:mode" json:"mode"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null;column:amount" json:"amount"`
	Reference        *string         `gorm:"column:reference" json:"reference"`
	GatewayPaymentID *string         `gorm:"column:gateway_payment_id" json:"gatewayPaymentId"`
	CreatedAt        time.Time       `gorm:"column:created_at" json:"createdAt"`
}

// TableName specifies the table name for SplitPaymentEntry model
func (SplitPaymentEntry) TableName() string {
	return "split_payment_entries"
}

// CashLedgerEntry model - append-only, never updated or deleted
type CashLedgerEntry struct {
	ID              int             `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OutletID        int             `gorm:"not null;index:idx_cash_ledger_outlet_date;column:outlet_id" json:"outletId"`
	TransactionType LedgerEntryType `gorm:"type:text;not null;column:transaction_type" json:"transactionType"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null;column:amount" json:"amount"`
	BalanceBefore   decimal.Decimal `gorm:"type:numeric(12,2);not null;column:balance_before" json:"balanceBefore"`
	BalanceAfter    decimal.Decimal `gorm:"type:numeric(12,2);not null;column:balance_after" json:"balanceAfter"`
	ReferenceType   *string         `gorm:"column:reference_type" json:"referenceType"`
	ReferenceID     *int            `gorm:"column:reference_id" json:"referenceId"`
	Description     string          `gorm:"column:description" json:"description"`
	BusinessDate    string          `gorm:"type:varchar(10);not null;index:idx_cash_ledger_outlet_date;column:business_date" json:"businessDate"`
	CreatedBy       *int            `gorm:"column:created_by" json:"createdBy"`
	CreatedAt       time.Time       `gorm:"column:created_at" json:"createdAt"`
}

// TableName specifies the table name for CashLedgerEntry model
func (CashLedgerEntry) TableName() string {
	return "cash_ledger_entries"
}

// CashLedgerHead model - one row per outlet, locked to serialize appends
type CashLedgerHead struct {
	OutletID    int             `gorm:"primaryKey;autoIncrement:false;column:outlet_id" json:"outletId"`
	Balance     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0;column:balance" json:"balance"`
	LastEntryID *int            `gorm:"column:last_entry_id" json:"lastEntryId"`
	EntryCount  int             `gorm:"not null;default:0;column:entry_count" json:"entryCount"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name for CashLedgerHead model
func (CashLedgerHead) TableName() string {
	return "cash_ledger_heads"
}

// DaySession model - a shift; FloorID 0 covers the whole outlet
type DaySession struct {
	ID            int              `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OutletID      int              `gorm:"not null;uniqueIndex:idx_day_sessions_key;column:outlet_id" json:"outletId"`
	FloorID       int              `gorm:"not null;default:0;uniqueIndex:idx_day_sessions_key;column:floor_id" json:"floorId"`
	SessionDate   string           `gorm:"type:varchar(10);not null;uniqueIndex:idx_day_sessions_key;column:session_date" json:"sessionDate"`
	Status        DaySessionStatus `gorm:"type:text;not null;column:status" json:"status"`
	OpeningCash   decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0;column:opening_cash" json:"openingCash"`
	ClosingCash   *decimal.Decimal `gorm:"type:numeric(12,2);column:closing_cash" json:"closingCash"`
	ExpectedCash  *decimal.Decimal `gorm:"type:numeric(12,2);column:expected_cash" json:"expectedCash"`
	CashVariance  *decimal.Decimal `gorm:"type:numeric(12,2);column:cash_variance" json:"cashVariance"`
	TotalSales    decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0;column:total_sales" json:"totalSales"`
	TotalOrders   int              `gorm:"not null;default:0;column:total_orders" json:"totalOrders"`
	CashSales     decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0;column:cash_sales" json:"cashSales"`
	CardSales     decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0;column:card_sales" json:"cardSales"`
	UPISales      decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0;column:upi_sales" json:"upiSales"`
	OtherSales    decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0;column:other_sales" json:"otherSales"`
	OpenedBy      int              `gorm:"not null;column:opened_by" json:"openedBy"`
	ClosedBy      *int             `gorm:"column:closed_by" json:"closedBy"`
	OpenedAt      time.Time        `gorm:"not null;column:opened_at" json:"openedAt"`
	ClosedAt      *time.Time       `gorm:"column:closed_at" json:"closedAt"`
	VarianceNotes *string          `gorm:"column:variance_notes" json:"varianceNotes"`
	CreatedAt     time.Time        `gorm:"autoCreateTime;column:created_at" json:"createdAt"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime;column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name for DaySession model
func (DaySession) TableName() string {
	return "day_sessions"
}

// Refund model - pending until approved, no further states
type Refund struct {
	ID           int             `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OutletID     int             `gorm:"not null;uniqueIndex:idx_refunds_outlet_number;column:outlet_id" json:"outletId"`
	OrderID      int             `gorm:"index;not null;column:order_id" json:"orderId"`
	PaymentID    int             `gorm:"index;not null;column:payment_id" json:"paymentId"`
	RefundNumber string          `gorm:"not null;uniqueIndex:idx_refunds_outlet_number;column:refund_number" json:"refundNumber"`
	Amount       decimal.Decimal `gorm:"type:numeric(12,2);not null;column:amount" json:"amount"`
	Mode         PaymentMode     `gorm:"type:text;not null;column:mode" json:"mode"`
	Status       RefundStatus    `gorm:"type:text;not null;column:status" json:"status"`
	Reason       string          `gorm:"column:reason" json:"reason"`
	RequestedBy  int             `gorm:"not null;column:requested_by" json:"requestedBy"`
	ApprovedBy   *int            `gorm:"column:approved_by" json:"approvedBy"`
	ApprovedAt   *time.Time      `gorm:"column:approved_at" json:"approvedAt"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime;column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name for Refund model
func (Refund) TableName() string {
	return "refunds"
}

// DocumentSequence model - daily counters behind PAY/REF numbers
type DocumentSequence struct {
	ID        int    `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OutletID  int    `gorm:"not null;uniqueIndex:idx_document_sequences_key;column:outlet_id" json:"outletId"`
	Prefix    string `gorm:"type:varchar(8);not null;uniqueIndex:idx_document_sequences_key;column:prefix" json:"prefix"`
	SeqDate   string `gorm:"type:varchar(10);not null;uniqueIndex:idx_document_sequences_key;column:seq_date" json:"seqDate"`
	LastValue int    `gorm:"not null;default:0;column:last_value" json:"lastValue"`
}

// TableName specifies the table name for DocumentSequence model
func (DocumentSequence) TableName() string {
	return "document_sequences"
}

// AuditLog model - written in the same transaction as the mutation it describes
type AuditLog struct {
	ID          int         `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OutletID    *int        `gorm:"index;column:outlet_id" json:"outletId"`
	ActorID     *int        `gorm:"column:actor_id" json:"actorId"`
	EntityType  string      `gorm:"size:50;index;column:entity_type" json:"entityType"`
	EntityID    int         `gorm:"index;column:entity_id" json:"entityId"`
	Action      AuditAction `gorm:"size:20;column:action" json:"action"`
	Description string      `gorm:"size:255;column:description" json:"description"`
	AfterData   string      `gorm:"type:text;column:after_data" json:"afterData"`
	CreatedAt   time.Time   `gorm:"autoCreateTime;column:created_at" json:"createdAt"`
}

// TableName specifies the table name for AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}
