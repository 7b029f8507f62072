package models

// Role enum
type Role string

const (
	RoleStaff   Role = "STAFF"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

// OrderStatus enum
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// BillStatus enum - settlement state of an order or invoice
type BillStatus string

const (
	BillStatusPending   BillStatus = "pending"
	BillStatusPartial   BillStatus = "partial"
	BillStatusCompleted BillStatus = "completed"
)

// PaymentMode enum
type PaymentMode string

const (
	PaymentModeCash          PaymentMode = "cash"
	PaymentModeCard          PaymentMode = "card"
	PaymentModeUPI           PaymentMode = "upi"
	PaymentModeWallet        PaymentMode = "wallet"
	PaymentModeCredit        PaymentMode = "credit"
	PaymentModeComplimentary PaymentMode = "complimentary"
	PaymentModeSplit         PaymentMode = "split"
)

// Valid reports whether m is a known payment mode.
func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeCash, PaymentModeCard, PaymentModeUPI, PaymentModeWallet,
		PaymentModeCredit, PaymentModeComplimentary, PaymentModeSplit:
		return true
	}
	return false
}

// IsGateway reports whether payments in this mode carry a gateway reference.
func (m PaymentMode) IsGateway() bool {
	return m == PaymentModeCard || m == PaymentModeUPI
}

// PaymentStatus enum
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// LedgerEntryType enum
type LedgerEntryType string

const (
	LedgerEntryOpening LedgerEntryType = "opening"
	LedgerEntrySale    LedgerEntryType = "sale"
	LedgerEntryCashIn  LedgerEntryType = "cash_in"
	LedgerEntryCashOut LedgerEntryType = "cash_out"
	LedgerEntryRefund  LedgerEntryType = "refund"
	LedgerEntryExpense LedgerEntryType = "expense"
	LedgerEntryClosing LedgerEntryType = "closing"
)

// Valid reports whether t is a known ledger entry type.
func (t LedgerEntryType) Valid() bool {
	switch t {
	case LedgerEntryOpening, LedgerEntrySale, LedgerEntryCashIn, LedgerEntryCashOut,
		LedgerEntryRefund, LedgerEntryExpense, LedgerEntryClosing:
		return true
	}
	return false
}

// DaySessionStatus enum
type DaySessionStatus string

const (
	DaySessionOpen   DaySessionStatus = "open"
	DaySessionClosed DaySessionStatus = "closed"
)

// RefundStatus enum
type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
)

// TableStatus enum
type TableStatus string

const (
	TableStatusAvailable TableStatus = "available"
	TableStatusOccupied  TableStatus = "occupied"
	TableStatusReserved  TableStatus = "reserved"
)

// TableSessionStatus enum
type TableSessionStatus string

const (
	TableSessionActive    TableSessionStatus = "active"
	TableSessionCompleted TableSessionStatus = "completed"
)

// KitchenStatus enum - shared by kitchen tickets, their items and order items
type KitchenStatus string

const (
	KitchenStatusPending   KitchenStatus = "pending"
	KitchenStatusPreparing KitchenStatus = "preparing"
	KitchenStatusReady     KitchenStatus = "ready"
	KitchenStatusServed    KitchenStatus = "served"
	KitchenStatusCancelled KitchenStatus = "cancelled"
)

// TerminalKitchenStatuses are never rewritten by settlement.
var TerminalKitchenStatuses = []KitchenStatus{KitchenStatusServed, KitchenStatusCancelled}

// AuditAction enum
type AuditAction string

const (
	AuditActionCreate  AuditAction = "create"
	AuditActionUpdate  AuditAction = "update"
	AuditActionApprove AuditAction = "approve"
	AuditActionOpen    AuditAction = "open"
	AuditActionClose   AuditAction = "close"
)
