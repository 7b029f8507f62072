package models

import (
	"time"
)

// Outlet model
type Outlet struct {
	ID        int       `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Name      string    `gorm:"not null;column:name" json:"name"`
	Address   *string   `gorm:"column:address" json:"address"`
	Phone     *string   `gorm:"column:phone" json:"phone"`
	IsActive  bool      `gorm:"default:true;column:is_active" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime;column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;column:updated_at" json:"updatedAt"`

	// Relationships
	Tables []DiningTable `gorm:"foreignKey:OutletID" json:"tables,omitempty"`
	Users  []User        `gorm:"foreignKey:OutletID" json:"users,omitempty"`
}

// TableName specifies the table name for Outlet model
func (Outlet) TableName() string {
	return "outlets"
}

// User model - staff identity that settles bills, approves refunds and runs shifts
type User struct {
	ID               int       `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Email            string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	Name             string    `gorm:"not null;column:name" json:"name"`
	Password         *string   `gorm:"column:password" json:"-"` // Don't expose password in JSON
	Role             Role      `gorm:"type:text;default:'STAFF';column:role" json:"role"`
	OutletID         *int      `gorm:"column:outlet_id" json:"outletId"`
	Phone            *string   `gorm:"column:phone" json:"phone"`
	IsVerified       bool      `gorm:"default:false;column:is_verified" json:"isVerified"`
	TwoFactorEnabled bool      `gorm:"default:false;column:two_factor_enabled" json:"twoFactorEnabled"`
	TwoFactorSecret  *string   `gorm:"column:two_factor_secret" json:"-"` // Don't expose secret
	CreatedAt        time.Time `gorm:"autoCreateTime;column:created_at" json:"createdAt"`

	// Relationships
	Outlet *Outlet `gorm:"foreignKey:OutletID;references:ID" json:"outlet,omitempty"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// UserDeviceToken model - push tokens registered against a customer phone number
type UserDeviceToken struct {
	ID          int       `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	Phone       string    `gorm:"index;not null;column:phone" json:"phone"`
	DeviceToken string    `gorm:"uniqueIndex;not null;column:device_token" json:"deviceToken"`
	CreatedAt   time.Time `gorm:"autoCreateTime;column:created_at" json:"createdAt"`
}

// TableName specifies the table name for UserDeviceToken model
func (UserDeviceToken) TableName() string {
	return "user_device_tokens"
}

// DiningTable model - a physical table on an outlet floor
type DiningTable struct {
	ID        int         `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OutletID  int         `gorm:"index;not null;column:outlet_id" json:"outletId"`
	FloorID   int         `gorm:"default:0;column:floor_id" json:"floorId"`
	Name      string      `gorm:"not null;column:name" json:"name"`
	Capacity  int         `gorm:"not null;default:1;column:capacity" json:"capacity"`
	Status    TableStatus `gorm:"type:text;default:'available';column:status" json:"status"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime;column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name for DiningTable model
func (DiningTable) TableName() string {
	return "dining_tables"
}

// TableMerge model - a secondary table temporarily joined to a primary table
type TableMerge struct {
	ID             int        `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	PrimaryTableID int        `gorm:"index;not null;column:primary_table_id" json:"primaryTableId"`
	MergedTableID  int        `gorm:"not null;column:merged_table_id" json:"mergedTableId"`
	MergedAt       time.Time  `gorm:"not null;column:merged_at" json:"mergedAt"`
	UnmergedAt     *time.Time `gorm:"column:unmerged_at" json:"unmergedAt"`

	// Relationships
	MergedTable DiningTable `gorm:"foreignKey:MergedTableID;references:ID" json:"mergedTable,omitempty"`
}

// TableName specifies the table name for TableMerge model
func (TableMerge) TableName() string {
	return "table_merges"
}

// TableSession model - seating of guests at a table, bounded by start and end
type TableSession struct {
	ID        int                `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	TableID   int                `gorm:"index;not null;column:table_id" json:"tableId"`
	OutletID  int                `gorm:"not null;column:outlet_id" json:"outletId"`
	Status    TableSessionStatus `gorm:"type:text;default:'active';column:status" json:"status"`
	StartedAt time.Time          `gorm:"not null;column:started_at" json:"startedAt"`
	EndedAt   *time.Time         `gorm:"column:ended_at" json:"endedAt"`
	ClosedBy  *int               `gorm:"column:closed_by" json:"closedBy"`
}

// TableName specifies the table name for TableSession model
func (TableSession) TableName() string {
	return "table_sessions"
}

// KitchenTicket model - a KOT sent to the kitchen for an order
type KitchenTicket struct {
	ID           int           `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OutletID     int           `gorm:"not null;column:outlet_id" json:"outletId"`
	OrderID      int           `gorm:"index;not null;column:order_id" json:"orderId"`
	TicketNumber string        `gorm:"not null;column:ticket_number" json:"ticketNumber"`
	Status       KitchenStatus `gorm:"type:text;default:'pending';column:status" json:"status"`
	ServedAt     *time.Time    `gorm:"column:served_at" json:"servedAt"`
	CreatedAt    time.Time     `gorm:"autoCreateTime;column:created_at" json:"createdAt"`
	UpdatedAt    time.Time     `gorm:"autoUpdateTime;column:updated_at" json:"updatedAt"`

	// Relationships
	Items []KitchenTicketItem `gorm:"foreignKey:TicketID" json:"items,omitempty"`
}

// TableName specifies the table name for KitchenTicket model
func (KitchenTicket) TableName() string {
	return "kitchen_tickets"
}

// KitchenTicketItem model
type KitchenTicketItem struct {
	ID          int           `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	TicketID    int           `gorm:"index;not null;column:ticket_id" json:"ticketId"`
	OrderItemID *int          `gorm:"column:order_item_id" json:"orderItemId"`
	Name        string        `gorm:"not null;column:name" json:"name"`
	Quantity    int           `gorm:"not null;default:1;column:quantity" json:"quantity"`
	Status      KitchenStatus `gorm:"type:text;default:'pending';column:status" json:"status"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime;column:updated_at" json:"updatedAt"`
}

// TableName specifies the table name for KitchenTicketItem model
func (KitchenTicketItem) TableName() string {
	return "kitchen_ticket_items"
}
