// Package testutil opens throwaway sqlite databases and seeds settlement fixtures.
package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pos_settlement/pkg/database"
	"pos_settlement/pkg/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB returns a migrated sqlite database that lives for the duration of t.
// A single connection serializes writers the way row locks do on Postgres.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pos.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current frozen time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Dec parses a decimal literal, failing the test on bad input.
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

// AssertDec fails t when got and want differ numerically.
func AssertDec(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(Dec(t, want)) {
		t.Errorf("%s = %s, want %s", label, got.StringFixed(2), want)
	}
}

// SeedOutlet inserts an active outlet.
func SeedOutlet(t *testing.T, db *gorm.DB, name string) models.Outlet {
	t.Helper()
	outlet := models.Outlet{Name: name, IsActive: true}
	if err := db.Create(&outlet).Error; err != nil {
		t.Fatalf("seed outlet: %v", err)
	}
	return outlet
}

// SeedUser inserts a user bound to an outlet.
func SeedUser(t *testing.T, db *gorm.DB, outletID int, email string, role models.Role) models.User {
	t.Helper()
	user := models.User{Email: email, Name: email, Role: role, OutletID: &outletID, IsVerified: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedTable inserts a dining table.
func SeedTable(t *testing.T, db *gorm.DB, outletID int, name string, capacity int, status models.TableStatus) models.DiningTable {
	t.Helper()
	table := models.DiningTable{OutletID: outletID, Name: name, Capacity: capacity, Status: status}
	if err := db.Create(&table).Error; err != nil {
		t.Fatalf("seed table: %v", err)
	}
	return table
}

// SeedTableSession opens an active seating on a table.
func SeedTableSession(t *testing.T, db *gorm.DB, table models.DiningTable, startedAt time.Time) models.TableSession {
	t.Helper()
	session := models.TableSession{
		TableID:   table.ID,
		OutletID:  table.OutletID,
		Status:    models.TableSessionActive,
		StartedAt: startedAt,
	}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("seed table session: %v", err)
	}
	return session
}

// SeedMerge joins merged onto primary.
func SeedMerge(t *testing.T, db *gorm.DB, primary, merged models.DiningTable, at time.Time) models.TableMerge {
	t.Helper()
	merge := models.TableMerge{PrimaryTableID: primary.ID, MergedTableID: merged.ID, MergedAt: at}
	if err := db.Create(&merge).Error; err != nil {
		t.Fatalf("seed merge: %v", err)
	}
	return merge
}

// OrderSeed describes an order fixture.
type OrderSeed struct {
	OutletID       int
	Total          string
	TableID        *int
	TableSessionID *int
	CustomerPhone  *string
	Status         models.OrderStatus
	WithInvoice    bool
}

// SeedOrder inserts an unpaid order, and optionally its invoice.
func SeedOrder(t *testing.T, db *gorm.DB, seed OrderSeed) models.Order {
	t.Helper()
	status := seed.Status
	if status == "" {
		status = models.OrderStatusOpen
	}
	total := Dec(t, seed.Total)

	var count int64
	db.Model(&models.Order{}).Where("outlet_id = ?", seed.OutletID).Count(&count)

	order := models.Order{
		OutletID:       seed.OutletID,
		OrderNumber:    "ORD" + decimal.NewFromInt(count+1).String(),
		TableID:        seed.TableID,
		TableSessionID: seed.TableSessionID,
		CustomerPhone:  seed.CustomerPhone,
		TotalAmount:    total,
		PaidAmount:     decimal.Zero,
		DueAmount:      total,
		PaymentStatus:  models.BillStatusPending,
		Status:         status,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	if seed.WithInvoice {
		invoice := models.Invoice{
			OrderID:       order.ID,
			OutletID:      order.OutletID,
			InvoiceNumber: "INV-" + order.OrderNumber,
			GrandTotal:    total,
			PaymentStatus: models.BillStatusPending,
		}
		if err := db.Create(&invoice).Error; err != nil {
			t.Fatalf("seed invoice: %v", err)
		}
	}
	return order
}

// SeedTicket inserts a kitchen ticket with one item per status.
func SeedTicket(t *testing.T, db *gorm.DB, order models.Order, status models.KitchenStatus, itemStatuses ...models.KitchenStatus) models.KitchenTicket {
	t.Helper()
	ticket := models.KitchenTicket{
		OutletID:     order.OutletID,
		OrderID:      order.ID,
		TicketNumber: "KOT-" + order.OrderNumber,
		Status:       status,
	}
	if err := db.Create(&ticket).Error; err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	for i, s := range itemStatuses {
		item := models.KitchenTicketItem{
			TicketID: ticket.ID,
			Name:     "item-" + decimal.NewFromInt(int64(i+1)).String(),
			Quantity: 1,
			Status:   s,
		}
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("seed ticket item: %v", err)
		}
	}
	return ticket
}

// SeedOrderItem inserts an order line.
func SeedOrderItem(t *testing.T, db *gorm.DB, orderID int, name string, price string, status models.KitchenStatus) models.OrderItem {
	t.Helper()
	item := models.OrderItem{OrderID: orderID, Name: name, Quantity: 1, UnitPrice: Dec(t, price), Status: status}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("seed order item: %v", err)
	}
	return item
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// StrPtr returns a pointer to v.
func StrPtr(v string) *string { return &v }
