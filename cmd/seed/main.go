package main

import (
	"log"
	"time"

	"pos_settlement/pkg/config"
	"pos_settlement/pkg/database"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func main() {
	config.LoadConfig()

	if err := database.InitDatabase(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.CloseDatabase()

	if err := database.AutoMigrate(database.DB); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	outlet := seedOutlet(database.DB, "Main Outlet")
	seedUser(database.DB, "admin@pos.local", "Outlet Admin", "admin123", models.RoleAdmin, nil)
	seedUser(database.DB, "manager@pos.local", "Floor Manager", "manager123", models.RoleManager, &outlet.ID)
	seedUser(database.DB, "cashier@pos.local", "Cashier", "cashier123", models.RoleStaff, &outlet.ID)

	var tables []models.DiningTable
	for _, name := range []string{"T1", "T2", "T3", "T4"} {
		tables = append(tables, seedTable(database.DB, outlet.ID, name))
	}

	seedDemoOrder(database.DB, outlet.ID, tables[0])
}

func seedOutlet(db *gorm.DB, name string) models.Outlet {
	var outlet models.Outlet
	if err := db.Where("name = ?", name).First(&outlet).Error; err == nil {
		log.Printf("Outlet %s already exists", name)
		return outlet
	}

	outlet = models.Outlet{Name: name, IsActive: true}
	if err := db.Create(&outlet).Error; err != nil {
		log.Fatal("Failed to create outlet:", err)
	}
	log.Printf("✅ Outlet %s created successfully", name)
	return outlet
}

func seedUser(db *gorm.DB, email, name, password string, role models.Role, outletID *int) {
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err == nil {
		log.Printf("User %s already exists", email)
		if !user.IsVerified {
			db.Model(&user).Update("is_verified", true)
			log.Printf("✅ User %s verified", email)
		}
		return
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	user = models.User{
		Name:       name,
		Email:      email,
		Password:   &hashedPassword,
		Role:       role,
		OutletID:   outletID,
		IsVerified: true,
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("Failed to create %s: %v", role, err)
	}
	log.Printf("✅ %s %s created successfully", role, email)
}

func seedTable(db *gorm.DB, outletID int, name string) models.DiningTable {
	table := models.DiningTable{OutletID: outletID, Name: name, Capacity: 4, Status: models.TableStatusAvailable}
	if err := db.Where("outlet_id = ? AND name = ?", outletID, name).FirstOrCreate(&table).Error; err != nil {
		log.Fatalf("Failed to create table %s: %v", name, err)
	}
	return table
}

// seedDemoOrder seats a table with an unpaid order so a payment can be tried end to end.
func seedDemoOrder(db *gorm.DB, outletID int, table models.DiningTable) {
	const orderNumber = "DEMO-0001"

	var existing models.Order
	if err := db.Where("outlet_id = ? AND order_number = ?", outletID, orderNumber).First(&existing).Error; err == nil {
		log.Printf("Demo order %s already exists", orderNumber)
		return
	}

	total := decimal.NewFromInt(450)
	err := db.Transaction(func(tx *gorm.DB) error {
		session := models.TableSession{
			TableID:   table.ID,
			OutletID:  outletID,
			Status:    models.TableSessionActive,
			StartedAt: time.Now().UTC(),
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.DiningTable{}).Where("id = ?", table.ID).
			Update("status", models.TableStatusOccupied).Error; err != nil {
			return err
		}

		order := models.Order{
			OutletID:       outletID,
			OrderNumber:    orderNumber,
			TableID:        &table.ID,
			TableSessionID: &session.ID,
			TotalAmount:    total,
			PaidAmount:     decimal.Zero,
			DueAmount:      total,
			PaymentStatus:  models.BillStatusPending,
			Status:         models.OrderStatusOpen,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		invoice := models.Invoice{
			OrderID:       order.ID,
			OutletID:      outletID,
			InvoiceNumber: "INV-" + orderNumber,
			GrandTotal:    total,
			PaymentStatus: models.BillStatusPending,
		}
		return tx.Create(&invoice).Error
	})
	if err != nil {
		log.Fatalf("Failed to create demo order: %v", err)
	}
	log.Printf("✅ Demo order %s created on table %s", orderNumber, table.Name)
}
