package database

import (
	"fmt"
	"log"

	"pos_settlement/pkg/config"
	"pos_settlement/pkg/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDatabase initializes the database connection
func InitDatabase() error {
	var err error

	gormConfig := &gorm.Config{
		PrepareStmt: false,
	}

	// Development mode - verbose logging
	if config.IsDevelopment() {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	} else {
		// Production mode - only errors
		gormConfig.Logger = logger.Default.LogMode(logger.Error)
	}

	// Connect to PostgreSQL with implicit prepared statements disabled
	DB, err = gorm.Open(postgres.New(postgres.Config{
		DSN:                  config.AppConfig.DatabaseURL,
		PreferSimpleProtocol: true,
	}), gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	log.Println("✅ Database connection established")

	return nil
}

// AutoMigrate runs auto-migration for all models
func AutoMigrate(db *gorm.DB) error {
	log.Println("🔄 Running database migrations...")

	err := db.AutoMigrate(
		// Core models
		&models.Outlet{},
		&models.User{},
		&models.UserDeviceToken{},

		// Floor
		&models.DiningTable{},
		&models.TableMerge{},
		&models.TableSession{},

		// Orders & Kitchen
		&models.Order{},
		&models.OrderItem{},
		&models.KitchenTicket{},
		&models.KitchenTicketItem{},
		&models.Invoice{},

		// Settlement
		&models.Payment{},
		&models.SplitPaymentEntry{},
		&models.Refund{},
		&models.DocumentSequence{},

		// Cash
		&models.CashLedgerHead{},
		&models.CashLedgerEntry{},
		&models.DaySession{},

		// Audit
		&models.AuditLog{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("✅ Database migrations completed")

	return createIndexes(db)
}

// createIndexes creates the indexes gorm tags cannot express
func createIndexes(db *gorm.DB) error {
	log.Println("🔄 Creating additional indexes...")

	statements := []string{
		// At most one open shift per outlet; the cash drawer is outlet-wide
		`DROP INDEX IF EXISTS day_sessions_open_key`,
		`CREATE UNIQUE INDEX IF NOT EXISTS day_sessions_open_outlet_key ON day_sessions(outlet_id) WHERE status = 'open'`,

		// Active merges per primary table
		`CREATE INDEX IF NOT EXISTS table_merges_active_idx ON table_merges(primary_table_id) WHERE unmerged_at IS NULL`,

		// Pending refunds per payment
		`CREATE INDEX IF NOT EXISTS refunds_payment_status_idx ON refunds(payment_id, status)`,

		// Ledger walk order
		`CREATE INDEX IF NOT EXISTS cash_ledger_entries_outlet_id_idx ON cash_ledger_entries(outlet_id, id)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	log.Println("✅ Additional indexes created")
	return nil
}

// CloseDatabase closes the database connection
func CloseDatabase() {
	sqlDB, err := DB.DB()
	if err != nil {
		log.Printf("Error getting database instance: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	} else {
		log.Println("✅ Database connection closed")
	}
}
