package audit

import (
	"encoding/json"
	"fmt"

	"pos_settlement/pkg/models"

	"gorm.io/gorm"
)

// Entity types recorded in the audit trail
const (
	EntityPayment    = "payment"
	EntityRefund     = "refund"
	EntityDaySession = "day_session"
	EntityCashLedger = "cash_ledger"
)

type LogOptions struct {
	OutletID    *int
	ActorID     *int
	EntityType  string
	EntityID    int
	Action      models.AuditAction
	Description string
	After       any
}

// WriteLog records a mutation through tx so it commits or rolls back with it.
func WriteLog(tx *gorm.DB, opts LogOptions) error {
	afterStr := "null"
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	entry := models.AuditLog{
		OutletID:    opts.OutletID,
		ActorID:     opts.ActorID,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		AfterData:   afterStr,
	}

	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	return nil
}

// ForEntity returns the trail of one entity, oldest first.
func ForEntity(db *gorm.DB, entityType string, entityID int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load audit logs: %w", err)
	}
	return logs, nil
}
