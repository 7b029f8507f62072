package staff

import (
	"pos_settlement/pkg/audit"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/utils"

	"github.com/gin-gonic/gin"
)

// GetAuditTrail returns the audit rows of one payment, refund, day session
// or ledger entry, restricted to the caller's outlet.
func (ctl *Controller) GetAuditTrail(c *gin.Context) {
	_, outletID, ok := actor(c)
	if !ok {
		return
	}
	entityID, ok := paramID(c, "entityId")
	if !ok {
		return
	}

	entityType := c.Param("entityType")
	switch entityType {
	case audit.EntityPayment, audit.EntityRefund, audit.EntityDaySession, audit.EntityCashLedger:
	default:
		utils.BadRequestResponse(c, "Unknown entity type")
		return
	}

	logs, err := audit.ForEntity(ctl.db.WithContext(c.Request.Context()), entityType, entityID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	trail := make([]models.AuditLog, 0, len(logs))
	for _, l := range logs {
		if l.OutletID != nil && *l.OutletID == outletID {
			trail = append(trail, l)
		}
	}
	utils.SuccessResponse(c, trail, "")
}
