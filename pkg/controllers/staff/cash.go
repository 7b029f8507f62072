package staff

import (
	"pos_settlement/pkg/ledger"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// RecordCashMovement books a cash_in, cash_out or expense entry
func (ctl *Controller) RecordCashMovement(c *gin.Context) {
	user, outletID, ok := actor(c)
	if !ok {
		return
	}

	var req struct {
		Type        models.LedgerEntryType `json:"type" binding:"required"`
		Amount      decimal.Decimal        `json:"amount"`
		Description string                 `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "type and amount are required")
		return
	}

	entry, err := ctl.ledger.RecordMovement(c.Request.Context(), ledger.MovementParams{
		OutletID:    outletID,
		Type:        req.Type,
		Amount:      req.Amount,
		Description: req.Description,
		ActorID:     &user.ID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.CreatedResponse(c, entry, "Cash movement recorded")
}

// GetCashBalance returns the drawer balance
func (ctl *Controller) GetCashBalance(c *gin.Context) {
	_, outletID, ok := actor(c)
	if !ok {
		return
	}

	balance, err := ctl.ledger.Balance(c.Request.Context(), outletID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.SuccessResponse(c, gin.H{"outletId": outletID, "balance": balance}, "")
}

// GetCashEntries returns recent ledger entries, newest first
func (ctl *Controller) GetCashEntries(c *gin.Context) {
	_, outletID, ok := actor(c)
	if !ok {
		return
	}

	entries, err := ctl.ledger.Recent(c.Request.Context(), outletID, queryInt(c, "limit", 20))
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.SuccessResponse(c, entries, "")
}

// GetCashSummary returns per-type totals for a business date (?date=YYYY-MM-DD)
func (ctl *Controller) GetCashSummary(c *gin.Context) {
	_, outletID, ok := actor(c)
	if !ok {
		return
	}

	date := c.Query("date")
	if date == "" {
		date = ctl.ledger.Today()
	}
	totals, err := ctl.ledger.Totals(c.Request.Context(), outletID, date)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.SuccessResponse(c, gin.H{"businessDate": date, "totals": totals}, "")
}

// VerifyCashLedger walks the outlet chain and reports the first broken link
func (ctl *Controller) VerifyCashLedger(c *gin.Context) {
	_, outletID, ok := actor(c)
	if !ok {
		return
	}

	report, err := ctl.ledger.Verify(c.Request.Context(), outletID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.SuccessResponse(c, report, "")
}
