package staff

import (
	"pos_settlement/pkg/shift"
	"pos_settlement/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// OpenShift starts the day session for the outlet floor
func (ctl *Controller) OpenShift(c *gin.Context) {
	user, outletID, ok := actor(c)
	if !ok {
		return
	}

	var req struct {
		FloorID     int             `json:"floorId"`
		OpeningCash decimal.Decimal `json:"openingCash"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "openingCash is required")
		return
	}

	session, err := ctl.shifts.Open(c.Request.Context(), shift.OpenRequest{
		OutletID:    outletID,
		FloorID:     req.FloorID,
		OpeningCash: req.OpeningCash,
		UserID:      user.ID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.CreatedResponse(c, session, "Shift opened")
}

// CloseShift reconciles the drawer and closes the day session
func (ctl *Controller) CloseShift(c *gin.Context) {
	user, outletID, ok := actor(c)
	if !ok {
		return
	}

	var req struct {
		FloorID    int             `json:"floorId"`
		ActualCash decimal.Decimal `json:"actualCash"`
		Notes      string          `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "actualCash is required")
		return
	}

	result, err := ctl.shifts.Close(c.Request.Context(), shift.CloseRequest{
		OutletID:   outletID,
		FloorID:    req.FloorID,
		ActualCash: req.ActualCash,
		UserID:     user.ID,
		Notes:      req.Notes,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.SuccessResponse(c, result, "Shift closed")
}

// GetShiftStatus returns the open session, balance and recent entries
func (ctl *Controller) GetShiftStatus(c *gin.Context) {
	_, outletID, ok := actor(c)
	if !ok {
		return
	}

	view, err := ctl.shifts.Status(c.Request.Context(), outletID, queryInt(c, "floorId", 0), queryInt(c, "limit", 20))
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.SuccessResponse(c, view, "")
}
