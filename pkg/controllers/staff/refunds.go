package staff

import (
	"errors"
	"net/http"

	"pos_settlement/pkg/models"
	"pos_settlement/pkg/refund"
	"pos_settlement/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InitiateRefund records a pending refund against a payment
func (ctl *Controller) InitiateRefund(c *gin.Context) {
	user, outletID, ok := actor(c)
	if !ok {
		return
	}

	var req struct {
		OrderID   int                `json:"orderId" binding:"required"`
		PaymentID int                `json:"paymentId" binding:"required"`
		Amount    decimal.Decimal    `json:"amount"`
		Mode      models.PaymentMode `json:"refundMode"`
		Reason    string             `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "orderId, paymentId, amount and reason are required")
		return
	}

	var pay models.Payment
	if err := ctl.db.WithContext(c.Request.Context()).Select("id", "outlet_id").First(&pay, req.PaymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "PAYMENT_NOT_FOUND", "payment not found")
			return
		}
		_ = c.Error(err)
		return
	}
	if pay.OutletID != outletID {
		forbidden(c)
		return
	}

	created, err := ctl.refunds.Initiate(c.Request.Context(), refund.InitiateRequest{
		OrderID:     req.OrderID,
		PaymentID:   req.PaymentID,
		Amount:      req.Amount,
		Mode:        req.Mode,
		Reason:      req.Reason,
		RequestedBy: user.ID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.CreatedResponse(c, created, "Refund requested")
}

// ApproveRefund approves a pending refund. Mounted behind a manager role check.
func (ctl *Controller) ApproveRefund(c *gin.Context) {
	user, outletID, ok := actor(c)
	if !ok {
		return
	}
	refundID, ok := paramID(c, "refundId")
	if !ok {
		return
	}

	var existing models.Refund
	if err := ctl.db.WithContext(c.Request.Context()).Select("id", "outlet_id").First(&existing, refundID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "REFUND_NOT_FOUND", "refund not found")
			return
		}
		_ = c.Error(err)
		return
	}
	if existing.OutletID != outletID {
		forbidden(c)
		return
	}

	result, err := ctl.refunds.Approve(c.Request.Context(), refundID, user.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.SuccessResponse(c, result, "Refund approved")
}

// ListRefunds returns the outlet's refunds, optionally filtered by ?status=
func (ctl *Controller) ListRefunds(c *gin.Context) {
	_, outletID, ok := actor(c)
	if !ok {
		return
	}

	refunds, err := ctl.refunds.List(c.Request.Context(), outletID, models.RefundStatus(c.Query("status")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.SuccessResponse(c, refunds, "")
}
