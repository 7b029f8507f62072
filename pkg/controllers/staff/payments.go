package staff

import (
	"errors"
	"net/http"

	"pos_settlement/pkg/models"
	"pos_settlement/pkg/payment"
	"pos_settlement/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type gatewayFields struct {
	RazorpayPaymentID *string `json:"razorpayPaymentId"`
	RazorpayOrderID   *string `json:"razorpayOrderId"`
	RazorpaySignature *string `json:"razorpaySignature"`
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ProcessPayment settles an order with a single payment mode
func (ctl *Controller) ProcessPayment(c *gin.Context) {
	user, outletID, ok := actor(c)
	if !ok {
		return
	}

	var req struct {
		OrderID   int                `json:"orderId" binding:"required"`
		Mode      models.PaymentMode `json:"paymentMode" binding:"required"`
		Amount    decimal.Decimal    `json:"amount"`
		Tip       decimal.Decimal    `json:"tipAmount"`
		Reference *string            `json:"reference"`
		Metadata  models.JSONMap     `json:"metadata"`
		gatewayFields
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "orderId, paymentMode and amount are required")
		return
	}

	result, err := ctl.payments.ProcessSinglePayment(c.Request.Context(), payment.SinglePaymentRequest{
		OrderID:          req.OrderID,
		OutletID:         outletID,
		Mode:             req.Mode,
		Amount:           req.Amount,
		Tip:              req.Tip,
		Reference:        req.Reference,
		GatewayPaymentID: req.RazorpayPaymentID,
		GatewayOrderID:   derefString(req.RazorpayOrderID),
		GatewaySignature: derefString(req.RazorpaySignature),
		Metadata:         req.Metadata,
		ReceivedBy:       &user.ID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	utils.CreatedResponse(c, result, "Payment recorded")
}

// ProcessSplitPayment settles an order across several payment modes
func (ctl *Controller) ProcessSplitPayment(c *gin.Context) {
	user, outletID, ok := actor(c)
	if !ok {
		return
	}

	var req struct {
		OrderID int `json:"orderId" binding:"required"`
		Splits  []struct {
			Mode              models.PaymentMode `json:"paymentMode"`
			Amount            decimal.Decimal    `json:"amount"`
			Reference         *string            `json:"reference"`
			RazorpayPaymentID *string            `json:"razorpayPaymentId"`
		} `json:"splits" binding:"required"`
		Metadata models.JSONMap `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "orderId and splits are required")
		return
	}

	splits := make([]payment.SplitEntry, 0, len(req.Splits))
	for _, s := range req.Splits {
		splits = append(splits, payment.SplitEntry{
			Mode:             s.Mode,
			Amount:           s.Amount,
			Reference:        s.Reference,
			GatewayPaymentID: s.RazorpayPaymentID,
		})
	}

	result, err := ctl.payments.ProcessSplitPayment(c.Request.Context(), payment.SplitPaymentRequest{
		OrderID:    req.OrderID,
		OutletID:   outletID,
		Splits:     splits,
		Metadata:   req.Metadata,
		ReceivedBy: &user.ID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	utils.CreatedResponse(c, result, "Split payment recorded")
}

// GetOrderPayments lists an order's payments
func (ctl *Controller) GetOrderPayments(c *gin.Context) {
	_, outletID, ok := actor(c)
	if !ok {
		return
	}
	orderID, ok := paramID(c, "orderId")
	if !ok {
		return
	}

	var order models.Order
	if err := ctl.db.WithContext(c.Request.Context()).Select("id", "outlet_id").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found")
			return
		}
		_ = c.Error(err)
		return
	}
	if order.OutletID != outletID {
		forbidden(c)
		return
	}

	payments, err := ctl.payments.ListPayments(c.Request.Context(), orderID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	utils.SuccessResponse(c, payments, "")
}
