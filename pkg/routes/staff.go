package routes

import (
	"pos_settlement/pkg/controllers/staff"
	"pos_settlement/pkg/middleware"
	"pos_settlement/pkg/models"

	"github.com/gin-gonic/gin"
)

// RegisterStaffRoutes registers all staff-facing API routes
func RegisterStaffRoutes(router *gin.RouterGroup, ctl *staff.Controller) {
	staffGroup := router.Group("/staff")
	staffGroup.Use(middleware.AuthenticateToken(), middleware.AuthorizeRoles(models.RoleStaff, models.RoleManager, models.RoleAdmin))
	MountStaffHandlers(staffGroup, ctl)
}

// MountStaffHandlers attaches the settlement handlers to an already
// authenticated group.
func MountStaffHandlers(staffGroup *gin.RouterGroup, ctl *staff.Controller) {
	managers := middleware.AuthorizeRoles(models.RoleManager, models.RoleAdmin)

	// Payments
	staffGroup.POST("/payments", ctl.ProcessPayment)
	staffGroup.POST("/payments/split", ctl.ProcessSplitPayment)
	staffGroup.GET("/orders/:orderId/payments", ctl.GetOrderPayments)

	// Refunds
	staffGroup.POST("/refunds", ctl.InitiateRefund)
	staffGroup.GET("/refunds", ctl.ListRefunds)
	staffGroup.POST("/refunds/:refundId/approve", managers, ctl.ApproveRefund)

	// Shift
	staffGroup.POST("/shift/open", ctl.OpenShift)
	staffGroup.POST("/shift/close", ctl.CloseShift)
	staffGroup.GET("/shift/status", ctl.GetShiftStatus)

	// Cash drawer
	staffGroup.POST("/cash/movements", ctl.RecordCashMovement)
	staffGroup.GET("/cash/balance", ctl.GetCashBalance)
	staffGroup.GET("/cash/entries", ctl.GetCashEntries)
	staffGroup.GET("/cash/summary", ctl.GetCashSummary)
	staffGroup.GET("/cash/verify", managers, ctl.VerifyCashLedger)

	// Audit
	staffGroup.GET("/audit/:entityType/:entityId", managers, ctl.GetAuditTrail)
}
