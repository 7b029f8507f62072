// Package staff holds the HTTP handlers used at the counter: payments,
// refunds, shifts and the cash drawer.
package staff

import (
	"errors"
	"net/http"
	"strconv"

	"pos_settlement/pkg/ledger"
	"pos_settlement/pkg/middleware"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/payment"
	"pos_settlement/pkg/refund"
	"pos_settlement/pkg/shift"
	"pos_settlement/pkg/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Controller wires the settlement services to gin handlers.
type Controller struct {
	db       *gorm.DB
	payments *payment.Processor
	refunds  *refund.Workflow
	shifts   *shift.Manager
	ledger   *ledger.Ledger
}

// NewController returns a Controller.
func NewController(db *gorm.DB, payments *payment.Processor, refunds *refund.Workflow, shifts *shift.Manager, l *ledger.Ledger) *Controller {
	return &Controller{
		db:       db,
		payments: payments,
		refunds:  refunds,
		shifts:   shifts,
		ledger:   l,
	}
}

var errNoOutlet = errors.New("staff not assigned to outlet")

// actor returns the signed-in user and the outlet they act for. Admins
// without an outlet pick one with ?outletId.
func actor(c *gin.Context) (models.User, int, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.UnauthorizedResponse(c, "User not found.")
		return models.User{}, 0, false
	}

	if user.OutletID != nil {
		return user, *user.OutletID, true
	}
	if user.Role == models.RoleAdmin {
		if id, err := strconv.Atoi(c.Query("outletId")); err == nil && id > 0 {
			return user, id, true
		}
	}
	utils.BadRequestResponse(c, errNoOutlet.Error())
	return models.User{}, 0, false
}

func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		utils.BadRequestResponse(c, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(name)); err == nil {
		return v
	}
	return fallback
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, utils.StandardResponse{
		Success: false,
		Message: "Resource belongs to a different outlet",
		Code:    "OUTLET_MISMATCH",
	})
}
