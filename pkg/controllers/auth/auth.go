package auth

import (
	"log"
	"net/http"
	"strings"

	"pos_settlement/pkg/config"
	"pos_settlement/pkg/database"
	"pos_settlement/pkg/middleware"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
)

const sessionUserKey = "userId"

// StaffSignIn checks the password, and the TOTP code when 2FA is on, then
// issues the token cookie and records the user on the server session.
func StaffSignIn(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Token    string `json:"token"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Email and password are required")
		return
	}

	var user models.User
	if err := database.DB.
		Preload("Outlet").
		Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).
		First(&user).Error; err != nil {
		utils.UnauthorizedResponse(c, "Invalid staff credentials")
		return
	}

	if user.Password == nil || utils.ComparePassword(*user.Password, req.Password) != nil {
		utils.UnauthorizedResponse(c, "Invalid staff credentials")
		return
	}

	if !user.IsVerified {
		utils.ForbiddenResponse(c, "Staff not verified. Contact an administrator.")
		return
	}

	if user.TwoFactorEnabled && user.TwoFactorSecret != nil {
		if req.Token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "2FA token required", "requires2FA": true})
			return
		}
		if !totp.Validate(req.Token, *user.TwoFactorSecret) {
			utils.UnauthorizedResponse(c, "Invalid 2FA token")
			return
		}
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		log.Printf("❌ Token generation failed for user %d: %v", user.ID, err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "UNKNOWN", "Internal server error")
		return
	}

	c.SetCookie(
		"token",
		token,
		int(utils.ParseExpiry(config.AppConfig.JWTExpiresIn).Seconds()),
		"/",
		"",
		config.IsProduction(),
		true,
	)

	session := sessions.Default(c)
	session.Set(sessionUserKey, user.ID)
	if err := session.Save(); err != nil {
		log.Printf("⚠️  Failed to save session for user %d: %v", user.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Staff login successful",
		"user":    userResponse(user),
		"token":   token,
	})
}

// SignOut handles user logout
func SignOut(c *gin.Context) {
	c.SetCookie("token", "", -1, "/", "", config.IsProduction(), true)

	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		log.Printf("⚠️  Failed to clear session: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Signed out successfully"})
}

// CheckAuth returns the authenticated user
func CheckAuth(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Not authenticated")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userResponse(user)})
}

func userResponse(user models.User) gin.H {
	return gin.H{
		"id":               user.ID,
		"name":             user.Name,
		"email":            user.Email,
		"phone":            user.Phone,
		"role":             user.Role,
		"outletId":         user.OutletID,
		"outlet":           user.Outlet,
		"twoFactorEnabled": user.TwoFactorEnabled,
	}
}
