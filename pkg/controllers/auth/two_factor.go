package auth

import (
	"net/http"

	"pos_settlement/pkg/database"
	"pos_settlement/pkg/middleware"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
)

const totpIssuer = "POS Settlement"

// Generate2FASetup creates a TOTP secret for the current user. It is not
// enforced until Enable2FA confirms a code.
func Generate2FASetup(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authentication required.")
		return
	}
	if user.TwoFactorEnabled {
		utils.BadRequestResponse(c, "2FA is already enabled")
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "UNKNOWN", "Failed to generate 2FA key")
		return
	}

	secret := key.Secret()
	if err := database.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Update("two_factor_secret", secret).Error; err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"secret":     secret,
		"otpauthUrl": key.URL(),
	})
}

// Enable2FA turns on 2FA once the user proves they hold the secret.
func Enable2FA(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Token is required")
		return
	}

	current, ok := middleware.CurrentUser(c)
	if !ok {
		utils.UnauthorizedResponse(c, "Authentication required.")
		return
	}

	var user models.User
	if err := database.DB.First(&user, current.ID).Error; err != nil {
		_ = c.Error(err)
		return
	}
	if user.TwoFactorSecret == nil {
		utils.BadRequestResponse(c, "Generate a 2FA secret first")
		return
	}
	if !totp.Validate(req.Token, *user.TwoFactorSecret) {
		utils.BadRequestResponse(c, "Invalid 2FA token")
		return
	}

	if err := database.DB.Model(&models.User{}).Where("id = ?", user.ID).
		Update("two_factor_enabled", true).Error; err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "2FA enabled successfully"})
}
