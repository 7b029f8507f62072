package routes

import (
	"pos_settlement/pkg/controllers/auth"
	"pos_settlement/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes registers all authentication routes
func RegisterAuthRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/staff-signin", auth.StaffSignIn)
		authGroup.POST("/signout", auth.SignOut)

		authGroup.GET("/me", middleware.AuthenticateToken(), auth.CheckAuth)
		authGroup.POST("/generate-2fa", middleware.AuthenticateToken(), auth.Generate2FASetup)
		authGroup.POST("/enable-2fa", middleware.AuthenticateToken(), auth.Enable2FA)
	}
}
