package middleware

import (
	"log"
	"net/http"
	"strings"

	"pos_settlement/pkg/database"
	"pos_settlement/pkg/models"
	"pos_settlement/pkg/utils"

	"github.com/gin-gonic/gin"
)

const userKey = "user"

// AuthenticateToken resolves the staff user from the token cookie or the
// Bearer header and stores it on the context.
func AuthenticateToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if cookieToken, err := c.Cookie("token"); err == nil && cookieToken != "" {
			token = cookieToken
		}
		if token == "" {
			if scheme, value, ok := strings.Cut(c.GetHeader("Authorization"), " "); ok && scheme == "Bearer" {
				token = value
			}
		}

		if token == "" {
			utils.UnauthorizedResponse(c, "Access denied. No token provided.")
			c.Abort()
			return
		}

		claims, err := utils.VerifyToken(token)
		if err != nil {
			if utils.IsExpired(err) {
				utils.UnauthorizedResponse(c, "Token expired.")
			} else {
				utils.UnauthorizedResponse(c, "Invalid token.")
			}
			c.Abort()
			return
		}

		var user models.User
		if err := database.DB.WithContext(c.Request.Context()).Preload("Outlet").First(&user, claims.ID).Error; err != nil {
			log.Printf("Error fetching user %d (Role: %s): %v", claims.ID, claims.Role, err)
			utils.UnauthorizedResponse(c, "Invalid token. User not found.")
			c.Abort()
			return
		}

		if !user.IsVerified {
			utils.ForbiddenResponse(c, "Staff not verified.")
			c.Abort()
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

// AuthorizeRoles middleware - check if user has required role
func AuthorizeRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			utils.UnauthorizedResponse(c, "Authentication required.")
			c.Abort()
			return
		}

		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, utils.StandardResponse{
			Success: false,
			Message: "Access denied. Insufficient permissions.",
			Code:    "FORBIDDEN",
		})
		c.Abort()
	}
}

// CurrentUser returns the user stored by AuthenticateToken.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, exists := c.Get(userKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// SetUser stores user on the context. Used by handlers mounted without
// AuthenticateToken, such as tests.
func SetUser(c *gin.Context, user models.User) {
	c.Set(userKey, user)
}
