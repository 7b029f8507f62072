package middleware

import (
	"log"
	"net/http"

	"pos_settlement/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ErrorMiddleware renders the last error a handler attached with c.Error.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		utils.AppErrorResponse(c, c.Errors.Last().Err)
	}
}

// RecoveryMiddleware handles panics and prevents server crashes
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, utils.StandardResponse{
					Success: false,
					Message: "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

// NotFoundHandler handles 404 errors
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusNotFound, utils.StandardResponse{
			Success: false,
			Message: "Route not found",
			Code:    "NOT_FOUND",
		})
	}
}
