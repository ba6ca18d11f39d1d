package httpserver

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Cors allows any origin and answers preflight requests directly.
func Cors() gin.HandlerFunc {
	allowMethods := strings.Join(methods, ", ")
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", allowMethods)
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
