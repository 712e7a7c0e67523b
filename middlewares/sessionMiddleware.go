package middlewares

import (
	"context"
	"net/http"

	"github.com/cascadebuilt/sitebooks_backend/config"
	"github.com/cascadebuilt/sitebooks_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the token header to a redis-backed session and
// puts the username on the request context. Requests without a token pass
// through; handlers enforce their own auth.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyToken, token)
		ctx = context.WithValue(ctx, utils.ContextKeyUsername, username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
