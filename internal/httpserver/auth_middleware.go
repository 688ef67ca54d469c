package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"projectportal/internal/chat"
	"projectportal/internal/handler"
	"projectportal/internal/util"
)

func AuthMiddleware(auth chat.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.ExtractToken(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token", "code": "unauthorized"})
			return
		}

		p, err := auth.Authenticate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "unauthorized"})
			return
		}

		c.Set(handler.PrincipalKey, p)
		c.Next()
	}
}
