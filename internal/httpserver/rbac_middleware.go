package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"projectportal/internal/handler"
	"projectportal/internal/model"
	"projectportal/pkg/rbac"
)

// RequirePermission 中间件：要求用户具有指定权限
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(handler.PrincipalKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated", "code": "unauthorized"})
			return
		}

		p, ok := v.(model.Principal)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "invalid principal", "code": "internal"})
			return
		}

		if err := rbac.CheckPermission(p.UserID, p.Role, permission); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error(), "code": "forbidden"})
			return
		}

		c.Next()
	}
}
