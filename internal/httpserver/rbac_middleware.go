package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kitdash/internal/identity"
	"kitdash/pkg/rbac"
)

// RequirePermission 中间件：要求身份的角色具有指定权限，需放在身份中间件之后
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, exists := identity.FromGin(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
			c.Abort()
			return
		}

		if err := rbac.CheckPermission(id.Role, permission); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			c.Abort()
			return
		}

		c.Next()
	}
}
