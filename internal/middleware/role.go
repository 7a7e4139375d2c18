package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/lecturemate/backend/internal/models"
	"github.com/lecturemate/backend/pkg/response"
)

// Role returns the authenticated user's role, or "" outside JWT-protected routes.
func Role(c *gin.Context) models.Role {
	v, _ := c.Get(ContextUserRole)
	role, _ := v.(models.Role)
	return role
}

// IsAdmin reports whether the authenticated user has the admin role.
func IsAdmin(c *gin.Context) bool {
	return Role(c) == models.RoleAdmin
}

// RequireRole lets through only users holding one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		if role == "" {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "requires role "+string(roles[0]))
		c.Abort()
	}
}
