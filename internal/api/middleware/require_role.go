package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eclipselink/handoff-backend/internal/utils"
)

// Clinical roles carried in the JWT role claim.
const (
	RoleNurse     = "nurse"
	RolePhysician = "physician"
	RoleAdmin     = "admin"
)

// RequireRole rejects requests whose token role is not in the allowed
// set. Matching is case-insensitive.
func RequireRole(allowed ...string) gin.HandlerFunc {
	allow := map[string]struct{}{}
	for _, a := range allowed {
		a = strings.TrimSpace(strings.ToLower(a))
		if a != "" {
			allow[a] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		v, ok := c.Get("role")
		role, _ := v.(string)
		role = strings.ToLower(strings.TrimSpace(role))

		if !ok || role == "" {
			forbidden(c)
			return
		}
		if _, ok := allow[role]; !ok {
			forbidden(c)
			return
		}
		c.Next()
	}
}

func forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"code":    utils.CodeForbidden,
		"message": "forbidden",
	})
}

func RequireAdmin() gin.HandlerFunc { return RequireRole(RoleAdmin) }

// RequireClinician admits any role allowed to record or read handoffs.
func RequireClinician() gin.HandlerFunc {
	return RequireRole(RoleNurse, RolePhysician, RoleAdmin)
}
