package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/trailworks/trail/pkg/errors"
	"github.com/trailworks/trail/pkg/metrics"
	"github.com/trailworks/trail/pkg/response"
)

// RequirePermission checks that the authenticated actor was granted the given
// permission by the platform auth service. Auth must run first.
func RequirePermission(permissionID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			metrics.PermissionChecks.WithLabelValues(permissionID, "error").Inc()
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		if !claims.HasPermission(permissionID) {
			metrics.PermissionChecks.WithLabelValues(permissionID, "denied").Inc()
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}

		metrics.PermissionChecks.WithLabelValues(permissionID, "allowed").Inc()
		c.Next()
	}
}
