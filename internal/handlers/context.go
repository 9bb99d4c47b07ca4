package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/trailworks/trail/internal/middleware"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// tenantID returns the tenant resolved by the auth middleware.
func tenantID(c *gin.Context) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok || claims.TenantID == "" {
		return "", false
	}
	return claims.TenantID, true
}
