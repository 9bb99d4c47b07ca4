package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the canonical HTTP header used to propagate the request identifier.
	RequestIDHeader = "X-Request-ID"

	// CtxRequestIDKey is the gin.Context key under which the request ID is stored.
	CtxRequestIDKey = "requestID"
)

// RequestID ensures every request carries a correlation identifier. An inbound
// X-Request-ID set by an upstream gateway is reused; otherwise a UUID is
// generated. The identifier is echoed in the response header and feeds the
// request_id column of entries created without one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(CtxRequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
