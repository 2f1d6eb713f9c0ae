package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// viewerKey is where the authenticated viewer id lives in the gin context.
const viewerKey = "viewer_id"

// Identity resolves the current viewer from the session identity provider
// sitting in front of this service. It trusts the X-User-ID header set by the
// upstream auth proxy, with a query-parameter fallback for the websocket
// handshake (browsers cannot set headers there).
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-User-ID")
		if id == "" {
			id = c.Query("user_id")
		}
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Set(viewerKey, id)
		c.Next()
	}
}

// ViewerID returns the authenticated viewer id for this request.
func ViewerID(c *gin.Context) (string, bool) {
	v, ok := c.Get(viewerKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
