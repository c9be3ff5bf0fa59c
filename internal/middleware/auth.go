package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mixtura/petube/internal/auth"
)

const ownerIDKey = "owner_id"

// Auth verifies the bearer token and stores the subject id in the context.
func Auth(gate *auth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.TokenFromRequest(c.Request)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}
		claims, err := gate.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}
		c.Set(ownerIDKey, claims.ID())
		c.Next()
	}
}

// OwnerID returns the verified subject id set by Auth.
func OwnerID(c *gin.Context) string {
	return c.GetString(ownerIDKey)
}
