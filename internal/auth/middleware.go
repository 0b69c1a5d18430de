package auth

import (
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

const identityKey = "identity"

// Resolver authenticates raw HTTP requests.
type Resolver interface {
	Resolve(r *http.Request) (Identity, error)
}

// Required aborts the request with 401 unless it carries a valid session.
func Required(resolver Resolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := resolver.Resolve(c.Request)
		if err != nil {
			if !errors.Is(err, models.ErrAuthentication) {
				logger.Error("session lookup failed", zap.Error(err))
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated caller has one of roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := FromContext(c)
		if !ok || !slices.Contains(roles, id.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}

// FromContext returns the identity stored by Required.
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
