package middlewares

import (
	"net/http"

	"github.com/geocoder89/usermgmt/internal/authz"
	"github.com/gin-gonic/gin"
)

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			abortError(c, http.StatusUnauthorized, "unauthenticated", "Authentication required.")
			return
		}

		if err := authz.RequireAdmin(actor.Identity); err != nil {
			abortError(c, http.StatusForbidden, "forbidden", "Access denied.")
			return
		}

		c.Next()
	}
}
