package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/usermgmt/internal/actorctx"
	"github.com/geocoder89/usermgmt/internal/auth"
	"github.com/geocoder89/usermgmt/internal/domain/user"
	"github.com/geocoder89/usermgmt/internal/observability"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type AuthMiddleware struct {
	jwt   TokenVerifier
	users UserLookup
	prom  *observability.Prom
	log   *slog.Logger
}

func NewAuthMiddleware(jwt TokenVerifier, users UserLookup, prom *observability.Prom, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{jwt: jwt, users: users, prom: prom, log: log}
}

// RequireAuth resolves the bearer token to a current user record. The role
// used downstream is the record's, not the one embedded in the token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			m.prom.IncAuthFailure("missing_token")
			abortError(c, http.StatusUnauthorized, "unauthenticated", "Authentication required.")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			m.prom.IncAuthFailure("missing_token")
			abortError(c, http.StatusUnauthorized, "unauthenticated", "Authentication required.")
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			m.prom.IncAuthFailure("invalid_token")
			abortError(c, http.StatusUnauthorized, "invalid_token", "Invalid or expired access token.")
			return
		}

		u, err := m.users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				m.prom.IncAuthFailure("unknown_user")
				abortError(c, http.StatusUnauthorized, "unauthenticated", "Authentication required.")
				return
			}

			m.log.ErrorContext(c.Request.Context(), "auth user lookup failed", "user_id", claims.UserID, "err", err)
			abortError(c, http.StatusInternalServerError, "internal_error", "Something went wrong.")
			return
		}

		ctx := actorctx.WithActor(c.Request.Context(), actorctx.Actor{Identity: u.Identity(), User: u})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// ActorFromContext returns the identity RequireAuth attached.
func ActorFromContext(c *gin.Context) (actorctx.Actor, bool) {
	return actorctx.ActorFrom(c.Request.Context())
}
