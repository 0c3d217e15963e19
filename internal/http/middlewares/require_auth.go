package middlewares

import (
	"net/http"

	"github.com/geocoder89/tutorhub/internal/actorctx"
	"github.com/geocoder89/tutorhub/internal/auth"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type Authenticator interface {
	Authenticate(r *http.Request) (user.Principal, error)
}

type AuthMiddleware struct {
	authn Authenticator
	prom  *observability.Prom
}

func NewAuthMiddleware(authn Authenticator, prom *observability.Prom) *AuthMiddleware {
	return &AuthMiddleware{authn: authn, prom: prom}
}

// RequireAuth resolves the caller on every request. Every auth failure is a
// bare 401; the typed reason only reaches logs and metrics.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := m.authn.Authenticate(c.Request)
		if err != nil {
			reason := auth.Reason(err)
			c.Set(CtxAuthFailure, reason)

			if !auth.IsAuthError(err) {
				logger(c).ErrorContext(c.Request.Context(), "authenticate_failed", "err", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
					"code":  "internal_error",
				})
				return
			}

			m.prom.IncAuthFailure("route", reason)
			logger(c).WarnContext(c.Request.Context(), "auth_rejected", "reason", reason, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(CtxPrincipal, p)
		c.Request = c.Request.WithContext(actorctx.WithPrincipal(c.Request.Context(), p))

		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		if !p.HasRole(roles...) {
			m.prom.IncAuthFailure("route", "forbidden_role")
			logger(c).WarnContext(c.Request.Context(), "access_denied", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		c.Next()
	}
}

// PrincipalFromContext spares handlers from knowing the context key.
func PrincipalFromContext(c *gin.Context) (user.Principal, bool) {
	v, ok := c.Get(CtxPrincipal)
	if !ok {
		return user.Principal{}, false
	}
	p, ok := v.(user.Principal)
	return p, ok && p.ID != ""
}
