package middlewares

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/geocoder89/tutorhub/internal/auth"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/gin-gonic/gin"
)

// PublicAuthPaths are the API paths reachable without a bearer header.
var PublicAuthPaths = []string{
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/logout",
	"/api/auth/validate",
}

type GateConfig struct {
	APIPrefix      string // default "/api"
	PublicAPIPaths []string
	ProtectedPages []string
	CookieName     string
	EntryPage      string
}

// AuthGate is the coarse edge check. It only looks at whether a credential is
// present in the right shape; tokens are verified per route by RequireAuth.
func AuthGate(cfg GateConfig, prom *observability.Prom) gin.HandlerFunc {
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api"
	}
	if cfg.PublicAPIPaths == nil {
		cfg.PublicAPIPaths = PublicAuthPaths
	}
	if cfg.CookieName == "" {
		cfg.CookieName = auth.DefaultCookieName
	}
	if cfg.EntryPage == "" {
		cfg.EntryPage = "/login"
	}

	public := make(map[string]struct{}, len(cfg.PublicAPIPaths))
	for _, p := range cfg.PublicAPIPaths {
		public[strings.TrimSuffix(p, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		if isWebSocketUpgrade(c.Request) {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		if hasPathPrefix(path, cfg.APIPrefix) {
			if _, ok := public[strings.TrimSuffix(path, "/")]; ok {
				c.Next()
				return
			}
			if auth.BearerToken(c.GetHeader("Authorization")) == "" {
				prom.IncAuthFailure("gate", "no_token")
				c.Set(CtxAuthFailure, "no_token")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			c.Next()
			return
		}

		for _, page := range cfg.ProtectedPages {
			if !hasPathPrefix(path, page) {
				continue
			}
			if ck, err := c.Cookie(cfg.CookieName); err == nil && ck != "" {
				break
			}

			prom.IncAuthFailure("gate", "no_cookie")
			slog.Default().DebugContext(c.Request.Context(), "gate_redirect", "path", path)

			c.Redirect(http.StatusFound, cfg.EntryPage+"?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}

		c.Next()
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// hasPathPrefix matches whole segments: "/tutor" covers "/tutor" and
// "/tutor/x" but not "/tutorials".
func hasPathPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return false
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
