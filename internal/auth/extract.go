package auth

import (
	"net/http"
	"strings"
)

const DefaultCookieName = "token"

// Extractor pulls a raw token out of one transport. An empty string means
// "not present here"; the next extractor is tried.
type Extractor interface {
	Extract(r *http.Request) string
}

type HeaderExtractor struct{}

func (HeaderExtractor) Extract(r *http.Request) string {
	return BearerToken(r.Header.Get("Authorization"))
}

type CookieExtractor struct {
	Name string
}

func (e CookieExtractor) Extract(r *http.Request) string {
	name := e.Name
	if name == "" {
		name = DefaultCookieName
	}

	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

// DefaultExtractors prefers the Authorization header and falls back to the cookie.
func DefaultExtractors(cookieName string) []Extractor {
	return []Extractor{
		HeaderExtractor{},
		CookieExtractor{Name: cookieName},
	}
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header
// value, or "" when the header is absent or has another shape.
func BearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
