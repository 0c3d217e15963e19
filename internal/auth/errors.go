package auth

import "errors"

// Authentication failures. Handlers collapse all of them into a 401, but the
// distinction is kept for logs and metrics.
var (
	ErrNoToken      = errors.New("no token presented")
	ErrBadSignature = errors.New("token signature invalid")
	ErrExpired      = errors.New("token expired")
	ErrMalformed    = errors.New("token malformed")
	ErrUserNotFound = errors.New("token subject not found")
)

// Reason maps an authentication error onto a short label for logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoToken):
		return "no_token"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	default:
		return "internal"
	}
}

// IsAuthError reports whether err is one of the typed authentication failures
// rather than an infrastructure error.
func IsAuthError(err error) bool {
	return Reason(err) != "internal" && err != nil
}
