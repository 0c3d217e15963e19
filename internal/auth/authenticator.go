package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/geocoder89/tutorhub/internal/domain/user"
)

// Keep these small interfaces so tests can fake them easily.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

type UserFinder interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// Authenticator is the per-route identity check. Every call re-verifies the
// token and re-reads the user; nothing is cached between requests.
type Authenticator struct {
	verifier   TokenVerifier
	users      UserFinder
	extractors []Extractor
}

func NewAuthenticator(verifier TokenVerifier, users UserFinder, extractors ...Extractor) *Authenticator {
	if len(extractors) == 0 {
		extractors = DefaultExtractors(DefaultCookieName)
	}

	return &Authenticator{
		verifier:   verifier,
		users:      users,
		extractors: extractors,
	}
}

// Authenticate extracts a token from the request (header first, then cookie)
// and resolves it to the current principal.
func (a *Authenticator) Authenticate(r *http.Request) (user.Principal, error) {
	token := a.extract(r)
	if token == "" {
		return user.Principal{}, ErrNoToken
	}

	return a.AuthenticateToken(r.Context(), token)
}

func (a *Authenticator) AuthenticateToken(ctx context.Context, token string) (user.Principal, error) {
	if token == "" {
		return user.Principal{}, ErrNoToken
	}

	claims, err := a.verifier.Verify(token)
	if err != nil {
		return user.Principal{}, err
	}

	// role or existence may have changed since issuance
	u, err := a.users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.Principal{}, ErrUserNotFound
		}
		return user.Principal{}, fmt.Errorf("load user %s: %w", claims.UserID(), err)
	}

	return u.Principal(), nil
}

func (a *Authenticator) extract(r *http.Request) string {
	for _, e := range a.extractors {
		if token := e.Extract(r); token != "" {
			return token
		}
	}
	return ""
}
