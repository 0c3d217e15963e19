package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	Email string    `json:"email"`
	Role  user.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

// Manager issues and verifies stateless access tokens.
//
// There is no revocation list: a token stays valid until its exp claim even
// after logout. Keep the TTL short.
type Manager struct {
	signer Signer
	issuer string
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func NewManager(signer Signer, issuer string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	m := &Manager{
		signer: signer,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signer.Method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	m.parser = jwt.NewParser(opts...)

	return m
}

// WithClock overrides the time source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) Signer() Signer {
	return m.signer
}

// Issue mints a token for the principal and returns it with its absolute expiry.
func (m *Manager) Issue(p user.Principal) (string, time.Time, error) {
	if p.ID == "" || p.Email == "" || !p.Role.Valid() {
		return "", time.Time{}, errors.New("incomplete principal")
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)

	claims := Claims{
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(m.signer.Method(), claims)
	if kid := m.signer.KeyID(); kid != "" {
		token.Header["kid"] = kid
	}

	raw, err := token.SignedString(m.signer.SigningKey())
	if err != nil {
		return "", time.Time{}, err
	}

	return raw, claims.ExpiresAt.Time, nil
}

// Verify checks the signature over the raw signing input before any claim is
// decoded, so a token altered anywhere, separators included, reports
// ErrBadSignature. Claims are validated afterwards: expiry, issuer, and the
// required identity fields.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMalformed
	}

	// no signature can be valid over a token without three non-empty segments
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, ErrBadSignature
	}

	sig, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil {
		return nil, ErrBadSignature
	}

	err = m.signer.Method().Verify(parts[0]+"."+parts[1], sig, m.signer.VerifyingKey())
	if err != nil {
		return nil, ErrBadSignature
	}

	claims := &Claims{}
	token, err := m.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.signer.VerifyingKey(), nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		default:
			return nil, ErrMalformed
		}
	}

	if !token.Valid {
		return nil, ErrMalformed
	}

	if claims.Subject == "" || claims.Email == "" || !claims.Role.Valid() {
		return nil, ErrMalformed
	}

	return claims, nil
}
