package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/tutorhub/internal/accounts"
	"github.com/geocoder89/tutorhub/internal/auth"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/gin-gonic/gin"
)

type Registrar interface {
	Register(ctx context.Context, in accounts.RegisterInput) (user.User, error)
}

type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

type TokenIssuer interface {
	Issue(p user.Principal) (string, time.Time, error)
	TTL() time.Duration
}

type RequestAuthenticator interface {
	Authenticate(r *http.Request) (user.Principal, error)
}

type CookieConfig struct {
	Name   string
	Secure bool
}

type AuthHandler struct {
	accounts  Registrar
	users     CredentialStore
	passwords PasswordHasher
	tokens    TokenIssuer
	authn     RequestAuthenticator
	cookie    CookieConfig
	prom      *observability.Prom

	// compared against when the email is unknown so both paths cost one bcrypt check
	dummyHash string
}

func NewAuthHandler(
	reg Registrar,
	users CredentialStore,
	passwords PasswordHasher,
	tokens TokenIssuer,
	authn RequestAuthenticator,
	cookie CookieConfig,
	prom *observability.Prom,
) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = auth.DefaultCookieName
	}

	dummy, err := passwords.Hash("not-a-real-password")
	if err != nil {
		slog.Default().Warn("dummy_hash_failed", "err", err)
	}

	return &AuthHandler{
		accounts:  reg,
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		authn:     authn,
		cookie:    cookie,
		prom:      prom,
		dummyHash: dummy,
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"omitempty,email,max=254"`
	Password string `json:"password" binding:"max=72"`
	Name     string `json:"name" binding:"max=120"`
	Role     string `json:"role"`
	user.ProfileFields
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	_, err := h.accounts.Register(cctx, accounts.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
		Profile:  req.ProfileFields,
	})

	if err != nil {
		var missing *accounts.MissingFieldsError

		switch {
		case errors.As(err, &missing):
			RespondError(ctx, http.StatusBadRequest, "missing_fields", "Missing required fields", gin.H{"fields": missing.Fields})
		case errors.Is(err, accounts.ErrInvalidRole):
			RespondError(ctx, http.StatusBadRequest, "invalid_role", "Role must be STUDENT or TUTOR", nil)
		case errors.Is(err, accounts.ErrPasswordLength):
			RespondError(ctx, http.StatusBadRequest, "password_too_long", "Password must be at most 72 bytes", nil)
		case errors.Is(err, accounts.ErrDuplicateEmail):
			RespondError(ctx, http.StatusBadRequest, "user_exists", "User already exists", nil)
		default:
			slog.Default().ErrorContext(cctx, "register_failed", "err", err)
			RespondInternal(ctx, "Could not create user")
		}
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for DB lookup
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	found, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			h.passwords.Verify(req.Password, h.dummyHash)
			h.prom.IncLogin("invalid_credentials")
			RespondUnauthorized(ctx, "invalid_credentials", "Invalid credentials")
			return
		}

		h.prom.IncLogin("error")
		slog.Default().ErrorContext(cctx, "login_lookup_failed", "err", err)
		RespondInternal(ctx, "Could not sign in")
		return
	}

	if !found.HasLocalPassword() {
		h.prom.IncLogin("federated_account")
		RespondUnauthorized(ctx, "federated_account", "This account signs in with "+string(found.Provider))
		return
	}

	if !h.passwords.Verify(req.Password, *found.PasswordHash) {
		h.prom.IncLogin("invalid_credentials")
		RespondUnauthorized(ctx, "invalid_credentials", "Invalid credentials")
		return
	}

	principal := found.Principal()

	token, expiresAt, err := h.tokens.Issue(principal)
	if err != nil {
		h.prom.IncLogin("error")
		slog.Default().ErrorContext(cctx, "token_issue_failed", "user_id", found.ID, "err", err)
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	// a failed bookkeeping write must not block sign-in
	if err := h.users.UpdateLastLogin(cctx, found.ID, time.Now()); err != nil {
		slog.Default().WarnContext(cctx, "last_login_update_failed", "user_id", found.ID, "err", err)
	}

	h.prom.IncLogin("success")
	h.setTokenCookie(ctx, token)

	ctx.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt.UTC(),
		"user":      principal,
	})
}

// Validate reports whether the caller's credential, from either transport,
// still identifies an existing user.
func (h *AuthHandler) Validate(ctx *gin.Context) {
	p, err := h.authn.Authenticate(ctx.Request)
	if err != nil {
		if !auth.IsAuthError(err) {
			slog.Default().ErrorContext(ctx.Request.Context(), "validate_failed", "err", err)
			RespondInternal(ctx, "Could not validate token")
			return
		}

		reason := auth.Reason(err)
		h.prom.IncAuthFailure("validate", reason)

		message := "Invalid token"
		if errors.Is(err, auth.ErrNoToken) {
			message = "No token provided"
		}

		ctx.JSON(http.StatusUnauthorized, gin.H{
			"valid": false,
			"error": message,
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"valid": true,
		"user":  p,
	})
}

// Logout only clears the cookie. A copy of the token held elsewhere (an
// Authorization header) stays valid until it expires.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.clearTokenCookie(ctx)

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

func (h *AuthHandler) setTokenCookie(ctx *gin.Context, token string) {
	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearTokenCookie(ctx *gin.Context) {
	http.SetCookie(ctx.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
