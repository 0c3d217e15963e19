package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type ProfileReader interface {
	GetTutorProfile(ctx context.Context, userID string) (user.TutorProfile, error)
	GetStudentProfile(ctx context.Context, userID string) (user.StudentProfile, error)
}

type ProfileHandler struct {
	profiles ProfileReader
}

func NewProfileHandler(profiles ProfileReader) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Me returns the caller as resolved by RequireAuth on this request.
func (h *ProfileHandler) Me(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Unauthorized")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": p})
}

func (h *ProfileHandler) TutorProfile(ctx *gin.Context) {
	h.respondProfile(ctx, func(cctx context.Context, userID string) (any, error) {
		return h.profiles.GetTutorProfile(cctx, userID)
	})
}

func (h *ProfileHandler) StudentProfile(ctx *gin.Context) {
	h.respondProfile(ctx, func(cctx context.Context, userID string) (any, error) {
		return h.profiles.GetStudentProfile(cctx, userID)
	})
}

func (h *ProfileHandler) respondProfile(ctx *gin.Context, load func(context.Context, string) (any, error)) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Unauthorized")
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	profile, err := load(cctx, p.ID)
	if err != nil {
		if errors.Is(err, user.ErrProfileNotFound) {
			RespondNotFound(ctx, "Profile not found")
			return
		}
		slog.Default().ErrorContext(cctx, "profile_load_failed", "err", err)
		RespondInternal(ctx, "Could not load profile")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user":    p,
		"profile": profile,
	})
}
