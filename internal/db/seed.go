package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/tutorhub/internal/accounts"
	"github.com/geocoder89/tutorhub/internal/config"
	"github.com/geocoder89/tutorhub/internal/domain/user"
)

type Registrar interface {
	Register(ctx context.Context, in accounts.RegisterInput) (user.User, error)
}

// SeedAccounts creates the configured demo tutor and student through the normal
// registration path. Accounts that already exist are left untouched.
func SeedAccounts(ctx context.Context, reg Registrar, cfg config.Config, log *slog.Logger) error {
	if cfg.SeedPassword == "" {
		return nil
	}

	seeds := []accounts.RegisterInput{
		{
			Email:    cfg.SeedTutorEmail,
			Password: cfg.SeedPassword,
			Name:     "Demo Tutor",
			Role:     string(user.RoleTutor),
			Profile: user.ProfileFields{
				Bio:             "Seeded tutor account",
				Subjects:        []string{"math", "physics"},
				HourlyRate:      40,
				ExperienceYears: 3,
			},
		},
		{
			Email:    cfg.SeedStudentEmail,
			Password: cfg.SeedPassword,
			Name:     "Demo Student",
			Role:     string(user.RoleStudent),
			Profile: user.ProfileFields{
				GradeLevel: "10",
				Subjects:   []string{"math"},
			},
		},
	}

	for _, in := range seeds {
		if in.Email == "" {
			continue
		}

		u, err := reg.Register(ctx, in)
		switch {
		case err == nil:
			log.InfoContext(ctx, "seed_account_created", "user_id", u.ID, "role", u.Role)
		case errors.Is(err, accounts.ErrDuplicateEmail):
			log.DebugContext(ctx, "seed_account_exists", "email", in.Email)
		default:
			return err
		}
	}
	return nil
}
