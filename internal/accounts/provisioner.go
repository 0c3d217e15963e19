package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/notifications"
	"github.com/geocoder89/tutorhub/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrMissingField   = errors.New("missing required field")
	ErrInvalidRole    = errors.New("role must be STUDENT or TUTOR")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrPasswordLength = errors.New("password exceeds 72 bytes")
)

// bcrypt refuses passwords longer than this many bytes
const maxPasswordBytes = 72

// MissingFieldsError lists which of email/password/name/role were absent.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingField
}

type Store interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, w user.AccountWriter) error) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
	Profile  user.ProfileFields
}

type Provisioner struct {
	store    Store
	hasher   PasswordHasher
	notifier notifications.Notifier
	prom     *observability.Prom
	log      *slog.Logger
}

type Option func(*Provisioner)

func WithNotifier(n notifications.Notifier) Option {
	return func(p *Provisioner) { p.notifier = n }
}

func WithMetrics(prom *observability.Prom) Option {
	return func(p *Provisioner) { p.prom = prom }
}

func WithLogger(log *slog.Logger) Option {
	return func(p *Provisioner) { p.log = log }
}

func NewProvisioner(store Store, hasher PasswordHasher, opts ...Option) *Provisioner {
	p := &Provisioner{
		store:  store,
		hasher: hasher,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var tracer = otel.Tracer("github.com/geocoder89/tutorhub/internal/accounts")

// Register creates a user and its role-matched profile as one unit: either
// both rows exist afterwards or neither does.
func (p *Provisioner) Register(ctx context.Context, in RegisterInput) (u user.User, err error) {
	ctx, span := tracer.Start(ctx, "accounts.Register")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	role, err := validate(in)
	if err != nil {
		p.count(in.Role, err)
		return user.User{}, err
	}
	span.SetAttributes(attribute.String("user.role", string(role)))

	email := user.NormalizeEmail(in.Email)

	// fast path; the unique index is the real guard against a concurrent insert
	_, err = p.store.GetByEmail(ctx, email)
	switch {
	case err == nil:
		err = ErrDuplicateEmail
		p.count(string(role), err)
		return user.User{}, err
	case !errors.Is(err, user.ErrNotFound):
		err = fmt.Errorf("lookup email: %w", err)
		p.count(string(role), err)
		return user.User{}, err
	}

	hash, err := p.hasher.Hash(in.Password)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		p.count(string(role), err)
		return user.User{}, err
	}

	u = user.NewLocal(email, hash, in.Name, role)

	err = p.store.WithTx(ctx, func(ctx context.Context, w user.AccountWriter) error {
		if err := w.CreateUser(ctx, u); err != nil {
			return err
		}

		switch role {
		case user.RoleTutor:
			return w.CreateTutorProfile(ctx, user.NewTutorProfile(u.ID, in.Profile))
		default:
			return w.CreateStudentProfile(ctx, user.NewStudentProfile(u.ID, in.Profile))
		}
	})

	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			err = ErrDuplicateEmail
		} else {
			err = fmt.Errorf("provision account: %w", err)
		}
		p.count(string(role), err)
		return user.User{}, err
	}

	p.count(string(role), nil)
	p.log.InfoContext(ctx, "account_registered", "user_id", u.ID, "role", u.Role)

	p.sendWelcome(ctx, u)

	return u, nil
}

func validate(in RegisterInput) (user.Role, error) {
	var missing []string

	if strings.TrimSpace(in.Email) == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Role) == "" {
		missing = append(missing, "role")
	}

	if len(missing) > 0 {
		return "", &MissingFieldsError{Fields: missing}
	}

	role, ok := user.ParseRole(in.Role)
	if !ok {
		return "", ErrInvalidRole
	}

	if len(in.Password) > maxPasswordBytes {
		return "", ErrPasswordLength
	}

	return role, nil
}

// the account is already committed; a failed welcome message is only logged
func (p *Provisioner) sendWelcome(ctx context.Context, u user.User) {
	if p.notifier == nil {
		return
	}

	err := p.notifier.SendWelcome(ctx, notifications.WelcomeInput{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   string(u.Role),
	})

	if err != nil {
		p.log.WarnContext(ctx, "welcome_notification_failed", "user_id", u.ID, "err", err)
	}
}

func (p *Provisioner) count(role string, err error) {
	if p.prom == nil {
		return
	}

	result := "created"
	switch {
	case err == nil:
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrInvalidRole), errors.Is(err, ErrPasswordLength):
		result = "invalid"
	case errors.Is(err, ErrDuplicateEmail):
		result = "duplicate"
	default:
		result = "error"
	}

	if _, ok := user.ParseRole(role); !ok {
		role = "unknown"
	}

	p.prom.RegistrationsTotal.WithLabelValues(strings.ToUpper(role), result).Inc()
}
