package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

const selectUser = `SELECT id, email, password_hash, name, role, provider, email_verified,
       last_login, created_at, updated_at
FROM users`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Name,
		&u.Role,
		&u.Provider,
		&u.EmailVerified,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return user.ErrNotFound
	}
	return err
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (u user.User, err error) {
	err = r.prom.ObserveDB("users.get_by_email", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE email = $1`, user.NormalizeEmail(email)))
		return err
	})
	if err != nil {
		return user.User{}, notFound(err)
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (u user.User, err error) {
	err = r.prom.ObserveDB("users.get_by_id", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
		return err
	})

	// ids come from tokens; a value that is not a uuid simply matches nobody
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, notFound(err)
	}
	return u, nil
}

func (r *UsersRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	var tag pgconn.CommandTag

	err := r.prom.ObserveDB("users.update_last_login", func() (err error) {
		tag, err = r.pool.Exec(ctx,
			`UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`,
			id, at.UTC(),
		)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) GetTutorProfile(ctx context.Context, userID string) (p user.TutorProfile, err error) {
	err = r.prom.ObserveDB("tutor_profiles.get_by_user", func() error {
		return r.pool.QueryRow(ctx, `
		SELECT id, user_id, bio, subjects, hourly_rate, experience_years, education, created_at
		FROM tutor_profiles
		WHERE user_id = $1`, userID,
		).Scan(&p.ID, &p.UserID, &p.Bio, &p.Subjects, &p.HourlyRate, &p.ExperienceYears, &p.Education, &p.CreatedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return user.TutorProfile{}, user.ErrProfileNotFound
	}
	return p, err
}

func (r *UsersRepo) GetStudentProfile(ctx context.Context, userID string) (p user.StudentProfile, err error) {
	err = r.prom.ObserveDB("student_profiles.get_by_user", func() error {
		return r.pool.QueryRow(ctx, `
		SELECT id, user_id, grade_level, school, learning_goals, subjects, created_at
		FROM student_profiles
		WHERE user_id = $1`, userID,
		).Scan(&p.ID, &p.UserID, &p.GradeLevel, &p.School, &p.LearningGoals, &p.Subjects, &p.CreatedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return user.StudentProfile{}, user.ErrProfileNotFound
	}
	return p, err
}

// WithTx runs fn inside one database transaction. Every write made through
// the AccountWriter is committed together or rolled back together.
func (r *UsersRepo) WithTx(ctx context.Context, fn func(ctx context.Context, w user.AccountWriter) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(ctx)
	}()

	if err = fn(ctx, &txWriter{q: tx, prom: r.prom}); err != nil {
		return err
	}

	return r.prom.ObserveDB("accounts.commit", func() error {
		return tx.Commit(ctx)
	})
}

type txWriter struct {
	q    queryer
	prom *observability.Prom
}

func (w *txWriter) CreateUser(ctx context.Context, u user.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	err := w.prom.ObserveDB("users.insert", func() error {
		_, err := w.q.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, provider, email_verified, last_login, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			u.ID, u.Email, u.PasswordHash, u.Name, string(u.Role), string(u.Provider),
			u.EmailVerified, u.LastLogin, u.CreatedAt, u.UpdatedAt,
		)
		return err
	})

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "users_email_key" {
		return user.ErrEmailTaken
	}
	return err
}

func (w *txWriter) CreateTutorProfile(ctx context.Context, p user.TutorProfile) error {
	return w.prom.ObserveDB("tutor_profiles.insert", func() error {
		_, err := w.q.Exec(ctx, `
		INSERT INTO tutor_profiles (id, user_id, bio, subjects, hourly_rate, experience_years, education, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			p.ID, p.UserID, p.Bio, p.Subjects, p.HourlyRate, p.ExperienceYears, p.Education, p.CreatedAt,
		)
		return err
	})
}

func (w *txWriter) CreateStudentProfile(ctx context.Context, p user.StudentProfile) error {
	return w.prom.ObserveDB("student_profiles.insert", func() error {
		_, err := w.q.Exec(ctx, `
		INSERT INTO student_profiles (id, user_id, grade_level, school, learning_goals, subjects, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			p.ID, p.UserID, p.GradeLevel, p.School, p.LearningGoals, p.Subjects, p.CreatedAt,
		)
		return err
	})
}
