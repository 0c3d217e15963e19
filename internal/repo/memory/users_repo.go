package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/geocoder89/tutorhub/internal/domain/user"
)

var (
	errUnknownUser   = errors.New("profile references unknown user")
	errProfileExists = errors.New("user already has a profile")
)

// UsersRepo is an in-process credential store for local runs and tests.
// Transactions hold the write lock for their whole duration and publish
// their staged rows only on commit.
type UsersRepo struct {
	mu       sync.RWMutex
	users    map[string]user.User // id -> user
	byEmail  map[string]string    // email -> id
	tutors   map[string]user.TutorProfile
	students map[string]user.StudentProfile
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		users:    make(map[string]user.User),
		byEmail:  make(map[string]string),
		tutors:   make(map[string]user.TutorProfile),
		students: make(map[string]user.StudentProfile),
	}
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.users[id], nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return user.ErrNotFound
	}
	at = at.UTC()
	u.LastLogin = &at
	u.UpdatedAt = at
	r.users[id] = u
	return nil
}

func (r *UsersRepo) GetTutorProfile(ctx context.Context, userID string) (user.TutorProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.tutors[userID]
	if !ok {
		return user.TutorProfile{}, user.ErrProfileNotFound
	}
	return p, nil
}

func (r *UsersRepo) GetStudentProfile(ctx context.Context, userID string) (user.StudentProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.students[userID]
	if !ok {
		return user.StudentProfile{}, user.ErrProfileNotFound
	}
	return p, nil
}

func (r *UsersRepo) WithTx(ctx context.Context, fn func(ctx context.Context, w user.AccountWriter) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &stagedTx{
		repo:     r,
		users:    make(map[string]user.User),
		byEmail:  make(map[string]string),
		tutors:   make(map[string]user.TutorProfile),
		students: make(map[string]user.StudentProfile),
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, u := range tx.users {
		r.users[id] = u
	}
	for email, id := range tx.byEmail {
		r.byEmail[email] = id
	}
	for id, p := range tx.tutors {
		r.tutors[id] = p
	}
	for id, p := range tx.students {
		r.students[id] = p
	}
	return nil
}

// stagedTx reads the committed maps directly; the caller already holds the lock.
type stagedTx struct {
	repo     *UsersRepo
	users    map[string]user.User
	byEmail  map[string]string
	tutors   map[string]user.TutorProfile
	students map[string]user.StudentProfile
}

func (tx *stagedTx) CreateUser(ctx context.Context, u user.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	email := user.NormalizeEmail(u.Email)
	if _, ok := tx.repo.byEmail[email]; ok {
		return user.ErrEmailTaken
	}
	if _, ok := tx.byEmail[email]; ok {
		return user.ErrEmailTaken
	}

	u.Email = email
	tx.users[u.ID] = u
	tx.byEmail[email] = u.ID
	return nil
}

func (tx *stagedTx) CreateTutorProfile(ctx context.Context, p user.TutorProfile) error {
	if err := tx.checkProfileOwner(p.UserID); err != nil {
		return err
	}
	tx.tutors[p.UserID] = p
	return nil
}

func (tx *stagedTx) CreateStudentProfile(ctx context.Context, p user.StudentProfile) error {
	if err := tx.checkProfileOwner(p.UserID); err != nil {
		return err
	}
	tx.students[p.UserID] = p
	return nil
}

func (tx *stagedTx) checkProfileOwner(userID string) error {
	_, staged := tx.users[userID]
	_, committed := tx.repo.users[userID]
	if !staged && !committed {
		return errUnknownUser
	}

	// one profile per user, mirroring the unique user_id columns
	_, stagedTutor := tx.tutors[userID]
	_, stagedStudent := tx.students[userID]
	_, tutor := tx.repo.tutors[userID]
	_, student := tx.repo.students[userID]
	if stagedTutor || stagedStudent || tutor || student {
		return errProfileExists
	}
	return nil
}
