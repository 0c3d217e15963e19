package user

import "context"

// AccountWriter performs the writes of one registration. Implementations run
// every call made through it inside a single transaction.
type AccountWriter interface {
	CreateUser(ctx context.Context, u User) error
	CreateTutorProfile(ctx context.Context, p TutorProfile) error
	CreateStudentProfile(ctx context.Context, p StudentProfile) error
}
