package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/tutorhub/internal/auth"
	"github.com/geocoder89/tutorhub/internal/domain/user"
	"github.com/geocoder89/tutorhub/internal/http/handlers"
	"github.com/geocoder89/tutorhub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type fakeProfiles struct {
	tutorFn   func(ctx context.Context, userID string) (user.TutorProfile, error)
	studentFn func(ctx context.Context, userID string) (user.StudentProfile, error)
}

func (f *fakeProfiles) GetTutorProfile(ctx context.Context, userID string) (user.TutorProfile, error) {
	if f.tutorFn != nil {
		return f.tutorFn(ctx, userID)
	}
	return user.TutorProfile{}, user.ErrProfileNotFound
}

func (f *fakeProfiles) GetStudentProfile(ctx context.Context, userID string) (user.StudentProfile, error) {
	if f.studentFn != nil {
		return f.studentFn(ctx, userID)
	}
	return user.StudentProfile{}, user.ErrProfileNotFound
}

func setupProfileRouter(caller user.Principal, profiles *fakeProfiles) *gin.Engine {
	authn := &fakeAuthn{
		authenticateFn: func(r *http.Request) (user.Principal, error) {
			if caller.ID == "" {
				return user.Principal{}, auth.ErrNoToken
			}
			return caller, nil
		},
	}
	m := middlewares.NewAuthMiddleware(authn, nil)
	h := handlers.NewProfileHandler(profiles)

	r := gin.New()
	api := r.Group("/api", m.RequireAuth())
	api.GET("/me", h.Me)
	api.GET("/tutors/me/profile", m.RequireRole(user.RoleTutor), h.TutorProfile)
	api.GET("/students/me/profile", m.RequireRole(user.RoleStudent), h.StudentProfile)
	return r
}

func TestProfileRoutes(t *testing.T) {
	tutor := user.Principal{ID: "t1", Email: "t@x.com", Name: "T", Role: user.RoleTutor}
	student := user.Principal{ID: "s1", Email: "s@x.com", Name: "S", Role: user.RoleStudent}

	profiles := &fakeProfiles{
		tutorFn: func(ctx context.Context, userID string) (user.TutorProfile, error) {
			if userID != "t1" {
				return user.TutorProfile{}, user.ErrProfileNotFound
			}
			return user.TutorProfile{ID: "tp1", UserID: "t1", Bio: "maths", Subjects: []string{}}, nil
		},
		studentFn: func(ctx context.Context, userID string) (user.StudentProfile, error) {
			return user.StudentProfile{}, errors.New("db down")
		},
	}

	tests := []struct {
		name       string
		caller     user.Principal
		path       string
		wantStatus int
		wantError  string
	}{
		{name: "me_anonymous", path: "/api/me", wantStatus: http.StatusUnauthorized, wantError: "Unauthorized"},
		{name: "me_student", caller: student, path: "/api/me", wantStatus: http.StatusOK},
		{name: "tutor_profile_as_tutor", caller: tutor, path: "/api/tutors/me/profile", wantStatus: http.StatusOK},
		{name: "tutor_profile_as_student", caller: student, path: "/api/tutors/me/profile", wantStatus: http.StatusForbidden, wantError: "Access denied"},
		{name: "student_profile_as_tutor", caller: tutor, path: "/api/students/me/profile", wantStatus: http.StatusForbidden, wantError: "Access denied"},
		{name: "student_profile_store_error", caller: student, path: "/api/students/me/profile", wantStatus: http.StatusInternalServerError, wantError: "Could not load profile"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			setupProfileRouter(tt.caller, profiles).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status: got %d want %d body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			body := decode(t, w)
			if tt.wantError != "" {
				if body["error"] != tt.wantError {
					t.Fatalf("error: got %v want %q", body["error"], tt.wantError)
				}
				return
			}

			u, _ := body["user"].(map[string]any)
			if u["id"] != tt.caller.ID {
				t.Fatalf("user: %v", body["user"])
			}
		})
	}
}

func TestProfileRoutes_MissingProfileIs404(t *testing.T) {
	tutor := user.Principal{ID: "t2", Role: user.RoleTutor}

	w := httptest.NewRecorder()
	setupProfileRouter(tutor, &fakeProfiles{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/tutors/me/profile", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status: %d", w.Code)
	}
}
