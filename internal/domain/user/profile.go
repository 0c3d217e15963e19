package user

import (
	"time"

	"github.com/google/uuid"
)

type TutorProfile struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Bio             string    `json:"bio"`
	Subjects        []string  `json:"subjects"`
	HourlyRate      float64   `json:"hourlyRate"`
	ExperienceYears int       `json:"experienceYears"`
	Education       string    `json:"education"`
	CreatedAt       time.Time `json:"createdAt"`
}

type StudentProfile struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	GradeLevel    string    `json:"gradeLevel"`
	School        string    `json:"school"`
	LearningGoals string    `json:"learningGoals"`
	Subjects      []string  `json:"subjects"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ProfileFields carries the optional role-specific registration fields.
// Fields that do not apply to the chosen role are ignored.
type ProfileFields struct {
	Bio             string   `json:"bio"`
	Subjects        []string `json:"subjects"`
	HourlyRate      float64  `json:"hourlyRate" binding:"gte=0"`
	ExperienceYears int      `json:"experienceYears" binding:"gte=0"`
	Education       string   `json:"education"`
	GradeLevel      string   `json:"gradeLevel"`
	School          string   `json:"school"`
	LearningGoals   string   `json:"learningGoals"`
}

func NewTutorProfile(userID string, f ProfileFields) TutorProfile {
	subjects := f.Subjects
	if subjects == nil {
		subjects = []string{}
	}

	return TutorProfile{
		ID:              uuid.NewString(),
		UserID:          userID,
		Bio:             f.Bio,
		Subjects:        subjects,
		HourlyRate:      f.HourlyRate,
		ExperienceYears: f.ExperienceYears,
		Education:       f.Education,
		CreatedAt:       time.Now().UTC(),
	}
}

func NewStudentProfile(userID string, f ProfileFields) StudentProfile {
	subjects := f.Subjects
	if subjects == nil {
		subjects = []string{}
	}

	return StudentProfile{
		ID:            uuid.NewString(),
		UserID:        userID,
		GradeLevel:    f.GradeLevel,
		School:        f.School,
		LearningGoals: f.LearningGoals,
		Subjects:      subjects,
		CreatedAt:     time.Now().UTC(),
	}
}
