package storage

import (
	"context"
	"errors"
	"time"

	"github.com/circademic/gradetrack/internal/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist or
	// belongs to another user.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken
	ErrDuplicate = errors.New("duplicate record")
)

// Repository defines the interface for gradetrack persistence
type Repository interface {
	// Accounts
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByGoogleSubject(ctx context.Context, subject string) (*models.Account, error)
	LinkGoogleSubject(ctx context.Context, id, subject string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// DeleteAccount removes the account with its profile, courses and
	// pending password resets.
	DeleteAccount(ctx context.Context, id string) error

	// Profiles. GetProfile returns nil, nil when no profile was stored yet.
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SetProfile(ctx context.Context, p *models.Profile) error

	// Courses, always scoped to their owner
	ListCourses(ctx context.Context, userID string) ([]models.Course, error)
	AddCourse(ctx context.Context, userID string, c *models.Course) (string, error)
	// AddCourses stores all courses and, when profile is not nil, the
	// profile in one step. Nothing is stored if any write fails.
	AddCourses(ctx context.Context, userID string, courses []*models.Course, profile *models.Profile) error
	GetCourse(ctx context.Context, userID, id string) (*models.Course, error)
	UpdateCourse(ctx context.Context, userID, id string, c *models.Course) error
	DeleteCourse(ctx context.Context, userID, id string) error

	// Password resets
	CreatePasswordReset(ctx context.Context, r *models.PasswordReset) error
	// ConsumePasswordReset removes the reset and returns it, so a token
	// works at most once.
	ConsumePasswordReset(ctx context.Context, tokenHash string) (*models.PasswordReset, error)
	DeleteExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
