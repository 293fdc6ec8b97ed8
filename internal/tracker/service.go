package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/circademic/gradetrack/internal/apperr"
	"github.com/circademic/gradetrack/internal/grades"
	"github.com/circademic/gradetrack/internal/live"
	"github.com/circademic/gradetrack/internal/models"
	"github.com/circademic/gradetrack/internal/storage"
)

// ErrCourseNotFound is returned when a course does not exist or belongs to
// another user.
var ErrCourseNotFound = apperr.New(apperr.CodeCourseNotFound, "course not found")

// Service manages a user's profile and courses and computes their
// dashboard.
type Service struct {
	repo              storage.Repository
	broker            live.Broker
	defaultCategories []string
	now               func() time.Time
}

// NewService creates a tracker service. defaultCategories seed profiles
// that are created lazily.
func NewService(repo storage.Repository, broker live.Broker, defaultCategories []string) *Service {
	return &Service{
		repo:              repo,
		broker:            broker,
		defaultCategories: defaultCategories,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// Profile returns the user's profile, creating the default one if none
// was stored yet.
func (s *Service) Profile(ctx context.Context, user *models.User) (*models.Profile, error) {
	profile, err := s.repo.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile != nil {
		return profile, nil
	}

	profile = models.DefaultProfile(user.ID, user.DisplayName, user.Email, s.defaultCategories, s.now())
	if err := s.repo.SetProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	slog.InfoContext(ctx, "default profile created", "user_id", user.ID)
	return profile, nil
}

// UpdateProfile applies the set fields of update
func (s *Service) UpdateProfile(ctx context.Context, user *models.User, update models.ProfileUpdate) (*models.Profile, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	if update.Categories != nil && len(update.Categories) == 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "categories must not be empty")
	}
	if update.TotalCreditsRequired != nil && *update.TotalCreditsRequired <= 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "total_credits_required must be positive")
	}

	profile, err := s.Profile(ctx, user)
	if err != nil {
		return nil, err
	}

	update.Apply(profile)
	if err := s.repo.SetProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.publish(ctx, user.ID, live.EventProfile)
	return profile, nil
}

// Courses returns all of the user's courses in creation order
func (s *Service) Courses(ctx context.Context, user *models.User) ([]models.Course, error) {
	courses, err := s.repo.ListCourses(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

// Course returns one of the user's courses
func (s *Service) Course(ctx context.Context, user *models.User, id string) (*models.Course, error) {
	course, err := s.repo.GetCourse(ctx, user.ID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return course, nil
}

// AddCourse validates and stores a new course
func (s *Service) AddCourse(ctx context.Context, user *models.User, in models.CourseInput) (*models.Course, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	profile, err := s.Profile(ctx, user)
	if err != nil {
		return nil, err
	}
	if !profile.HasCategory(in.Category) {
		return nil, apperr.New(apperr.CodeUnknownCategory, in.Category)
	}

	course := in.Course()
	if _, err := s.repo.AddCourse(ctx, user.ID, course); err != nil {
		return nil, fmt.Errorf("failed to add course: %w", err)
	}

	slog.InfoContext(ctx, "course added", "user_id", user.ID, "course_id", course.ID)
	s.publish(ctx, user.ID, live.EventCourses)
	return course, nil
}

// UpdateCourse replaces the editable fields of an existing course. A
// course may keep a category that was since removed from the profile.
func (s *Service) UpdateCourse(ctx context.Context, user *models.User, id string, in models.CourseInput) (*models.Course, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.Course(ctx, user, id)
	if err != nil {
		return nil, err
	}

	if in.Category != existing.Category {
		profile, err := s.Profile(ctx, user)
		if err != nil {
			return nil, err
		}
		if !profile.HasCategory(in.Category) {
			return nil, apperr.New(apperr.CodeUnknownCategory, in.Category)
		}
	}

	if err := s.repo.UpdateCourse(ctx, user.ID, id, in.Course()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to update course: %w", err)
	}

	slog.InfoContext(ctx, "course updated", "user_id", user.ID, "course_id", id)
	s.publish(ctx, user.ID, live.EventCourses)
	return s.Course(ctx, user, id)
}

// DeleteCourse removes one of the user's courses
func (s *Service) DeleteCourse(ctx context.Context, user *models.User, id string) error {
	if err := s.repo.DeleteCourse(ctx, user.ID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("failed to delete course: %w", err)
	}

	slog.InfoContext(ctx, "course deleted", "user_id", user.ID, "course_id", id)
	s.publish(ctx, user.ID, live.EventCourses)
	return nil
}

// ImportCourses validates every input first and stores them only if all
// are valid. Unknown categories are appended to the profile.
func (s *Service) ImportCourses(ctx context.Context, user *models.User, inputs []models.CourseInput) ([]models.Course, error) {
	if len(inputs) == 0 {
		return nil, apperr.New(apperr.CodeInvalidImport, "no rows")
	}
	for i := range inputs {
		if err := inputs[i].Validate(); err != nil {
			return nil, apperr.New(apperr.CodeInvalidImport, fmt.Sprintf("row %d: %v", i+1, err))
		}
	}

	profile, err := s.Profile(ctx, user)
	if err != nil {
		return nil, err
	}

	var extended *models.Profile
	categories := slices.Clone(profile.Categories)
	for _, in := range inputs {
		if !slices.Contains(categories, in.Category) {
			categories = append(categories, in.Category)
		}
	}
	if len(categories) > len(profile.Categories) {
		update := models.ProfileUpdate{Categories: categories}
		if err := update.Validate(); err != nil {
			return nil, apperr.New(apperr.CodeInvalidImport, fmt.Sprintf("categories: %v", err))
		}
		p := *profile
		update.Apply(&p)
		extended = &p
	}

	courses := make([]*models.Course, 0, len(inputs))
	for _, in := range inputs {
		courses = append(courses, in.Course())
	}
	if err := s.repo.AddCourses(ctx, user.ID, courses, extended); err != nil {
		return nil, fmt.Errorf("failed to import courses: %w", err)
	}

	imported := make([]models.Course, 0, len(courses))
	for _, c := range courses {
		imported = append(imported, *c)
	}

	slog.InfoContext(ctx, "courses imported", "user_id", user.ID, "count", len(imported))
	s.publish(ctx, user.ID, live.EventCourses)
	return imported, nil
}

// Dashboard reloads the user's profile and full course list and computes
// every statistic from them.
func (s *Service) Dashboard(ctx context.Context, user *models.User, f grades.Filter, yearLabels []string) (*grades.Dashboard, error) {
	profile, err := s.Profile(ctx, user)
	if err != nil {
		return nil, err
	}

	courses, err := s.Courses(ctx, user)
	if err != nil {
		return nil, err
	}

	return grades.BuildDashboard(courses, profile, f, yearLabels), nil
}

// DeleteAccount removes the account together with all of its data
func (s *Service) DeleteAccount(ctx context.Context, user *models.User) error {
	if err := s.repo.DeleteAccount(ctx, user.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Wrap(apperr.CodeUserNotFound, err)
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}

	slog.InfoContext(ctx, "account deleted", "user_id", user.ID)
	s.publish(ctx, user.ID, live.EventAccountDeleted)
	return nil
}

// publish notifies open dashboards. Failures are logged, not returned.
func (s *Service) publish(ctx context.Context, userID string, kind live.EventKind) {
	if s.broker == nil {
		return
	}
	event := live.Event{UserID: userID, Kind: kind, At: s.now()}
	if err := s.broker.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish live event", "user_id", userID, "error", err)
	}
}
