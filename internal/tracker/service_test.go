package tracker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/circademic/gradetrack/internal/apperr"
	"github.com/circademic/gradetrack/internal/grades"
	"github.com/circademic/gradetrack/internal/live"
	"github.com/circademic/gradetrack/internal/models"
	"github.com/circademic/gradetrack/internal/storage"
)

var categories = []string{"mandatory", "elective", "general", "sport"}

type fixture struct {
	svc    *Service
	repo   *storage.MemoryRepository
	broker *live.MemoryBroker
	user   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := storage.NewMemoryRepository()
	account := &models.Account{Email: "dana@example.com", DisplayName: "Dana Levi"}
	if err := repo.CreateAccount(context.Background(), account); err != nil {
		t.Fatal(err)
	}
	broker := live.NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })
	return &fixture{
		svc:    NewService(repo, broker, categories),
		repo:   repo,
		broker: broker,
		user:   account.User(),
	}
}

func input(name string, credits, grade float64, semester int, category string) models.CourseInput {
	return models.CourseInput{
		Name:      name,
		Credits:   credits,
		Grade:     grade,
		Semester:  semester,
		Category:  category,
		ExamType:  "exam",
		GradeType: models.GradeNumeric,
	}
}

func TestProfileCreatedOnFirstRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	profile, err := f.svc.Profile(ctx, f.user)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if profile.Name != "Dana Levi" || profile.TotalCreditsRequired != 120 || len(profile.Categories) != 4 {
		t.Errorf("unexpected default profile: %+v", profile)
	}

	stored, _ := f.repo.GetProfile(ctx, f.user.ID)
	if stored == nil {
		t.Fatal("default profile was not stored")
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	major := "Physics"
	credits := 160.0
	profile, err := f.svc.UpdateProfile(ctx, f.user, models.ProfileUpdate{
		Major:                &major,
		TotalCreditsRequired: &credits,
		Categories:           []string{"core", "lab"},
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if profile.Major != "Physics" || profile.TotalCreditsRequired != 160 || profile.Categories[1] != "lab" {
		t.Errorf("unexpected profile: %+v", profile)
	}
	if profile.Email != "dana@example.com" {
		t.Errorf("email changed: %s", profile.Email)
	}

	zero := 0.0
	tests := []struct {
		name   string
		update models.ProfileUpdate
	}{
		{"empty categories", models.ProfileUpdate{Categories: []string{}}},
		{"duplicate categories", models.ProfileUpdate{Categories: []string{"a", "a"}}},
		{"zero credits", models.ProfileUpdate{TotalCreditsRequired: &zero}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.UpdateProfile(ctx, f.user, tt.update); !apperr.Is(err, apperr.CodeInvalidInput) {
				t.Errorf("expected invalid-input, got %v", err)
			}
		})
	}
}

func TestAddCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	events, cancel, _ := f.broker.Subscribe(ctx, f.user.ID)
	defer cancel()

	course, err := f.svc.AddCourse(ctx, f.user, input("Calculus", 5, 90, 1, "mandatory"))
	if err != nil {
		t.Fatalf("AddCourse failed: %v", err)
	}
	if course.ID == "" || course.UserID != f.user.ID {
		t.Errorf("course not stored: %+v", course)
	}

	select {
	case ev := <-events:
		if ev.Kind != live.EventCourses {
			t.Errorf("event kind = %s", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Error("no live event published")
	}

	if _, err := f.svc.AddCourse(ctx, f.user, input("Art", 2, 80, 1, "unknown")); !apperr.Is(err, apperr.CodeUnknownCategory) {
		t.Errorf("expected unknown-category, got %v", err)
	}
	if _, err := f.svc.AddCourse(ctx, f.user, input("", 2, 80, 1, "mandatory")); !apperr.Is(err, apperr.CodeInvalidInput) {
		t.Errorf("expected invalid-input for empty name, got %v", err)
	}
	if _, err := f.svc.AddCourse(ctx, f.user, input("Bad", 0, 80, 1, "mandatory")); !apperr.Is(err, apperr.CodeInvalidInput) {
		t.Errorf("expected invalid-input for zero credits, got %v", err)
	}

	courses, _ := f.svc.Courses(ctx, f.user)
	if len(courses) != 1 {
		t.Errorf("rejected courses must not be stored, have %d", len(courses))
	}
}

func TestUpdateAndDeleteCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	course, _ := f.svc.AddCourse(ctx, f.user, input("Calculus", 5, 0, 1, "mandatory"))

	updated, err := f.svc.UpdateCourse(ctx, f.user, course.ID, input("Calculus I", 5, 88, 1, "mandatory"))
	if err != nil {
		t.Fatalf("UpdateCourse failed: %v", err)
	}
	if updated.Name != "Calculus I" || updated.Grade != 88 || updated.ID != course.ID {
		t.Errorf("unexpected update: %+v", updated)
	}

	// Removing a category from the profile does not orphan existing courses
	f.svc.UpdateProfile(ctx, f.user, models.ProfileUpdate{Categories: []string{"elective"}})
	if _, err := f.svc.UpdateCourse(ctx, f.user, course.ID, input("Calculus I", 5, 92, 1, "mandatory")); err != nil {
		t.Errorf("keeping the current category should be allowed: %v", err)
	}
	if _, err := f.svc.UpdateCourse(ctx, f.user, course.ID, input("Calculus I", 5, 92, 1, "sport")); !apperr.Is(err, apperr.CodeUnknownCategory) {
		t.Errorf("expected unknown-category, got %v", err)
	}

	stranger := &models.User{ID: "someone-else"}
	if _, err := f.svc.UpdateCourse(ctx, stranger, course.ID, input("X", 1, 1, 1, "elective")); !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("other users must not edit the course: %v", err)
	}
	if err := f.svc.DeleteCourse(ctx, stranger, course.ID); !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("other users must not delete the course: %v", err)
	}

	if err := f.svc.DeleteCourse(ctx, f.user, course.ID); err != nil {
		t.Fatalf("DeleteCourse failed: %v", err)
	}
	if _, err := f.svc.Course(ctx, f.user, course.ID); !apperr.Is(err, apperr.CodeCourseNotFound) {
		t.Errorf("deleted course still readable: %v", err)
	}
}

func TestImportCourses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	imported, err := f.svc.ImportCourses(ctx, f.user, []models.CourseInput{
		input("Calculus", 5, 90, 1, "mandatory"),
		input("Chess", 2, 0, 2, "hobby"),
	})
	if err != nil {
		t.Fatalf("ImportCourses failed: %v", err)
	}
	if len(imported) != 2 || imported[1].ID == "" {
		t.Errorf("unexpected import result: %+v", imported)
	}

	profile, _ := f.svc.Profile(ctx, f.user)
	if !profile.HasCategory("hobby") {
		t.Error("imported category should be added to the profile")
	}

	_, err = f.svc.ImportCourses(ctx, f.user, []models.CourseInput{
		input("Good", 5, 90, 1, "mandatory"),
		input("Bad", -1, 90, 1, "mandatory"),
	})
	if !apperr.Is(err, apperr.CodeInvalidImport) {
		t.Errorf("expected invalid-import, got %v", err)
	}
	courses, _ := f.svc.Courses(ctx, f.user)
	if len(courses) != 2 {
		t.Errorf("a failed import must not store anything, have %d courses", len(courses))
	}

	if _, err := f.svc.ImportCourses(ctx, f.user, nil); !apperr.Is(err, apperr.CodeInvalidImport) {
		t.Errorf("empty import: %v", err)
	}
}

// failingRepository stores courses in memory but fails every batch write
// after the first n courses were written.
type failingRepository struct {
	*storage.MemoryRepository
	n int
}

func (r *failingRepository) AddCourses(ctx context.Context, userID string, courses []*models.Course, profile *models.Profile) error {
	if len(courses) > r.n {
		return errors.New("connection reset")
	}
	return r.MemoryRepository.AddCourses(ctx, userID, courses, profile)
}

func TestImportCoursesStoresNothingOnWriteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewService(&failingRepository{MemoryRepository: f.repo, n: 1}, f.broker, categories)

	_, err := svc.ImportCourses(ctx, f.user, []models.CourseInput{
		input("Algebra", 4, 80, 1, "mandatory"),
		input("Pottery", 2, 95, 1, "arts"),
	})
	if err == nil {
		t.Fatal("expected import to fail")
	}

	courses, _ := f.svc.Courses(ctx, f.user)
	if len(courses) != 0 {
		t.Errorf("failed import stored %d courses", len(courses))
	}
	profile, _ := f.svc.Profile(ctx, f.user)
	if profile.HasCategory("arts") {
		t.Error("failed import extended the profile categories")
	}
}

func TestImportCoursesRejectsLongCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	long := strings.Repeat("c", 60)
	_, err := f.svc.ImportCourses(ctx, f.user, []models.CourseInput{
		input("Algebra", 4, 80, 1, "mandatory"),
		input("Weird", 2, 95, 1, long),
	})
	if !apperr.Is(err, apperr.CodeInvalidImport) {
		t.Fatalf("expected invalid-import, got %v", err)
	}

	courses, _ := f.svc.Courses(ctx, f.user)
	if len(courses) != 0 {
		t.Errorf("rejected import stored %d courses", len(courses))
	}
	profile, _ := f.svc.Profile(ctx, f.user)
	if profile.HasCategory(long) {
		t.Error("rejected import extended the profile categories")
	}

	if _, err := f.svc.AddCourse(ctx, f.user, input("Weird", 2, 95, 1, long)); err == nil {
		t.Error("AddCourse accepted a 60 character category")
	}
}

func TestDashboardReloadsAfterMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.svc.AddCourse(ctx, f.user, input("Calculus", 4, 90, 1, "mandatory"))
	f.svc.AddCourse(ctx, f.user, input("Physics", 6, 80, 3, "mandatory"))
	binary := input("Gym", 2, 0, 3, "sport")
	binary.GradeType = models.GradeBinary
	f.svc.AddCourse(ctx, f.user, binary)

	d, err := f.svc.Dashboard(ctx, f.user, grades.Filter{Sort: grades.SortByGrade}, []string{"first", "second"})
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if d.Stats.Average != 84 || d.Stats.TotalCredits != 12 {
		t.Errorf("stats = %+v", d.Stats)
	}
	if d.Progress.CurrentSemester != 3 || d.Progress.YearLabel != "second" {
		t.Errorf("progress = %+v", d.Progress)
	}
	if d.Stats.ProgressText != "10.0%" {
		t.Errorf("progress text = %s", d.Stats.ProgressText)
	}

	f.svc.AddCourse(ctx, f.user, input("Algebra", 10, 100, 5, "elective"))
	d, _ = f.svc.Dashboard(ctx, f.user, grades.Filter{}, nil)
	if d.Stats.Average != 92 || d.Stats.CourseCount != 4 {
		t.Errorf("dashboard not recomputed: %+v", d.Stats)
	}
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.AddCourse(ctx, f.user, input("Calculus", 4, 90, 1, "mandatory"))

	if err := f.svc.DeleteAccount(ctx, f.user); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if courses, _ := f.repo.ListCourses(ctx, f.user.ID); len(courses) != 0 {
		t.Error("courses survived account deletion")
	}
	if err := f.svc.DeleteAccount(ctx, f.user); !apperr.Is(err, apperr.CodeUserNotFound) {
		t.Errorf("second delete: %v", err)
	}
}
