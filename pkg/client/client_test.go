package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/circademic/gradetrack/internal/api"
	"github.com/circademic/gradetrack/internal/auth"
	"github.com/circademic/gradetrack/internal/config"
	"github.com/circademic/gradetrack/internal/grades"
	"github.com/circademic/gradetrack/internal/health"
	"github.com/circademic/gradetrack/internal/live"
	"github.com/circademic/gradetrack/internal/locale"
	"github.com/circademic/gradetrack/internal/models"
	"github.com/circademic/gradetrack/internal/storage"
	"github.com/circademic/gradetrack/internal/tracker"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	locales, err := locale.NewLoader("en")
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}

	repo := storage.NewMemoryRepository()
	broker := live.NewMemoryBroker()
	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		Secret: "client-test-secret-that-is-long-enough",
		TTL:    time.Hour,
		Issuer: "gradetrack-test",
	})
	authService := auth.NewService(repo, auth.NewMemorySessionStore(), tokens, nil, auth.LogMailer{}, auth.Config{
		MaxSignInAttempts: 5,
		AttemptWindow:     time.Minute,
		ResetTokenTTL:     time.Hour,
		BcryptCost:        4,
	})

	srv := api.NewServer(config.ServerConfig{AllowedOrigins: []string{"*"}}, api.Dependencies{
		Auth:    authService,
		Tracker: tracker.NewService(repo, broker, locales.Default().Categories),
		Broker:  broker,
		Locales: locales,
		Health:  health.NewRegistry(time.Second),
	})

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

var signUp = SignUpRequest{
	Name:            "Noa Cohen",
	Email:           "noa@example.com",
	Password:        "secret1",
	PasswordConfirm: "secret1",
}

func course(name string, credits, grade float64, semester int) models.CourseInput {
	return models.CourseInput{
		Name:      name,
		Credits:   credits,
		Grade:     grade,
		Semester:  semester,
		Category:  "mandatory",
		ExamType:  "final",
		GradeType: models.GradeNumeric,
	}
}

func TestClientHealth(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL, WithTimeout(5*time.Second))

	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
}

func TestClientAPIError(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL)

	_, err := c.ListCourses(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Code != "auth/unauthenticated" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestClientCourses(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL, WithLanguage("en"))
	ctx := context.Background()

	session, notice, err := c.SignUp(ctx, signUp)
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if notice == "" || !session.NewUser {
		t.Errorf("unexpected sign-up result: %+v %q", session, notice)
	}
	c.SetToken(session.Token)

	added, _, err := c.AddCourse(ctx, course("Algorithms", 4, 92, 3))
	if err != nil {
		t.Fatalf("AddCourse failed: %v", err)
	}

	got, err := c.GetCourse(ctx, added.ID)
	if err != nil || got.Name != "Algorithms" {
		t.Fatalf("GetCourse = %+v, %v", got, err)
	}

	if _, _, err := c.UpdateCourse(ctx, added.ID, course("Algorithms 2", 4, 94, 3)); err != nil {
		t.Fatalf("UpdateCourse failed: %v", err)
	}

	d, err := c.Dashboard(ctx, DashboardQuery{Search: "algo", Sort: grades.SortByGrade})
	if err != nil {
		t.Fatalf("Dashboard failed: %v", err)
	}
	if len(d.Courses) != 1 || d.Courses[0].Grade != 94 {
		t.Errorf("dashboard courses = %+v", d.Courses)
	}

	csv, err := c.ExportCSV(ctx)
	if err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}
	if !strings.Contains(string(csv), "Algorithms 2,4,94,3") {
		t.Errorf("unexpected csv:\n%s", csv)
	}

	imported, _, err := c.ImportCourses(ctx, "courses.csv", csv)
	if err != nil {
		t.Fatalf("ImportCourses failed: %v", err)
	}
	if len(imported) != 1 {
		t.Errorf("imported %d courses, want 1", len(imported))
	}

	courses, err := c.ListCourses(ctx)
	if err != nil || len(courses) != 2 {
		t.Fatalf("ListCourses = %d, %v", len(courses), err)
	}

	if _, err := c.DeleteCourse(ctx, added.ID); err != nil {
		t.Fatalf("DeleteCourse failed: %v", err)
	}
	_, err = c.GetCourse(ctx, added.ID)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Errorf("GetCourse after delete = %v", err)
	}
}

func TestClientShield(t *testing.T) {
	ts := newTestServer(t)
	c := NewClient(ts.URL)

	grade, weight := 70.0, 40.0
	result, err := c.Shield(context.Background(), grades.ShieldInput{ComponentGrade: &grade, WeightPercent: &weight})
	if err != nil {
		t.Fatalf("Shield failed: %v", err)
	}
	// (55 - 70*0.4) / 0.6 = 45
	if result.Mode != grades.ShieldRequired || result.Grade != 45 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	s := NewSession(NewClient(ts.URL), []string{"first", "second", "third"})
	ctx := context.Background()

	var mu sync.Mutex
	var states []models.AuthState
	s.OnAuthChange(func(state models.AuthState, user *models.User) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	})

	if _, err := s.SaveCourse(ctx, course("Early", 1, 90, 1)); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("SaveCourse while anonymous = %v", err)
	}

	if _, err := s.SignUp(ctx, signUp); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if s.State() != models.AuthAuthenticated || s.User().Email != "noa@example.com" {
		t.Fatalf("state = %s, user = %+v", s.State(), s.User())
	}
	if s.Profile() == nil || len(s.Profile().Categories) == 0 {
		t.Fatalf("profile not loaded: %+v", s.Profile())
	}

	if _, err := s.SaveCourse(ctx, course("Databases", 4, 80, 3)); err != nil {
		t.Fatalf("SaveCourse failed: %v", err)
	}
	if _, err := s.SaveCourse(ctx, course("Networks", 2, 95, 4)); err != nil {
		t.Fatalf("SaveCourse failed: %v", err)
	}

	courses := s.Courses()
	if len(courses) != 2 {
		t.Fatalf("courses = %d, want 2", len(courses))
	}

	editing, err := s.StartEditing(courses[0].ID)
	if err != nil || editing.Name != "Databases" {
		t.Fatalf("StartEditing = %+v, %v", editing, err)
	}
	if _, err := s.SaveCourse(ctx, course("Databases", 4, 86, 3)); err != nil {
		t.Fatalf("SaveCourse (edit) failed: %v", err)
	}
	if s.EditingCourseID() != "" {
		t.Error("still editing after save")
	}
	if len(s.Courses()) != 2 {
		t.Errorf("edit added a course: %d", len(s.Courses()))
	}

	d := s.Dashboard()
	// (4*86 + 2*95) / 6 = 89
	if d.Stats.AverageText != "89.00" {
		t.Errorf("average = %s, want 89.00", d.Stats.AverageText)
	}
	if d.Progress.CurrentYear != 2 || d.Progress.YearLabel != "second" {
		t.Errorf("progress = %+v", d.Progress)
	}

	s.SetFilter(grades.Filter{Semester: 4})
	if d := s.Dashboard(); len(d.Courses) != 1 || d.Courses[0].Name != "Networks" {
		t.Errorf("filtered courses = %+v", d.Courses)
	}

	if _, err := s.StartEditing(courses[1].ID); err != nil {
		t.Fatalf("StartEditing failed: %v", err)
	}
	if _, err := s.DeleteCourse(ctx, courses[1].ID); err != nil {
		t.Fatalf("DeleteCourse failed: %v", err)
	}
	if s.EditingCourseID() != "" || len(s.Courses()) != 1 {
		t.Errorf("after delete: editing=%q courses=%d", s.EditingCourseID(), len(s.Courses()))
	}

	if _, err := s.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if s.State() != models.AuthAnonymous || s.User() != nil || s.Courses() != nil {
		t.Errorf("state not cleared: %s %+v", s.State(), s.User())
	}

	mu.Lock()
	defer mu.Unlock()
	want := []models.AuthState{models.AuthAuthenticating, models.AuthAuthenticated, models.AuthAnonymous}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %s, want %s", i, states[i], want[i])
		}
	}
}

func TestSessionFailedSignIn(t *testing.T) {
	ts := newTestServer(t)
	s := NewSession(NewClient(ts.URL), nil)

	_, err := s.SignIn(context.Background(), "nobody@example.com", "secret1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "auth/user-not-found" {
		t.Fatalf("SignIn = %v", err)
	}
	if s.State() != models.AuthAnonymous {
		t.Errorf("state = %s, want anonymous", s.State())
	}
}

func TestSessionResume(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	first := NewSession(NewClient(ts.URL), nil)
	if _, err := first.SignUp(ctx, signUp); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := first.SaveCourse(ctx, course("Compilers", 5, 88, 5)); err != nil {
		t.Fatalf("SaveCourse failed: %v", err)
	}

	second := NewSession(NewClient(ts.URL, WithToken(first.client.Token())), nil)
	if err := second.Resume(ctx); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if second.State() != models.AuthAuthenticated || len(second.Courses()) != 1 {
		t.Errorf("resumed state = %s, courses = %d", second.State(), len(second.Courses()))
	}
}

func TestSessionDeleteAccount(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	s := NewSession(NewClient(ts.URL), nil)
	if _, err := s.SignUp(ctx, signUp); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := s.DeleteAccount(ctx); err != nil {
		t.Fatalf("DeleteAccount failed: %v", err)
	}
	if s.State() != models.AuthAnonymous {
		t.Errorf("state = %s", s.State())
	}

	if _, err := s.SignIn(ctx, signUp.Email, signUp.Password); err == nil {
		t.Error("sign-in after account deletion succeeded")
	}
}
