package client

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/circademic/gradetrack/internal/grades"
	"github.com/circademic/gradetrack/internal/models"
)

// ErrNotSignedIn is returned by Session calls that need a signed-in user
var ErrNotSignedIn = errors.New("not signed in")

// AuthListener is called after every auth state change, outside the
// session lock. user is nil when signed out.
type AuthListener func(state models.AuthState, user *models.User)

// Session holds the application state of one signed-in user: their
// profile, the loaded courses and the course being edited. Every mutation
// reloads the course list so the locally computed dashboard always covers
// the full set.
type Session struct {
	client     *Client
	yearLabels []string

	mu              sync.RWMutex
	state           models.AuthState
	user            *models.User
	profile         *models.Profile
	courses         []models.Course
	editingCourseID string
	filter          grades.Filter

	listenersMu sync.Mutex
	listeners   []AuthListener
}

// NewSession creates an anonymous session over client. yearLabels name
// the academic years in the local dashboard.
func NewSession(client *Client, yearLabels []string) *Session {
	return &Session{
		client:     client,
		yearLabels: yearLabels,
		state:      models.AuthAnonymous,
	}
}

// OnAuthChange registers a listener for auth state changes
func (s *Session) OnAuthChange(fn AuthListener) {
	s.listenersMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenersMu.Unlock()
}

// State returns the current auth state
func (s *Session) State() models.AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User returns the signed-in user, nil if anonymous
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Profile returns the loaded profile
func (s *Session) Profile() *models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Courses returns a copy of the loaded courses in creation order
func (s *Session) Courses() []models.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.courses)
}

// EditingCourseID returns the id of the course being edited, "" if none
func (s *Session) EditingCourseID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editingCourseID
}

// StartEditing marks a loaded course as being edited. The next SaveCourse
// updates it instead of adding a new one.
func (s *Session) StartEditing(id string) (*models.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.courses {
		if s.courses[i].ID == id {
			s.editingCourseID = id
			c := s.courses[i]
			return &c, nil
		}
	}
	return nil, &APIError{Code: "courses/not-found", Message: "course not loaded"}
}

// CancelEditing leaves edit mode
func (s *Session) CancelEditing() {
	s.mu.Lock()
	s.editingCourseID = ""
	s.mu.Unlock()
}

// SetFilter changes the listing clauses of the local dashboard
func (s *Session) SetFilter(f grades.Filter) {
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

// Dashboard computes the dashboard from the loaded state
func (s *Session) Dashboard() *grades.Dashboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return grades.BuildDashboard(s.courses, s.profile, s.filter, s.yearLabels)
}

// SignIn authenticates with email and password and loads the user's data
func (s *Session) SignIn(ctx context.Context, email, password string) (string, error) {
	return s.authenticate(ctx, func() (*AuthSession, string, error) {
		return s.client.SignIn(ctx, email, password)
	})
}

// SignUp registers and signs in a new account
func (s *Session) SignUp(ctx context.Context, req SignUpRequest) (string, error) {
	return s.authenticate(ctx, func() (*AuthSession, string, error) {
		return s.client.SignUp(ctx, req)
	})
}

// SignInWithGoogle authenticates with a Google ID token
func (s *Session) SignInWithGoogle(ctx context.Context, idToken string) (string, error) {
	return s.authenticate(ctx, func() (*AuthSession, string, error) {
		return s.client.SignInWithGoogle(ctx, idToken)
	})
}

// Resume signs in with the token the client already holds, for example
// one restored from disk.
func (s *Session) Resume(ctx context.Context) error {
	_, err := s.authenticate(ctx, func() (*AuthSession, string, error) {
		me, err := s.client.Me(ctx)
		if err != nil {
			return nil, "", err
		}
		return &AuthSession{Token: s.client.Token(), User: me.User}, "", nil
	})
	return err
}

func (s *Session) authenticate(ctx context.Context, signIn func() (*AuthSession, string, error)) (string, error) {
	if err := s.transition(models.EventSignInStarted); err != nil {
		return "", err
	}

	session, notice, err := signIn()
	if err == nil {
		s.client.SetToken(session.Token)
		s.mu.Lock()
		s.user = session.User
		s.mu.Unlock()
		err = s.Reload(ctx)
	}
	if err != nil {
		s.clear()
		s.transition(models.EventSignInFailed)
		return "", err
	}

	if err := s.transition(models.EventSignInSucceeded); err != nil {
		return "", err
	}
	return notice, nil
}

// SignOut revokes the session and clears all user state
func (s *Session) SignOut(ctx context.Context) (string, error) {
	if s.State() != models.AuthAuthenticated {
		return "", ErrNotSignedIn
	}

	notice, err := s.client.SignOut(ctx)
	if err != nil {
		return "", err
	}

	s.clear()
	s.transition(models.EventSignedOut)
	return notice, nil
}

// DeleteAccount removes the account and signs out
func (s *Session) DeleteAccount(ctx context.Context) (string, error) {
	if s.State() != models.AuthAuthenticated {
		return "", ErrNotSignedIn
	}

	notice, err := s.client.DeleteAccount(ctx)
	if err != nil {
		return "", err
	}

	s.clear()
	s.transition(models.EventSignedOut)
	return notice, nil
}

// Reload fetches the profile and the full course list
func (s *Session) Reload(ctx context.Context) error {
	profile, err := s.client.Profile(ctx)
	if err != nil {
		return err
	}
	courses, err := s.client.ListCourses(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.profile = profile
	s.courses = courses
	s.mu.Unlock()
	return nil
}

// SaveCourse updates the course being edited, or adds a new course when
// none is.
func (s *Session) SaveCourse(ctx context.Context, in models.CourseInput) (string, error) {
	if s.State() != models.AuthAuthenticated {
		return "", ErrNotSignedIn
	}

	editing := s.EditingCourseID()

	var notice string
	var err error
	if editing != "" {
		_, notice, err = s.client.UpdateCourse(ctx, editing, in)
	} else {
		_, notice, err = s.client.AddCourse(ctx, in)
	}
	if err != nil {
		return "", err
	}

	if editing != "" {
		s.CancelEditing()
	}
	return notice, s.Reload(ctx)
}

// DeleteCourse removes a course, leaving edit mode if it was being edited
func (s *Session) DeleteCourse(ctx context.Context, id string) (string, error) {
	if s.State() != models.AuthAuthenticated {
		return "", ErrNotSignedIn
	}

	notice, err := s.client.DeleteCourse(ctx, id)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if s.editingCourseID == id {
		s.editingCourseID = ""
	}
	s.mu.Unlock()
	return notice, s.Reload(ctx)
}

// ImportCourses uploads a CSV or XLSX file
func (s *Session) ImportCourses(ctx context.Context, filename string, data []byte) (string, error) {
	if s.State() != models.AuthAuthenticated {
		return "", ErrNotSignedIn
	}

	_, notice, err := s.client.ImportCourses(ctx, filename, data)
	if err != nil {
		return "", err
	}
	return notice, s.Reload(ctx)
}

// UpdateProfile changes the set profile fields
func (s *Session) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (string, error) {
	if s.State() != models.AuthAuthenticated {
		return "", ErrNotSignedIn
	}

	profile, notice, err := s.client.UpdateProfile(ctx, update)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()
	return notice, nil
}

func (s *Session) clear() {
	s.client.SetToken("")
	s.mu.Lock()
	s.user = nil
	s.profile = nil
	s.courses = nil
	s.editingCourseID = ""
	s.filter = grades.Filter{}
	s.mu.Unlock()
}

func (s *Session) transition(event models.AuthEvent) error {
	s.mu.Lock()
	next, err := s.state.Next(event)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	user := s.user
	s.mu.Unlock()

	s.listenersMu.Lock()
	listeners := slices.Clone(s.listeners)
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(next, user)
	}
	return nil
}
