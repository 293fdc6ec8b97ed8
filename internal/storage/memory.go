package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/circademic/gradetrack/internal/models"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository implements Repository in process memory. It backs the
// "memory" database driver and the tests of the packages above storage.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	profiles map[string]*models.Profile
	courses  map[string][]*models.Course // by user, in creation order
	resets   map[string]*models.PasswordReset
	now      func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[string]*models.Account),
		profiles: make(map[string]*models.Profile),
		courses:  make(map[string][]*models.Course),
		resets:   make(map[string]*models.PasswordReset),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}

func (r *MemoryRepository) CreateAccount(ctx context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.Email == a.Email {
			return fmt.Errorf("account %s: %w", a.Email, ErrDuplicate)
		}
		if a.GoogleSubject != "" && existing.GoogleSubject == a.GoogleSubject {
			return fmt.Errorf("google subject: %w", ErrDuplicate)
		}
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now()
	}

	stored := *a
	r.accounts[a.ID] = &stored
	return nil
}

func (r *MemoryRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.accounts[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findAccount(func(a *models.Account) bool { return a.Email == email })
}

func (r *MemoryRepository) GetAccountByGoogleSubject(ctx context.Context, subject string) (*models.Account, error) {
	if subject == "" {
		return nil, ErrNotFound
	}
	return r.findAccount(func(a *models.Account) bool { return a.GoogleSubject == subject })
}

func (r *MemoryRepository) findAccount(match func(*models.Account) bool) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if match(a) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) LinkGoogleSubject(ctx context.Context, id, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	for otherID, other := range r.accounts {
		if otherID != id && other.GoogleSubject == subject {
			return fmt.Errorf("google subject: %w", ErrDuplicate)
		}
	}
	a.GoogleSubject = subject
	return nil
}

func (r *MemoryRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

func (r *MemoryRepository) DeleteAccount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return ErrNotFound
	}

	delete(r.accounts, id)
	delete(r.profiles, id)
	delete(r.courses, id)
	for hash, reset := range r.resets {
		if reset.UserID == id {
			delete(r.resets, hash)
		}
	}
	return nil
}

func (r *MemoryRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, nil
	}
	copied := *p
	copied.Categories = slices.Clone(p.Categories)
	return &copied, nil
}

func (r *MemoryRepository) SetProfile(ctx context.Context, p *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *p
	stored.Categories = slices.Clone(p.Categories)
	if existing, ok := r.profiles[p.UserID]; ok {
		stored.Email = existing.Email
		stored.CreatedAt = existing.CreatedAt
	}
	r.profiles[p.UserID] = &stored
	return nil
}

func (r *MemoryRepository) ListCourses(ctx context.Context, userID string) ([]models.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	courses := make([]models.Course, 0, len(r.courses[userID]))
	for _, c := range r.courses[userID] {
		courses = append(courses, *c)
	}
	return courses, nil
}

func (r *MemoryRepository) AddCourse(ctx context.Context, userID string, c *models.Course) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c.ID = uuid.NewString()
	c.UserID = userID
	c.CreatedAt = now
	c.UpdatedAt = now

	stored := *c
	r.courses[userID] = append(r.courses[userID], &stored)
	return c.ID, nil
}

func (r *MemoryRepository) AddCourses(ctx context.Context, userID string, courses []*models.Course, profile *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	now := r.now()
	stored := make([]*models.Course, 0, len(courses))
	for _, c := range courses {
		c.ID = uuid.NewString()
		c.UserID = userID
		c.CreatedAt = now
		c.UpdatedAt = now
		copied := *c
		stored = append(stored, &copied)
	}

	if profile != nil {
		p := *profile
		p.Categories = slices.Clone(profile.Categories)
		if existing, ok := r.profiles[userID]; ok {
			p.Email = existing.Email
			p.CreatedAt = existing.CreatedAt
		}
		r.profiles[userID] = &p
	}
	r.courses[userID] = append(r.courses[userID], stored...)
	return nil
}

func (r *MemoryRepository) GetCourse(ctx context.Context, userID, id string) (*models.Course, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.courseIndex(userID, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	copied := *r.courses[userID][i]
	return &copied, nil
}

func (r *MemoryRepository) UpdateCourse(ctx context.Context, userID, id string, c *models.Course) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.courseIndex(userID, id)
	if i < 0 {
		return ErrNotFound
	}

	stored := r.courses[userID][i]
	stored.Name = c.Name
	stored.Credits = c.Credits
	stored.Grade = c.Grade
	stored.Semester = c.Semester
	stored.Category = c.Category
	stored.ExamType = c.ExamType
	stored.GradeType = c.GradeType
	stored.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) DeleteCourse(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.courseIndex(userID, id)
	if i < 0 {
		return ErrNotFound
	}
	r.courses[userID] = slices.Delete(r.courses[userID], i, i+1)
	return nil
}

// courseIndex must be called with the lock held
func (r *MemoryRepository) courseIndex(userID, id string) int {
	return slices.IndexFunc(r.courses[userID], func(c *models.Course) bool { return c.ID == id })
}

func (r *MemoryRepository) CreatePasswordReset(ctx context.Context, pr *models.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.resets[pr.TokenHash]; ok {
		return fmt.Errorf("password reset: %w", ErrDuplicate)
	}
	if _, ok := r.accounts[pr.UserID]; !ok {
		return fmt.Errorf("password reset for unknown account: %w", ErrNotFound)
	}
	if pr.CreatedAt.IsZero() {
		pr.CreatedAt = r.now()
	}

	stored := *pr
	r.resets[pr.TokenHash] = &stored
	return nil
}

func (r *MemoryRepository) ConsumePasswordReset(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pr, ok := r.resets[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.resets, tokenHash)
	return pr, nil
}

func (r *MemoryRepository) DeleteExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for hash, pr := range r.resets {
		if pr.IsExpired(now) {
			delete(r.resets, hash)
			deleted++
		}
	}
	return deleted, nil
}
