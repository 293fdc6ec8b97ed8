package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/circademic/gradetrack/internal/models"
)

var _ Repository = (*PostgresRepository)(nil)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// execer is satisfied by both the pool and a transaction
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	poolConfig.MaxConns = 25
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	poolConfig.MinConns = 5
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	poolConfig.MaxConnLifetime = 30 * time.Minute
	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Pool exposes the connection pool for migrations
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Accounts

const accountColumns = `id, email, password_hash, display_name, google_subject, disabled, created_at`

// CreateAccount inserts a new account, assigning an ID when empty
func (r *PostgresRepository) CreateAccount(ctx context.Context, a *models.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.Email,
		nullString(a.PasswordHash),
		a.DisplayName,
		nullString(a.GoogleSubject),
		a.Disabled,
		a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %s: %w", a.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetAccountByID retrieves an account by ID
func (r *PostgresRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	return r.getAccount(ctx, `id = $1`, id)
}

// GetAccountByEmail retrieves an account by its normalized email
func (r *PostgresRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getAccount(ctx, `email = $1`, email)
}

// GetAccountByGoogleSubject retrieves the account linked to a Google subject
func (r *PostgresRepository) GetAccountByGoogleSubject(ctx context.Context, subject string) (*models.Account, error) {
	return r.getAccount(ctx, `google_subject = $1`, subject)
}

func (r *PostgresRepository) getAccount(ctx context.Context, where string, arg any) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where

	var a models.Account
	var passwordHash, googleSubject sql.NullString

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&a.ID,
		&a.Email,
		&passwordHash,
		&a.DisplayName,
		&googleSubject,
		&a.Disabled,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	a.PasswordHash = passwordHash.String
	a.GoogleSubject = googleSubject.String

	return &a, nil
}

// LinkGoogleSubject attaches a Google identity to an existing account
func (r *PostgresRepository) LinkGoogleSubject(ctx context.Context, id, subject string) error {
	err := r.execOne(ctx, `UPDATE accounts SET google_subject = $2 WHERE id = $1`, id, subject)
	if isUniqueViolation(err) {
		return fmt.Errorf("google subject: %w", ErrDuplicate)
	}
	return err
}

// UpdatePassword replaces the stored password hash
func (r *PostgresRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.execOne(ctx, `UPDATE accounts SET password_hash = $2 WHERE id = $1`, id, passwordHash)
}

// DeleteAccount deletes an account; foreign keys cascade to its data
func (r *PostgresRepository) DeleteAccount(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	return r.execOne(ctx, `DELETE FROM accounts WHERE id = $1`, id)
}

// Profiles

// GetProfile retrieves the profile of a user, or nil when none exists
func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if !validID(userID) {
		return nil, nil
	}

	query := `
		SELECT user_id, name, email, created_at, institution, major, total_credits_required, target_average, categories, is_writer
		FROM profiles
		WHERE user_id = $1
	`

	var p models.Profile
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.Name,
		&p.Email,
		&p.CreatedAt,
		&p.Institution,
		&p.Major,
		&p.TotalCreditsRequired,
		&p.TargetAverage,
		&p.Categories,
		&p.IsWriter,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &p, nil
}

// SetProfile creates or replaces a profile. Email and created_at keep their
// first stored values.
func (r *PostgresRepository) SetProfile(ctx context.Context, p *models.Profile) error {
	return setProfile(ctx, r.pool, p)
}

func setProfile(ctx context.Context, db execer, p *models.Profile) error {
	query := `
		INSERT INTO profiles (user_id, name, email, created_at, institution, major, total_credits_required, target_average, categories, is_writer)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE
		SET name = EXCLUDED.name,
			institution = EXCLUDED.institution,
			major = EXCLUDED.major,
			total_credits_required = EXCLUDED.total_credits_required,
			target_average = EXCLUDED.target_average,
			categories = EXCLUDED.categories,
			is_writer = EXCLUDED.is_writer
	`

	categories := p.Categories
	if categories == nil {
		categories = []string{}
	}

	_, err := db.Exec(ctx, query,
		p.UserID,
		p.Name,
		p.Email,
		p.CreatedAt,
		p.Institution,
		p.Major,
		p.TotalCreditsRequired,
		p.TargetAverage,
		categories,
		p.IsWriter,
	)
	if err != nil {
		return fmt.Errorf("failed to set profile: %w", err)
	}

	return nil
}

// Courses

const courseColumns = `id, user_id, name, credits, grade, semester, category, exam_type, grade_type, created_at, updated_at`

// ListCourses returns the user's courses in creation order
func (r *PostgresRepository) ListCourses(ctx context.Context, userID string) ([]models.Course, error) {
	if !validID(userID) {
		return []models.Course{}, nil
	}

	query := `SELECT ` + courseColumns + ` FROM courses WHERE user_id = $1 ORDER BY created_at ASC, position ASC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	courses := make([]models.Course, 0)
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating courses: %w", err)
	}

	return courses, nil
}

// AddCourse stores a new course for userID and returns its ID
func (r *PostgresRepository) AddCourse(ctx context.Context, userID string, c *models.Course) (string, error) {
	if err := insertCourse(ctx, r.pool, userID, c, time.Now().UTC()); err != nil {
		return "", err
	}
	return c.ID, nil
}

// AddCourses stores the courses and the optional profile in one transaction
func (r *PostgresRepository) AddCourses(ctx context.Context, userID string, courses []*models.Course, profile *models.Profile) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if profile != nil {
		if err := setProfile(ctx, tx, profile); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	for _, c := range courses {
		if err := insertCourse(ctx, tx, userID, c, now); err != nil {
			return fmt.Errorf("course %q: %w", c.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit courses: %w", err)
	}
	return nil
}

func insertCourse(ctx context.Context, db execer, userID string, c *models.Course, now time.Time) error {
	c.ID = uuid.NewString()
	c.UserID = userID
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `INSERT INTO courses (` + courseColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := db.Exec(ctx, query,
		c.ID,
		c.UserID,
		c.Name,
		c.Credits,
		c.Grade,
		c.Semester,
		c.Category,
		c.ExamType,
		string(c.GradeType),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add course: %w", err)
	}

	return nil
}

// GetCourse retrieves one of the user's courses
func (r *PostgresRepository) GetCourse(ctx context.Context, userID, id string) (*models.Course, error) {
	if !validID(id) || !validID(userID) {
		return nil, ErrNotFound
	}

	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 AND user_id = $2`

	c, err := scanCourse(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}

	return c, nil
}

// UpdateCourse replaces the editable fields of one of the user's courses
func (r *PostgresRepository) UpdateCourse(ctx context.Context, userID, id string, c *models.Course) error {
	if !validID(id) || !validID(userID) {
		return ErrNotFound
	}

	query := `
		UPDATE courses
		SET name = $3, credits = $4, grade = $5, semester = $6, category = $7, exam_type = $8, grade_type = $9, updated_at = $10
		WHERE id = $1 AND user_id = $2
	`

	return r.execOne(ctx, query,
		id,
		userID,
		c.Name,
		c.Credits,
		c.Grade,
		c.Semester,
		c.Category,
		c.ExamType,
		string(c.GradeType),
		time.Now().UTC(),
	)
}

// DeleteCourse deletes one of the user's courses
func (r *PostgresRepository) DeleteCourse(ctx context.Context, userID, id string) error {
	if !validID(id) || !validID(userID) {
		return ErrNotFound
	}
	return r.execOne(ctx, `DELETE FROM courses WHERE id = $1 AND user_id = $2`, id, userID)
}

// Password resets

// CreatePasswordReset stores a pending reset
func (r *PostgresRepository) CreatePasswordReset(ctx context.Context, pr *models.PasswordReset) error {
	if pr.CreatedAt.IsZero() {
		pr.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO password_resets (token_hash, user_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := r.pool.Exec(ctx, query, pr.TokenHash, pr.UserID, pr.ExpiresAt, pr.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("password reset: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create password reset: %w", err)
	}

	return nil
}

// ConsumePasswordReset deletes the reset and returns it
func (r *PostgresRepository) ConsumePasswordReset(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	query := `
		DELETE FROM password_resets
		WHERE token_hash = $1
		RETURNING token_hash, user_id, expires_at, created_at
	`

	var pr models.PasswordReset
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(&pr.TokenHash, &pr.UserID, &pr.ExpiresAt, &pr.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to consume password reset: %w", err)
	}

	return &pr, nil
}

// DeleteExpiredPasswordResets removes every reset that expired before now
func (r *PostgresRepository) DeleteExpiredPasswordResets(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM password_resets WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired password resets: %w", err)
	}
	return result.RowsAffected(), nil
}

// Helpers

// execOne runs a statement expected to touch exactly one row
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCourse(row pgx.Row) (*models.Course, error) {
	var c models.Course
	var gradeType string

	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.Credits,
		&c.Grade,
		&c.Semester,
		&c.Category,
		&c.ExamType,
		&gradeType,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.GradeType = models.GradeType(gradeType)
	return &c, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation (23505)
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// validID filters out identifiers the uuid columns would reject
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
