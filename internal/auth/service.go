package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/circademic/gradetrack/internal/apperr"
	"github.com/circademic/gradetrack/internal/models"
	"github.com/circademic/gradetrack/internal/storage"
)

// Config holds identity provider settings
type Config struct {
	MaxSignInAttempts int
	AttemptWindow     time.Duration
	ResetTokenTTL     time.Duration
	BcryptCost        int
	// ResetURL is the page that receives the reset token as ?token=
	ResetURL string
}

// Session is the result of a successful sign-in
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
	// NewUser is set when the sign-in created the account
	NewUser bool `json:"new_user"`
}

// SignUpInput carries the sign-up form
type SignUpInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Service is the local identity provider
type Service struct {
	repo     storage.Repository
	sessions SessionStore
	tokens   *TokenIssuer
	google   IDTokenVerifier
	mailer   Mailer
	config   Config
	now      func() time.Time
}

// NewService creates the identity provider. google may be nil, which
// disables federated sign-in.
func NewService(repo storage.Repository, sessions SessionStore, tokens *TokenIssuer, google IDTokenVerifier, mailer Mailer, config Config) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &Service{
		repo:     repo,
		sessions: sessions,
		tokens:   tokens,
		google:   google,
		mailer:   mailer,
		config:   config,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SignUp creates an email/password account with its default profile and
// signs it in.
func (s *Service) SignUp(ctx context.Context, in SignUpInput, categories []string) (*Session, error) {
	email := normalizeEmail(in.Email)
	if err := checkNewPassword(in.Password, in.PasswordConfirm); err != nil {
		return nil, err
	}
	if !models.ValidEmail(email) {
		return nil, apperr.New(apperr.CodeInvalidEmail, email)
	}

	hash, err := HashPassword(in.Password, s.config.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperr.Wrap(apperr.CodeWeakPassword, err)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	name := strings.TrimSpace(in.Name)
	account := &models.Account{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  name,
		CreatedAt:    s.now(),
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.CodeEmailInUse, err)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	profile := models.DefaultProfile(account.ID, name, email, categories, account.CreatedAt)
	if err := s.repo.SetProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	slog.InfoContext(ctx, "account created", "user_id", account.ID, "email", models.MaskedEmail(email))

	session, err := s.issue(account)
	if err != nil {
		return nil, err
	}
	session.NewUser = true
	return session, nil
}

// SignIn authenticates with email and password
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if !models.ValidEmail(email) {
		return nil, apperr.New(apperr.CodeInvalidEmail, email)
	}

	if s.config.MaxSignInAttempts > 0 {
		failures, err := s.sessions.Failures(ctx, email)
		if err != nil {
			return nil, err
		}
		if failures >= s.config.MaxSignInAttempts {
			return nil, apperr.New(apperr.CodeTooManyRequests, models.MaskedEmail(email))
		}
	}

	account, err := s.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Wrap(apperr.CodeUserNotFound, err)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if account.Disabled {
		return nil, apperr.New(apperr.CodeUserDisabled, account.ID)
	}

	if account.PasswordHash == "" {
		// Federated-only account
		return nil, apperr.New(apperr.CodeInvalidCredential, "account has no password")
	}

	if !CheckPassword(account.PasswordHash, password) {
		if _, err := s.sessions.RecordFailure(ctx, email, s.config.AttemptWindow); err != nil {
			slog.WarnContext(ctx, "failed to record sign-in failure", "error", err)
		}
		return nil, apperr.New(apperr.CodeWrongPassword, models.MaskedEmail(email))
	}

	if err := s.sessions.ResetFailures(ctx, email); err != nil {
		slog.WarnContext(ctx, "failed to reset sign-in failures", "error", err)
	}

	return s.issue(account)
}

// SignInWithGoogle authenticates with a Google ID token. The first sign-in
// links an existing account with the same email or creates a new one with
// the default profile.
func (s *Service) SignInWithGoogle(ctx context.Context, idToken string, categories []string) (*Session, error) {
	if s.google == nil {
		return nil, apperr.New(apperr.CodeOperationNotAllow, "google sign-in")
	}

	identity, err := s.google.Verify(ctx, idToken)
	if err != nil {
		if errors.Is(err, ErrFederationDisabled) {
			return nil, apperr.Wrap(apperr.CodeOperationNotAllow, err)
		}
		return nil, apperr.Wrap(apperr.CodeInvalidCredential, err)
	}

	created := false
	account, err := s.repo.GetAccountByGoogleSubject(ctx, identity.Subject)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		account, created, err = s.linkOrCreate(ctx, identity, categories)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if account.Disabled {
		return nil, apperr.New(apperr.CodeUserDisabled, account.ID)
	}

	session, err := s.issue(account)
	if err != nil {
		return nil, err
	}
	session.NewUser = created
	return session, nil
}

// linkOrCreate reports whether a new account was created
func (s *Service) linkOrCreate(ctx context.Context, identity *GoogleIdentity, categories []string) (*models.Account, bool, error) {
	email := normalizeEmail(identity.Email)
	if !models.ValidEmail(email) {
		return nil, false, apperr.New(apperr.CodeInvalidEmail, email)
	}

	account, err := s.repo.GetAccountByEmail(ctx, email)
	if err == nil {
		if err := s.repo.LinkGoogleSubject(ctx, account.ID, identity.Subject); err != nil {
			return nil, false, fmt.Errorf("failed to link google account: %w", err)
		}
		account.GoogleSubject = identity.Subject
		if err := s.ensureProfile(ctx, account, categories); err != nil {
			return nil, false, err
		}
		slog.InfoContext(ctx, "google account linked", "user_id", account.ID)
		return account, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to load account: %w", err)
	}

	account = &models.Account{
		Email:         email,
		DisplayName:   identity.Name,
		GoogleSubject: identity.Subject,
		CreatedAt:     s.now(),
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, false, apperr.Wrap(apperr.CodeEmailInUse, err)
		}
		return nil, false, fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.ensureProfile(ctx, account, categories); err != nil {
		return nil, false, err
	}

	slog.InfoContext(ctx, "account created from google sign-in", "user_id", account.ID)
	return account, true, nil
}

// ensureProfile creates the default profile unless one exists
func (s *Service) ensureProfile(ctx context.Context, account *models.Account, categories []string) error {
	existing, err := s.repo.GetProfile(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if existing != nil {
		return nil
	}

	profile := models.DefaultProfile(account.ID, account.DisplayName, account.Email, categories, account.CreatedAt)
	if err := s.repo.SetProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// SignOut revokes the session token
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return apperr.Wrap(apperr.CodeUnauthenticated, err)
	}

	if err := s.sessions.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}

	slog.InfoContext(ctx, "signed out", "user_id", claims.Subject)
	return nil
}

// CurrentUser resolves a session token to its user
func (s *Service) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnauthenticated, err)
	}

	revoked, err := s.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperr.New(apperr.CodeUnauthenticated, "token revoked")
	}

	account, err := s.repo.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.Wrap(apperr.CodeUnauthenticated, err)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if account.Disabled {
		return nil, apperr.New(apperr.CodeUserDisabled, account.ID)
	}

	return account.User(), nil
}

// SendPasswordReset stores a single-use reset token and mails its link
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !models.ValidEmail(email) {
		return apperr.New(apperr.CodeInvalidEmail, email)
	}

	account, err := s.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Wrap(apperr.CodeUserNotFound, err)
		}
		return fmt.Errorf("failed to load account: %w", err)
	}

	token, err := models.GenerateResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	now := s.now()
	reset := &models.PasswordReset{
		TokenHash: hashResetToken(token),
		UserID:    account.ID,
		ExpiresAt: now.Add(s.config.ResetTokenTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreatePasswordReset(ctx, reset); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, account.Email, s.resetLink(token)); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	return nil
}

// ConfirmPasswordReset consumes a reset token and sets the new password
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, password, confirm string) error {
	if err := checkNewPassword(password, confirm); err != nil {
		return err
	}

	reset, err := s.repo.ConsumePasswordReset(ctx, hashResetToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Wrap(apperr.CodeExpiredResetToken, err)
		}
		return fmt.Errorf("failed to load reset token: %w", err)
	}
	if reset.IsExpired(s.now()) {
		return apperr.New(apperr.CodeExpiredResetToken, "token expired")
	}

	hash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return apperr.Wrap(apperr.CodeWeakPassword, err)
		}
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.UpdatePassword(ctx, reset.UserID, hash); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Wrap(apperr.CodeUserNotFound, err)
		}
		return fmt.Errorf("failed to update password: %w", err)
	}

	account, err := s.repo.GetAccountByID(ctx, reset.UserID)
	if err != nil {
		slog.WarnContext(ctx, "failed to load account after password reset", "error", err, "user_id", reset.UserID)
	} else if err := s.sessions.ResetFailures(ctx, account.Email); err != nil {
		slog.WarnContext(ctx, "failed to reset sign-in failures", "error", err)
	}

	slog.InfoContext(ctx, "password reset completed", "user_id", reset.UserID)
	return nil
}

func (s *Service) issue(account *models.Account) (*Session, error) {
	user := account.User()
	token, claims, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user,
	}, nil
}

func (s *Service) resetLink(token string) string {
	if s.config.ResetURL == "" {
		return token
	}
	return s.config.ResetURL + "?token=" + url.QueryEscape(token)
}

// checkNewPassword runs the local checks done before any account change
func checkNewPassword(password, confirm string) error {
	if password != confirm {
		return apperr.New(apperr.CodePasswordMismatch, "")
	}
	if len([]rune(password)) < MinPasswordLength {
		return apperr.New(apperr.CodePasswordTooShort, "")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
