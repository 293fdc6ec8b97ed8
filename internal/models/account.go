package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Account is an identity known to the local identity provider
type Account struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"` // Never serialize
	DisplayName   string    `json:"display_name"`
	GoogleSubject string    `json:"-"`
	Disabled      bool      `json:"disabled"`
	CreatedAt     time.Time `json:"created_at"`
}

// User is the signed-in identity as seen by callers
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// User returns the public view of a
func (a *Account) User() *User {
	return &User{ID: a.ID, Email: a.Email, DisplayName: a.DisplayName}
}

// PasswordReset is a pending password reset. Only the token hash is stored.
type PasswordReset struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks whether the reset token can no longer be used
func (r *PasswordReset) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// GenerateResetToken creates a cryptographically random 48-char hex token
func GenerateResetToken() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// MaskedEmail returns the email with most of the local part hidden, for logging
func MaskedEmail(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			if i <= 2 {
				return "***" + email[i:]
			}
			return email[:2] + "***" + email[i:]
		}
	}
	return "***"
}
