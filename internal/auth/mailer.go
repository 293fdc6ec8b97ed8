package auth

import (
	"context"
	"log/slog"

	"github.com/circademic/gradetrack/internal/models"
)

// Mailer delivers password reset links
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, link string) error
}

// LogMailer writes reset links to the log instead of sending email. The
// link carries a live reset token, so it is only written at debug level.
type LogMailer struct{}

// SendPasswordReset logs the reset request, and the link at debug level
func (LogMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	slog.InfoContext(ctx, "password reset requested", "email", models.MaskedEmail(email))
	slog.DebugContext(ctx, "password reset link", "email", models.MaskedEmail(email), "link", link)
	return nil
}
