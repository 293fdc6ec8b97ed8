package api

import (
	"context"

	"github.com/circademic/gradetrack/internal/locale"
	"github.com/circademic/gradetrack/internal/models"
)

type contextKey string

const (
	userContextKey   contextKey = "user"
	tokenContextKey  contextKey = "session_token"
	bundleContextKey contextKey = "locale_bundle"
)

// UserFromContext extracts the signed-in user from context
func UserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// ContextWithUser adds the signed-in user and their session token to context
func ContextWithUser(ctx context.Context, user *models.User, token string) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, tokenContextKey, token)
}

// TokenFromContext extracts the session token of the signed-in user
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// BundleFromContext extracts the request's locale bundle. It is always set
// by the locale middleware.
func BundleFromContext(ctx context.Context) *locale.Bundle {
	b, _ := ctx.Value(bundleContextKey).(*locale.Bundle)
	return b
}

// ContextWithBundle adds the request's locale bundle to context
func ContextWithBundle(ctx context.Context, b *locale.Bundle) context.Context {
	return context.WithValue(ctx, bundleContextKey, b)
}
