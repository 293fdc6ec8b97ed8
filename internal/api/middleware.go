package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/circademic/gradetrack/internal/apperr"
	"github.com/circademic/gradetrack/internal/auth"
)

// authenticate resolves the Bearer session token to a user. WebSocket
// clients that cannot set headers may pass the token as ?token=.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			respondAppError(w, r, apperr.New(apperr.CodeUnauthenticated, "missing token"))
			return
		}

		user, err := s.auth.CurrentUser(r.Context(), token)
		if err != nil {
			if apperr.CodeOf(err) == apperr.CodeInternal {
				slog.Error("failed to authenticate request", "error", err)
			} else {
				slog.Debug("rejected session token", "error", err, "remote_addr", r.RemoteAddr)
			}
			respondAppError(w, r, err)
			return
		}

		ctx := ContextWithUser(r.Context(), user, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// localize picks the locale bundle from ?lang= or Accept-Language
func (s *Server) localize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pref := r.URL.Query().Get("lang")
		if pref == "" {
			pref = r.Header.Get("Accept-Language")
		}
		bundle := s.locales.Match(pref)
		w.Header().Set("Content-Language", bundle.Code)

		next.ServeHTTP(w, r.WithContext(ContextWithBundle(r.Context(), bundle)))
	})
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
