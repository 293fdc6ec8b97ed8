package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/circademic/gradetrack/internal/apperr"
	"github.com/circademic/gradetrack/internal/grades"
	"github.com/circademic/gradetrack/internal/health"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// noticeResponse carries the localized success notice of a mutation
type noticeResponse struct {
	Notice string `json:"notice"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondAppError maps err's code to an HTTP status and the request's
// localized message. Errors without a code are logged and reported as
// internal.
func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		slog.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
	}

	message := string(code)
	if b := BundleFromContext(r.Context()); b != nil {
		message = b.Message(code)
	}
	respondError(w, status, string(code), message)
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidEmail, apperr.CodeWeakPassword, apperr.CodeExpiredResetToken:
		return http.StatusBadRequest
	case apperr.CodeEmailInUse:
		return http.StatusConflict
	case apperr.CodeOperationNotAllow, apperr.CodeUserDisabled:
		return http.StatusForbidden
	case apperr.CodeUserNotFound, apperr.CodeCourseNotFound:
		return http.StatusNotFound
	case apperr.CodeWrongPassword, apperr.CodeInvalidCredential, apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperr.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case apperr.CodeNoCourses:
		return http.StatusUnprocessableEntity
	}
	if strings.HasPrefix(string(code), "validation/") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// decodeJSON reads the request body into v, answering 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondAppError(w, r, apperr.Wrap(apperr.CodeInvalidInput, err))
		return false
	}
	return true
}

func notice(r *http.Request, key string) string {
	return BundleFromContext(r.Context()).Notice(key)
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results := s.health.CheckAll(r.Context())

	checks := make(map[string]string, len(results))
	for name, err := range results {
		if err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	if !health.Ready(results) {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}
	respondJSON(w, http.StatusOK, readyResponse{Status: "ready", Checks: checks})
}

// Shield calculator

func (s *Server) handleShield(w http.ResponseWriter, r *http.Request) {
	var in grades.ShieldInput
	if !decodeJSON(w, r, &in) {
		return
	}

	result, err := grades.Shield(in)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
