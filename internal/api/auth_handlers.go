package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/circademic/gradetrack/internal/auth"
	"github.com/circademic/gradetrack/internal/live"
)

type sessionResponse struct {
	Session *auth.Session `json:"session"`
	Notice  string        `json:"notice"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleSignInRequest struct {
	IDToken string `json:"id_token"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type confirmResetRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpInput
	if !decodeJSON(w, r, &req) {
		return
	}

	bundle := BundleFromContext(r.Context())
	session, err := s.auth.SignUp(r.Context(), req, bundle.Categories)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, sessionResponse{
		Session: session,
		Notice:  bundle.Notice("signed_up"),
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := s.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse{
		Session: session,
		Notice:  notice(r, "signed_in"),
	})
}

func (s *Server) handleGoogleSignIn(w http.ResponseWriter, r *http.Request) {
	var req googleSignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	bundle := BundleFromContext(r.Context())
	session, err := s.auth.SignInWithGoogle(r.Context(), req.IDToken, bundle.Categories)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	status := http.StatusOK
	if session.NewUser {
		status = http.StatusCreated
	}
	respondJSON(w, status, sessionResponse{
		Session: session,
		Notice:  bundle.Notice("signed_in"),
	})
}

func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.auth.SendPasswordReset(r.Context(), req.Email); err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, noticeResponse{Notice: notice(r, "reset_sent")})
}

func (s *Server) handleConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.auth.ConfirmPasswordReset(r.Context(), req.Token, req.Password, req.PasswordConfirm); err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, noticeResponse{Notice: notice(r, "password_updated")})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.SignOut(r.Context(), TokenFromContext(r.Context())); err != nil {
		respondAppError(w, r, err)
		return
	}

	user := UserFromContext(r.Context())
	event := live.Event{UserID: user.ID, Kind: live.EventSignedOut, At: time.Now().UTC()}
	if err := s.broker.Publish(r.Context(), event); err != nil {
		slog.WarnContext(r.Context(), "failed to publish sign-out", "user_id", user.ID, "error", err)
	}

	respondJSON(w, http.StatusOK, noticeResponse{Notice: notice(r, "signed_out")})
}
