package api

import (
	"log/slog"
	"net/http"

	"github.com/circademic/gradetrack/internal/models"
)

type meResponse struct {
	User     *models.User    `json:"user"`
	Profile  *models.Profile `json:"profile"`
	Initials string          `json:"initials"`
}

type profileResponse struct {
	Profile *models.Profile `json:"profile"`
	Notice  string          `json:"notice,omitempty"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	profile, err := s.tracker.Profile(r.Context(), user)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, meResponse{
		User:     user,
		Profile:  profile,
		Initials: profile.Initials(),
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.tracker.Profile(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profileResponse{Profile: profile})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := s.tracker.UpdateProfile(r.Context(), UserFromContext(r.Context()), req)
	if err != nil {
		respondAppError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, profileResponse{
		Profile: profile,
		Notice:  notice(r, "profile_updated"),
	})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if err := s.tracker.DeleteAccount(r.Context(), user); err != nil {
		respondAppError(w, r, err)
		return
	}

	if err := s.auth.SignOut(r.Context(), TokenFromContext(r.Context())); err != nil {
		slog.Warn("failed to revoke token of deleted account", "error", err, "user_id", user.ID)
	}

	respondJSON(w, http.StatusOK, noticeResponse{Notice: notice(r, "account_deleted")})
}
