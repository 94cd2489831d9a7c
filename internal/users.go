package internal

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"devicehub-api/internal/apperr"
	"devicehub-api/internal/models"
)

// loginUser exchanges an email and password for a signed token.
func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, apperr.CodeValidation, "Email and password are required")
		return
	}

	user, err := s.Accounts.FindUserByEmail(r.Context(), req.Email)
	if errors.Is(err, apperr.ErrNoRows) {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	}

	if err := s.Accounts.TouchLastLogin(r.Context(), user.ID); err != nil {
		s.Log.WithError(err).WithField("user_id", user.ID).Warn("failed to update last_login_at")
	}

	token, err := s.JWTManager.GenerateToken(user.ID, user.Roles)
	if err != nil {
		s.Log.WithError(err).WithField("user_id", user.ID).Error("failed to generate token")
		writeError(w, http.StatusInternalServerError, "TOKEN_GENERATION_FAILED", "Failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token: token,
		User:  user.Redacted(),
	})
}
