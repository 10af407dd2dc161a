package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/consigna/internal/apperr"
	"github.com/erazemk/consigna/internal/auth"
	"github.com/erazemk/consigna/internal/model"
	"github.com/erazemk/consigna/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB        *sqlx.DB
	JWTSecret string
	TokenTTL  time.Duration
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := store.GetUserByEmail(r.Context(), h.DB, email)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if user == nil || !user.Active {
		jsonError(w, r, unauthenticated("invalid credentials"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		zerolog.Ctx(r.Context()).Warn().Str("email", email).Str("remote", r.RemoteAddr).Msg("login failed")
		jsonError(w, r, unauthenticated("invalid credentials"))
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, h.TokenTTL, user)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("user logged in")
	jsonResponse(w, r, http.StatusOK, loginResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, r, unauthenticated("not authenticated"))
		return
	}

	expires := time.Now().Add(auth.DefaultTokenTTL)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expires); err != nil {
		jsonError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Msg("user logged out")
	jsonResponse(w, r, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, r, unauthenticated("not authenticated"))
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if user == nil {
		jsonError(w, r, apperr.NotFound("user not found"))
		return
	}
	jsonResponse(w, r, http.StatusOK, user)
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, r, unauthenticated("not authenticated"))
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, r, err)
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, r, apperr.Validation(err.Error()))
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	if user == nil {
		jsonError(w, r, unauthenticated("not authenticated"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		jsonError(w, r, unauthenticated("current password is incorrect"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, r, err)
		return
	}

	if err := store.UpdateUserPassword(r.Context(), h.DB, claims.UserID, string(hash)); err != nil {
		jsonError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Msg("user changed own password")
	jsonResponse(w, r, http.StatusOK, map[string]string{"message": "password updated"})
}
