package handler

import (
	"errors"
	"net/http"

	"github.com/swiftfix/backoffice/internal/http/middleware"
	"github.com/swiftfix/backoffice/internal/http/response"
	"github.com/swiftfix/backoffice/internal/observability"
	"github.com/swiftfix/backoffice/internal/security"
	"github.com/swiftfix/backoffice/internal/service"
)

// AuthHandler is the transport boundary of the auth core: login,
// logout, refresh, profile and session management.
type AuthHandler struct {
	auth          *service.AuthService
	sessions      *service.SessionService
	users         *service.UserService
	secureCookies bool
}

func NewAuthHandler(auth *service.AuthService, sessions *service.SessionService, users *service.UserService, secureCookies bool) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, users: users, secureCookies: secureCookies}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password. Unknown email and wrong
// password produce the identical response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "email and password are required", nil)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password, middleware.ClientIdentity(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			observability.Audit(r, "login_rejected")
			response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "invalid email or password", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "login failed", nil)
		return
	}

	observability.Audit(r, "login", "user_id", result.User.ID)
	security.SetSessionCookie(w, result.SessionToken, h.auth.SessionTokenTTL(), h.secureCookies)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":          newUserView(result.User),
		"refresh_token": result.RefreshToken,
	})
}

// Logout revokes the current session and the user's refresh tokens,
// then clears the cookie. A second logout finds nothing to delete and
// still succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
		return
	}
	if err := h.auth.Logout(r.Context(), userID, claims.SessionID, middleware.ClientIdentity(r), r.UserAgent()); err != nil {
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "logout failed", nil)
		return
	}
	observability.Audit(r, "logout", "user_id", userID)
	security.ClearSessionCookie(w, h.secureCookies)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "signed_out"})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges an opaque refresh token for a new signed session
// token. The refresh token is not rotated.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "refresh_token is required", nil)
		return
	}
	signed, user, err := h.auth.Refresh(r.Context(), req.RefreshToken, middleware.ClientIdentity(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) {
			response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "invalid refresh token", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "refresh failed", nil)
		return
	}
	observability.Audit(r, "token_refresh", "user_id", user.ID)
	security.SetSessionCookie(w, signed, h.auth.SessionTokenTTL(), h.secureCookies)
	response.JSON(w, r, http.StatusOK, map[string]any{
		"session_token": signed,
		"user":          newUserView(user),
	})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
		return
	}
	user, err := h.users.Get(claims, userID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "profile lookup failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, newUserView(user))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword verifies the current password, stores the new hash and
// signs the user out everywhere, including this session.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
		return
	}
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.NewPassword) < 10 {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "new password must be at least 10 characters", nil)
		return
	}
	err = h.auth.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword, middleware.ClientIdentity(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "current password is incorrect", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "password change failed", nil)
		return
	}
	observability.Audit(r, "password_change", "user_id", userID)
	security.ClearSessionCookie(w, h.secureCookies)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password_changed"})
}

// Sessions lists the caller's active browser sessions, newest first.
func (h *AuthHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
		return
	}
	sessions, err := h.sessions.List(userID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "session lookup failed", nil)
		return
	}
	views := make([]sessionView, 0, len(sessions))
	for i := range sessions {
		views = append(views, newSessionView(&sessions[i], claims.SessionID))
	}
	response.JSON(w, r, http.StatusOK, views)
}

// RevokeSession deletes one of the caller's sessions by id. Tokens
// referencing it stop authorizing immediately.
func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
		return
	}
	sessionID, ok := pathID(w, r, "session_id")
	if !ok {
		return
	}
	revoked, err := h.sessions.RevokeByIDForUser(userID, sessionID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "session revoke failed", nil)
		return
	}
	status := "revoked"
	if !revoked {
		status = "not_found"
	}
	observability.Audit(r, "session_revoke", "user_id", userID, "session_id", sessionID, "status", status)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": status})
}
