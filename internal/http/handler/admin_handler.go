package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/swiftfix/backoffice/internal/domain"
	"github.com/swiftfix/backoffice/internal/http/middleware"
	"github.com/swiftfix/backoffice/internal/http/response"
	"github.com/swiftfix/backoffice/internal/observability"
	"github.com/swiftfix/backoffice/internal/repository"
	"github.com/swiftfix/backoffice/internal/service"
)

// AdminHandler exposes staff-account administration and the audit
// trail. Route-level role gates handle the coarse check; the service
// layer enforces the finer self-service rules.
type AdminHandler struct {
	users    *service.UserService
	auth     *service.AuthService
	activity repository.ActivityRepository
}

func NewAdminHandler(users *service.UserService, auth *service.AuthService, activity repository.ActivityRepository) *AdminHandler {
	return &AdminHandler{users: users, auth: auth, activity: activity}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
		return
	}
	users, err := h.users.List(claims)
	if err != nil {
		writeUserServiceError(w, r, err)
		return
	}
	views := make([]userView, 0, len(users))
	for i := range users {
		views = append(views, newUserView(&users[i]))
	}
	response.JSON(w, r, http.StatusOK, views)
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
		return
	}
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Name == "" || len(req.Password) < 10 {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "email, name and a password of at least 10 characters are required", nil)
		return
	}
	role, _ := domain.ParseRole(req.Role)
	user, err := h.users.Provision(r.Context(), claims, req.Email, req.Name, req.Password, role, middleware.ClientIdentity(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			response.Error(w, r, http.StatusConflict, response.CodeConflict, "email already in use", nil)
			return
		}
		writeUserServiceError(w, r, err)
		return
	}
	observability.Audit(r, "user_provisioned", "user_id", user.ID)
	response.JSON(w, r, http.StatusCreated, newUserView(user))
}

type updateUserRequest struct {
	Name   *string `json:"name"`
	Phone  *string `json:"phone"`
	Email  *string `json:"email"`
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
		return
	}
	targetID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch := service.UserPatch{
		Name:   req.Name,
		Phone:  req.Phone,
		Email:  req.Email,
		Active: req.Active,
	}
	if req.Role != nil {
		role, valid := domain.ParseRole(*req.Role)
		if !valid {
			response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "unknown role", nil)
			return
		}
		patch.Role = &role
	}
	user, err := h.users.Update(r.Context(), claims, targetID, patch, middleware.ClientIdentity(r), r.UserAgent())
	if err != nil {
		writeUserServiceError(w, r, err)
		return
	}
	observability.Audit(r, "user_updated", "user_id", user.ID)
	response.JSON(w, r, http.StatusOK, newUserView(user))
}

type resetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// ResetPassword sets a new password for the target account and signs
// it out of every browser.
func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	targetID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.NewPassword) < 10 {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "new password must be at least 10 characters", nil)
		return
	}
	err := h.auth.ResetPassword(r.Context(), targetID, req.NewPassword, middleware.ClientIdentity(r), r.UserAgent())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			response.Error(w, r, http.StatusNotFound, response.CodeNotFound, "user not found", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "password reset failed", nil)
		return
	}
	observability.Audit(r, "password_reset", "target_user_id", targetID)
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "password_reset"})
}

// Activity returns recent audit-trail entries.
func (h *AdminHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	entries, err := h.activity.ListRecent(limit)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "activity lookup failed", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, entries)
}

func writeUserServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		response.Error(w, r, http.StatusForbidden, response.CodeForbidden, "insufficient role for this operation", nil)
	case errors.Is(err, repository.ErrUserNotFound):
		response.Error(w, r, http.StatusNotFound, response.CodeNotFound, "user not found", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, "user operation failed", nil)
	}
}
