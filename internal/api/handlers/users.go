package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/crmcore/internal/account"
	"github.com/nikhilbhutani/crmcore/internal/apperr"
	"github.com/nikhilbhutani/crmcore/internal/models"
	"github.com/nikhilbhutani/crmcore/internal/tenant"
)

type UserHandler struct {
	svc *account.Service
}

func NewUserHandler(svc *account.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

type createUserRequest struct {
	// TenantID is accepted for older clients; it must match the caller's tenant.
	TenantID          string `json:"tenantId"`
	Name              string `json:"name" validate:"required,max=200"`
	Email             string `json:"email" validate:"required,email,max=320"`
	Role              string `json:"role" validate:"omitempty,max=20"`
	Password          string `json:"password" validate:"required"`
	MustResetPassword *bool  `json:"mustResetPassword"`
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := tenant.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, apperr.ErrUnauthorized)
		return
	}
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TenantID != "" {
		tid, err := uuid.Parse(req.TenantID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid tenant ID"})
			return
		}
		if tid != p.TenantID {
			writeError(w, r, apperr.New(apperr.ErrForbidden, "tenant_mismatch"))
			return
		}
	}

	u, err := h.svc.CreateUser(r.Context(), p, account.CreateUserInput{
		Name:              req.Name,
		Email:             req.Email,
		Role:              req.Role,
		Password:          req.Password,
		MustResetPassword: req.MustResetPassword,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type newPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required"`
}

// ResetPassword is the admin reset addressed by path.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	p, id, ok := principalAndID(w, r)
	if !ok {
		return
	}
	var req newPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.svc.AdminResetPassword(r.Context(), p, id, req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, id, ok := principalAndID(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.svc.ChangePassword(r.Context(), p, id, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func principalAndID(w http.ResponseWriter, r *http.Request) (p models.Principal, id uuid.UUID, ok bool) {
	p, ok = tenant.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, apperr.ErrUnauthorized)
		return p, id, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid user ID"})
		return p, id, false
	}
	return p, id, true
}
