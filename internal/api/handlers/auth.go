package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/crmcore/internal/account"
	"github.com/nikhilbhutani/crmcore/internal/apperr"
	"github.com/nikhilbhutani/crmcore/internal/tenant"
)

type AuthHandler struct {
	svc *account.Service
}

func NewAuthHandler(svc *account.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type signupRequest struct {
	FullName string `json:"fullName" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required"`
	Company  string `json:"company" validate:"required,max=200"`
	Plan     string `json:"plan" validate:"omitempty,max=50"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.svc.Signup(r.Context(), account.SignupInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Company:  req.Company,
		Plan:     req.Plan,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if p, ok := tenant.PrincipalFromContext(r.Context()); ok {
		h.svc.Logout(r.Context(), p)
	}
	w.WriteHeader(http.StatusNoContent)
}

type forgotRequest struct {
	Email string `json:"email"`
}

// ForgotPassword answers 204 whatever happens, including a bad body.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if decodeQuiet(w, r, &req) {
		h.svc.ForgotPassword(r.Context(), req.Email)
	}
	w.WriteHeader(http.StatusNoContent)
}

type confirmResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (h *AuthHandler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.svc.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type resetRequest struct {
	UserID          string `json:"userId"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	p, ok := tenant.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, apperr.ErrUnauthorized)
		return
	}
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := p.ID
	if req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid user ID"})
			return
		}
		userID = id
	}

	u, err := h.svc.ResetPassword(r.Context(), p, userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type adminResetRequest struct {
	UserID      string `json:"userId" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (h *AuthHandler) AdminResetPassword(w http.ResponseWriter, r *http.Request) {
	p, ok := tenant.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, apperr.ErrUnauthorized)
		return
	}
	var req adminResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid user ID"})
		return
	}

	u, err := h.svc.AdminResetPassword(r.Context(), p, userID, req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := tenant.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, apperr.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
