package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"ticketing/internal/services"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(e *core.RequestEvent) error {
	var in services.RegisterInput
	if err := e.BindBody(&in); err != nil {
		return badBody(e)
	}

	sess, err := h.auth.Register(e.Request.Context(), in)
	if err != nil {
		return fail(e, err, in.Email)
	}
	return respond(e, http.StatusCreated, sess, "Registration successful. Check your email for the verification code.")
}

func (h *AuthHandler) Login(e *core.RequestEvent) error {
	return h.login(e, false)
}

// AdminLogin only accepts administrator accounts.
func (h *AuthHandler) AdminLogin(e *core.RequestEvent) error {
	return h.login(e, true)
}

func (h *AuthHandler) login(e *core.RequestEvent, adminOnly bool) error {
	var in credentials
	if err := e.BindBody(&in); err != nil {
		return badBody(e)
	}

	sess, err := h.auth.Login(e.Request.Context(), in.Email, in.Password, adminOnly)
	if err != nil {
		return fail(e, err, in.Email)
	}
	return respond(e, http.StatusOK, sess, "Login successful")
}

func (h *AuthHandler) VerifyOTP(e *core.RequestEvent) error {
	var in services.VerifyOTPInput
	if err := e.BindBody(&in); err != nil {
		return badBody(e)
	}

	u, err := h.auth.VerifyOTP(e.Request.Context(), in)
	if err != nil {
		return fail(e, err, in.Email)
	}
	return respond(e, http.StatusOK, u, "Account verified successfully")
}

func (h *AuthHandler) ResendOTP(e *core.RequestEvent) error {
	var in struct {
		Email string `json:"email"`
	}
	if err := e.BindBody(&in); err != nil || in.Email == "" {
		return badBody(e)
	}

	if err := h.auth.ResendOTP(e.Request.Context(), in.Email); err != nil {
		return fail(e, err, in.Email)
	}
	return respond(e, http.StatusOK, nil, "A new verification code has been sent")
}

func (h *AuthHandler) Me(e *core.RequestEvent) error {
	u, err := h.auth.Me(e.Request.Context(), actor(e))
	if err != nil {
		return fail(e, err, actor(e).ID)
	}
	return respond(e, http.StatusOK, u, "")
}

// Logout revokes every token the caller holds, including the one used for this request.
func (h *AuthHandler) Logout(e *core.RequestEvent) error {
	caller := actor(e)
	if err := h.auth.Logout(e.Request.Context(), caller); err != nil {
		return fail(e, err, caller.ID)
	}
	return respond(e, http.StatusOK, nil, "Logged out successfully")
}

func (h *AuthHandler) RequestPasswordReset(e *core.RequestEvent) error {
	var in struct {
		Email string `json:"email"`
	}
	if err := e.BindBody(&in); err != nil || in.Email == "" {
		return badBody(e)
	}

	if err := h.auth.RequestPasswordReset(e.Request.Context(), in.Email); err != nil {
		return fail(e, err, in.Email)
	}
	return respond(e, http.StatusOK, nil, "A password reset code has been sent")
}

func (h *AuthHandler) ResetPassword(e *core.RequestEvent) error {
	var in services.ResetPasswordInput
	if err := e.BindBody(&in); err != nil {
		return badBody(e)
	}

	if err := h.auth.ResetPassword(e.Request.Context(), in); err != nil {
		return fail(e, err, in.Email)
	}
	return respond(e, http.StatusOK, nil, "Password has been reset")
}
