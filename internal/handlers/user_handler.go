package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"ticketing/internal/services"
	"ticketing/models"
)

type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) Create(e *core.RequestEvent) error {
	var in services.CreateUserInput
	if err := e.BindBody(&in); err != nil {
		return badBody(e)
	}

	u, err := h.users.Create(e.Request.Context(), actor(e), in)
	if err != nil {
		return fail(e, err, in.Email)
	}
	return respond(e, http.StatusCreated, u, "User created successfully")
}

func (h *UserHandler) List(e *core.RequestEvent) error {
	page, err := h.users.List(e.Request.Context(), actor(e), pageQuery(e))
	if err != nil {
		return fail(e, err, "")
	}
	return respond(e, http.StatusOK, page, "")
}

func (h *UserHandler) Get(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	u, err := h.users.Get(e.Request.Context(), actor(e), id)
	if err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, u, "")
}

// Update serves both PUT and PATCH; absent fields are left unchanged.
func (h *UserHandler) Update(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	var patch models.UserPatch
	if err := e.BindBody(&patch); err != nil {
		return badBody(e)
	}

	u, err := h.users.Update(e.Request.Context(), actor(e), id, patch)
	if err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, u, "User updated successfully")
}

func (h *UserHandler) Delete(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	if err := h.users.Delete(e.Request.Context(), actor(e), id); err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, nil, "User deleted successfully")
}
