package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"ticketing/internal/services"
	"ticketing/models"
)

type CategoryHandler struct {
	categories *services.CategoryService
}

func NewCategoryHandler(categories *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

func (h *CategoryHandler) List(e *core.RequestEvent) error {
	categories, err := h.categories.List(e.Request.Context())
	if err != nil {
		return fail(e, err, "")
	}
	return respond(e, http.StatusOK, categories, "")
}

func (h *CategoryHandler) Create(e *core.RequestEvent) error {
	var in services.CategoryInput
	if err := e.BindBody(&in); err != nil {
		return badBody(e)
	}

	c, err := h.categories.Create(e.Request.Context(), actor(e), in)
	if err != nil {
		return fail(e, err, "")
	}
	return respond(e, http.StatusCreated, c, "Category created successfully")
}

func (h *CategoryHandler) Update(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	var in services.CategoryInput
	if err := e.BindBody(&in); err != nil {
		return badBody(e)
	}

	c, err := h.categories.Update(e.Request.Context(), actor(e), id, in)
	if err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, c, "Category updated successfully")
}

func (h *CategoryHandler) Delete(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	if err := h.categories.Delete(e.Request.Context(), actor(e), id); err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, nil, "Category deleted successfully")
}

type TicketTypeHandler struct {
	ticketTypes *services.TicketTypeService
}

func NewTicketTypeHandler(ticketTypes *services.TicketTypeService) *TicketTypeHandler {
	return &TicketTypeHandler{ticketTypes: ticketTypes}
}

func (h *TicketTypeHandler) List(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	types, err := h.ticketTypes.List(e.Request.Context(), optionalActor(e), eventID)
	if err != nil {
		return fail(e, err, eventID)
	}
	return respond(e, http.StatusOK, types, "")
}

func (h *TicketTypeHandler) Create(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	var in services.TicketTypeInput
	if err := e.BindBody(&in); err != nil {
		return badBody(e)
	}

	tt, err := h.ticketTypes.Create(e.Request.Context(), actor(e), eventID, in)
	if err != nil {
		return fail(e, err, eventID)
	}
	return respond(e, http.StatusCreated, tt, "Ticket type created successfully")
}

func (h *TicketTypeHandler) Update(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	var patch models.TicketTypePatch
	if err := e.BindBody(&patch); err != nil {
		return badBody(e)
	}

	tt, err := h.ticketTypes.Update(e.Request.Context(), actor(e), id, patch)
	if err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, tt, "Ticket type updated successfully")
}

func (h *TicketTypeHandler) Delete(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	deactivated, err := h.ticketTypes.Delete(e.Request.Context(), actor(e), id)
	if err != nil {
		return fail(e, err, id)
	}
	if deactivated {
		return respond(e, http.StatusOK, nil, "Ticket type has been deactivated because tickets were already sold")
	}
	return respond(e, http.StatusOK, nil, "Ticket type deleted successfully")
}
