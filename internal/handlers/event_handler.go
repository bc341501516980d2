package handlers

import (
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase/core"

	"ticketing/internal/services"
	"ticketing/models"
)

type EventHandler struct {
	events *services.EventService
}

func NewEventHandler(events *services.EventService) *EventHandler {
	return &EventHandler{events: events}
}

func (h *EventHandler) List(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	mine, _ := strconv.ParseBool(q.Get("mine"))

	page, err := h.events.List(e.Request.Context(), optionalActor(e), services.EventQuery{
		PageQuery:  pageQuery(e),
		CategoryID: q.Get("category_id"),
		Search:     q.Get("search"),
		Mine:       mine,
	})
	if err != nil {
		return fail(e, err, "")
	}
	return respond(e, http.StatusOK, page, "")
}

func (h *EventHandler) Search(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	page, err := h.events.Search(e.Request.Context(), optionalActor(e), q.Get("category_id"), q.Get("q"), pageQuery(e))
	if err != nil {
		return fail(e, err, "")
	}
	return respond(e, http.StatusOK, page, "")
}

func (h *EventHandler) Get(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	event, err := h.events.Get(e.Request.Context(), optionalActor(e), id)
	if err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, event, "")
}

func (h *EventHandler) Create(e *core.RequestEvent) error {
	var in services.EventInput
	if err := e.BindBody(&in); err != nil {
		return badBody(e)
	}

	event, err := h.events.Create(e.Request.Context(), actor(e), in)
	if err != nil {
		return fail(e, err, "")
	}
	return respond(e, http.StatusCreated, event, "Event created successfully")
}

func (h *EventHandler) Update(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	var patch models.EventPatch
	if err := e.BindBody(&patch); err != nil {
		return badBody(e)
	}

	event, err := h.events.Update(e.Request.Context(), actor(e), id, patch)
	if err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, event, "Event updated successfully")
}

func (h *EventHandler) Delete(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	if err := h.events.Delete(e.Request.Context(), actor(e), id); err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, nil, "Event deleted successfully")
}

func (h *EventHandler) Attendees(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	page, err := h.events.Attendees(e.Request.Context(), actor(e), id, pageQuery(e))
	if err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, page, "")
}
