package handlers

import (
	"fmt"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"ticketing/internal/services"
	"ticketing/models"
)

type TicketHandler struct {
	tickets *services.TicketService
}

func NewTicketHandler(tickets *services.TicketService) *TicketHandler {
	return &TicketHandler{tickets: tickets}
}

type codeRequest struct {
	QRCode string `json:"qr_code"`
}

func (h *TicketHandler) ListForEvent(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	page, err := h.tickets.ListForEvent(e.Request.Context(), actor(e), eventID, pageQuery(e))
	if err != nil {
		return fail(e, err, eventID)
	}
	return respond(e, http.StatusOK, page, "")
}

// CancelMine cancels the caller's ticket for the event in the path.
func (h *TicketHandler) CancelMine(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	ticket, err := h.tickets.CancelMine(e.Request.Context(), actor(e), eventID)
	if err != nil {
		return fail(e, err, eventID)
	}
	return respond(e, http.StatusOK, ticket, "Your ticket has been cancelled")
}

func (h *TicketHandler) Get(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	ticket, _, err := h.tickets.Get(e.Request.Context(), actor(e), id)
	if err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, ticket, "")
}

func (h *TicketHandler) UpdateStatus(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	var in struct {
		Status models.TicketStatus `json:"status"`
	}
	if err := e.BindBody(&in); err != nil {
		return badBody(e)
	}

	ticket, err := h.tickets.UpdateStatus(e.Request.Context(), actor(e), id, in.Status)
	if err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, ticket, "Ticket updated successfully")
}

func (h *TicketHandler) CheckIn(e *core.RequestEvent) error {
	var in codeRequest
	if err := e.BindBody(&in); err != nil {
		return badBody(e)
	}

	res, err := h.tickets.CheckIn(e.Request.Context(), actor(e), in.QRCode)
	if err != nil {
		return fail(e, err, "")
	}
	return respond(e, http.StatusOK, res, "Ticket checked in successfully")
}

func (h *TicketHandler) Verify(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	var in codeRequest
	if err := e.BindBody(&in); err != nil {
		return badBody(e)
	}

	v, err := h.tickets.Verify(e.Request.Context(), actor(e), id, in.QRCode)
	if err != nil {
		return fail(e, err, id)
	}
	return respond(e, http.StatusOK, v, "")
}

func (h *TicketHandler) QRCode(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	png, err := h.tickets.QRCode(e.Request.Context(), actor(e), id)
	if err != nil {
		return fail(e, err, id)
	}
	e.Response.Header().Set("Cache-Control", "private, max-age=300")
	return e.Blob(http.StatusOK, "image/png", png)
}

func (h *TicketHandler) PDF(e *core.RequestEvent) error {
	id := e.Request.PathValue("id")
	pdf, name, err := h.tickets.PDF(e.Request.Context(), actor(e), id)
	if err != nil {
		return fail(e, err, id)
	}
	e.Response.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	return e.Blob(http.StatusOK, "application/pdf", pdf)
}
