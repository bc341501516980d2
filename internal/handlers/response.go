// Package handlers adapts the ticketing services to pocketbase routes under /api/v1.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/pocketbase/pocketbase/core"

	"ticketing/internal/services"
	"ticketing/internal/status"
	"ticketing/models"
	"ticketing/security"
)

const unexpectedMessage = "An unexpected error occurred. Please try again later."

type envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

func respond(e *core.RequestEvent, code int, data any, message string) error {
	return e.JSON(code, envelope{Success: true, Data: data, Message: message})
}

// fail writes err in the failure envelope. Errors outside the taxonomy are logged
// with the caller and the resource and answered with a generic message.
func fail(e *core.RequestEvent, err error, resourceID string) error {
	code := status.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		actorID := ""
		if actor, ok := security.ActorFrom(e); ok {
			actorID = actor.ID
		}
		slog.Error("Unexpected error",
			"error", err,
			"method", e.Request.Method,
			"path", e.Request.URL.Path,
			"actor_id", actorID,
			"resource_id", resourceID,
			"stack", string(debug.Stack()),
		)
		return e.JSON(code, envelope{Errors: []string{unexpectedMessage}})
	}

	body := envelope{Errors: []string{err.Error()}}

	var inv *status.InsufficientInventoryError
	var used *status.AlreadyUsedError
	switch {
	case errors.As(err, &inv):
		body.Data = map[string]any{
			"ticket_type": inv.TicketType,
			"requested":   inv.Requested,
			"available":   inv.Available,
		}
	case errors.As(err, &used):
		body.Data = map[string]any{"check_in_time": used.CheckInTime}
	}
	return e.JSON(code, body)
}

func badBody(e *core.RequestEvent) error {
	return e.JSON(http.StatusBadRequest, envelope{Errors: []string{"invalid request body"}})
}

// actor returns the caller of an authenticated route.
func actor(e *core.RequestEvent) models.Actor {
	a, _ := security.ActorFrom(e)
	return a
}

// optionalActor returns the caller of a public route, or nil for anonymous requests.
func optionalActor(e *core.RequestEvent) *models.Actor {
	if a, ok := security.ActorFrom(e); ok {
		return &a
	}
	return nil
}

func pageQuery(e *core.RequestEvent) services.PageQuery {
	q := e.Request.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return services.PageQuery{Page: page, PerPage: perPage}
}
