// Package authz holds the static role permission table and the predicates
// evaluated before every mutating or scoped read operation.
package authz

import "ticketing/models"

type Resource string

const (
	Events      Resource = "events"
	TicketTypes Resource = "ticket_types"
	Orders      Resource = "orders"
	Tickets     Resource = "tickets"
	Users       Resource = "users"
	Categories  Resource = "categories"
	Uploads     Resource = "uploads"
)

type Action string

const (
	Create    Action = "create"
	Read      Action = "read"
	ReadOwn   Action = "read_own"
	Update    Action = "update"
	UpdateOwn Action = "update_own"
	Delete    Action = "delete"
	DeleteOwn Action = "delete_own"
)

// own returns the resource-scoped variant of a, or "" when a has none.
func (a Action) own() Action {
	switch a {
	case Read:
		return ReadOwn
	case Update:
		return UpdateOwn
	case Delete:
		return DeleteOwn
	}
	return ""
}

type grant map[Resource][]Action

// Admins are not listed: they bypass the table.
var permissions = map[models.Role]grant{
	models.RoleOrganizer: {
		Events:      {Create, Read, ReadOwn, UpdateOwn, DeleteOwn},
		TicketTypes: {Read, Create, UpdateOwn, DeleteOwn},
		Orders:      {Create, ReadOwn, UpdateOwn},
		Tickets:     {ReadOwn, UpdateOwn, DeleteOwn},
		Users:       {Read, ReadOwn, UpdateOwn},
		Categories:  {Read},
		Uploads:     {Create, ReadOwn, DeleteOwn},
	},
	models.RoleAttendee: {
		Events:      {Read},
		TicketTypes: {Read},
		Orders:      {Create, ReadOwn, UpdateOwn},
		Tickets:     {ReadOwn, DeleteOwn},
		Users:       {ReadOwn, UpdateOwn},
		Categories:  {Read},
		Uploads:     {Create, ReadOwn, DeleteOwn},
	},
}

// Allowed reports whether role holds the unscoped permission (resource, action).
func Allowed(role models.Role, resource Resource, action Action) bool {
	if role == models.RoleAdmin {
		return true
	}
	for _, a := range permissions[role][resource] {
		if a == action {
			return true
		}
	}
	return false
}

// Can reports whether actor may perform action on a resource owned by ownerID.
// ownerID may be empty for resource-independent actions such as Create.
func Can(actor models.Actor, resource Resource, action Action, ownerID string) bool {
	if actor.IsAdmin() || Allowed(actor.Role, resource, action) {
		return true
	}
	scoped := action.own()
	if scoped == "" || ownerID == "" || actor.ID != ownerID {
		return false
	}
	return Allowed(actor.Role, resource, scoped)
}
