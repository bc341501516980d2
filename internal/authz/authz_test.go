package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ticketing/models"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		name     string
		role     models.Role
		resource Resource
		action   Action
		expected bool
	}{
		{"admin deletes users", models.RoleAdmin, Users, Delete, true},
		{"admin anything", models.RoleAdmin, Categories, Create, true},
		{"organizer creates events", models.RoleOrganizer, Events, Create, true},
		{"organizer cannot update any event", models.RoleOrganizer, Events, Update, false},
		{"organizer updates own event", models.RoleOrganizer, Events, UpdateOwn, true},
		{"attendee cannot create events", models.RoleAttendee, Events, Create, false},
		{"attendee places orders", models.RoleAttendee, Orders, Create, true},
		{"attendee cannot manage categories", models.RoleAttendee, Categories, Create, false},
		{"unknown role", models.Role("guest"), Events, Read, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Allowed(tt.role, tt.resource, tt.action))
		})
	}
}

func TestCan_OwnScope(t *testing.T) {
	organizer := models.Actor{ID: "org-1", Role: models.RoleOrganizer}
	other := models.Actor{ID: "org-2", Role: models.RoleOrganizer}
	admin := models.Actor{ID: "root", Role: models.RoleAdmin}

	assert.True(t, Can(organizer, Events, Update, "org-1"))
	assert.False(t, Can(other, Events, Update, "org-1"))
	assert.True(t, Can(admin, Events, Update, "org-1"))

	assert.True(t, Can(organizer, Events, Delete, "org-1"))
	assert.False(t, Can(other, Events, Delete, "org-1"))

	// Create has no scoped variant.
	attendee := models.Actor{ID: "att-1", Role: models.RoleAttendee}
	assert.False(t, Can(attendee, Events, Create, "att-1"))

	// An empty owner never satisfies an own permission.
	assert.False(t, Can(attendee, Orders, Read, ""))
	assert.True(t, Can(attendee, Orders, Read, "att-1"))

	assert.True(t, Can(attendee, Uploads, Delete, "att-1"))
	assert.False(t, Can(attendee, Uploads, Delete, "org-1"))
	assert.False(t, Can(organizer, Uploads, Read, ""))
}
