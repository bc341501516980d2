package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableQuantity(t *testing.T) {
	tests := []struct {
		quantity, sold, want int
	}{
		{5, 0, 5},
		{5, 3, 2},
		{5, 5, 0},
		{2, 5, 0},
		{0, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AvailableQuantity(tt.quantity, tt.sold), "quantity=%d sold=%d", tt.quantity, tt.sold)
	}
}

func TestEventStatus(t *testing.T) {
	assert.True(t, EventPublished.Bookable())
	assert.True(t, EventActive.Bookable())
	assert.False(t, EventDraft.Bookable())
	assert.False(t, EventSoldOut.Bookable())

	assert.True(t, EventPostponed.Valid())
	assert.False(t, EventStatus("archived").Valid())
	assert.Len(t, EventStatuses(), 7)
}

func TestEventPatch_Apply(t *testing.T) {
	start := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	e := Event{Title: "Jazz Night", Location: "Blue Hall", StartDate: start, MaxAttendees: 100}

	title := "Late Jazz"
	unlimited := 0
	got := EventPatch{Title: &title, MaxAttendees: &unlimited}.Apply(e)

	assert.Equal(t, "Late Jazz", got.Title)
	assert.Equal(t, 0, got.MaxAttendees)
	assert.Equal(t, "Blue Hall", got.Location)
	assert.Equal(t, start, got.StartDate)
	assert.Equal(t, "Jazz Night", e.Title)
}

func TestTicketTypePatch_Apply(t *testing.T) {
	tt := TicketType{Name: "VIP", Price: decimal.RequireFromString("150.00"), Quantity: 5, IsActive: true}

	price := decimal.RequireFromString("120.00")
	inactive := false
	got := TicketTypePatch{Price: &price, IsActive: &inactive}.Apply(tt)

	assert.True(t, got.Price.Equal(price))
	assert.False(t, got.IsActive)
	assert.Equal(t, 5, got.Quantity)
}

func TestOrder_Cancellable(t *testing.T) {
	assert.True(t, (&Order{Status: OrderCompleted}).Cancellable())
	assert.False(t, (&Order{Status: OrderCancelled}).Cancellable())
	assert.False(t, (&Order{Status: OrderRefunded}).Cancellable())
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("organizer")
	require.NoError(t, err)
	assert.Equal(t, RoleOrganizer, r)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}

func TestUser_OTPExpired(t *testing.T) {
	now := time.Now()
	u := &User{}
	assert.True(t, u.OTPExpired(now))

	later := now.Add(time.Minute)
	u.OTPExpiresAt = &later
	assert.False(t, u.OTPExpired(now))
	assert.True(t, u.OTPExpired(now.Add(2*time.Minute)))
}

func TestUser_TokenRevoked(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := &User{}
	assert.False(t, u.TokenRevoked(issued))

	logout := issued.Add(1500 * time.Millisecond)
	u.TokensValidAfter = &logout
	assert.True(t, u.TokenRevoked(issued))
	assert.False(t, u.TokenRevoked(issued.Add(time.Second)))
	assert.False(t, u.TokenRevoked(issued.Add(time.Hour)))
}

func TestUser_ResetExpired(t *testing.T) {
	now := time.Now()
	u := &User{}
	assert.True(t, u.ResetExpired(now))

	later := now.Add(time.Minute)
	u.ResetExpiresAt = &later
	assert.False(t, u.ResetExpired(now))
	assert.True(t, u.ResetExpired(later.Add(time.Second)))
}

func TestUserPatch_Empty(t *testing.T) {
	assert.True(t, UserPatch{}.Empty())
	name := "x"
	assert.False(t, UserPatch{Name: &name}.Empty())
}

func TestNewPage(t *testing.T) {
	p := NewPage([]int{1, 2}, 32, 0, 0)
	assert.Equal(t, 1, p.CurrentPage)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Equal(t, 3, p.LastPage)

	empty := NewPage[int](nil, 0, 2, 10)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 1, empty.LastPage)
}
