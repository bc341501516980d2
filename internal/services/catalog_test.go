package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing/internal/status"
	"ticketing/models"
)

func TestCategoryList_UsesCache(t *testing.T) {
	f := seed(t)
	db, mock := redismock.NewClientMock()
	svc := NewCategoryService(f.store, db, time.Minute)
	ctx := context.Background()

	fromDB, err := f.store.Q(ctx).ListCategories()
	require.NoError(t, err)
	data, err := json.Marshal(fromDB)
	require.NoError(t, err)

	mock.ExpectGet(categoriesCacheKey).RedisNil()
	mock.ExpectSet(categoriesCacheKey, data, time.Minute).SetVal("OK")
	got, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// rows added behind the service's back stay invisible while the cache is warm
	require.NoError(t, f.store.Q(ctx).CreateCategory(&models.Category{Name: "Theatre"}))
	mock.ExpectGet(categoriesCacheKey).SetVal(string(data))
	got, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryWrites_InvalidateCache(t *testing.T) {
	f := seed(t)
	db, mock := redismock.NewClientMock()
	svc := NewCategoryService(f.store, db, time.Minute)
	ctx := context.Background()

	_, err := svc.Create(ctx, f.organizer, CategoryInput{Name: "Sports"})
	require.ErrorIs(t, err, status.ErrForbidden)

	mock.ExpectDel(categoriesCacheKey).SetVal(1)
	c, err := svc.Create(ctx, f.admin, CategoryInput{Name: "  Sports "})
	require.NoError(t, err)
	assert.Equal(t, "Sports", c.Name)

	_, err = svc.Create(ctx, f.admin, CategoryInput{Name: "Sports"})
	assert.ErrorIs(t, err, status.ErrConflict)

	mock.ExpectDel(categoriesCacheKey).SetVal(1)
	c, err = svc.Update(ctx, f.admin, c.ID, CategoryInput{Name: "Football", Description: "Matches"})
	require.NoError(t, err)
	assert.Equal(t, "Matches", c.Description)

	mock.ExpectDel(categoriesCacheKey).SetVal(1)
	require.NoError(t, svc.Delete(ctx, f.admin, c.ID))

	err = svc.Delete(ctx, f.admin, f.category.ID)
	require.ErrorIs(t, err, status.ErrConflict)
	assert.Equal(t, "category is still used by events", err.Error())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryList_WithoutRedis(t *testing.T) {
	f := seed(t)
	svc := NewCategoryService(f.store, nil, 0)

	got, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Music", got[0].Name)
}

func TestTicketTypeList_Visibility(t *testing.T) {
	f := seed(t)
	svc := NewTicketTypeService(f.store)
	ctx := context.Background()

	hidden := &models.TicketType{EventID: f.event.ID, Name: "Backstage", Price: decimal.NewFromInt(500), Quantity: 2}
	require.NoError(t, f.store.Q(ctx).CreateTicketType(hidden))

	public, err := svc.List(ctx, nil, f.event.ID)
	require.NoError(t, err)
	assert.Len(t, public, 2)

	owner, err := svc.List(ctx, &f.organizer, f.event.ID)
	require.NoError(t, err)
	assert.Len(t, owner, 3)
}

func TestTicketTypeCreate(t *testing.T) {
	f := seed(t)
	svc := NewTicketTypeService(f.store)
	ctx := context.Background()

	tt, err := svc.Create(ctx, f.organizer, f.event.ID, TicketTypeInput{Name: "Student", Price: decimal.RequireFromString("9.999"), Quantity: 10})
	require.NoError(t, err)
	assert.True(t, tt.IsActive)
	assert.Equal(t, "10", tt.Price.String())
	assert.Equal(t, 10, tt.Available)

	tests := []struct {
		name  string
		actor models.Actor
		in    TicketTypeInput
		want  error
	}{
		{"attendee", f.attendee, TicketTypeInput{Name: "X", Quantity: 1}, status.ErrForbidden},
		{"negative price", f.organizer, TicketTypeInput{Name: "X", Price: decimal.NewFromInt(-1), Quantity: 1}, status.ErrInvalidRequest},
		{"zero quantity", f.organizer, TicketTypeInput{Name: "X"}, status.ErrInvalidRequest},
		{"missing name", f.organizer, TicketTypeInput{Quantity: 1}, status.ErrInvalidRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.actor, f.event.ID, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	other := mkUser(t, f.store.Q(ctx), "rival", models.RoleOrganizer)
	_, err = svc.Create(ctx, other, f.event.ID, TicketTypeInput{Name: "X", Quantity: 1})
	assert.ErrorIs(t, err, status.ErrForbidden)
}

func TestTicketTypeUpdate_QuantityFloor(t *testing.T) {
	f := seed(t)
	svc := NewTicketTypeService(f.store)
	ctx := context.Background()
	buy(t, f.orders(t, quietNotifier()), f.attendee, f.event.ID, line(f.vip.ID, 3))

	two := 2
	_, err := svc.Update(ctx, f.organizer, f.vip.ID, models.TicketTypePatch{Quantity: &two})
	assert.ErrorIs(t, err, status.ErrInvalidRequest)

	three := 3
	price := decimal.RequireFromString("175.00")
	tt, err := svc.Update(ctx, f.organizer, f.vip.ID, models.TicketTypePatch{Quantity: &three, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 0, tt.Available)
	assert.True(t, price.Equal(tt.Price))

	_, err = svc.Update(ctx, f.attendee, f.vip.ID, models.TicketTypePatch{Quantity: &three})
	assert.ErrorIs(t, err, status.ErrForbidden)
}

func TestTicketTypeUpdate_ZeroQuantityWhenUnsold(t *testing.T) {
	f := seed(t)
	svc := NewTicketTypeService(f.store)
	ctx := context.Background()

	zero := 0
	tt, err := svc.Update(ctx, f.organizer, f.general.ID, models.TicketTypePatch{Quantity: &zero})
	require.NoError(t, err)
	assert.Equal(t, 0, tt.Quantity)
	assert.Equal(t, 0, tt.Available)
}

func TestTicketTypeDelete(t *testing.T) {
	f := seed(t)
	svc := NewTicketTypeService(f.store)
	ctx := context.Background()
	buy(t, f.orders(t, quietNotifier()), f.attendee, f.event.ID, line(f.vip.ID, 1))

	deactivated, err := svc.Delete(ctx, f.organizer, f.vip.ID)
	require.NoError(t, err)
	assert.True(t, deactivated)
	vip, err := f.store.Q(ctx).FindTicketType(f.vip.ID)
	require.NoError(t, err)
	assert.False(t, vip.IsActive)

	deactivated, err = svc.Delete(ctx, f.organizer, f.general.ID)
	require.NoError(t, err)
	assert.False(t, deactivated)
	_, err = f.store.Q(ctx).FindTicketType(f.general.ID)
	assert.ErrorIs(t, err, status.ErrNotFound)
}
