package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ticketing/internal/notify"
	"ticketing/internal/qr"
	"ticketing/internal/store"
	"ticketing/models"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

// MockNotifier runs hooks inline on Fire. Each delivered hook is recorded as a
// "Deliver" call so tests can set expectations on what went out.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Message(kind notify.Kind, to notify.Recipient, data any) notify.Hook {
	return func(context.Context) error {
		return m.MethodCalled("Deliver", kind, to, data).Error(0)
	}
}

func (m *MockNotifier) Fire(hooks notify.Hooks) {
	for _, h := range hooks {
		_ = h(context.Background())
	}
}

// expect registers a single delivery of kind.
func (m *MockNotifier) expect(kind notify.Kind) *mock.Call {
	return m.On("Deliver", kind, mock.Anything, mock.Anything).Return(nil).Once()
}

// quietNotifier accepts any delivery.
func quietNotifier() *MockNotifier {
	m := &MockNotifier{}
	m.On("Deliver", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "ticketing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestSigner(t *testing.T) *qr.Signer {
	t.Helper()
	signer, err := qr.NewSigner("test-secret")
	require.NoError(t, err)
	return signer
}

type fixture struct {
	store     *store.Store
	admin     models.Actor
	organizer models.Actor
	attendee  models.Actor
	other     models.Actor
	category  *models.Category
	event     *models.Event
	vip       *models.TicketType
	general   *models.TicketType
}

func mkUser(t *testing.T, q *store.Queries, name string, role models.Role) models.Actor {
	t.Helper()
	u := &models.User{Email: name + "@example.com", PasswordHash: "x", Name: name, Role: role, IsVerified: true}
	require.NoError(t, q.CreateUser(u))
	return models.ActorFromUser(u)
}

// seed creates a published event with a VIP type (5 at 150.00) and a General type (100 at 25.50).
func seed(t *testing.T) fixture {
	t.Helper()
	s := newTestStore(t)
	q := s.Q(context.Background())

	f := fixture{
		store:     s,
		admin:     mkUser(t, q, "admin", models.RoleAdmin),
		organizer: mkUser(t, q, "organizer", models.RoleOrganizer),
		attendee:  mkUser(t, q, "attendee", models.RoleAttendee),
		other:     mkUser(t, q, "other", models.RoleAttendee),
		category:  &models.Category{Name: "Music"},
	}
	require.NoError(t, q.CreateCategory(f.category))

	start := time.Now().Add(72 * time.Hour)
	f.event = &models.Event{
		Title:       "Jazz Night",
		Description: "Live jazz",
		StartDate:   start,
		EndDate:     start.Add(4 * time.Hour),
		Location:    "Blue Hall",
		Status:      models.EventPublished,
		CategoryID:  f.category.ID,
		OrganizerID: f.organizer.ID,
	}
	require.NoError(t, q.CreateEvent(f.event))

	f.vip = &models.TicketType{EventID: f.event.ID, Name: "VIP", Price: decimal.RequireFromString("150.00"), Quantity: 5, IsActive: true}
	f.general = &models.TicketType{EventID: f.event.ID, Name: "General", Price: decimal.RequireFromString("25.50"), Quantity: 100, IsActive: true}
	require.NoError(t, q.CreateTicketType(f.vip))
	require.NoError(t, q.CreateTicketType(f.general))
	return f
}

func (f fixture) orders(t *testing.T, n Notifier) *OrderService {
	return NewOrderService(f.store, newTestSigner(t), n)
}

func (f fixture) tickets(t *testing.T, n Notifier) *TicketService {
	return NewTicketService(f.store, newTestSigner(t), n)
}

func (f fixture) available(t *testing.T, id string) int {
	t.Helper()
	tt, err := f.store.Q(context.Background()).FindTicketType(id)
	require.NoError(t, err)
	return tt.Available
}

func buy(t *testing.T, svc *OrderService, actor models.Actor, eventID string, lines ...models.OrderLine) *models.Order {
	t.Helper()
	o, err := svc.PlaceOrder(context.Background(), actor, PlaceOrderInput{EventID: eventID, Tickets: lines, PaymentMethod: "card"})
	require.NoError(t, err)
	return o
}

func line(ticketTypeID string, qty int) models.OrderLine {
	return models.OrderLine{TicketTypeID: ticketTypeID, Quantity: qty}
}

func TestPageQuery_Normalized(t *testing.T) {
	tests := []struct {
		in   PageQuery
		want PageQuery
	}{
		{PageQuery{}, PageQuery{Page: 1, PerPage: 15}},
		{PageQuery{Page: 3, PerPage: 50}, PageQuery{Page: 3, PerPage: 50}},
		{PageQuery{Page: -1, PerPage: 500}, PageQuery{Page: 1, PerPage: 15}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, tt.in.normalized())
	}
}
