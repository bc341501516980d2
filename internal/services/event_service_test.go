package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticketing/internal/notify"
	"ticketing/internal/status"
	"ticketing/models"
	"ticketing/monitoring"
)

func eventInput(f fixture) EventInput {
	start := time.Now().Add(24 * time.Hour)
	return EventInput{
		Title:       "Rock Night",
		Description: "Loud",
		StartDate:   start,
		EndDate:     start.Add(3 * time.Hour),
		Location:    "Arena",
		CategoryID:  f.category.ID,
	}
}

func TestEventCreate(t *testing.T) {
	f := seed(t)
	n := &MockNotifier{}
	svc := NewEventService(f.store, nil, n)
	ctx := context.Background()

	e, err := svc.Create(ctx, f.organizer, eventInput(f))
	require.NoError(t, err)
	assert.Equal(t, models.EventDraft, e.Status)
	assert.Equal(t, f.organizer.ID, e.OrganizerID)
	require.NotNil(t, e.Category)
	assert.Equal(t, "Music", e.Category.Name)
	n.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)

	n.On("Deliver", notify.KindEventAddition, mock.MatchedBy(func(to notify.Recipient) bool {
		return to.UserID == f.organizer.ID
	}), mock.AnythingOfType("notify.EventAdditionData")).Return(nil).Once()

	in := eventInput(f)
	in.Status = models.EventPublished
	_, err = svc.Create(ctx, f.organizer, in)
	require.NoError(t, err)
	n.AssertExpectations(t)
}

func TestEventCreate_Rejections(t *testing.T) {
	f := seed(t)
	svc := NewEventService(f.store, nil, quietNotifier())
	ctx := context.Background()
	unverified := f.organizer
	unverified.Verified = false

	past := eventInput(f)
	past.StartDate = time.Now().Add(-time.Hour)
	past.EndDate = time.Now().Add(time.Hour)

	backwards := eventInput(f)
	backwards.EndDate = backwards.StartDate.Add(-time.Hour)

	noCategory := eventInput(f)
	noCategory.CategoryID = "missing"

	badStatus := eventInput(f)
	badStatus.Status = "archived"

	tests := []struct {
		name  string
		actor models.Actor
		in    EventInput
		want  error
	}{
		{"attendee", f.attendee, eventInput(f), status.ErrForbidden},
		{"unverified organizer", unverified, eventInput(f), status.ErrForbidden},
		{"start in the past", f.organizer, past, status.ErrInvalidRequest},
		{"end before start", f.organizer, backwards, status.ErrInvalidRequest},
		{"unknown category", f.organizer, noCategory, status.ErrInvalidRequest},
		{"unknown status", f.organizer, badStatus, status.ErrInvalidRequest},
		{"missing title", f.organizer, EventInput{CategoryID: f.category.ID}, status.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEventGetAndList_HideDrafts(t *testing.T) {
	f := seed(t)
	svc := NewEventService(f.store, nil, quietNotifier())
	ctx := context.Background()
	draft, err := svc.Create(ctx, f.organizer, eventInput(f))
	require.NoError(t, err)

	_, err = svc.Get(ctx, nil, draft.ID)
	assert.ErrorIs(t, err, status.ErrNotFound)
	_, err = svc.Get(ctx, &f.attendee, draft.ID)
	assert.ErrorIs(t, err, status.ErrNotFound)
	_, err = svc.Get(ctx, &f.organizer, draft.ID)
	assert.NoError(t, err)

	public, err := svc.List(ctx, nil, EventQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, public.Total)

	asAdmin, err := svc.List(ctx, &f.admin, EventQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, asAdmin.Total)

	mine, err := svc.List(ctx, &f.organizer, EventQuery{Mine: true})
	require.NoError(t, err)
	assert.Equal(t, 2, mine.Total)
}

func TestEventSearch(t *testing.T) {
	f := seed(t)
	svc := NewEventService(f.store, nil, quietNotifier())
	ctx := context.Background()

	_, err := svc.Search(ctx, nil, "", "  ", PageQuery{})
	assert.ErrorIs(t, err, status.ErrInvalidRequest)

	found, err := svc.Search(ctx, nil, "", "jazz", PageQuery{})
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, f.event.ID, found.Items[0].ID)

	none, err := svc.Search(ctx, nil, f.category.ID, "opera", PageQuery{})
	require.NoError(t, err)
	assert.Empty(t, none.Items)
}

func TestEventUpdate(t *testing.T) {
	f := seed(t)
	n := &MockNotifier{}
	svc := NewEventService(f.store, nil, n)
	ctx := context.Background()
	draft, err := svc.Create(ctx, f.organizer, eventInput(f))
	require.NoError(t, err)

	title := "Renamed"
	_, err = svc.Update(ctx, f.attendee, draft.ID, models.EventPatch{Title: &title})
	assert.ErrorIs(t, err, status.ErrForbidden)

	n.expect(notify.KindEventAddition)
	published := models.EventPublished
	updated, err := svc.Update(ctx, f.organizer, draft.ID, models.EventPatch{Title: &title, Status: &published})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, models.EventPublished, updated.Status)
	require.NotNil(t, updated.Category)
	n.AssertExpectations(t)

	early := updated.EndDate.Add(time.Hour)
	_, err = svc.Update(ctx, f.admin, draft.ID, models.EventPatch{StartDate: &early})
	assert.ErrorIs(t, err, status.ErrInvalidRequest)

	_, err = svc.Update(ctx, f.admin, "missing", models.EventPatch{Title: &title})
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestEventUpdate_ConcurrentPublishAnnouncesOnce(t *testing.T) {
	f := seed(t)
	n := quietNotifier()
	svc := NewEventService(f.store, nil, n)
	ctx := context.Background()
	draft, err := svc.Create(ctx, f.organizer, eventInput(f))
	require.NoError(t, err)

	const workers = 8
	published := models.EventPublished
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			title := fmt.Sprintf("Edition %d", i)
			_, err := svc.Update(ctx, f.organizer, draft.ID, models.EventPatch{Title: &title, Status: &published})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	n.AssertNumberOfCalls(t, "Deliver", 1)
	final, err := f.store.Q(ctx).FindEvent(draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventPublished, final.Status)
	assert.Regexp(t, `^Edition \d$`, final.Title)
}

func TestEventDelete_Cascades(t *testing.T) {
	f := seed(t)
	svc := NewEventService(f.store, nil, quietNotifier())
	ctx := context.Background()
	o := buy(t, f.orders(t, quietNotifier()), f.attendee, f.event.ID, line(f.vip.ID, 1))

	require.ErrorIs(t, svc.Delete(ctx, f.other, f.event.ID), status.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, f.organizer, f.event.ID))

	q := f.store.Q(ctx)
	_, err := q.FindOrder(o.ID)
	assert.ErrorIs(t, err, status.ErrNotFound)
	_, err = q.FindTicketType(f.vip.ID)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestEventAttendees(t *testing.T) {
	f := seed(t)
	svc := NewEventService(f.store, nil, quietNotifier())
	ctx := context.Background()
	buy(t, f.orders(t, quietNotifier()), f.attendee, f.event.ID, line(f.vip.ID, 2))

	page, err := svc.Attendees(ctx, f.organizer, f.event.ID, PageQuery{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "attendee", page.Items[0].User.Name)

	_, err = svc.Attendees(ctx, f.attendee, f.event.ID, PageQuery{})
	assert.ErrorIs(t, err, status.ErrForbidden)
}

func TestEventSyncBookable(t *testing.T) {
	f := seed(t)
	db, mock := redismock.NewClientMock()
	svc := NewEventService(f.store, db, quietNotifier())

	mock.ExpectTxPipeline()
	mock.ExpectDel(monitoring.BookableEventsKey).SetVal(1)
	mock.ExpectSAdd(monitoring.BookableEventsKey, f.event.ID).SetVal(1)
	mock.ExpectTxPipelineExec()

	require.NoError(t, svc.SyncBookable(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventCreate_TracksBookableSet(t *testing.T) {
	f := seed(t)
	db, mock := redismock.NewClientMock()
	svc := NewEventService(f.store, db, quietNotifier())

	in := eventInput(f)
	in.Status = models.EventActive
	mock.Regexp().ExpectSAdd(monitoring.BookableEventsKey, `.+`).SetVal(1)

	_, err := svc.Create(context.Background(), f.organizer, in)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
