package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/redis/go-redis/v9"

	"ticketing/internal/authz"
	"ticketing/internal/notify"
	"ticketing/internal/status"
	"ticketing/internal/store"
	"ticketing/models"
	"ticketing/monitoring"
)

type EventService struct {
	store    *store.Store
	redis    redis.Cmdable
	notifier Notifier
	now      func() time.Time
}

func NewEventService(st *store.Store, redisClient redis.Cmdable, notifier Notifier) *EventService {
	return &EventService{store: st, redis: redisClient, notifier: notifier, now: time.Now}
}

type EventInput struct {
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	StartDate    time.Time          `json:"start_date"`
	EndDate      time.Time          `json:"end_date"`
	Location     string             `json:"location"`
	Status       models.EventStatus `json:"status"`
	MaxAttendees int                `json:"max_attendees"`
	CategoryID   string             `json:"category_id"`
	ImageURL     string             `json:"image_url"`
}

// validateEvent checks the attributes shared by creation and update.
func validateEvent(e *models.Event) error {
	return validation.ValidateStruct(e,
		validation.Field(&e.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&e.Description, validation.Required),
		validation.Field(&e.Location, validation.Required, validation.Length(1, 255)),
		validation.Field(&e.StartDate, validation.Required),
		validation.Field(&e.EndDate, validation.Required, validation.Min(e.StartDate.Add(time.Second)).Error("must be after start_date")),
		validation.Field(&e.Status, validation.Required, validation.By(func(any) error {
			if !e.Status.Valid() {
				return validation.NewError("validation_event_status", "must be a valid event status")
			}
			return nil
		})),
		validation.Field(&e.MaxAttendees, validation.Min(0)),
		validation.Field(&e.CategoryID, validation.Required),
	)
}

// EventQuery narrows a listing.
type EventQuery struct {
	PageQuery
	CategoryID string
	Search     string
	// Mine lists the caller's own events in every status.
	Mine bool
}

var publicStatuses = []models.EventStatus{
	models.EventPublished, models.EventActive, models.EventSoldOut,
	models.EventPostponed, models.EventCompleted, models.EventCancelled,
}

// Create adds an event organized by the caller.
func (s *EventService) Create(ctx context.Context, actor models.Actor, in EventInput) (*models.Event, error) {
	if !authz.Can(actor, authz.Events, authz.Create, "") {
		return nil, forbidden("you are not allowed to create events")
	}
	if !actor.Verified && !actor.IsAdmin() {
		return nil, forbidden("verify your account before creating events")
	}

	e := &models.Event{
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Location:     strings.TrimSpace(in.Location),
		Status:       in.Status,
		MaxAttendees: in.MaxAttendees,
		CategoryID:   in.CategoryID,
		ImageURL:     in.ImageURL,
		OrganizerID:  actor.ID,
	}
	if e.Status == "" {
		e.Status = models.EventDraft
	}
	if err := validateEvent(e); err != nil {
		return nil, invalid(err)
	}
	if !e.StartDate.After(s.now()) {
		return nil, status.Errorf(status.ErrInvalidRequest, "start_date: must be in the future")
	}

	q := s.store.Q(ctx)
	if _, err := q.FindCategory(e.CategoryID); err != nil {
		return nil, mustExist(err, "category_id: category does not exist")
	}
	if err := q.CreateEvent(e); err != nil {
		return nil, err
	}

	s.syncBookable(ctx, e)
	if e.Status.Bookable() {
		s.announce(q, e)
	}

	slog.Info("Event created", "event_id", e.ID, "organizer_id", actor.ID, "status", e.Status)
	return q.FindEventWithCategory(e.ID)
}

// Get returns one event. Drafts are visible to their organizer and admins only.
func (s *EventService) Get(ctx context.Context, actor *models.Actor, id string) (*models.Event, error) {
	e, err := s.store.Q(ctx).FindEventWithCategory(id)
	if err != nil {
		return nil, err
	}
	if e.Status == models.EventDraft && !ownsEvent(actor, e) {
		return nil, status.Errorf(status.ErrNotFound, "event not found")
	}
	return e, nil
}

func (s *EventService) List(ctx context.Context, actor *models.Actor, in EventQuery) (models.Page[models.Event], error) {
	in.PageQuery = in.normalized()
	filter := store.EventFilter{CategoryID: in.CategoryID, Search: strings.TrimSpace(in.Search)}

	if in.Mine && actor != nil {
		filter.OrganizerID = actor.ID
	} else if actor == nil || !actor.IsAdmin() {
		filter.Statuses = publicStatuses
	}

	page, err := s.store.Q(ctx).ListEvents(filter, in.Page, in.PerPage)
	if err != nil {
		return models.Page[models.Event]{}, err
	}
	return page, nil
}

// Search lists events of a category whose title or description contains a term.
func (s *EventService) Search(ctx context.Context, actor *models.Actor, categoryID, term string, page PageQuery) (models.Page[models.Event], error) {
	if categoryID == "" && strings.TrimSpace(term) == "" {
		return models.Page[models.Event]{}, status.Errorf(status.ErrInvalidRequest, "a category or a search term is required")
	}
	return s.List(ctx, actor, EventQuery{PageQuery: page, CategoryID: categoryID, Search: term})
}

// Update applies a partial update to an event the caller may modify. The read
// and the write share one transaction with the event row locked.
func (s *EventService) Update(ctx context.Context, actor models.Actor, id string, patch models.EventPatch) (*models.Event, error) {
	var (
		out   *models.Event
		hooks notify.Hooks
	)
	err := s.store.Transactional(ctx, func(q *store.Queries) error {
		if err := q.LockEvent(id); err != nil {
			return err
		}
		current, err := q.FindEvent(id)
		if err != nil {
			return err
		}
		if !authz.Can(actor, authz.Events, authz.Update, current.OrganizerID) {
			return forbidden("you are not allowed to update this event")
		}

		updated := patch.Apply(*current)
		updated.Title = strings.TrimSpace(updated.Title)
		if err := validateEvent(&updated); err != nil {
			return invalid(err)
		}
		if patch.StartDate != nil && !updated.StartDate.After(s.now()) {
			return status.Errorf(status.ErrInvalidRequest, "start_date: must be in the future")
		}
		if patch.CategoryID != nil {
			if _, err := q.FindCategory(updated.CategoryID); err != nil {
				return mustExist(err, "category_id: category does not exist")
			}
		}

		if err := q.SaveEvent(&updated); err != nil {
			return err
		}
		if updated.Status.Bookable() && !current.Status.Bookable() {
			if hook := s.announcement(q, &updated); hook != nil {
				hooks.Add(hook)
			}
		}

		out, err = q.FindEventWithCategory(id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.syncBookable(ctx, out)
	s.notifier.Fire(hooks)
	return out, nil
}

// Delete removes an event together with its ticket types, orders and tickets.
func (s *EventService) Delete(ctx context.Context, actor models.Actor, id string) error {
	q := s.store.Q(ctx)
	e, err := q.FindEvent(id)
	if err != nil {
		return err
	}
	if !authz.Can(actor, authz.Events, authz.Delete, e.OrganizerID) {
		return forbidden("you are not allowed to delete this event")
	}

	if err := q.DeleteEvent(id); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.SRem(ctx, monitoring.BookableEventsKey, id).Err(); err != nil {
			slog.Warn("Failed to update bookable events", "error", err, "event_id", id)
		}
	}

	slog.Info("Event deleted", "event_id", id, "actor_id", actor.ID)
	return nil
}

// Attendees lists the tickets of an event with their holders.
func (s *EventService) Attendees(ctx context.Context, actor models.Actor, id string, page PageQuery) (models.Page[models.Ticket], error) {
	q := s.store.Q(ctx)
	e, err := q.FindEvent(id)
	if err != nil {
		return models.Page[models.Ticket]{}, err
	}
	if !ownsEvent(&actor, e) {
		return models.Page[models.Ticket]{}, forbidden("only the organizer can list attendees")
	}

	page = page.normalized()
	return q.ListTicketsByEvent(id, "", page.Page, page.PerPage)
}

// SyncBookable rebuilds the redis set of events open for sale from the database.
func (s *EventService) SyncBookable(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}

	ids, err := s.store.Q(ctx).EventIDsByStatus(models.EventPublished, models.EventActive)
	if err != nil {
		return err
	}

	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, monitoring.BookableEventsKey)
		if len(members) > 0 {
			pipe.SAdd(ctx, monitoring.BookableEventsKey, members...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Synced bookable events to redis", "count", len(ids))
	return nil
}

func (s *EventService) syncBookable(ctx context.Context, e *models.Event) {
	if s.redis == nil {
		return
	}

	var err error
	if e.Status.Bookable() {
		err = s.redis.SAdd(ctx, monitoring.BookableEventsKey, e.ID).Err()
	} else {
		err = s.redis.SRem(ctx, monitoring.BookableEventsKey, e.ID).Err()
	}
	if err != nil {
		slog.Warn("Failed to update bookable events", "error", err, "event_id", e.ID)
	}
}

// announce tells the organizer that the event is open for sales.
func (s *EventService) announce(q *store.Queries, e *models.Event) {
	if hook := s.announcement(q, e); hook != nil {
		s.notifier.Fire(notify.Hooks{hook})
	}
}

// announcement builds the organizer's new-event notice, or nil when the
// organizer cannot be loaded.
func (s *EventService) announcement(q *store.Queries, e *models.Event) notify.Hook {
	organizer, err := q.FindUser(e.OrganizerID)
	if err != nil {
		slog.Error("Failed to load organizer for notification", "error", err, "event_id", e.ID)
		return nil
	}
	return s.notifier.Message(notify.KindEventAddition, recipient(organizer), notify.EventAdditionData{
		Name:       organizer.Name,
		EventTitle: e.Title,
		StartsAt:   e.StartDate,
		Location:   e.Location,
	})
}

func ownsEvent(actor *models.Actor, e *models.Event) bool {
	return actor != nil && (actor.IsAdmin() || actor.ID == e.OrganizerID)
}
