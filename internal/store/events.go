package store

import (
	"github.com/pocketbase/dbx"

	"ticketing/models"
)

// EventFilter narrows event listings. Zero fields do not filter.
type EventFilter struct {
	CategoryID  string
	Search      string
	OrganizerID string
	Statuses    []models.EventStatus
}

func (f EventFilter) expression() dbx.Expression {
	var conds []dbx.Expression
	if f.CategoryID != "" {
		conds = append(conds, dbx.HashExp{"category_id": f.CategoryID})
	}
	if f.OrganizerID != "" {
		conds = append(conds, dbx.HashExp{"organizer_id": f.OrganizerID})
	}
	if f.Search != "" {
		conds = append(conds, dbx.Or(dbx.Like("title", f.Search), dbx.Like("description", f.Search)))
	}
	if len(f.Statuses) > 0 {
		values := make([]any, len(f.Statuses))
		for i, s := range f.Statuses {
			values[i] = string(s)
		}
		conds = append(conds, dbx.In("status", values...))
	}
	if len(conds) == 0 {
		return nil
	}
	return dbx.And(conds...)
}

func (q *Queries) CreateEvent(e *models.Event) error {
	if e.ID == "" {
		e.ID = newID()
	}
	e.StartDate = e.StartDate.UTC()
	e.EndDate = e.EndDate.UTC()
	e.CreatedAt = now()
	e.UpdatedAt = e.CreatedAt

	return q.insert("events", dbx.Params{
		"id":            e.ID,
		"title":         e.Title,
		"description":   e.Description,
		"start_date":    e.StartDate,
		"end_date":      e.EndDate,
		"location":      e.Location,
		"status":        string(e.Status),
		"max_attendees": e.MaxAttendees,
		"category_id":   e.CategoryID,
		"image_url":     e.ImageURL,
		"organizer_id":  e.OrganizerID,
		"created_at":    e.CreatedAt,
		"updated_at":    e.UpdatedAt,
	})
}

func (q *Queries) FindEvent(id string) (*models.Event, error) {
	e := &models.Event{}
	if err := q.selectFrom("events").Where(dbx.HashExp{"id": id}).One(e); err != nil {
		return nil, translate(err, "events")
	}
	return e, nil
}

// FindEventWithCategory loads the event and attaches its category.
// LockEvent takes the write lock on an event row for the rest of the transaction.
func (q *Queries) LockEvent(id string) error {
	n, err := q.update("events", dbx.Params{"updated_at": now()}, dbx.HashExp{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "events")
	}
	return nil
}

func (q *Queries) FindEventWithCategory(id string) (*models.Event, error) {
	e, err := q.FindEvent(id)
	if err != nil {
		return nil, err
	}
	if c, err := q.FindCategory(e.CategoryID); err == nil {
		e.Category = c
	}
	return e, nil
}

func (q *Queries) SaveEvent(e *models.Event) error {
	e.StartDate = e.StartDate.UTC()
	e.EndDate = e.EndDate.UTC()
	e.UpdatedAt = now()

	n, err := q.update("events", dbx.Params{
		"title":         e.Title,
		"description":   e.Description,
		"start_date":    e.StartDate,
		"end_date":      e.EndDate,
		"location":      e.Location,
		"status":        string(e.Status),
		"max_attendees": e.MaxAttendees,
		"category_id":   e.CategoryID,
		"image_url":     e.ImageURL,
		"updated_at":    e.UpdatedAt,
	}, dbx.HashExp{"id": e.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "events")
	}
	return nil
}

func (q *Queries) DeleteEvent(id string) error {
	n, err := q.delete("events", dbx.HashExp{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "events")
	}
	return nil
}

func (q *Queries) ListEvents(filter EventFilter, page, perPage int) (models.Page[models.Event], error) {
	where := filter.expression()

	total, err := q.count("events", where)
	if err != nil {
		return models.Page[models.Event]{}, err
	}

	off, limit := offset(page, perPage)
	query := q.selectFrom("events")
	if where != nil {
		query = query.Where(where)
	}

	events := []models.Event{}
	err = query.OrderBy("start_date ASC", "id ASC").Offset(off).Limit(limit).All(&events)
	if err != nil {
		return models.Page[models.Event]{}, translate(err, "events")
	}

	return models.NewPage(events, total, page, perPage), nil
}

// EventIDsByStatus returns the ids of every event in one of the statuses.
func (q *Queries) EventIDsByStatus(statuses ...models.EventStatus) ([]string, error) {
	rows := []struct {
		ID string `db:"id"`
	}{}
	err := q.selectFrom("events", "id").
		Where(EventFilter{Statuses: statuses}.expression()).
		All(&rows)
	if err != nil {
		return nil, translate(err, "events")
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

func (q *Queries) CountEvents(filter EventFilter) (int, error) {
	return q.count("events", filter.expression())
}
