package store

import (
	"github.com/pocketbase/dbx"

	"ticketing/models"
)

var notCancelled = dbx.Not(dbx.HashExp{"status": string(models.TicketCancelled)})

func (q *Queries) CreateTicketType(t *models.TicketType) error {
	if t.ID == "" {
		t.ID = newID()
	}
	t.CreatedAt = now()
	t.UpdatedAt = t.CreatedAt

	if err := q.insert("ticket_types", dbx.Params{
		"id":          t.ID,
		"event_id":    t.EventID,
		"name":        t.Name,
		"description": t.Description,
		"price":       t.Price,
		"quantity":    t.Quantity,
		"is_active":   t.IsActive,
		"created_at":  t.CreatedAt,
		"updated_at":  t.UpdatedAt,
	}); err != nil {
		return err
	}
	t.Available = t.Quantity
	return nil
}

// FindTicketType loads a ticket type together with its current availability.
func (q *Queries) FindTicketType(id string) (*models.TicketType, error) {
	t := &models.TicketType{}
	if err := q.selectFrom("ticket_types").Where(dbx.HashExp{"id": id}).One(t); err != nil {
		return nil, translate(err, "ticket_types")
	}

	sold, err := q.SoldCount(id)
	if err != nil {
		return nil, err
	}
	t.Available = models.AvailableQuantity(t.Quantity, sold)
	return t, nil
}

// SoldCount is the number of tickets of the type that are not cancelled.
func (q *Queries) SoldCount(ticketTypeID string) (int, error) {
	return q.count("tickets", dbx.And(dbx.HashExp{"ticket_type_id": ticketTypeID}, notCancelled))
}

// IssuedCount is the number of tickets of the type in any status.
func (q *Queries) IssuedCount(ticketTypeID string) (int, error) {
	return q.count("tickets", dbx.HashExp{"ticket_type_id": ticketTypeID})
}

// LockTicketType takes the write lock on a ticket type row for the rest of the
// transaction, so that concurrent purchases of the same type queue behind it.
func (q *Queries) LockTicketType(id string) error {
	n, err := q.update("ticket_types", dbx.Params{"updated_at": now()}, dbx.HashExp{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "ticket_types")
	}
	return nil
}

// ListTicketTypes returns the event's ticket types with availability filled in.
func (q *Queries) ListTicketTypes(eventID string, activeOnly bool) ([]models.TicketType, error) {
	where := dbx.HashExp{"event_id": eventID}
	if activeOnly {
		where["is_active"] = true
	}

	types := []models.TicketType{}
	if err := q.selectFrom("ticket_types").Where(where).OrderBy("price ASC", "name ASC").All(&types); err != nil {
		return nil, translate(err, "ticket_types")
	}

	sold, err := q.soldByType(eventID)
	if err != nil {
		return nil, err
	}
	for i := range types {
		types[i].Available = models.AvailableQuantity(types[i].Quantity, sold[types[i].ID])
	}
	return types, nil
}

func (q *Queries) soldByType(eventID string) (map[string]int, error) {
	rows := []struct {
		TicketTypeID string `db:"ticket_type_id"`
		Sold         int    `db:"sold"`
	}{}
	err := q.selectFrom("tickets", "ticket_type_id", "COUNT(*) AS sold").
		Where(dbx.And(dbx.HashExp{"event_id": eventID}, notCancelled)).
		GroupBy("ticket_type_id").
		All(&rows)
	if err != nil {
		return nil, translate(err, "tickets")
	}

	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.TicketTypeID] = r.Sold
	}
	return out, nil
}

func (q *Queries) ticketTypesByID(ids []string) (map[string]*models.TicketType, error) {
	out := map[string]*models.TicketType{}
	if len(ids) == 0 {
		return out, nil
	}

	types := []models.TicketType{}
	if err := q.selectFrom("ticket_types").Where(dbx.In("id", toAny(ids)...)).All(&types); err != nil {
		return nil, translate(err, "ticket_types")
	}
	for i := range types {
		out[types[i].ID] = &types[i]
	}
	return out, nil
}

func (q *Queries) SaveTicketType(t *models.TicketType) error {
	t.UpdatedAt = now()
	n, err := q.update("ticket_types", dbx.Params{
		"name":        t.Name,
		"description": t.Description,
		"price":       t.Price,
		"quantity":    t.Quantity,
		"is_active":   t.IsActive,
		"updated_at":  t.UpdatedAt,
	}, dbx.HashExp{"id": t.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "ticket_types")
	}
	return nil
}

func (q *Queries) DeleteTicketType(id string) error {
	n, err := q.delete("ticket_types", dbx.HashExp{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "ticket_types")
	}
	return nil
}
