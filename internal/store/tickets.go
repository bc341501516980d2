package store

import (
	"time"

	"github.com/pocketbase/dbx"

	"ticketing/models"
)

func (q *Queries) CreateTicket(t *models.Ticket) error {
	if t.ID == "" {
		t.ID = newID()
	}
	t.CreatedAt = now()
	t.UpdatedAt = t.CreatedAt

	return q.insert("tickets", dbx.Params{
		"id":             t.ID,
		"ticket_number":  t.TicketNumber,
		"qr_code":        t.QRCode,
		"event_id":       t.EventID,
		"user_id":        t.UserID,
		"order_id":       t.OrderID,
		"ticket_type_id": t.TicketTypeID,
		"price_paid":     t.PricePaid,
		"status":         string(t.Status),
		"check_in_time":  t.CheckInTime,
		"checked_in_by":  t.CheckedInBy,
		"created_at":     t.CreatedAt,
		"updated_at":     t.UpdatedAt,
	})
}

func (q *Queries) FindTicket(id string) (*models.Ticket, error) {
	t := &models.Ticket{}
	if err := q.selectFrom("tickets").Where(dbx.HashExp{"id": id}).One(t); err != nil {
		return nil, translate(err, "tickets")
	}
	return t, nil
}

func (q *Queries) FindTicketByQRCode(code string) (*models.Ticket, error) {
	t := &models.Ticket{}
	if err := q.selectFrom("tickets").Where(dbx.HashExp{"qr_code": code}).One(t); err != nil {
		return nil, translate(err, "tickets")
	}
	return t, nil
}

// FindActiveTicket returns the user's first active ticket for an event.
func (q *Queries) FindActiveTicket(eventID, userID string) (*models.Ticket, error) {
	t := &models.Ticket{}
	err := q.selectFrom("tickets").
		Where(dbx.HashExp{
			"event_id": eventID,
			"user_id":  userID,
			"status":   string(models.TicketActive),
		}).
		OrderBy("created_at ASC").
		One(t)
	if err != nil {
		return nil, translate(err, "tickets")
	}
	return t, nil
}

// ListTicketsByOrder returns the order's tickets with their ticket types attached.
func (q *Queries) ListTicketsByOrder(orderID string) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	err := q.selectFrom("tickets").
		Where(dbx.HashExp{"order_id": orderID}).
		OrderBy("ticket_number ASC").
		All(&tickets)
	if err != nil {
		return nil, translate(err, "tickets")
	}

	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.TicketTypeID)
	}
	types, err := q.ticketTypesByID(ids)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		tickets[i].TicketType = types[tickets[i].TicketTypeID]
	}
	return tickets, nil
}

// ListTicketsByEvent pages through an event's tickets with their holders attached.
// A non-empty userID restricts the listing to that holder.
func (q *Queries) ListTicketsByEvent(eventID, userID string, page, perPage int) (models.Page[models.Ticket], error) {
	where := dbx.HashExp{"event_id": eventID}
	if userID != "" {
		where["user_id"] = userID
	}

	total, err := q.count("tickets", where)
	if err != nil {
		return models.Page[models.Ticket]{}, err
	}

	off, limit := offset(page, perPage)
	tickets := []models.Ticket{}
	err = q.selectFrom("tickets").
		Where(where).
		OrderBy("created_at ASC", "ticket_number ASC").
		Offset(off).
		Limit(limit).
		All(&tickets)
	if err != nil {
		return models.Page[models.Ticket]{}, translate(err, "tickets")
	}

	ids := make([]string, 0, len(tickets))
	for _, t := range tickets {
		ids = append(ids, t.UserID)
	}
	users, err := q.usersByID(ids)
	if err != nil {
		return models.Page[models.Ticket]{}, err
	}
	for i := range tickets {
		tickets[i].User = users[tickets[i].UserID]
	}

	return models.NewPage(tickets, total, page, perPage), nil
}

// HasTicketForEvent reports whether the user holds any ticket for the event.
func (q *Queries) HasTicketForEvent(eventID, userID string) (bool, error) {
	n, err := q.count("tickets", dbx.HashExp{"event_id": eventID, "user_id": userID})
	return n > 0, err
}

func (q *Queries) SetTicketStatus(id string, s models.TicketStatus) error {
	n, err := q.update("tickets", dbx.Params{
		"status":     string(s),
		"updated_at": now(),
	}, dbx.HashExp{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "tickets")
	}
	return nil
}

// CancelOrderTickets flips every ticket of the order to cancelled.
func (q *Queries) CancelOrderTickets(orderID string) (int64, error) {
	return q.update("tickets", dbx.Params{
		"status":     string(models.TicketCancelled),
		"updated_at": now(),
	}, dbx.HashExp{"order_id": orderID})
}

// MarkTicketUsed moves an active ticket to used. It reports false when the
// ticket was no longer active, leaving the row untouched.
func (q *Queries) MarkTicketUsed(id, actorID string, at time.Time) (bool, error) {
	n, err := q.update("tickets", dbx.Params{
		"status":        string(models.TicketUsed),
		"check_in_time": at.UTC(),
		"checked_in_by": actorID,
		"updated_at":    now(),
	}, dbx.HashExp{"id": id, "status": string(models.TicketActive)})
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (q *Queries) CountTicketsByStatus() (map[models.TicketStatus]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Total  int    `db:"total"`
	}{}
	err := q.selectFrom("tickets", "status", "COUNT(*) AS total").GroupBy("status").All(&rows)
	if err != nil {
		return nil, translate(err, "tickets")
	}

	out := make(map[models.TicketStatus]int, len(rows))
	for _, r := range rows {
		out[models.TicketStatus(r.Status)] = r.Total
	}
	return out, nil
}
