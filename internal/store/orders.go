package store

import (
	"github.com/pocketbase/dbx"

	"ticketing/models"
)

func (q *Queries) CreateOrder(o *models.Order) error {
	if o.ID == "" {
		o.ID = newID()
	}
	o.CreatedAt = now()
	o.UpdatedAt = o.CreatedAt

	return q.insert("orders", dbx.Params{
		"id":             o.ID,
		"user_id":        o.UserID,
		"event_id":       o.EventID,
		"order_number":   o.OrderNumber,
		"total_amount":   o.TotalAmount,
		"status":         string(o.Status),
		"payment_method": o.PaymentMethod,
		"created_at":     o.CreatedAt,
		"updated_at":     o.UpdatedAt,
	})
}

func (q *Queries) FindOrder(id string) (*models.Order, error) {
	o := &models.Order{}
	if err := q.selectFrom("orders").Where(dbx.HashExp{"id": id}).One(o); err != nil {
		return nil, translate(err, "orders")
	}
	return o, nil
}

// LoadOrder loads an order with its event and its tickets, each ticket carrying its type.
func (q *Queries) LoadOrder(id string) (*models.Order, error) {
	o, err := q.FindOrder(id)
	if err != nil {
		return nil, err
	}
	if err := q.attachOrderRelations(o); err != nil {
		return nil, err
	}
	return o, nil
}

func (q *Queries) attachOrderRelations(o *models.Order) error {
	event, err := q.FindEvent(o.EventID)
	if err != nil {
		return err
	}
	o.Event = event

	tickets, err := q.ListTicketsByOrder(o.ID)
	if err != nil {
		return err
	}
	o.Tickets = tickets
	return nil
}

// ListOrdersByUser returns the user's orders, newest first, with relations loaded.
func (q *Queries) ListOrdersByUser(userID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := q.selectFrom("orders").
		Where(dbx.HashExp{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		All(&orders)
	if err != nil {
		return nil, translate(err, "orders")
	}

	for i := range orders {
		if err := q.attachOrderRelations(&orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (q *Queries) SetOrderStatus(id string, s models.OrderStatus) error {
	n, err := q.update("orders", dbx.Params{
		"status":     string(s),
		"updated_at": now(),
	}, dbx.HashExp{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "orders")
	}
	return nil
}

// MarkOrderCancelled cancels an order that is neither cancelled nor refunded.
// It reports false, changing nothing, when the order was already in one of those states.
func (q *Queries) MarkOrderCancelled(id string) (bool, error) {
	n, err := q.update("orders", dbx.Params{
		"status":     string(models.OrderCancelled),
		"updated_at": now(),
	}, dbx.And(
		dbx.HashExp{"id": id},
		dbx.NotIn("status", string(models.OrderCancelled), string(models.OrderRefunded)),
	))
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (q *Queries) CountOrdersByStatus() (map[models.OrderStatus]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Total  int    `db:"total"`
	}{}
	err := q.selectFrom("orders", "status", "COUNT(*) AS total").GroupBy("status").All(&rows)
	if err != nil {
		return nil, translate(err, "orders")
	}

	out := make(map[models.OrderStatus]int, len(rows))
	for _, r := range rows {
		out[models.OrderStatus(r.Status)] = r.Total
	}
	return out, nil
}
