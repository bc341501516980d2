package services

import (
	"context"
	"log/slog"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"ticketing/internal/authz"
	"ticketing/internal/notify"
	"ticketing/internal/qr"
	"ticketing/internal/status"
	"ticketing/internal/store"
	"ticketing/models"
	"ticketing/monitoring"
	"ticketing/utils"
)

const maxTicketsPerOrder = 100

type OrderService struct {
	store    *store.Store
	signer   *qr.Signer
	notifier Notifier
}

func NewOrderService(st *store.Store, signer *qr.Signer, notifier Notifier) *OrderService {
	return &OrderService{store: st, signer: signer, notifier: notifier}
}

type PlaceOrderInput struct {
	EventID       string             `json:"event_id"`
	Tickets       []models.OrderLine `json:"tickets"`
	PaymentMethod string             `json:"payment_method"`
}

func (in PlaceOrderInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.EventID, validation.Required),
		validation.Field(&in.Tickets, validation.Required, validation.Each(validation.By(func(v any) error {
			line, _ := v.(models.OrderLine)
			return validation.ValidateStruct(&line,
				validation.Field(&line.TicketTypeID, validation.Required),
				validation.Field(&line.Quantity, validation.Required, validation.Min(1)),
			)
		}))),
		validation.Field(&in.PaymentMethod, validation.Required, validation.Length(1, 50)),
	)
}

// mergeLines folds repeated ticket types into one line each, ordered by ticket type id.
func mergeLines(lines []models.OrderLine) []models.OrderLine {
	byType := map[string]int{}
	for _, l := range lines {
		byType[l.TicketTypeID] += l.Quantity
	}

	merged := make([]models.OrderLine, 0, len(byType))
	for id, qty := range byType {
		merged = append(merged, models.OrderLine{TicketTypeID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].TicketTypeID < merged[j].TicketTypeID })
	return merged
}

type reservation struct {
	ticketType *models.TicketType
	quantity   int
}

// PlaceOrder sells the requested tickets to the caller. Either the order and
// every one of its tickets are stored, or nothing is.
func (s *OrderService) PlaceOrder(ctx context.Context, actor models.Actor, in PlaceOrderInput) (*models.Order, error) {
	if !authz.Can(actor, authz.Orders, authz.Create, "") {
		return nil, forbidden("you are not allowed to place orders")
	}
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	lines := mergeLines(in.Tickets)
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	if count > maxTicketsPerOrder {
		return nil, status.Errorf(status.ErrInvalidRequest, "tickets: at most %d tickets per order", maxTicketsPerOrder)
	}

	var (
		order *models.Order
		hooks notify.Hooks
	)
	err := s.store.Transactional(ctx, func(q *store.Queries) error {
		event, err := q.FindEvent(in.EventID)
		if err != nil {
			return err
		}
		if !event.Status.Bookable() {
			return status.Errorf(status.ErrUnavailable, "event is not open for ticket sales")
		}

		reserved := make([]reservation, 0, len(lines))
		total := decimal.Zero
		for _, l := range lines {
			// the row lock is held until commit, so the sold count below cannot go stale
			if err := q.LockTicketType(l.TicketTypeID); err != nil {
				return mustExist(err, "ticket type %s does not exist", l.TicketTypeID)
			}
			tt, err := q.FindTicketType(l.TicketTypeID)
			if err != nil {
				return err
			}

			if tt.EventID != event.ID {
				return status.Errorf(status.ErrInvalidRequest, "ticket type %s does not belong to this event", tt.ID)
			}
			if !tt.IsActive {
				return status.Errorf(status.ErrUnavailable, "ticket type '%s' is no longer available", tt.Name)
			}
			if tt.Available < l.Quantity {
				return &status.InsufficientInventoryError{TicketType: tt.Name, Requested: l.Quantity, Available: tt.Available}
			}

			total = total.Add(tt.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
			reserved = append(reserved, reservation{ticketType: tt, quantity: l.Quantity})
		}

		orderNumber, err := utils.GenerateOrderNumber()
		if err != nil {
			return err
		}
		o := &models.Order{
			UserID:        actor.ID,
			EventID:       event.ID,
			OrderNumber:   orderNumber,
			TotalAmount:   total,
			Status:        models.OrderCompleted,
			PaymentMethod: in.PaymentMethod,
		}
		if err := q.CreateOrder(o); err != nil {
			return err
		}

		for _, r := range reserved {
			for i := 0; i < r.quantity; i++ {
				if err := s.issueTicket(q, o, r.ticketType); err != nil {
					return err
				}
			}
		}

		if order, err = q.LoadOrder(o.ID); err != nil {
			return err
		}

		buyer, err := q.FindUser(actor.ID)
		if err != nil {
			return err
		}
		hooks.Add(s.notifier.Message(notify.KindTicketBooked, recipient(buyer), bookedData(buyer, order)))
		return nil
	})
	if err != nil {
		monitoring.TrackOrder("failed")
		return nil, err
	}

	monitoring.TrackOrder(string(models.OrderCompleted))
	monitoring.TrackTicketsIssued(len(order.Tickets))
	s.notifier.Fire(hooks)

	slog.Info("Order placed", "order_id", order.ID, "order_number", order.OrderNumber,
		"user_id", actor.ID, "event_id", order.EventID, "tickets", len(order.Tickets), "total", order.TotalAmount.StringFixed(2))
	return order, nil
}

func (s *OrderService) issueTicket(q *store.Queries, o *models.Order, tt *models.TicketType) error {
	number, err := utils.GenerateTicketNumber()
	if err != nil {
		return err
	}
	return q.CreateTicket(&models.Ticket{
		TicketNumber: number,
		QRCode:       s.signer.Sign(o.UserID, o.EventID, number),
		EventID:      o.EventID,
		UserID:       o.UserID,
		OrderID:      o.ID,
		TicketTypeID: tt.ID,
		PricePaid:    tt.Price,
		Status:       models.TicketActive,
	})
}

func bookedData(buyer *models.User, o *models.Order) notify.TicketBookedData {
	data := notify.TicketBookedData{
		Name:        buyer.Name,
		OrderNumber: o.OrderNumber,
		Total:       o.TotalAmount,
	}
	if o.Event != nil {
		data.EventTitle = o.Event.Title
		data.StartsAt = o.Event.StartDate
	}
	for _, t := range o.Tickets {
		data.Tickets = append(data.Tickets, t.TicketNumber)
	}
	return data
}

// Get returns an order the caller owns, with its tickets and event.
func (s *OrderService) Get(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	o, err := s.store.Q(ctx).LoadOrder(id)
	if err != nil {
		return nil, err
	}
	if !authz.Can(actor, authz.Orders, authz.Read, o.UserID) {
		return nil, forbidden("you are not allowed to view this order")
	}
	return o, nil
}

// ListMine returns the caller's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, actor models.Actor) ([]models.Order, error) {
	return s.store.Q(ctx).ListOrdersByUser(actor.ID)
}

// Cancel cancels an order and every ticket in it.
func (s *OrderService) Cancel(ctx context.Context, actor models.Actor, id string) (*models.Order, error) {
	var order *models.Order
	err := s.store.Transactional(ctx, func(q *store.Queries) error {
		o, err := q.FindOrder(id)
		if err != nil {
			return err
		}
		if !authz.Can(actor, authz.Orders, authz.Update, o.UserID) {
			return forbidden("you do not have permission to cancel this order")
		}

		ok, err := q.MarkOrderCancelled(id)
		if err != nil {
			return err
		}
		if !ok {
			return status.Errorf(status.ErrInvalidState, "this order has already been cancelled or refunded")
		}
		if _, err := q.CancelOrderTickets(id); err != nil {
			return err
		}

		order, err = q.LoadOrder(id)
		return err
	})
	if err != nil {
		return nil, err
	}

	monitoring.TrackOrder(string(models.OrderCancelled))
	slog.Info("Order cancelled", "order_id", id, "actor_id", actor.ID, "tickets", len(order.Tickets))
	return order, nil
}
