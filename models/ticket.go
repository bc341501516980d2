package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

type TicketStatus string

const (
	TicketActive    TicketStatus = "active"
	TicketUsed      TicketStatus = "used"
	TicketCancelled TicketStatus = "cancelled"
)

func (s TicketStatus) Valid() bool {
	return s == TicketActive || s == TicketUsed || s == TicketCancelled
}

type TicketType struct {
	ID          string          `db:"id" json:"id"`
	EventID     string          `db:"event_id" json:"event_id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Quantity    int             `db:"quantity" json:"quantity"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`

	Available int `db:"-" json:"available_quantity"`
}

// AvailableQuantity is the number of units still for sale given the count of sold,
// non-cancelled tickets. It never goes below zero.
func AvailableQuantity(quantity, sold int) int {
	return max(0, quantity-sold)
}

// TicketTypePatch carries the optional attributes of a ticket type update.
type TicketTypePatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

func (p TicketTypePatch) Apply(t TicketType) TicketType {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Price != nil {
		t.Price = *p.Price
	}
	if p.Quantity != nil {
		t.Quantity = *p.Quantity
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	return t
}

type Order struct {
	ID            string          `db:"id" json:"id"`
	UserID        string          `db:"user_id" json:"user_id"`
	EventID       string          `db:"event_id" json:"event_id"`
	OrderNumber   string          `db:"order_number" json:"order_number"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	Status        OrderStatus     `db:"status" json:"status"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`

	Event   *Event   `db:"-" json:"event,omitempty"`
	Tickets []Ticket `db:"-" json:"tickets"`
}

// Cancellable reports whether the order may still move to cancelled.
func (o *Order) Cancellable() bool {
	return o.Status != OrderCancelled && o.Status != OrderRefunded
}

type Ticket struct {
	ID           string          `db:"id" json:"id"`
	TicketNumber string          `db:"ticket_number" json:"ticket_number"`
	QRCode       string          `db:"qr_code" json:"qr_code"`
	EventID      string          `db:"event_id" json:"event_id"`
	UserID       string          `db:"user_id" json:"user_id"`
	OrderID      string          `db:"order_id" json:"order_id"`
	TicketTypeID string          `db:"ticket_type_id" json:"ticket_type_id"`
	PricePaid    decimal.Decimal `db:"price_paid" json:"price_paid"`
	Status       TicketStatus    `db:"status" json:"status"`
	CheckInTime  *time.Time      `db:"check_in_time" json:"check_in_time,omitempty"`
	CheckedInBy  string          `db:"checked_in_by" json:"checked_in_by,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`

	TicketType *TicketType `db:"-" json:"ticket_type,omitempty"`
	User       *User       `db:"-" json:"user,omitempty"`
}

// OrderLine is one (ticket type, quantity) pair of an order request.
type OrderLine struct {
	TicketTypeID string `json:"ticket_type_id"`
	Quantity     int    `json:"quantity"`
}
