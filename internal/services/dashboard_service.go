package services

import (
	"context"

	"ticketing/internal/store"
	"ticketing/models"
)

type DashboardService struct {
	store *store.Store
}

func NewDashboardService(st *store.Store) *DashboardService {
	return &DashboardService{store: st}
}

// Dashboard summarizes the whole system for administrators.
type Dashboard struct {
	Users           int                         `json:"users"`
	UsersByRole     map[models.Role]int         `json:"users_by_role"`
	Events          int                         `json:"events"`
	BookableEvents  int                         `json:"bookable_events"`
	OrdersByStatus  map[models.OrderStatus]int  `json:"orders_by_status"`
	TicketsByStatus map[models.TicketStatus]int `json:"tickets_by_status"`
}

func (s *DashboardService) Summary(ctx context.Context, actor models.Actor) (*Dashboard, error) {
	if !actor.IsAdmin() {
		return nil, forbidden("admin access required")
	}

	d := &Dashboard{}
	q := s.store.Q(ctx)

	var err error
	if d.UsersByRole, err = q.CountUsersByRole(); err != nil {
		return nil, err
	}
	for _, n := range d.UsersByRole {
		d.Users += n
	}
	if d.Events, err = q.CountEvents(store.EventFilter{}); err != nil {
		return nil, err
	}
	bookable := store.EventFilter{Statuses: []models.EventStatus{models.EventPublished, models.EventActive}}
	if d.BookableEvents, err = q.CountEvents(bookable); err != nil {
		return nil, err
	}
	if d.OrdersByStatus, err = q.CountOrdersByStatus(); err != nil {
		return nil, err
	}
	if d.TicketsByStatus, err = q.CountTicketsByStatus(); err != nil {
		return nil, err
	}
	return d, nil
}
