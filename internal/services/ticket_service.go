package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ticketing/internal/authz"
	"ticketing/internal/notify"
	"ticketing/internal/qr"
	"ticketing/internal/status"
	"ticketing/internal/store"
	"ticketing/models"
	"ticketing/monitoring"
)

type TicketService struct {
	store    *store.Store
	signer   *qr.Signer
	notifier Notifier
	now      func() time.Time
}

func NewTicketService(st *store.Store, signer *qr.Signer, notifier Notifier) *TicketService {
	return &TicketService{store: st, signer: signer, notifier: notifier, now: time.Now}
}

// CheckInResult is a successful check-in.
type CheckInResult struct {
	EventTitle string         `json:"event"`
	Ticket     *models.Ticket `json:"ticket"`
}

// Verification is the outcome of checking a presented code against a ticket.
type Verification struct {
	Valid  bool                `json:"valid"`
	Status models.TicketStatus `json:"status"`
	Ticket *models.Ticket      `json:"ticket"`
}

// ListForEvent lists an event's tickets. The organizer and roles allowed to read
// every ticket see all of them; everybody else sees their own.
func (s *TicketService) ListForEvent(ctx context.Context, actor models.Actor, eventID string, page PageQuery) (models.Page[models.Ticket], error) {
	q := s.store.Q(ctx)
	e, err := q.FindEvent(eventID)
	if err != nil {
		return models.Page[models.Ticket]{}, err
	}

	holder := actor.ID
	if ownsEvent(&actor, e) || authz.Allowed(actor.Role, authz.Tickets, authz.Read) {
		holder = ""
	}

	page = page.normalized()
	return q.ListTicketsByEvent(eventID, holder, page.Page, page.PerPage)
}

// Get returns a ticket visible to the caller, with its type and holder.
func (s *TicketService) Get(ctx context.Context, actor models.Actor, id string) (*models.Ticket, *models.Event, error) {
	q := s.store.Q(ctx)
	t, err := q.FindTicket(id)
	if err != nil {
		return nil, nil, err
	}
	e, err := q.FindEvent(t.EventID)
	if err != nil {
		return nil, nil, err
	}
	if !s.canView(actor, t, e) {
		return nil, nil, forbidden("you are not allowed to view this ticket")
	}

	if t.TicketType, err = q.FindTicketType(t.TicketTypeID); err != nil {
		return nil, nil, err
	}
	if t.User, err = q.FindUser(t.UserID); err != nil {
		return nil, nil, err
	}
	return t, e, nil
}

func (s *TicketService) canView(actor models.Actor, t *models.Ticket, e *models.Event) bool {
	return authz.Can(actor, authz.Tickets, authz.Read, t.UserID) || ownsEvent(&actor, e)
}

// UpdateStatus lets the organizer cancel an active ticket. Used tickets are final
// and cancelled tickets cannot be reactivated.
func (s *TicketService) UpdateStatus(ctx context.Context, actor models.Actor, id string, to models.TicketStatus) (*models.Ticket, error) {
	if to != models.TicketActive && to != models.TicketCancelled {
		return nil, status.Errorf(status.ErrInvalidRequest, "status: must be one of active, cancelled")
	}

	var out *models.Ticket
	err := s.store.Transactional(ctx, func(q *store.Queries) error {
		t, err := q.FindTicket(id)
		if err != nil {
			return err
		}
		e, err := q.FindEvent(t.EventID)
		if err != nil {
			return err
		}
		if !authz.Can(actor, authz.Tickets, authz.Update, e.OrganizerID) {
			return forbidden("you are not allowed to update this ticket")
		}

		switch {
		case t.Status == to:
		case t.Status == models.TicketUsed:
			return status.Errorf(status.ErrInvalidState, "ticket has already been used")
		case t.Status == models.TicketCancelled:
			return status.Errorf(status.ErrInvalidState, "cancelled tickets cannot be reactivated")
		default:
			if err := q.SetTicketStatus(id, to); err != nil {
				return err
			}
		}

		out, err = q.FindTicket(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelMine cancels the caller's active ticket for an event.
func (s *TicketService) CancelMine(ctx context.Context, actor models.Actor, eventID string) (*models.Ticket, error) {
	var (
		ticket *models.Ticket
		hooks  notify.Hooks
	)
	err := s.store.Transactional(ctx, func(q *store.Queries) error {
		e, err := q.FindEvent(eventID)
		if err != nil {
			return err
		}
		t, err := q.FindActiveTicket(eventID, actor.ID)
		if err != nil {
			return status.Errorf(status.ErrNotFound, "no active ticket found for this event")
		}
		if !authz.Can(actor, authz.Tickets, authz.Delete, t.UserID) {
			return forbidden("you are not allowed to cancel this ticket")
		}

		if err := q.SetTicketStatus(t.ID, models.TicketCancelled); err != nil {
			return err
		}
		t.Status = models.TicketCancelled
		ticket = t

		holder, err := q.FindUser(actor.ID)
		if err != nil {
			return err
		}
		hooks.Add(s.notifier.Message(notify.KindEventUnattendance, recipient(holder), notify.EventUnattendanceData{
			Name:         holder.Name,
			EventTitle:   e.Title,
			TicketNumber: t.TicketNumber,
		}))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Fire(hooks)
	return ticket, nil
}

// CheckIn admits the holder of the ticket carrying code. A ticket is admitted once;
// later attempts report the time of the first check-in.
func (s *TicketService) CheckIn(ctx context.Context, actor models.Actor, code string) (*CheckInResult, error) {
	if code == "" {
		return nil, status.Errorf(status.ErrInvalidRequest, "qr_code: cannot be blank")
	}

	var result *CheckInResult
	err := s.store.Transactional(ctx, func(q *store.Queries) error {
		t, err := q.FindTicketByQRCode(code)
		if err != nil {
			return mustNotFound(err, "invalid ticket")
		}
		e, err := q.FindEvent(t.EventID)
		if err != nil {
			return err
		}
		if !ownsEvent(&actor, e) {
			return forbidden("only the event organizer can check in tickets for this event")
		}

		switch t.Status {
		case models.TicketUsed:
			return alreadyUsed(t)
		case models.TicketActive:
		default:
			return status.Errorf(status.ErrInvalidState, "ticket is %s", t.Status)
		}

		ok, err := q.MarkTicketUsed(t.ID, actor.ID, s.now())
		if err != nil {
			return err
		}
		if t, err = q.FindTicket(t.ID); err != nil {
			return err
		}
		if !ok {
			if t.Status == models.TicketUsed {
				return alreadyUsed(t)
			}
			return status.Errorf(status.ErrInvalidState, "ticket is %s", t.Status)
		}

		result = &CheckInResult{EventTitle: e.Title, Ticket: t}
		return nil
	})
	if err != nil {
		monitoring.TrackCheckIn(checkInOutcome(err))
		return nil, err
	}

	monitoring.TrackCheckIn("admitted")
	slog.Info("Ticket checked in", "ticket_id", result.Ticket.ID, "event_id", result.Ticket.EventID, "actor_id", actor.ID)
	return result, nil
}

func alreadyUsed(t *models.Ticket) error {
	err := &status.AlreadyUsedError{}
	if t.CheckInTime != nil {
		err.CheckInTime = *t.CheckInTime
	}
	return err
}

func mustNotFound(err error, msg string) error {
	if errors.Is(err, status.ErrNotFound) {
		return status.Errorf(status.ErrNotFound, "%s", msg)
	}
	return err
}

func checkInOutcome(err error) string {
	switch {
	case errors.Is(err, status.ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, status.ErrNotFound):
		return "unknown"
	case errors.Is(err, status.ErrForbidden):
		return "forbidden"
	case status.IsDomain(err):
		return "rejected"
	}
	return "error"
}

// Verify checks a presented code against a ticket without changing it.
func (s *TicketService) Verify(ctx context.Context, actor models.Actor, id, code string) (*Verification, error) {
	q := s.store.Q(ctx)
	t, err := q.FindTicket(id)
	if err != nil {
		return nil, err
	}
	e, err := q.FindEvent(t.EventID)
	if err != nil {
		return nil, err
	}
	if !ownsEvent(&actor, e) {
		return nil, forbidden("only the event organizer can verify tickets for this event")
	}

	valid := qr.Equal(code, t.QRCode) && s.signer.Verify(code, t.UserID, t.EventID, t.TicketNumber)
	return &Verification{
		Valid:  valid && t.Status == models.TicketActive,
		Status: t.Status,
		Ticket: t,
	}, nil
}

// QRCode renders the ticket's code as a PNG image.
func (s *TicketService) QRCode(ctx context.Context, actor models.Actor, id string) ([]byte, error) {
	t, _, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return qr.PNG(t.QRCode, 320)
}

// PDF renders a printable ticket and its file name.
func (s *TicketService) PDF(ctx context.Context, actor models.Actor, id string) ([]byte, string, error) {
	t, e, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}

	sheet := qr.TicketSheet{
		EventTitle:   e.Title,
		Location:     e.Location,
		StartsAt:     e.StartDate,
		TicketNumber: t.TicketNumber,
		Code:         t.QRCode,
	}
	if t.User != nil {
		sheet.HolderName = t.User.Name
	}
	if t.TicketType != nil {
		sheet.TicketType = t.TicketType.Name
	}

	out, err := qr.TicketPDF(sheet)
	if err != nil {
		return nil, "", err
	}
	return out, fmt.Sprintf("ticket-%s.pdf", t.TicketNumber), nil
}
