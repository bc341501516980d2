package services

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"

	"ticketing/internal/authz"
	"ticketing/internal/status"
	"ticketing/internal/store"
	"ticketing/models"
)

type TicketTypeService struct {
	store *store.Store
}

func NewTicketTypeService(st *store.Store) *TicketTypeService {
	return &TicketTypeService{store: st}
}

type TicketTypeInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	IsActive    *bool           `json:"is_active"`
}

var nonNegativePrice = validation.By(func(value any) error {
	if p, ok := value.(decimal.Decimal); ok && p.IsNegative() {
		return validation.NewError("validation_price_negative", "must not be negative")
	}
	return nil
})

func validateTicketType(t *models.TicketType, minQuantity int) error {
	return validation.ValidateStruct(t,
		validation.Field(&t.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&t.Price, nonNegativePrice),
		validation.Field(&t.Quantity, validation.When(minQuantity > 0, validation.Required), validation.Min(minQuantity)),
	)
}

// List returns the ticket types of an event with their availability. Callers
// other than the organizer and admins only see active types.
func (s *TicketTypeService) List(ctx context.Context, actor *models.Actor, eventID string) ([]models.TicketType, error) {
	q := s.store.Q(ctx)
	e, err := q.FindEvent(eventID)
	if err != nil {
		return nil, err
	}
	return q.ListTicketTypes(eventID, !ownsEvent(actor, e))
}

func (s *TicketTypeService) Create(ctx context.Context, actor models.Actor, eventID string, in TicketTypeInput) (*models.TicketType, error) {
	q := s.store.Q(ctx)
	e, err := q.FindEvent(eventID)
	if err != nil {
		return nil, err
	}
	if !authz.Can(actor, authz.TicketTypes, authz.Create, "") || !ownsEvent(&actor, e) {
		return nil, forbidden("only the organizer can add ticket types to this event")
	}

	t := &models.TicketType{
		EventID:     eventID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price.Round(2),
		Quantity:    in.Quantity,
		IsActive:    true,
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	if err := validateTicketType(t, 1); err != nil {
		return nil, invalid(err)
	}

	if err := q.CreateTicketType(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Update applies a partial update. The quantity may not drop below the number of tickets already sold.
func (s *TicketTypeService) Update(ctx context.Context, actor models.Actor, id string, patch models.TicketTypePatch) (*models.TicketType, error) {
	var out *models.TicketType
	err := s.store.Transactional(ctx, func(q *store.Queries) error {
		current, err := q.FindTicketType(id)
		if err != nil {
			return err
		}
		e, err := q.FindEvent(current.EventID)
		if err != nil {
			return err
		}
		if !authz.Can(actor, authz.TicketTypes, authz.Update, e.OrganizerID) {
			return forbidden("you are not allowed to update this ticket type")
		}

		updated := patch.Apply(*current)
		updated.Name = strings.TrimSpace(updated.Name)
		updated.Price = updated.Price.Round(2)
		if err := validateTicketType(&updated, 0); err != nil {
			return invalid(err)
		}

		if err := q.LockTicketType(id); err != nil {
			return err
		}
		sold, err := q.SoldCount(id)
		if err != nil {
			return err
		}
		if updated.Quantity < sold {
			return status.Errorf(status.ErrInvalidRequest, "quantity: cannot be lower than the %d tickets already sold", sold)
		}

		if err := q.SaveTicketType(&updated); err != nil {
			return err
		}
		updated.Available = models.AvailableQuantity(updated.Quantity, sold)
		out = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a ticket type, or deactivates it when tickets of the type were ever issued.
// It reports whether the type was deactivated rather than removed.
func (s *TicketTypeService) Delete(ctx context.Context, actor models.Actor, id string) (deactivated bool, err error) {
	err = s.store.Transactional(ctx, func(q *store.Queries) error {
		t, err := q.FindTicketType(id)
		if err != nil {
			return err
		}
		e, err := q.FindEvent(t.EventID)
		if err != nil {
			return err
		}
		if !authz.Can(actor, authz.TicketTypes, authz.Delete, e.OrganizerID) {
			return forbidden("you are not allowed to delete this ticket type")
		}

		issued, err := q.IssuedCount(id)
		if err != nil {
			return err
		}
		if issued == 0 {
			return q.DeleteTicketType(id)
		}

		t.IsActive = false
		deactivated = true
		return q.SaveTicketType(t)
	})
	return deactivated, err
}
