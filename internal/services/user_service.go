package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"ticketing/internal/authz"
	"ticketing/internal/notify"
	"ticketing/internal/status"
	"ticketing/internal/store"
	"ticketing/models"
	"ticketing/utils"
)

type UserService struct {
	store    *store.Store
	notifier Notifier
	otpTTL   time.Duration
	now      func() time.Time
}

func NewUserService(st *store.Store, notifier Notifier, otpTTL time.Duration) *UserService {
	if otpTTL <= 0 {
		otpTTL = 10 * time.Minute
	}
	return &UserService{store: st, notifier: notifier, otpTTL: otpTTL, now: time.Now}
}

type CreateUserInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
	// Verified skips the one-time code; used for accounts made from the command line.
	Verified bool `json:"-"`
}

func (in CreateUserInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&in.Role, validation.Required, validation.In(models.RoleAdmin, models.RoleOrganizer, models.RoleAttendee)),
	)
}

func validatePatch(p models.UserPatch) error {
	return validation.Errors{
		"name":     validation.Validate(p.Name, validation.NilOrNotEmpty, validation.Length(1, 255)),
		"email":    validation.Validate(p.Email, validation.NilOrNotEmpty, is.EmailFormat),
		"password": validation.Validate(p.Password, validation.NilOrNotEmpty, validation.Length(8, 72)),
		"role": validation.Validate(p.Role, validation.By(func(any) error {
			if p.Role != nil && !p.Role.Valid() {
				return validation.NewError("validation_role", "must be a valid role")
			}
			return nil
		})),
	}.Filter()
}

// Create adds an account with an explicit role. Unverified accounts get a one-time code.
func (s *UserService) Create(ctx context.Context, actor models.Actor, in CreateUserInput) (*models.User, error) {
	if !authz.Can(actor, authz.Users, authz.Create, "") {
		return nil, forbidden("you are not allowed to create users")
	}
	return s.create(ctx, in)
}

// CreateAdmin makes a verified administrator account without an acting user.
func (s *UserService) CreateAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	return s.create(ctx, CreateUserInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
		Verified: true,
	})
}

func (s *UserService) create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if in.Verified {
		now := s.now().UTC()
		u.IsVerified = true
		u.VerifiedAt = &now
	} else {
		code, err := utils.GenerateOTP(otpLength)
		if err != nil {
			return nil, err
		}
		expires := s.now().UTC().Add(s.otpTTL)
		u.OTP = code
		u.OTPExpiresAt = &expires
	}

	if err := s.store.Q(ctx).CreateUser(u); err != nil {
		if errors.Is(err, status.ErrConflict) {
			return nil, status.Errorf(status.ErrConflict, "email already exists")
		}
		return nil, err
	}

	if !u.IsVerified {
		s.notifier.Fire(notify.Hooks{s.notifier.Message(notify.KindOTP, recipient(u), notify.OTPData{
			Name:      u.Name,
			Code:      u.OTP,
			ExpiresIn: s.otpTTL,
		})})
	}

	slog.Info("User created", "user_id", u.ID, "role", u.Role)
	return u, nil
}

func (s *UserService) Get(ctx context.Context, actor models.Actor, id string) (*models.User, error) {
	if !authz.Can(actor, authz.Users, authz.Read, id) {
		return nil, forbidden("you are not allowed to view this user")
	}
	return s.store.Q(ctx).FindUser(id)
}

func (s *UserService) List(ctx context.Context, actor models.Actor, page PageQuery) (models.Page[models.User], error) {
	if !authz.Can(actor, authz.Users, authz.Read, "") {
		return models.Page[models.User]{}, forbidden("you are not allowed to list users")
	}
	page = page.normalized()
	return s.store.Q(ctx).ListUsers(page.Page, page.PerPage)
}

// Update applies a partial update. Only admins may change a role.
func (s *UserService) Update(ctx context.Context, actor models.Actor, id string, patch models.UserPatch) (*models.User, error) {
	if !authz.Can(actor, authz.Users, authz.Update, id) {
		return nil, forbidden("you are not allowed to update this user")
	}
	if patch.Empty() {
		return nil, status.Errorf(status.ErrInvalidRequest, "nothing to update")
	}
	if patch.Role != nil && !actor.IsAdmin() {
		return nil, forbidden("only admins can change roles")
	}
	if err := validatePatch(patch); err != nil {
		return nil, invalid(err)
	}

	q := s.store.Q(ctx)
	u, err := q.FindUser(id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		u.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Password != nil {
		if u.PasswordHash, err = hashPassword(*patch.Password); err != nil {
			return nil, err
		}
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}

	if err := q.SaveUser(u); err != nil {
		if errors.Is(err, status.ErrConflict) {
			return nil, status.Errorf(status.ErrConflict, "email already exists")
		}
		return nil, err
	}
	return u, nil
}

// Delete removes an account together with its events, orders and tickets.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if !authz.Can(actor, authz.Users, authz.Delete, id) {
		return forbidden("you are not allowed to delete users")
	}
	if actor.ID == id {
		return status.Errorf(status.ErrInvalidState, "you cannot delete your own account")
	}
	if err := s.store.Q(ctx).DeleteUser(id); err != nil {
		return err
	}

	slog.Info("User deleted", "user_id", id, "actor_id", actor.ID)
	return nil
}
