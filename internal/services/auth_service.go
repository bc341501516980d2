package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/crypto/bcrypt"

	"ticketing/internal/notify"
	"ticketing/internal/status"
	"ticketing/internal/store"
	"ticketing/models"
	"ticketing/security"
	"ticketing/utils"
)

const (
	otpLength = 6

	// resetThrottle is the minimum delay between two password reset codes.
	resetThrottle = time.Minute
)

type AuthService struct {
	store    *store.Store
	tokens   *security.TokenIssuer
	notifier Notifier
	otpTTL   time.Duration
	now      func() time.Time
}

func NewAuthService(st *store.Store, tokens *security.TokenIssuer, notifier Notifier, otpTTL time.Duration) *AuthService {
	if otpTTL <= 0 {
		otpTTL = 10 * time.Minute
	}
	return &AuthService{
		store:    st,
		tokens:   tokens,
		notifier: notifier,
		otpTTL:   otpTTL,
		now:      time.Now,
	}
}

type RegisterInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&in.Role, validation.Required, validation.In(models.RoleOrganizer, models.RoleAttendee)),
	)
}

type VerifyOTPInput struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (in VerifyOTPInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.OTP, validation.Required, validation.Length(otpLength, otpLength), is.Digit),
	)
}

type ResetPasswordInput struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

func (in ResetPasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Code, validation.Required, validation.Length(otpLength, otpLength), is.Digit),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 72)),
	)
}

// Session is a signed-in user and its bearer token.
type Session struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Register creates an unverified account and mails it a one-time code.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
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
	if err := s.assignOTP(u); err != nil {
		return nil, err
	}

	if err := s.store.Q(ctx).CreateUser(u); err != nil {
		if errors.Is(err, status.ErrConflict) {
			return nil, status.Errorf(status.ErrConflict, "email already exists")
		}
		return nil, err
	}
	s.notifier.Fire(notify.Hooks{s.otpMessage(u)})

	slog.Info("User registered", "user_id", u.ID, "role", u.Role)
	return s.session(u)
}

// Login checks the credentials. With adminOnly set, non-admin accounts are refused.
func (s *AuthService) Login(ctx context.Context, email, password string, adminOnly bool) (*Session, error) {
	u, err := s.store.Q(ctx).FindUserByEmail(email)
	if errors.Is(err, status.ErrNotFound) {
		return nil, status.Errorf(status.ErrUnauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, status.Errorf(status.ErrUnauthorized, "invalid credentials")
	}
	if adminOnly && u.Role != models.RoleAdmin {
		return nil, forbidden("admin access required")
	}

	return s.session(u)
}

// VerifyOTP marks the account verified when the code matches and has not expired.
// An expired code is refused whatever its value.
func (s *AuthService) VerifyOTP(ctx context.Context, in VerifyOTPInput) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	q := s.store.Q(ctx)
	u, err := q.FindUserByEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if u.IsVerified {
		return nil, status.Errorf(status.ErrInvalidState, "user is already verified")
	}

	now := s.now().UTC()
	if u.OTP == "" || u.OTPExpired(now) {
		return nil, status.Errorf(status.ErrInvalidRequest, "otp has expired")
	}
	if subtle.ConstantTimeCompare([]byte(u.OTP), []byte(in.OTP)) != 1 {
		if err := q.IncrementLoginAttempts(u.ID); err != nil {
			slog.Error("Failed to record otp attempt", "error", err, "user_id", u.ID)
		}
		return nil, status.Errorf(status.ErrInvalidRequest, "invalid otp")
	}

	u.IsVerified = true
	u.VerifiedAt = &now
	u.OTP = ""
	u.OTPExpiresAt = nil
	u.LoginAttempts = 0
	if err := q.SaveUser(u); err != nil {
		return nil, err
	}

	slog.Info("User verified", "user_id", u.ID)
	return u, nil
}

// ResendOTP issues a fresh code and resets the attempt counter.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	q := s.store.Q(ctx)
	u, err := q.FindUserByEmail(email)
	if err != nil {
		return err
	}
	if u.IsVerified {
		return status.Errorf(status.ErrInvalidState, "user is already verified")
	}

	if err := s.assignOTP(u); err != nil {
		return err
	}
	u.LoginAttempts = 0
	if err := q.SaveUser(u); err != nil {
		return err
	}

	s.notifier.Fire(notify.Hooks{s.otpMessage(u)})
	return nil
}

// Logout revokes every token issued to the caller so far.
func (s *AuthService) Logout(ctx context.Context, actor models.Actor) error {
	if err := s.store.Q(ctx).RevokeTokens(actor.ID, s.now().UTC()); err != nil {
		return err
	}
	slog.Info("User logged out", "user_id", actor.ID)
	return nil
}

// RequestPasswordReset mails a time-boxed reset code to the account owner.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return status.Errorf(status.ErrInvalidRequest, "email: %v", err)
	}

	q := s.store.Q(ctx)
	u, err := q.FindUserByEmail(email)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if u.ResetCode != "" && !u.ResetExpired(now) && u.ResetExpiresAt.Sub(now) > s.otpTTL-resetThrottle {
		return status.Errorf(status.ErrInvalidRequest, "please wait before requesting another reset code")
	}

	code, err := utils.GenerateOTP(otpLength)
	if err != nil {
		return err
	}
	expires := now.Add(s.otpTTL)
	u.ResetCode = code
	u.ResetExpiresAt = &expires
	if err := q.SaveUser(u); err != nil {
		return err
	}

	s.notifier.Fire(notify.Hooks{s.notifier.Message(notify.KindPasswordReset, recipient(u), notify.PasswordResetData{
		Name:      u.Name,
		Code:      code,
		ExpiresIn: s.otpTTL,
	})})

	slog.Info("Password reset requested", "user_id", u.ID)
	return nil
}

// ResetPassword sets a new password when the reset code matches and has not
// expired. Tokens issued before the reset stop working.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := in.Validate(); err != nil {
		return invalid(err)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return err
	}

	return s.store.Transactional(ctx, func(q *store.Queries) error {
		u, err := q.FindUserByEmail(in.Email)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if u.ResetCode == "" || u.ResetExpired(now) {
			return status.Errorf(status.ErrInvalidRequest, "reset code has expired")
		}
		if subtle.ConstantTimeCompare([]byte(u.ResetCode), []byte(in.Code)) != 1 {
			return status.Errorf(status.ErrInvalidRequest, "invalid reset code")
		}

		u.PasswordHash = hash
		u.ResetCode = ""
		u.ResetExpiresAt = nil
		u.TokensValidAfter = &now
		if err := q.SaveUser(u); err != nil {
			return err
		}

		slog.Info("Password reset", "user_id", u.ID)
		return nil
	})
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, actor models.Actor) (*models.User, error) {
	return s.store.Q(ctx).FindUser(actor.ID)
}

// FindUser resolves token subjects for the authentication middleware.
func (s *AuthService) FindUser(ctx context.Context, id string) (*models.User, error) {
	return s.store.Q(ctx).FindUser(id)
}

func (s *AuthService) assignOTP(u *models.User) error {
	code, err := utils.GenerateOTP(otpLength)
	if err != nil {
		return err
	}
	expires := s.now().UTC().Add(s.otpTTL)
	u.OTP = code
	u.OTPExpiresAt = &expires
	return nil
}

func (s *AuthService) otpMessage(u *models.User) notify.Hook {
	return s.notifier.Message(notify.KindOTP, recipient(u), notify.OTPData{
		Name:      u.Name,
		Code:      u.OTP,
		ExpiresIn: s.otpTTL,
	})
}

func (s *AuthService) session(u *models.User) (*Session, error) {
	token, expires, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token, ExpiresAt: expires}, nil
}
