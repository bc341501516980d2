package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ticketing/internal/notify"
	"ticketing/internal/status"
	"ticketing/models"
	"ticketing/security"
)

func newAuthService(t *testing.T) (*AuthService, *MockNotifier) {
	t.Helper()
	tokens, err := security.NewTokenIssuer("jwt-secret", time.Hour)
	require.NoError(t, err)
	n := &MockNotifier{}
	t.Cleanup(func() { n.AssertExpectations(t) })
	return NewAuthService(newTestStore(t), tokens, n, 10*time.Minute), n
}

func register(t *testing.T, svc *AuthService, n *MockNotifier) *Session {
	t.Helper()
	n.expect(notify.KindOTP)
	sess, err := svc.Register(context.Background(), RegisterInput{
		Name: "Fan", Email: "Fan@Example.com", Password: "secret123", Role: models.RoleAttendee,
	})
	require.NoError(t, err)
	return sess
}

func TestRegister(t *testing.T) {
	svc, n := newAuthService(t)
	var sent notify.OTPData
	n.On("Deliver", notify.KindOTP, mock.MatchedBy(func(to notify.Recipient) bool {
		return to.Email == "fan@example.com"
	}), mock.Anything).Return(nil).Once().Run(func(args mock.Arguments) {
		sent = args.Get(2).(notify.OTPData)
	})
	sess, err := svc.Register(context.Background(), RegisterInput{
		Name: "Fan", Email: "Fan@Example.com", Password: "secret123", Role: models.RoleAttendee,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "fan@example.com", sess.User.Email)
	assert.False(t, sess.User.IsVerified)
	assert.Regexp(t, `^\d{6}$`, sess.User.OTP)
	assert.Equal(t, sess.User.OTP, sent.Code)

	_, err = svc.Register(context.Background(), RegisterInput{
		Name: "Again", Email: "fan@example.com", Password: "secret123", Role: models.RoleOrganizer,
	})
	require.ErrorIs(t, err, status.ErrConflict)
	assert.Equal(t, "email already exists", err.Error())
}

func TestRegister_Validation(t *testing.T) {
	svc, n := newAuthService(t)
	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"bad email", RegisterInput{Name: "A", Email: "nope", Password: "secret123", Role: models.RoleAttendee}},
		{"short password", RegisterInput{Name: "A", Email: "a@example.com", Password: "short", Role: models.RoleAttendee}},
		{"admin role", RegisterInput{Name: "A", Email: "a@example.com", Password: "secret123", Role: models.RoleAdmin}},
		{"missing name", RegisterInput{Email: "a@example.com", Password: "secret123", Role: models.RoleAttendee}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			assert.ErrorIs(t, err, status.ErrInvalidRequest)
		})
	}
	n.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin(t *testing.T) {
	svc, n := newAuthService(t)
	register(t, svc, n)
	ctx := context.Background()

	sess, err := svc.Login(ctx, "fan@example.com", "secret123", false)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)

	_, err = svc.Login(ctx, "fan@example.com", "wrong-password", false)
	assert.ErrorIs(t, err, status.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody@example.com", "secret123", false)
	assert.ErrorIs(t, err, status.ErrUnauthorized)

	_, err = svc.Login(ctx, "fan@example.com", "secret123", true)
	assert.ErrorIs(t, err, status.ErrForbidden)
}

func TestVerifyOTP(t *testing.T) {
	svc, n := newAuthService(t)
	sess := register(t, svc, n)
	ctx := context.Background()
	wrong := "000000"
	if sess.User.OTP == wrong {
		wrong = "111111"
	}

	_, err := svc.VerifyOTP(ctx, VerifyOTPInput{Email: "fan@example.com", OTP: wrong})
	require.ErrorIs(t, err, status.ErrInvalidRequest)
	assert.Equal(t, "invalid otp", err.Error())

	u, err := svc.Me(ctx, models.ActorFromUser(sess.User))
	require.NoError(t, err)
	assert.Equal(t, 1, u.LoginAttempts)

	u, err = svc.VerifyOTP(ctx, VerifyOTPInput{Email: "fan@example.com", OTP: sess.User.OTP})
	require.NoError(t, err)
	assert.True(t, u.IsVerified)
	assert.NotNil(t, u.VerifiedAt)
	assert.Empty(t, u.OTP)
	assert.Zero(t, u.LoginAttempts)

	_, err = svc.VerifyOTP(ctx, VerifyOTPInput{Email: "fan@example.com", OTP: sess.User.OTP})
	assert.ErrorIs(t, err, status.ErrInvalidState)

	_, err = svc.VerifyOTP(ctx, VerifyOTPInput{Email: "nobody@example.com", OTP: "123456"})
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestVerifyOTP_ExpiredCodeIsRefusedEvenWhenCorrect(t *testing.T) {
	svc, n := newAuthService(t)
	sess := register(t, svc, n)
	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }

	_, err := svc.VerifyOTP(context.Background(), VerifyOTPInput{Email: "fan@example.com", OTP: sess.User.OTP})
	require.ErrorIs(t, err, status.ErrInvalidRequest)
	assert.Equal(t, "otp has expired", err.Error())
}

func TestResendOTP(t *testing.T) {
	svc, n := newAuthService(t)
	register(t, svc, n)
	ctx := context.Background()

	var code string
	n.expect(notify.KindOTP).Run(func(args mock.Arguments) {
		code = args.Get(2).(notify.OTPData).Code
	})
	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	require.NoError(t, svc.ResendOTP(ctx, "fan@example.com"))
	require.NotEmpty(t, code)

	_, err := svc.VerifyOTP(ctx, VerifyOTPInput{Email: "fan@example.com", OTP: code})
	require.NoError(t, err)

	err = svc.ResendOTP(ctx, "fan@example.com")
	assert.ErrorIs(t, err, status.ErrInvalidState)
}

func TestLogout(t *testing.T) {
	svc, n := newAuthService(t)
	sess := register(t, svc, n)
	ctx := context.Background()
	issued := sess.ExpiresAt.Add(-time.Hour)

	svc.now = func() time.Time { return time.Now().Add(time.Minute) }
	require.NoError(t, svc.Logout(ctx, models.ActorFromUser(sess.User)))

	u, err := svc.FindUser(ctx, sess.User.ID)
	require.NoError(t, err)
	require.NotNil(t, u.TokensValidAfter)
	assert.True(t, u.TokenRevoked(issued))
	assert.False(t, u.TokenRevoked(svc.now().Add(time.Second)))

	err = svc.Logout(ctx, models.Actor{ID: "missing", Role: models.RoleAttendee})
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestPasswordReset(t *testing.T) {
	svc, n := newAuthService(t)
	sess := register(t, svc, n)
	ctx := context.Background()

	var code string
	n.On("Deliver", notify.KindPasswordReset, mock.MatchedBy(func(to notify.Recipient) bool {
		return to.Email == "fan@example.com"
	}), mock.AnythingOfType("notify.PasswordResetData")).Return(nil).Once().Run(func(args mock.Arguments) {
		code = args.Get(2).(notify.PasswordResetData).Code
	})
	require.NoError(t, svc.RequestPasswordReset(ctx, "FAN@example.com"))
	require.Regexp(t, `^\d{6}$`, code)

	err := svc.RequestPasswordReset(ctx, "fan@example.com")
	assert.ErrorIs(t, err, status.ErrInvalidRequest)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	err = svc.ResetPassword(ctx, ResetPasswordInput{Email: "fan@example.com", Code: wrong, Password: "newsecret1"})
	require.ErrorIs(t, err, status.ErrInvalidRequest)
	assert.Equal(t, "invalid reset code", err.Error())

	svc.now = func() time.Time { return time.Now().Add(time.Minute) }
	require.NoError(t, svc.ResetPassword(ctx, ResetPasswordInput{Email: "fan@example.com", Code: code, Password: "newsecret1"}))

	_, err = svc.Login(ctx, "fan@example.com", "secret123", false)
	assert.ErrorIs(t, err, status.ErrUnauthorized)
	_, err = svc.Login(ctx, "fan@example.com", "newsecret1", false)
	require.NoError(t, err)

	u, err := svc.FindUser(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Empty(t, u.ResetCode)
	assert.True(t, u.TokenRevoked(sess.ExpiresAt.Add(-time.Hour)))

	err = svc.ResetPassword(ctx, ResetPasswordInput{Email: "fan@example.com", Code: code, Password: "another123"})
	require.ErrorIs(t, err, status.ErrInvalidRequest)
	assert.Equal(t, "reset code has expired", err.Error())
}

func TestPasswordReset_ExpiredCode(t *testing.T) {
	svc, n := newAuthService(t)
	register(t, svc, n)
	ctx := context.Background()

	var code string
	n.expect(notify.KindPasswordReset).Run(func(args mock.Arguments) {
		code = args.Get(2).(notify.PasswordResetData).Code
	})
	require.NoError(t, svc.RequestPasswordReset(ctx, "fan@example.com"))

	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	err := svc.ResetPassword(ctx, ResetPasswordInput{Email: "fan@example.com", Code: code, Password: "newsecret1"})
	require.ErrorIs(t, err, status.ErrInvalidRequest)
	assert.Equal(t, "reset code has expired", err.Error())

	n.expect(notify.KindPasswordReset)
	require.NoError(t, svc.RequestPasswordReset(ctx, "fan@example.com"))
}

func TestPasswordReset_Rejections(t *testing.T) {
	svc, n := newAuthService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.RequestPasswordReset(ctx, "nobody@example.com"), status.ErrNotFound)
	assert.ErrorIs(t, svc.RequestPasswordReset(ctx, "not-an-email"), status.ErrInvalidRequest)

	tests := []struct {
		name string
		in   ResetPasswordInput
	}{
		{"short password", ResetPasswordInput{Email: "fan@example.com", Code: "123456", Password: "short"}},
		{"letters in code", ResetPasswordInput{Email: "fan@example.com", Code: "12ab56", Password: "secret123"}},
		{"missing email", ResetPasswordInput{Code: "123456", Password: "secret123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.ResetPassword(ctx, tt.in), status.ErrInvalidRequest)
		})
	}
	n.AssertNotCalled(t, "Deliver", mock.Anything, mock.Anything, mock.Anything)
}
