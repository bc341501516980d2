package models

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleOrganizer Role = "organizer"
	RoleAttendee  Role = "attendee"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOrganizer, RoleAttendee:
		return true
	}
	return false
}

// ParseRole converts a raw role name into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

type User struct {
	ID            string     `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	Name          string     `db:"name" json:"name"`
	Role          Role       `db:"role" json:"role"`
	IsVerified    bool       `db:"is_verified" json:"is_verified"`
	VerifiedAt    *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	OTP           string     `db:"otp" json:"-"`
	OTPExpiresAt  *time.Time `db:"otp_expires_at" json:"-"`
	LoginAttempts int        `db:"login_attempts" json:"login_attempts"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	ResetCode        string     `db:"reset_code" json:"-"`
	ResetExpiresAt   *time.Time `db:"reset_expires_at" json:"-"`
	TokensValidAfter *time.Time `db:"tokens_valid_after" json:"-"`
}

// OTPExpired reports whether the stored one-time code can no longer be used at now.
func (u *User) OTPExpired(now time.Time) bool {
	return u.OTPExpiresAt == nil || now.After(*u.OTPExpiresAt)
}

// ResetExpired reports whether the stored password reset code can no longer be used at now.
func (u *User) ResetExpired(now time.Time) bool {
	return u.ResetExpiresAt == nil || now.After(*u.ResetExpiresAt)
}

// TokenRevoked reports whether a token issued at issuedAt predates the last
// logout or password change. Token timestamps have second precision.
func (u *User) TokenRevoked(issuedAt time.Time) bool {
	return u.TokensValidAfter != nil && issuedAt.Before(u.TokensValidAfter.Truncate(time.Second))
}

// UserPatch carries the optional attributes of a user update. Nil fields are left untouched.
type UserPatch struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Role     *Role   `json:"role,omitempty"`
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Password == nil && p.Role == nil
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID       string
	Role     Role
	Verified bool
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func ActorFromUser(u *User) Actor {
	return Actor{ID: u.ID, Role: u.Role, Verified: u.IsVerified}
}
