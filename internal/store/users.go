package store

import (
	"strings"
	"time"

	"github.com/pocketbase/dbx"

	"ticketing/models"
)

func (q *Queries) CreateUser(u *models.User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = now()
	u.UpdatedAt = u.CreatedAt

	return q.insert("users", dbx.Params{
		"id":             u.ID,
		"email":          u.Email,
		"password_hash":  u.PasswordHash,
		"name":           u.Name,
		"role":           string(u.Role),
		"is_verified":    u.IsVerified,
		"verified_at":    u.VerifiedAt,
		"otp":            u.OTP,
		"otp_expires_at": u.OTPExpiresAt,
		"login_attempts": u.LoginAttempts,
		"reset_code":     u.ResetCode,
		"created_at":     u.CreatedAt,
		"updated_at":     u.UpdatedAt,
	})
}

func (q *Queries) FindUser(id string) (*models.User, error) {
	u := &models.User{}
	err := q.selectFrom("users").Where(dbx.HashExp{"id": id}).One(u)
	if err != nil {
		return nil, translate(err, "users")
	}
	return u, nil
}

func (q *Queries) FindUserByEmail(email string) (*models.User, error) {
	u := &models.User{}
	err := q.selectFrom("users").
		Where(dbx.HashExp{"email": strings.ToLower(strings.TrimSpace(email))}).
		One(u)
	if err != nil {
		return nil, translate(err, "users")
	}
	return u, nil
}

// SaveUser persists every mutable column of u.
func (q *Queries) SaveUser(u *models.User) error {
	u.UpdatedAt = now()
	n, err := q.update("users", dbx.Params{
		"email":              strings.ToLower(strings.TrimSpace(u.Email)),
		"password_hash":      u.PasswordHash,
		"name":               u.Name,
		"role":               string(u.Role),
		"is_verified":        u.IsVerified,
		"verified_at":        u.VerifiedAt,
		"otp":                u.OTP,
		"otp_expires_at":     u.OTPExpiresAt,
		"login_attempts":     u.LoginAttempts,
		"reset_code":         u.ResetCode,
		"reset_expires_at":   u.ResetExpiresAt,
		"tokens_valid_after": u.TokensValidAfter,
		"updated_at":         u.UpdatedAt,
	}, dbx.HashExp{"id": u.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "users")
	}
	return nil
}

// IncrementLoginAttempts bumps the failed verification counter in place.
func (q *Queries) IncrementLoginAttempts(id string) error {
	_, err := q.b.NewQuery("UPDATE users SET login_attempts = login_attempts + 1, updated_at = {:now} WHERE id = {:id}").
		Bind(dbx.Params{"id": id, "now": now()}).
		WithContext(q.ctx).
		Execute()
	return translate(err, "users")
}

// RevokeTokens invalidates every token issued to the user before at.
func (q *Queries) RevokeTokens(id string, at time.Time) error {
	n, err := q.update("users", dbx.Params{"tokens_valid_after": at, "updated_at": now()}, dbx.HashExp{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "users")
	}
	return nil
}

func (q *Queries) DeleteUser(id string) error {
	n, err := q.delete("users", dbx.HashExp{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "users")
	}
	return nil
}

func (q *Queries) ListUsers(page, perPage int) (models.Page[models.User], error) {
	total, err := q.count("users", nil)
	if err != nil {
		return models.Page[models.User]{}, err
	}

	off, limit := offset(page, perPage)
	users := []models.User{}
	err = q.selectFrom("users").
		OrderBy("created_at DESC").
		Offset(off).
		Limit(limit).
		All(&users)
	if err != nil {
		return models.Page[models.User]{}, translate(err, "users")
	}

	return models.NewPage(users, total, page, perPage), nil
}

func (q *Queries) CountUsersByRole() (map[models.Role]int, error) {
	rows := []struct {
		Role  string `db:"role"`
		Total int    `db:"total"`
	}{}
	err := q.selectFrom("users", "role", "COUNT(*) AS total").GroupBy("role").All(&rows)
	if err != nil {
		return nil, translate(err, "users")
	}

	out := make(map[models.Role]int, len(rows))
	for _, r := range rows {
		out[models.Role(r.Role)] = r.Total
	}
	return out, nil
}

// usersByID loads the users with the given ids, keyed by id.
func (q *Queries) usersByID(ids []string) (map[string]*models.User, error) {
	out := map[string]*models.User{}
	if len(ids) == 0 {
		return out, nil
	}

	users := []models.User{}
	err := q.selectFrom("users").Where(dbx.In("id", toAny(ids)...)).All(&users)
	if err != nil {
		return nil, translate(err, "users")
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
