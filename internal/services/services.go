// Package services implements the ticketing operations. Every operation takes
// the acting user explicitly and returns errors from the status taxonomy.
package services

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/crypto/bcrypt"

	"ticketing/internal/notify"
	"ticketing/internal/status"
	"ticketing/models"
)

// Notifier turns state changes into notifications delivered after commit.
type Notifier interface {
	Message(kind notify.Kind, to notify.Recipient, data any) notify.Hook
	Fire(hooks notify.Hooks)
}

// PageQuery selects one page of a listing.
type PageQuery struct {
	Page    int
	PerPage int
}

func (p PageQuery) normalized() PageQuery {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PerPage <= 0 || p.PerPage > 100 {
		p.PerPage = models.DefaultPerPage
	}
	return p
}

var bcryptCost = bcrypt.DefaultCost

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func recipient(u *models.User) notify.Recipient {
	return notify.Recipient{UserID: u.ID, Email: u.Email, Name: u.Name}
}

// invalid turns a validation failure into an InvalidRequest error.
func invalid(err error) error {
	if err == nil {
		return nil
	}
	var ve validation.Errors
	if errors.As(err, &ve) {
		return status.Errorf(status.ErrInvalidRequest, "%s", ve.Error())
	}
	if status.IsDomain(err) {
		return err
	}
	return status.Errorf(status.ErrInvalidRequest, "%s", err.Error())
}

func forbidden(format string, args ...any) error {
	return status.Errorf(status.ErrForbidden, format, args...)
}

// mustExist reports a missing record referenced from a request body as InvalidRequest.
func mustExist(err error, format string, args ...any) error {
	if errors.Is(err, status.ErrNotFound) {
		return status.Errorf(status.ErrInvalidRequest, format, args...)
	}
	return err
}
