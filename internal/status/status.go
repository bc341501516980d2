package status

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrNotFound              = errors.New("resource: not found")
	ErrForbidden             = errors.New("access: forbidden")
	ErrUnauthorized          = errors.New("access: unauthorized")
	ErrInvalidRequest        = errors.New("request: invalid request")
	ErrUnavailable           = errors.New("ticket type: unavailable")
	ErrInsufficientInventory = errors.New("ticket type: insufficient inventory")
	ErrInvalidState          = errors.New("state: invalid transition")
	ErrAlreadyUsed           = errors.New("ticket: already used")
	ErrConflict              = errors.New("resource: conflict")
	ErrUnexpected            = errors.New("internal: unexpected error")
)

// InsufficientInventoryError reports an order line asking for more units than remain.
type InsufficientInventoryError struct {
	TicketType string
	Requested  int
	Available  int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("not enough '%s' tickets available - requested: %d, available: %d",
		e.TicketType, e.Requested, e.Available)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}

// AlreadyUsedError carries the time of the original check-in.
type AlreadyUsedError struct {
	CheckInTime time.Time
}

func (e *AlreadyUsedError) Error() string {
	return "ticket already used"
}

func (e *AlreadyUsedError) Is(target error) bool {
	return target == ErrAlreadyUsed
}

// Errorf wraps a taxonomy sentinel with a client-facing message.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Error is a taxonomy error whose message is safe to show to the caller.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// HTTPStatus maps an error of the taxonomy to a response status code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrInsufficientInventory),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrAlreadyUsed):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// IsDomain reports whether err belongs to the taxonomy and can be shown to the caller as is.
func IsDomain(err error) bool {
	return HTTPStatus(err) < http.StatusInternalServerError
}
