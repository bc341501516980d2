package status

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("event: %w", ErrNotFound), http.StatusNotFound},
		{"forbidden", Errorf(ErrForbidden, "no"), http.StatusForbidden},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"conflict", ErrConflict, http.StatusConflict},
		{"invalid request", ErrInvalidRequest, http.StatusBadRequest},
		{"unavailable", ErrUnavailable, http.StatusBadRequest},
		{"inventory", &InsufficientInventoryError{TicketType: "VIP", Requested: 3, Available: 2}, http.StatusBadRequest},
		{"invalid state", ErrInvalidState, http.StatusBadRequest},
		{"already used", &AlreadyUsedError{CheckInTime: time.Now()}, http.StatusBadRequest},
		{"anything else", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestInsufficientInventoryError(t *testing.T) {
	err := error(&InsufficientInventoryError{TicketType: "VIP", Requested: 3, Available: 2})

	assert.True(t, errors.Is(err, ErrInsufficientInventory))
	assert.False(t, errors.Is(err, ErrAlreadyUsed))
	assert.Equal(t, "not enough 'VIP' tickets available - requested: 3, available: 2", err.Error())

	var inv *InsufficientInventoryError
	assert.True(t, errors.As(fmt.Errorf("place order: %w", err), &inv))
	assert.Equal(t, 2, inv.Available)
}

func TestAlreadyUsedError(t *testing.T) {
	at := time.Date(2026, 5, 1, 19, 30, 0, 0, time.UTC)
	err := fmt.Errorf("check in: %w", &AlreadyUsedError{CheckInTime: at})

	var used *AlreadyUsedError
	assert.True(t, errors.As(err, &used))
	assert.Equal(t, at, used.CheckInTime)
	assert.True(t, errors.Is(err, ErrAlreadyUsed))
}

func TestErrorf(t *testing.T) {
	err := Errorf(ErrInvalidRequest, "ticket type %s does not belong to this event", "tt-1")

	assert.Equal(t, "ticket type tt-1 does not belong to this event", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.True(t, IsDomain(err))
	assert.False(t, IsDomain(errors.New("db closed")))
}
