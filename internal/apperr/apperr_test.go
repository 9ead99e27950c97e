package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("place order: %w", New(CodeConflict, "checkout.place", "cart changed"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "checkout.place: cart changed", errors.Unwrap(err).Error())
}

func TestInsufficientStockError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &InsufficientStockError{ProductID: "p-1", Requested: 3, Available: 1})

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, "insufficient_stock", Kind(err))
	assert.Equal(t, http.StatusConflict, HTTPStatus(err))

	var stock *InsufficientStockError
	if assert.True(t, errors.As(err, &stock)) {
		assert.Equal(t, "p-1", stock.ProductID)
	}
}

func TestKindAndHTTPStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   string
		status int
	}{
		{"nil", nil, "", http.StatusOK},
		{"validation", Validation("op", "cart is empty"), "validation_failed", http.StatusBadRequest},
		{"not found", New(CodeNotFound, "op", "order missing"), "not_found", http.StatusNotFound},
		{"not authorized", New(CodeNotAuthorized, "op", "not yours"), "not_authorized", http.StatusForbidden},
		{"transition", New(CodeInvalidTransition, "op", "shipped"), "invalid_transition", http.StatusConflict},
		{"conflict", Wrap(CodeConflict, "op", "retry", errors.New("cas")), "conflict", http.StatusConflict},
		{"deadline", context.DeadlineExceeded, "timeout", http.StatusGatewayTimeout},
		{"canceled", context.Canceled, "canceled", http.StatusBadRequest},
		{"internal", errors.New("boom"), "internal", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Kind(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}
