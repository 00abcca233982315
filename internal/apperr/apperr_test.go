package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("finds kind through wrapping", func(t *testing.T) {
		err := fmt.Errorf("checkout: %w", New(KindEmptyCart, "cart is empty"))
		assert.Equal(t, KindEmptyCart, KindOf(err))
		assert.True(t, Is(err, KindEmptyCart))
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
		assert.False(t, Is(nil, KindInternal))
	})
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindInvalidRequest, http.StatusBadRequest},
		{KindEmptyOrder, http.StatusBadRequest},
		{KindUnauthorized, http.StatusForbidden},
		{KindEmptyCart, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindPaymentFailed, http.StatusPaymentRequired},
		{KindCatalogUnavailable, http.StatusInternalServerError},
		{KindPartialSuccess, http.StatusInternalServerError},
		{KindStorage, http.StatusInternalServerError},
		{KindUnavailable, http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.kind), tt.kind)
	}
}

func TestBodyOf(t *testing.T) {
	t.Run("hides the cause", func(t *testing.T) {
		err := Wrap(KindStorage, "could not save order", errors.New("open /var/data/orders/x.json: permission denied"))
		body := BodyOf(err)
		assert.Equal(t, KindStorage, body.Error)
		assert.Equal(t, "could not save order", body.Message)
		assert.Empty(t, body.Gateway)
	})

	t.Run("attaches gateway payload for payment failures", func(t *testing.T) {
		err := New(KindPaymentFailed, "charge declined").WithPayload([]byte(`{"status":"failed"}`))
		body := BodyOf(err)
		assert.JSONEq(t, `{"status":"failed"}`, string(body.Gateway))
	})

	t.Run("unknown errors", func(t *testing.T) {
		body := BodyOf(errors.New("boom"))
		assert.Equal(t, KindInternal, body.Error)
		assert.Equal(t, "internal server error", body.Message)
	})
}
