package orders

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joao-fontenele/pizzaflow/internal/domain"
	"github.com/joao-fontenele/pizzaflow/internal/tokens"
)

func authed(req *http.Request, email string) *http.Request {
	token := &domain.Token{Version: domain.RecordVersion, ID: "6f1c1f0e-3a9d-4f80-a7e2-6f8e6f0b9c11", Email: email, Expires: time.Now().Add(time.Hour)}
	return req.WithContext(tokens.NewContext(req.Context(), token))
}

func TestHandler(t *testing.T) {
	f := newFixture(t, pricesOf("margherita", "10.00", "cola", "2.00"))
	handler := NewHandler(f.lifecycle, f.lifecycle.logger)

	body := []byte(`{"items":{"margherita":2,"calzone":1}}`)
	req := authed(httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body)), "ada@example.com")
	rec := httptest.NewRecorder()

	handler.HandleCreate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(created.Items) != 1 || created.Items["margherita"] != 2 {
		t.Errorf("expected only margherita in order, got %v", created.Items)
	}

	t.Run("get one", func(t *testing.T) {
		req := authed(httptest.NewRequest(http.MethodGet, "/orders?id="+created.ID, nil), "ada@example.com")
		rec := httptest.NewRecorder()

		handler.HandleGet(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("other users cannot read it", func(t *testing.T) {
		req := authed(httptest.NewRequest(http.MethodGet, "/orders?id="+created.ID, nil), "grace@example.com")
		rec := httptest.NewRecorder()

		handler.HandleGet(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("list own orders", func(t *testing.T) {
		req := authed(httptest.NewRequest(http.MethodGet, "/orders", nil), "ada@example.com")
		rec := httptest.NewRecorder()

		handler.HandleGet(rec, req)

		var orders []domain.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &orders); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(orders) != 1 {
			t.Errorf("expected 1 order, got %d", len(orders))
		}
	})

	t.Run("update items", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"id": created.ID, "items": map[string]int{"cola": 4}})
		req := authed(httptest.NewRequest(http.MethodPut, "/orders", bytes.NewReader(body)), "ada@example.com")
		rec := httptest.NewRecorder()

		handler.HandleUpdate(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("total cannot be supplied by the client", func(t *testing.T) {
		body := []byte(`{"items":{"cola":1},"total":"0.01"}`)
		req := authed(httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body)), "ada@example.com")
		rec := httptest.NewRecorder()

		handler.HandleCreate(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		req := authed(httptest.NewRequest(http.MethodDelete, "/orders?id="+created.ID, nil), "ada@example.com")
		rec := httptest.NewRecorder()

		handler.HandleDelete(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rec.Code)
		}
	})

	t.Run("requires a token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		rec := httptest.NewRecorder()

		handler.HandleGet(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})
}
