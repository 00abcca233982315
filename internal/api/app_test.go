package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/docstore"
	"github.com/joao-fontenele/pizzaflow/internal/domain"
	"github.com/joao-fontenele/pizzaflow/internal/mail"
	"github.com/joao-fontenele/pizzaflow/internal/payment"
	"github.com/joao-fontenele/pizzaflow/internal/users"
)

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, msg mail.Message) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return "msg-1", nil
}

type testServer struct {
	*httptest.Server
	app     *App
	charges *atomic.Int32
	mail    *outbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var charges atomic.Int32
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		charges.Add(1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse charge form: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ch_1","status":"succeeded","paid":true,"amount":` + r.PostForm.Get("amount") + `,"currency":"usd"}`))
	}))
	t.Cleanup(gateway.Close)

	box := &outbox{}
	app := New(Deps{
		Store:   docstore.NewMemoryStore(),
		Payment: payment.NewClient(gateway.URL, "sk_test", 5*time.Second, logger),
		Mail:    box,
	}, Config{
		Currency:    "usd",
		MailFrom:    "orders@pizzaflow.local",
		TokenTTL:    time.Hour,
		TaskLimit:   4,
		TaskTimeout: 5 * time.Second,
	}, logger, users.WithHashCost(bcrypt.MinCost))
	t.Cleanup(app.Close)

	marinara, err := domain.NewItem("marinara", "Marinara", "Tomato, garlic, oregano", decimal.RequireFromString("7.50"))
	require.NoError(t, err)
	_, err = app.Catalog.Seed(context.Background(), []domain.Item{*marinara})
	require.NoError(t, err)

	srv := httptest.NewServer(app.Routes(nil))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, app: app, charges: &charges, mail: box}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("token", token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/users", "", map[string]any{
		"name":         "Ada",
		"email":        "ada@example.com",
		"address":      "1 Main St",
		"phone":        "+15551234567",
		"password":     "hunter22",
		"tosAgreement": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/tokens", "", map[string]string{
		"email":    "ada@example.com",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[domain.Token](t, resp).ID
}

func TestRoutes_CheckoutFlow(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t)

	resp := srv.do(t, http.MethodPut, "/users/cart", token, map[string]any{
		"email": "ada@example.com", "itemId": "marinara", "quantity": 2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodPut, "/users/checkout", token, map[string]string{
		"email": "ada@example.com", "paymentMethod": "tok_visa",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var receipt struct {
		Order   domain.Order `json:"order"`
		Invoice struct {
			Sent bool `json:"sent"`
		} `json:"invoice"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&receipt))
	assert.True(t, receipt.Order.Total.Equal(decimal.RequireFromString("15.00")), receipt.Order.Total.String())
	require.NotNil(t, receipt.Order.CompletedOn)
	assert.False(t, receipt.Order.CompletedOn.Before(receipt.Order.CreatedOn))
	assert.True(t, receipt.Invoice.Sent)
	assert.Equal(t, int32(1), srv.charges.Load())

	resp = srv.do(t, http.MethodGet, "/users?email=ada@example.com", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := decode[domain.PublicUser](t, resp)
	assert.Empty(t, user.Cart)
	assert.Equal(t, []string{receipt.Order.ID}, user.Orders)

	resp = srv.do(t, http.MethodGet, "/orders", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]domain.Order](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, receipt.Order.ID, list[0].ID)

	srv.mail.mu.Lock()
	defer srv.mail.mu.Unlock()
	require.Len(t, srv.mail.sent, 1)
	assert.Equal(t, "ada@example.com", srv.mail.sent[0].To)
}

func TestRoutes_CheckoutWithEmptyCart(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t)

	resp := srv.do(t, http.MethodPut, "/users/checkout", token, map[string]string{
		"email": "ada@example.com", "paymentMethod": "tok_visa",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := decode[apperr.Body](t, resp)
	assert.Equal(t, apperr.KindEmptyCart, body.Error)
	assert.Equal(t, int32(0), srv.charges.Load())
}

func TestRoutes_RequireToken(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/items", "/orders", "/users?email=ada@example.com"} {
		resp := srv.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
		assert.Equal(t, apperr.KindUnauthorized, decode[apperr.Body](t, resp).Error, path)
	}
}

func TestRoutes_Items(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t)

	resp := srv.do(t, http.MethodGet, "/items", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decode[[]domain.Item](t, resp)
	require.Len(t, items, 1)
	assert.Equal(t, "marinara", items[0].ID)

	resp = srv.do(t, http.MethodGet, "/items?id=calzone", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoutes_Health(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
