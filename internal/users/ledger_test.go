package users

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/docstore"
	"github.com/joao-fontenele/pizzaflow/internal/domain"
	"github.com/joao-fontenele/pizzaflow/internal/tokens"
)

type menu map[string]bool

func (m menu) ByID(_ context.Context, id string) (*domain.Item, error) {
	if !m[id] {
		return nil, nil
	}
	return &domain.Item{Version: domain.RecordVersion, ID: id}, nil
}

type removedOrders struct {
	ids    []string
	owners []string
}

func (r *removedOrders) Remove(_ context.Context, id string) error {
	r.ids = append(r.ids, id)
	return nil
}

func (r *removedOrders) RemoveByOwner(_ context.Context, email string) (int, error) {
	r.owners = append(r.owners, email)
	return 1, nil
}

type revokedTokens []string

func (r *revokedTokens) RevokeByOwner(_ context.Context, email string) (int, error) {
	*r = append(*r, email)
	return 2, nil
}

func newTestLedger(t *testing.T) (*Ledger, docstore.Store) {
	t.Helper()
	store := docstore.NewMemoryStore()
	l := NewLedger(store, menu{"margherita": true, "cola": true},
		slog.New(slog.NewTextHandler(io.Discard, nil)), WithHashCost(bcrypt.MinCost))
	return l, store
}

func createAda(t *testing.T, l *Ledger) *domain.User {
	t.Helper()
	user, err := l.Create(context.Background(), CreateParams{
		Name:         "Ada",
		Email:        "ada@example.com",
		Address:      "12 Analytical St",
		Phone:        "+15550100100",
		Password:     "s3cret",
		TOSAgreement: true,
	})
	require.NoError(t, err)
	return user
}

func TestLedger_Create(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	user := createAda(t, l)
	assert.NotEqual(t, "s3cret", user.HashedPassword)
	assert.Empty(t, user.Cart)
	assert.Empty(t, user.Orders)

	_, err := l.Create(ctx, CreateParams{Name: "Ada", Email: "ada@example.com", Address: "x", Password: "p", TOSAgreement: true})
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = l.Create(ctx, CreateParams{Name: "Bob", Email: "bob@example.com", Address: "x", Password: "p"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidRequest))

	_, err = l.Create(ctx, CreateParams{Name: "Bob", Email: "bob@", Address: "x", Password: "p", TOSAgreement: true})
	assert.True(t, apperr.Is(err, apperr.KindInvalidRequest))
}

func TestLedger_CheckPassword(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	createAda(t, l)

	assert.NoError(t, l.CheckPassword(ctx, "ada@example.com", "s3cret"))
	assert.True(t, apperr.Is(l.CheckPassword(ctx, "ada@example.com", "nope"), apperr.KindUnauthorized))
	assert.True(t, apperr.Is(l.CheckPassword(ctx, "bob@example.com", "s3cret"), apperr.KindNotFound))
}

func TestLedger_Cart(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	createAda(t, l)

	user, err := l.SetCartItem(ctx, "ada@example.com", "margherita", 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"margherita": 2}, user.Cart)

	_, err = l.SetCartItem(ctx, "ada@example.com", "calzone", 1)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	user, err = l.SetCartItem(ctx, "ada@example.com", "margherita", 0)
	require.NoError(t, err)
	assert.Empty(t, user.Cart)
}

func TestLedger_RecordOrder(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	createAda(t, l)

	_, err := l.SetCartItem(ctx, "ada@example.com", "cola", 3)
	require.NoError(t, err)

	user, err := l.RecordOrder(ctx, "ada@example.com", "order1", map[string]int{"cola": 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"order1"}, user.Orders)
	assert.Empty(t, user.Cart)

	stored, err := l.Get(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"order1"}, stored.Orders)
	assert.Empty(t, stored.Cart)

	require.NoError(t, l.AppendOrder(ctx, "ada@example.com", "order1"))
	require.NoError(t, l.AppendOrder(ctx, "ada@example.com", "order2"))
	require.NoError(t, l.RemoveOrder(ctx, "ada@example.com", "order1"))

	stored, err = l.Get(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"order2"}, stored.Orders)
}

func TestLedger_RecordOrderKeepsLaterCartEdits(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	createAda(t, l)

	_, err := l.SetCartItem(ctx, "ada@example.com", "cola", 1)
	require.NoError(t, err)
	user, err := l.Get(ctx, "ada@example.com")
	require.NoError(t, err)
	ordered := user.CartSnapshot()

	_, err = l.SetCartItem(ctx, "ada@example.com", "margherita", 2)
	require.NoError(t, err)

	user, err = l.RecordOrder(ctx, "ada@example.com", "order1", ordered)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"margherita": 2}, user.Cart)
}

func TestLedger_Update(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	createAda(t, l)

	name := "Ada Lovelace"
	user, err := l.Update(ctx, "ada@example.com", UpdateParams{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.Equal(t, "12 Analytical St", user.Address)

	bad := "12ab"
	_, err = l.Update(ctx, "ada@example.com", UpdateParams{Phone: &bad})
	assert.True(t, apperr.Is(err, apperr.KindInvalidRequest))

	_, err = l.Update(ctx, "ada@example.com", UpdateParams{})
	assert.True(t, apperr.Is(err, apperr.KindInvalidRequest))

	password := "n3w"
	_, err = l.Update(ctx, "ada@example.com", UpdateParams{Password: &password})
	require.NoError(t, err)
	assert.NoError(t, l.CheckPassword(ctx, "ada@example.com", "n3w"))
}

func TestLedger_Delete(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	var removed removedOrders
	var revoked revokedTokens
	l.SetOrderRemover(&removed)
	l.SetTokenRevoker(&revoked)
	createAda(t, l)
	require.NoError(t, l.AppendOrder(ctx, "ada@example.com", "order1"))
	require.NoError(t, l.AppendOrder(ctx, "ada@example.com", "order2"))

	require.NoError(t, l.Delete(ctx, "ada@example.com"))
	assert.Equal(t, []string{"order1", "order2"}, removed.ids)
	assert.Equal(t, []string{"ada@example.com"}, removed.owners)
	assert.Equal(t, revokedTokens{"ada@example.com"}, revoked)

	_, err := l.Get(ctx, "ada@example.com")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLedger_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	l, store := newTestLedger(t)
	require.NoError(t, store.Put(ctx, docstore.CollectionUsers, "ada@example.com", []byte(`{"version":7,"email":"ada@example.com"}`)))

	_, err := l.Get(ctx, "ada@example.com")
	assert.True(t, apperr.Is(err, apperr.KindCorruptRecord))
}

func withToken(req *http.Request, email string) *http.Request {
	token := &domain.Token{Version: domain.RecordVersion, ID: "6f1c1f0e-3a9d-4f80-a7e2-6f8e6f0b9c11", Email: email, Expires: time.Now().Add(time.Hour)}
	return req.WithContext(tokens.NewContext(req.Context(), token))
}

func TestHandler(t *testing.T) {
	l, _ := newTestLedger(t)
	handler := NewHandler(l, slog.New(slog.NewTextHandler(io.Discard, nil)))

	t.Run("create", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{
			"name": "Ada", "email": "ada@example.com", "address": "12 Analytical St",
			"password": "s3cret", "tosAgreement": true,
		})
		req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleCreate(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if bytes.Contains(rec.Body.Bytes(), []byte("hashedPassword")) {
			t.Error("response must not expose the password hash")
		}
	})

	t.Run("get own record", func(t *testing.T) {
		req := withToken(httptest.NewRequest(http.MethodGet, "/users?email=ada@example.com", nil), "ada@example.com")
		rec := httptest.NewRecorder()

		handler.HandleGet(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("get another user's record", func(t *testing.T) {
		req := withToken(httptest.NewRequest(http.MethodGet, "/users?email=ada@example.com", nil), "grace@example.com")
		rec := httptest.NewRecorder()

		handler.HandleGet(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("set cart", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"email": "ada@example.com", "itemId": "margherita", "quantity": 2})
		req := withToken(httptest.NewRequest(http.MethodPut, "/users/cart", bytes.NewReader(body)), "ada@example.com")
		rec := httptest.NewRecorder()

		handler.HandleSetCart(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var user domain.PublicUser
		if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if user.Cart["margherita"] != 2 {
			t.Errorf("expected 2 margherita in cart, got %d", user.Cart["margherita"])
		}
	})

	t.Run("update rejects unknown fields", func(t *testing.T) {
		body := []byte(`{"email":"ada@example.com","orders":["x"]}`)
		req := withToken(httptest.NewRequest(http.MethodPut, "/users", bytes.NewReader(body)), "ada@example.com")
		rec := httptest.NewRecorder()

		handler.HandleUpdate(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		req := withToken(httptest.NewRequest(http.MethodDelete, "/users?email=ada@example.com", nil), "ada@example.com")
		rec := httptest.NewRecorder()

		handler.HandleDelete(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rec.Code)
		}
	})
}
