package tokens

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

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/docstore"
	"github.com/joao-fontenele/pizzaflow/internal/domain"
)

type staticCreds map[string]string

func (c staticCreds) CheckPassword(_ context.Context, email, password string) error {
	want, ok := c[email]
	if !ok {
		return apperr.New(apperr.KindNotFound, "user not found")
	}
	if want != password {
		return apperr.New(apperr.KindUnauthorized, "wrong password")
	}
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newTestVerifier(t *testing.T) (*Verifier, *fakeClock, docstore.Store) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := docstore.NewMemoryStore()
	creds := staticCreds{"ada@example.com": "s3cret", "grace@example.com": "c0bol"}
	v := NewVerifier(store, creds, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)), WithClock(clock.Now))
	return v, clock, store
}

func TestVerifier_Issue(t *testing.T) {
	ctx := context.Background()
	v, clock, _ := newTestVerifier(t)

	token, err := v.Issue(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)
	assert.True(t, domain.ValidTokenID(token.ID))
	assert.Equal(t, clock.now.Add(time.Hour), token.Expires)

	_, err = v.Issue(ctx, "ada@example.com", "wrong")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = v.Issue(ctx, "nobody@example.com", "s3cret")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = v.Issue(ctx, "not-an-email", "s3cret")
	assert.True(t, apperr.Is(err, apperr.KindInvalidRequest))
}

func TestVerifier_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("live token for the owner", func(t *testing.T) {
		v, _, _ := newTestVerifier(t)
		token, err := v.Issue(ctx, "ada@example.com", "s3cret")
		require.NoError(t, err)

		got, err := v.Verify(ctx, token.ID, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, token.ID, got.ID)

		got, err = v.Verify(ctx, token.ID, "")
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", got.Email)
	})

	t.Run("token for another user", func(t *testing.T) {
		v, _, _ := newTestVerifier(t)
		token, err := v.Issue(ctx, "ada@example.com", "s3cret")
		require.NoError(t, err)

		_, err = v.Verify(ctx, token.ID, "grace@example.com")
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	})

	t.Run("malformed and unknown ids", func(t *testing.T) {
		v, _, _ := newTestVerifier(t)

		_, err := v.Verify(ctx, "short", "ada@example.com")
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

		_, err = v.Verify(ctx, "6f1c1f0e-3a9d-4f80-a7e2-6f8e6f0b9c11", "ada@example.com")
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
	})

	t.Run("expired token is rejected and removed", func(t *testing.T) {
		v, clock, store := newTestVerifier(t)
		token, err := v.Issue(ctx, "ada@example.com", "s3cret")
		require.NoError(t, err)

		clock.now = token.Expires
		_, err = v.Verify(ctx, token.ID, "ada@example.com")
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

		_, err = store.Get(ctx, docstore.CollectionTokens, token.ID)
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})
}

func TestVerifier_ExtendAndRevoke(t *testing.T) {
	ctx := context.Background()
	v, clock, _ := newTestVerifier(t)

	token, err := v.Issue(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)

	clock.now = clock.now.Add(30 * time.Minute)
	extended, err := v.Extend(ctx, token.ID)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(time.Hour), extended.Expires)

	clock.now = extended.Expires.Add(time.Second)
	_, err = v.Extend(ctx, token.ID)
	assert.True(t, apperr.Is(err, apperr.KindInvalidRequest))

	require.NoError(t, v.Revoke(ctx, token.ID))
	err = v.Revoke(ctx, token.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestVerifier_RevokeByOwner(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newTestVerifier(t)

	first, err := v.Issue(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)
	second, err := v.Issue(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)
	other, err := v.Issue(ctx, "grace@example.com", "c0bol")
	require.NoError(t, err)

	revoked, err := v.RevokeByOwner(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, revoked)

	for _, id := range []string{first.ID, second.ID} {
		_, err := v.Verify(ctx, id, "ada@example.com")
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized), id)
	}
	_, err = v.Verify(ctx, other.ID, "grace@example.com")
	assert.NoError(t, err)
}

func TestRequire(t *testing.T) {
	ctx := context.Background()
	v, _, _ := newTestVerifier(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	token, err := v.Issue(ctx, "ada@example.com", "s3cret")
	require.NoError(t, err)

	var seen string
	handler := Require(v, logger, func(w http.ResponseWriter, r *http.Request) {
		tok, ok := FromContext(r.Context())
		if ok {
			seen = tok.Email
		}
		w.WriteHeader(http.StatusOK)
	})

	t.Run("passes the token to the handler", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		req.Header.Set(Header, token.ID)
		rec := httptest.NewRecorder()

		handler(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
		if seen != "ada@example.com" {
			t.Errorf("expected token email in context, got %q", seen)
		}
	})

	t.Run("rejects a missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		rec := httptest.NewRecorder()

		handler(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})
}

func TestHandler(t *testing.T) {
	v, _, _ := newTestVerifier(t)
	handler := NewHandler(v, slog.New(slog.NewTextHandler(io.Discard, nil)))

	body, _ := json.Marshal(map[string]string{"email": "ada@example.com", "password": "s3cret"})
	req := httptest.NewRequest(http.MethodPost, "/tokens", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.HandleCreate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var token domain.Token
	if err := json.Unmarshal(rec.Body.Bytes(), &token); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	t.Run("get", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tokens?id="+token.ID, nil)
		rec := httptest.NewRecorder()

		handler.HandleGet(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("extend requires the flag", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"id": token.ID, "extend": false})
		req := httptest.NewRequest(http.MethodPut, "/tokens", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleExtend(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("extend", func(t *testing.T) {
		body, _ := json.Marshal(map[string]any{"id": token.ID, "extend": true})
		req := httptest.NewRequest(http.MethodPut, "/tokens", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleExtend(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/tokens?id="+token.ID, nil)
		rec := httptest.NewRecorder()

		handler.HandleDelete(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rec.Code)
		}
	})
}
