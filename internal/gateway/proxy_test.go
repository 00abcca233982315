package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestServiceProxy_ForwardRequest(t *testing.T) {
	t.Run("keeps path and query", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("expected GET, got %s", r.Method)
			}
			if r.URL.Path != "/orders" {
				t.Errorf("expected /orders, got %s", r.URL.Path)
			}
			if r.URL.Query().Get("id") != "abc" {
				t.Errorf("expected id=abc, got %q", r.URL.RawQuery)
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		proxy := NewServiceProxy(server.URL+"/", server.Client())
		req := httptest.NewRequest(http.MethodGet, "/orders?id=abc", nil)
		resp, err := proxy.ForwardRequest(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}
	})

	t.Run("forwards body, content-type and token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
			}
			if r.Header.Get("token") != "tok-1" {
				t.Errorf("expected token header tok-1, got %q", r.Header.Get("token"))
			}
			if r.Header.Get("X-Internal") != "" {
				t.Errorf("unexpected header X-Internal forwarded")
			}
			body, _ := io.ReadAll(r.Body)
			if string(body) != `{"paymentMethod":"tok_visa"}` {
				t.Errorf("unexpected body: %s", body)
			}
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		proxy := NewServiceProxy(server.URL, server.Client())
		req := httptest.NewRequest(http.MethodPut, "/users/checkout", strings.NewReader(`{"paymentMethod":"tok_visa"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("token", "tok-1")
		req.Header.Set("X-Internal", "yes")
		resp, err := proxy.ForwardRequest(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusCreated {
			t.Errorf("expected status 201, got %d", resp.StatusCode)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		proxy := NewServiceProxy(server.URL, server.Client())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		req := httptest.NewRequest(http.MethodGet, "/items", nil)
		_, err := proxy.ForwardRequest(ctx, req)
		if err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}
