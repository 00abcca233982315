// Package gateway is the public edge in front of the API service.
package gateway

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/respond"
)

// Routes lists the API endpoints exposed through the gateway.
var Routes = []string{
	"POST /users",
	"GET /users",
	"PUT /users",
	"DELETE /users",
	"PUT /users/cart",
	"PUT /users/checkout",
	"POST /tokens",
	"GET /tokens",
	"PUT /tokens",
	"DELETE /tokens",
	"GET /items",
	"POST /orders",
	"GET /orders",
	"PUT /orders",
	"DELETE /orders",
}

type Handler struct {
	apiProxy *ServiceProxy
	logger   *slog.Logger
}

func NewHandler(apiProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		apiProxy: apiProxy,
		logger:   logger,
	}
}

func (h *Handler) HandleAPI(w http.ResponseWriter, r *http.Request) {
	resp, err := h.apiProxy.ForwardRequest(r.Context(), r)
	if err != nil {
		respond.Error(w, r, h.logger, apperr.Wrap(apperr.KindUnavailable, "service unavailable", err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", r.URL.Path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}
