package orders

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/respond"
	"github.com/joao-fontenele/pizzaflow/internal/tokens"
)

type Handler struct {
	lifecycle *Lifecycle
	logger    *slog.Logger
}

func NewHandler(lifecycle *Lifecycle, logger *slog.Logger) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		logger:    logger,
	}
}

type createOrderRequest struct {
	Items map[string]int `json:"items"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	email, err := caller(r)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	var req createOrderRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	order, err := h.lifecycle.Open(r.Context(), email, req.Items)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusCreated, order)
}

// HandleGet returns one order when ?id= is given, otherwise every order of
// the token's user.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	email, err := caller(r)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		orders, err := h.lifecycle.List(r.Context(), email)
		if err != nil {
			respond.Error(w, r, h.logger, err)
			return
		}
		h.logger.Info("orders listed", "email", email, "count", len(orders))
		respond.JSON(w, h.logger, http.StatusOK, orders)
		return
	}

	order, err := h.lifecycle.Get(r.Context(), email, id)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	h.logger.Info("order retrieved", "order_id", order.ID)
	respond.JSON(w, h.logger, http.StatusOK, order)
}

type updateOrderRequest struct {
	ID    string         `json:"id"`
	Items map[string]int `json:"items"`
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	email, err := caller(r)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	var req updateOrderRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if req.ID == "" {
		respond.Error(w, r, h.logger, apperr.New(apperr.KindInvalidRequest, "missing order id"))
		return
	}

	order, err := h.lifecycle.Update(r.Context(), email, req.ID, req.Items)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	email, err := caller(r)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		respond.Error(w, r, h.logger, apperr.New(apperr.KindInvalidRequest, "missing order id"))
		return
	}

	if err := h.lifecycle.Delete(r.Context(), email, id); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func caller(r *http.Request) (string, error) {
	token, ok := tokens.FromContext(r.Context())
	if !ok {
		return "", apperr.New(apperr.KindUnauthorized, "missing or invalid token")
	}
	return token.Email, nil
}
