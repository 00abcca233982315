package checkout

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/respond"
	"github.com/joao-fontenele/pizzaflow/internal/tokens"
)

type Handler struct {
	orchestrator *Orchestrator
	logger       *slog.Logger
}

func NewHandler(orchestrator *Orchestrator, logger *slog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

type checkoutRequest struct {
	Email         string `json:"email"`
	PaymentMethod string `json:"paymentMethod"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	receipt, err := h.orchestrator.Checkout(r.Context(), req.Email, r.Header.Get(tokens.Header), req.PaymentMethod)
	if err != nil {
		if receipt != nil && apperr.Is(err, apperr.KindPartialSuccess) {
			h.logger.Error("checkout partially succeeded", "error", err, "order_id", receipt.Order.ID)
			body := apperr.BodyOf(err)
			body.OrderID = receipt.Order.ID
			respond.JSON(w, h.logger, apperr.HTTPStatus(apperr.KindPartialSuccess), body)
			return
		}
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, receipt)
}
