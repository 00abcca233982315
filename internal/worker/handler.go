package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/pizzaflow/internal/domain"
	"github.com/joao-fontenele/pizzaflow/internal/messaging"
)

// TextSender delivers a text message to a phone number.
type TextSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

type NotificationHandler struct {
	sms    TextSender
	logger *slog.Logger
}

func NewNotificationHandler(sms TextSender, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		sms:    sms,
		logger: logger,
	}
}

// Handle sends an order confirmation text for order.completed events. Other
// event types and undecodable payloads are skipped so they do not block the
// partition. Delivery failures are logged; the notification is best-effort.
func (h *NotificationHandler) Handle(ctx context.Context, msg messaging.Message) error {
	if msg.Type != domain.EventOrderCompleted {
		h.logger.Debug("skipping event", "type", msg.Type, "key", msg.Key)
		return nil
	}

	var event domain.OrderCompletedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("failed to decode order completed event", "error", err, "key", msg.Key)
		return nil
	}

	h.logger.Info("processing order completed event", "order_id", event.OrderID, "email", event.Email)

	if event.Phone == "" {
		h.logger.Info("no phone on file, skipping sms", "order_id", event.OrderID)
		return nil
	}

	sid, err := h.sms.Send(ctx, event.Phone, confirmationText(event))
	if err != nil {
		h.logger.Error("failed to send order confirmation sms", "error", err, "order_id", event.OrderID)
		return nil
	}

	h.logger.Info("order confirmation sms sent", "order_id", event.OrderID, "sid", sid)
	return nil
}

func confirmationText(event domain.OrderCompletedEvent) string {
	count := 0
	for _, qty := range event.Items {
		count += qty
	}
	return fmt.Sprintf("Pizzaflow: order %s is paid (%d items, %s %s). It is on its way!",
		event.OrderID, count, event.Total.StringFixed(2), event.Currency)
}
