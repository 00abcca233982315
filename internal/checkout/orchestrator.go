// Package checkout turns a user's cart into a paid, completed order.
package checkout

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/domain"
	"github.com/joao-fontenele/pizzaflow/internal/keylock"
	"github.com/joao-fontenele/pizzaflow/internal/orders"
	"github.com/joao-fontenele/pizzaflow/internal/tasks"
	"github.com/joao-fontenele/pizzaflow/internal/telemetry"
)

var tracer = otel.Tracer("checkout")

type TokenVerifier interface {
	Verify(ctx context.Context, id, email string) (*domain.Token, error)
	Extend(ctx context.Context, id string) (*domain.Token, error)
}

type UserLedger interface {
	Get(ctx context.Context, email string) (*domain.User, error)
	RecordOrder(ctx context.Context, email, orderID string, ordered map[string]int) (*domain.User, error)
}

type OrderLifecycle interface {
	Create(ctx context.Context, email string, items map[string]int) (*domain.Order, error)
	Complete(ctx context.Context, order *domain.Order, paymentMethod string) (*orders.Receipt, error)
	Discard(ctx context.Context, id string) error
	Currency() string
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, event any) error
}

type Orchestrator struct {
	tokens  TokenVerifier
	users   UserLedger
	orders  OrderLifecycle
	events  EventPublisher
	runner  *tasks.Runner
	locks   *keylock.Locker
	metrics *telemetry.CheckoutMetrics
	logger  *slog.Logger
}

// NewOrchestrator wires the checkout flow. events and metrics may be nil.
func NewOrchestrator(tokens TokenVerifier, users UserLedger, lifecycle OrderLifecycle, events EventPublisher, runner *tasks.Runner, metrics *telemetry.CheckoutMetrics, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		tokens:  tokens,
		users:   users,
		orders:  lifecycle,
		events:  events,
		runner:  runner,
		locks:   keylock.New(),
		metrics: metrics,
		logger:  logger,
	}
}

// Checkout runs token check, user lookup, cart check, order creation,
// completion and the order list update, in that order. On PartialSuccess the
// receipt is returned together with the error.
func (o *Orchestrator) Checkout(ctx context.Context, email, tokenID, paymentMethod string) (*orders.Receipt, error) {
	ctx, span := tracer.Start(ctx, "checkout", trace.WithAttributes(attribute.String("user.email", email)))
	defer span.End()

	receipt, err := o.checkout(ctx, span, email, tokenID, paymentMethod)
	switch {
	case err == nil && receipt.AlreadyCompleted:
		o.metrics.RecordCheckout(ctx, telemetry.OutcomeAlreadyCompleted)
	case err == nil:
		o.metrics.RecordCheckout(ctx, telemetry.OutcomeSucceeded)
	case apperr.Is(err, apperr.KindPartialSuccess):
		o.metrics.RecordCheckout(ctx, telemetry.OutcomePartial)
	default:
		o.metrics.RecordCheckout(ctx, telemetry.OutcomeFailed)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
	}
	return receipt, err
}

func (o *Orchestrator) checkout(ctx context.Context, span trace.Span, email, tokenID, paymentMethod string) (*orders.Receipt, error) {
	if !domain.ValidEmail(email) {
		return nil, apperr.New(apperr.KindInvalidRequest, "invalid email")
	}
	if paymentMethod == "" {
		return nil, apperr.New(apperr.KindInvalidRequest, "missing payment method")
	}

	if _, err := o.tokens.Verify(ctx, tokenID, email); err != nil {
		return nil, err
	}
	o.runner.Go(ctx, "token.extend", func(ctx context.Context) error {
		_, err := o.tokens.Extend(ctx, tokenID)
		return err
	})

	unlock, err := o.locks.Lock(ctx, email)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, err := o.users.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	cart := user.CartSnapshot()
	if len(cart) == 0 {
		return nil, apperr.New(apperr.KindEmptyCart, "cart is empty")
	}

	order, err := o.orders.Create(ctx, email, cart)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID))

	receipt, completeErr := o.orders.Complete(ctx, order, paymentMethod)
	if completeErr != nil && !apperr.Is(completeErr, apperr.KindPartialSuccess) {
		// Nothing was charged. Drop the order so a declined or retried
		// checkout leaves no pending record behind.
		if err := o.orders.Discard(ctx, order.ID); err != nil {
			o.logger.Error("failed to discard unpaid order", "error", err, "order_id", order.ID)
		}
		return nil, completeErr
	}

	// The charge went through from here on; failures are partial successes.
	if _, err := o.users.RecordOrder(ctx, email, order.ID, cart); err != nil {
		o.logger.Error("order completed but user not updated", "error", err, "order_id", order.ID, "email", email)
		return receipt, apperr.Wrap(apperr.KindPartialSuccess, "payment succeeded but the user record could not be updated", err)
	}

	o.publishCompleted(ctx, user, receipt.Order)

	if completeErr != nil {
		return receipt, completeErr
	}

	o.logger.Info("checkout completed", "order_id", order.ID, "email", email, "total", receipt.Order.Total.StringFixed(2))
	return receipt, nil
}

func (o *Orchestrator) publishCompleted(ctx context.Context, user *domain.User, order *domain.Order) {
	if o.events == nil || order.CompletedOn == nil {
		return
	}

	event := domain.OrderCompletedEvent{
		OrderID:     order.ID,
		Email:       order.Email,
		Phone:       user.Phone,
		Items:       order.Items,
		Total:       order.Total,
		Currency:    o.orders.Currency(),
		CompletedOn: *order.CompletedOn,
	}
	o.runner.Go(ctx, "order.completed.publish", func(ctx context.Context) error {
		return o.events.Publish(ctx, domain.EventOrderCompleted, order.ID, event)
	})
}
