package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
	"github.com/joao-fontenele/pizzaflow/internal/domain"
	"github.com/joao-fontenele/pizzaflow/internal/keylock"
	"github.com/joao-fontenele/pizzaflow/internal/payment"
	"github.com/joao-fontenele/pizzaflow/internal/telemetry"
)

var tracer = otel.Tracer("orders")

const maxCreateAttempts = 3

type PriceSource interface {
	PriceMap(ctx context.Context) (map[string]domain.Item, error)
}

type PaymentGateway interface {
	Charge(ctx context.Context, req payment.ChargeRequest) (*payment.Charge, error)
}

type InvoiceSender interface {
	SendInvoice(ctx context.Context, order *domain.Order, prices map[string]domain.Item) error
}

// OwnerLedger keeps the owning user's order list in step with order records.
type OwnerLedger interface {
	AppendOrder(ctx context.Context, email, orderID string) error
	RemoveOrder(ctx context.Context, email, orderID string) error
}

type InvoiceStatus struct {
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

// Receipt is the result of a completion. AlreadyCompleted is set when the
// order had been completed by an earlier call and nothing was charged.
type Receipt struct {
	Order            *domain.Order   `json:"order"`
	Charge           json.RawMessage `json:"charge"`
	AlreadyCompleted bool            `json:"alreadyCompleted"`
	Invoice          InvoiceStatus   `json:"invoice"`
}

type Config struct {
	Currency string
}

type Lifecycle struct {
	repo     *Repository
	prices   PriceSource
	gateway  PaymentGateway
	invoices InvoiceSender
	owners   OwnerLedger
	ids      IDAllocator
	locks    *keylock.Locker
	metrics  *telemetry.CheckoutMetrics
	currency string
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Lifecycle)

func WithClock(now func() time.Time) Option {
	return func(l *Lifecycle) {
		l.now = now
	}
}

func WithIDAllocator(ids IDAllocator) Option {
	return func(l *Lifecycle) {
		l.ids = ids
	}
}

func WithMetrics(m *telemetry.CheckoutMetrics) Option {
	return func(l *Lifecycle) {
		l.metrics = m
	}
}

func NewLifecycle(repo *Repository, prices PriceSource, gateway PaymentGateway, invoices InvoiceSender, owners OwnerLedger, cfg Config, logger *slog.Logger, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		repo:     repo,
		prices:   prices,
		gateway:  gateway,
		invoices: invoices,
		owners:   owners,
		ids:      NewRegistryAllocator(),
		locks:    keylock.New(),
		currency: cfg.Currency,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Lifecycle) Currency() string {
	return l.currency
}

// Create builds and persists a pending order from requested. Items unknown to
// the catalog and quantities that are not positive are dropped.
func (l *Lifecycle) Create(ctx context.Context, email string, requested map[string]int) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "orders.create")
	defer span.End()

	if !domain.ValidEmail(email) {
		return nil, recordErr(span, apperr.New(apperr.KindInvalidRequest, "invalid email"))
	}

	items, err := l.filterItems(ctx, requested)
	if err != nil {
		return nil, recordErr(span, err)
	}

	for attempt := 1; ; attempt++ {
		order, err := domain.NewOrder(l.ids.Allocate(), email, items, l.now())
		if err != nil {
			return nil, recordErr(span, err)
		}

		err = l.repo.Create(ctx, order)
		if errors.Is(err, errIDTaken) && attempt < maxCreateAttempts {
			l.logger.Warn("order id collision, regenerating", "order_id", order.ID)
			continue
		}
		if errors.Is(err, errIDTaken) {
			return nil, recordErr(span, apperr.Wrap(apperr.KindStorage, "could not allocate order id", err))
		}
		if err != nil {
			return nil, recordErr(span, err)
		}

		span.SetAttributes(attribute.String("order.id", order.ID))
		l.logger.Info("order created", "order_id", order.ID, "email", email, "items", len(items))
		return order, nil
	}
}

// Open creates a pending order and adds it to the owner's order list. The
// order is removed again if the list cannot be updated.
func (l *Lifecycle) Open(ctx context.Context, email string, requested map[string]int) (*domain.Order, error) {
	order, err := l.Create(ctx, email, requested)
	if err != nil {
		return nil, err
	}

	if err := l.owners.AppendOrder(ctx, email, order.ID); err != nil {
		if rmErr := l.repo.Remove(ctx, order.ID); rmErr != nil {
			l.logger.Error("failed to remove orphaned order", "error", rmErr, "order_id", order.ID)
		}
		return nil, err
	}
	return order, nil
}

// Complete charges the order and marks it completed. Calling it again for a
// completed order returns the stored receipt without charging.
func (l *Lifecycle) Complete(ctx context.Context, order *domain.Order, paymentMethod string) (*Receipt, error) {
	ctx, span := tracer.Start(ctx, "orders.complete", trace.WithAttributes(attribute.String("order.id", order.ID)))
	defer span.End()

	unlock, err := l.locks.Lock(ctx, order.ID)
	if err != nil {
		return nil, recordErr(span, err)
	}
	defer unlock()

	current, err := l.repo.Get(ctx, order.ID)
	if err != nil {
		return nil, recordErr(span, err)
	}

	if current.Completed() {
		if current.CompletedOn.Before(current.CreatedOn) {
			return nil, recordErr(span, apperr.New(apperr.KindCorruptRecord, "order completed before it was created"))
		}
		span.SetAttributes(attribute.Bool("order.already_completed", true))
		l.logger.Info("order already completed", "order_id", current.ID)
		return &Receipt{Order: current, Charge: current.PaymentInfo, AlreadyCompleted: true}, nil
	}

	if paymentMethod == "" {
		return nil, recordErr(span, apperr.New(apperr.KindInvalidRequest, "missing payment method"))
	}

	prices, err := l.prices.PriceMap(ctx)
	if err != nil {
		return nil, recordErr(span, err)
	}

	total := Total(current.Items, prices)
	if !total.IsPositive() {
		return nil, recordErr(span, apperr.New(apperr.KindEmptyOrder, "order total must be positive"))
	}
	current.Total = total

	charge, err := l.charge(ctx, current, paymentMethod)
	if err != nil {
		return nil, recordErr(span, err)
	}

	if err := current.MarkCompleted(charge.Raw, l.now()); err != nil {
		return &Receipt{Order: current, Charge: charge.Raw}, recordErr(span, apperr.Wrap(apperr.KindPartialSuccess, "payment succeeded but the order could not be completed", err))
	}
	l.metrics.RecordOrderTotal(ctx, l.currency, MinorUnits(total))

	receipt := &Receipt{Order: current, Charge: charge.Raw}

	var saveErr error
	if err := l.repo.Save(ctx, current); err != nil {
		l.logger.Error("order charged but not saved", "error", err, "order_id", current.ID, "charge_id", charge.ID)
		saveErr = apperr.Wrap(apperr.KindPartialSuccess, "payment succeeded but the order could not be saved", err)
	}

	receipt.Invoice = l.sendInvoice(ctx, current, prices)

	l.logger.Info("order completed", "order_id", current.ID, "total", total.StringFixed(2), "charge_id", charge.ID)
	if saveErr != nil {
		return receipt, recordErr(span, saveErr)
	}
	return receipt, nil
}

// Discard removes a pending order that was never charged. Completed orders
// are left alone and reported as a conflict.
func (l *Lifecycle) Discard(ctx context.Context, id string) error {
	unlock, err := l.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	order, err := l.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if order.Completed() {
		return apperr.New(apperr.KindConflict, "completed orders cannot be discarded")
	}
	if err := l.repo.Remove(ctx, id); err != nil {
		return err
	}
	l.logger.Info("pending order discarded", "order_id", id)
	return nil
}

func (l *Lifecycle) charge(ctx context.Context, order *domain.Order, paymentMethod string) (*payment.Charge, error) {
	ctx, span := tracer.Start(ctx, "payment.charge")
	defer span.End()

	amount := MinorUnits(order.Total)
	span.SetAttributes(attribute.Int64("payment.amount", amount), attribute.String("payment.currency", l.currency))

	charge, err := l.gateway.Charge(ctx, payment.ChargeRequest{
		AmountMinor: amount,
		Currency:    l.currency,
		Source:      paymentMethod,
		Description: "Order " + order.ID,
	})
	if err != nil {
		l.logger.Warn("payment failed", "error", err, "order_id", order.ID)
		failure := apperr.Wrap(apperr.KindPaymentFailed, "payment failed", err)
		var gwErr *payment.GatewayError
		if errors.As(err, &gwErr) && len(gwErr.Body) > 0 {
			failure = failure.WithPayload(gwErr.Body)
		}
		return nil, recordErr(span, failure)
	}

	if !charge.Succeeded() {
		l.logger.Warn("charge not succeeded", "order_id", order.ID, "status", charge.Status)
		return nil, recordErr(span, apperr.New(apperr.KindPaymentFailed, "payment was not completed").WithPayload(charge.Raw))
	}

	span.SetAttributes(attribute.String("payment.charge_id", charge.ID))
	return charge, nil
}

func (l *Lifecycle) sendInvoice(ctx context.Context, order *domain.Order, prices map[string]domain.Item) InvoiceStatus {
	if l.invoices == nil {
		return InvoiceStatus{}
	}
	if err := l.invoices.SendInvoice(ctx, order, prices); err != nil {
		l.logger.Error("failed to send invoice", "error", err, "order_id", order.ID)
		return InvoiceStatus{Error: "invoice could not be sent"}
	}
	return InvoiceStatus{Sent: true}
}

// Get returns an order owned by email. Orders of other users are reported as
// not found.
func (l *Lifecycle) Get(ctx context.Context, email, id string) (*domain.Order, error) {
	order, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Email != email {
		return nil, apperr.New(apperr.KindNotFound, "order not found")
	}
	return order, nil
}

func (l *Lifecycle) List(ctx context.Context, email string) ([]domain.Order, error) {
	return l.repo.ListByOwner(ctx, email)
}

// Update replaces the items of a pending order.
func (l *Lifecycle) Update(ctx context.Context, email, id string, requested map[string]int) (*domain.Order, error) {
	unlock, err := l.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := l.Get(ctx, email, id)
	if err != nil {
		return nil, err
	}
	if order.Completed() {
		return nil, apperr.New(apperr.KindConflict, "completed orders cannot be changed")
	}

	items, err := l.filterItems(ctx, requested)
	if err != nil {
		return nil, err
	}
	order.Items = items

	if err := l.repo.Save(ctx, order); err != nil {
		return nil, err
	}
	l.logger.Info("order updated", "order_id", order.ID, "items", len(items))
	return order, nil
}

// Delete removes an order and drops it from the owner's order list.
func (l *Lifecycle) Delete(ctx context.Context, email, id string) error {
	unlock, err := l.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := l.Get(ctx, email, id); err != nil {
		return err
	}
	if err := l.repo.Remove(ctx, id); err != nil {
		return err
	}
	if err := l.owners.RemoveOrder(ctx, email, id); err != nil && !apperr.Is(err, apperr.KindNotFound) {
		return err
	}

	l.logger.Info("order deleted", "order_id", id)
	return nil
}

func (l *Lifecycle) filterItems(ctx context.Context, requested map[string]int) (map[string]int, error) {
	prices, err := l.prices.PriceMap(ctx)
	if err != nil {
		return nil, err
	}

	items := make(map[string]int, len(requested))
	for id, qty := range requested {
		if _, ok := prices[id]; ok && qty > 0 {
			items[id] = qty
		}
	}
	if len(items) == 0 {
		return nil, apperr.New(apperr.KindInvalidRequest, "order has no catalog items")
	}
	return items, nil
}

// Total sums price × quantity over items, skipping ids missing from prices.
func Total(items map[string]int, prices map[string]domain.Item) decimal.Decimal {
	total := decimal.Zero
	for id, qty := range items {
		item, ok := prices[id]
		if !ok {
			continue
		}
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(qty))))
	}
	return total
}

// MinorUnits converts a major-unit amount to cents, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(apperr.KindOf(err)))
	return err
}
