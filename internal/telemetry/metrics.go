package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeterProvider initializes the Prometheus exporter and MeterProvider
// and starts Go runtime metrics. It returns the /metrics handler and a
// shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(newResource(serviceName, serviceVersion)),
	)
	otel.SetMeterProvider(mp)

	if err := runtime.Start(
		runtime.WithMeterProvider(mp),
		runtime.WithMinimumReadMemStatsInterval(15*time.Second),
	); err != nil {
		return nil, nil, err
	}

	return promhttp.Handler(), mp.Shutdown, nil
}

// Checkout outcomes recorded on the checkout.completed counter.
const (
	OutcomeSucceeded        = "succeeded"
	OutcomeAlreadyCompleted = "already_completed"
	OutcomeFailed           = "failed"
	OutcomePartial          = "partial"
)

type CheckoutMetrics struct {
	completed metric.Int64Counter
	totals    metric.Int64Histogram
}

func NewCheckoutMetrics(meter metric.Meter) (*CheckoutMetrics, error) {
	completed, err := meter.Int64Counter("checkout.completed",
		metric.WithDescription("Checkouts by outcome"),
	)
	if err != nil {
		return nil, err
	}

	totals, err := meter.Int64Histogram("orders.total",
		metric.WithDescription("Charged order totals in minor currency units"),
		metric.WithUnit("{cent}"),
		metric.WithExplicitBucketBoundaries(500, 1000, 2000, 3000, 5000, 10000, 20000),
	)
	if err != nil {
		return nil, err
	}

	return &CheckoutMetrics{completed: completed, totals: totals}, nil
}

func (m *CheckoutMetrics) RecordCheckout(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.completed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *CheckoutMetrics) RecordOrderTotal(ctx context.Context, currency string, minor int64) {
	if m == nil {
		return
	}
	m.totals.Record(ctx, minor, metric.WithAttributes(attribute.String("currency", currency)))
}
