package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestCheckoutMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewCheckoutMetrics(mp.Meter("test"))
	require.NoError(t, err)

	m.RecordCheckout(ctx, OutcomeSucceeded)
	m.RecordCheckout(ctx, OutcomeSucceeded)
	m.RecordCheckout(ctx, OutcomeFailed)
	m.RecordOrderTotal(ctx, "usd", 2500)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		byName[metric.Name] = metric
	}

	sum, ok := byName["checkout.completed"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, sum.DataPoints, 2)

	hist, ok := byName["orders.total"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, int64(2500), hist.DataPoints[0].Sum)
}

func TestCheckoutMetrics_NilIsNoop(t *testing.T) {
	var m *CheckoutMetrics
	m.RecordCheckout(context.Background(), OutcomeSucceeded)
	m.RecordOrderTotal(context.Background(), "usd", 1)
}
