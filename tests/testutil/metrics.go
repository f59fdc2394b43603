package testutil

import (
	"context"
	"testing"

	"github.com/erp/poscore/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Metrics collects business counters in memory
type Metrics struct {
	Business *telemetry.BusinessMetrics
	reader   *sdkmetric.ManualReader
}

func newMetrics() *Metrics {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	business, err := telemetry.NewBusinessMetrics(provider.Meter(telemetry.MeterName))
	if err != nil {
		panic(err)
	}
	return &Metrics{Business: business, reader: reader}
}

// Count sums every data point of the named counter whose attributes carry
// the given value for key. An empty key sums all points.
func (m *Metrics) Count(t *testing.T, name, key, value string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, m.reader.Collect(context.Background(), &rm))
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if metric.Name != name {
				continue
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if key != "" {
					v, found := dp.Attributes.Value(attribute.Key(key))
					if !found || v.AsString() != value {
						continue
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}
