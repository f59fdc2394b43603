package telemetry

import (
	"context"
	"testing"

	"github.com/erp/poscore/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func sums(t *testing.T, reader *sdkmetric.ManualReader) map[string][]metricdata.DataPoint[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string][]metricdata.DataPoint[int64])
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, m.Name)
			assert.True(t, sum.IsMonotonic, m.Name)
			out[m.Name] = append(out[m.Name], sum.DataPoints...)
		}
	}
	return out
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), config.TelemetryConfig{
		Enabled:        true,
		MetricsEnabled: false,
		ServiceName:    "poscore-test",
	}, Build{Version: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, mp.Enabled())
	assert.NotNil(t, mp.Meter())

	bm, err := NewBusinessMetrics(mp.Meter())
	require.NoError(t, err)
	bm.RecordIdempotentReplay(context.Background(), "create_payment")
	assert.NoError(t, mp.Shutdown(context.Background()))
}

func TestBusinessMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	bm, err := NewBusinessMetrics(provider.Meter(MeterName))
	require.NoError(t, err)

	bm.RecordReconciliationAlert(ctx, "negative_stock", "critical")
	bm.RecordReconciliationAlert(ctx, "negative_stock", "critical")
	bm.RecordReconciliationAlert(ctx, "ledger_mismatch", "critical")
	bm.RecordIdempotentReplay(ctx, "allocate_payment")
	bm.RecordStockRejection(ctx, "sale")

	got := sums(t, reader)
	require.Len(t, got["pos_reconciliation_alerts_total"], 2)
	for _, dp := range got["pos_reconciliation_alerts_total"] {
		kind, _ := dp.Attributes.Value(AttrAlertKind)
		switch kind.AsString() {
		case "negative_stock":
			assert.EqualValues(t, 2, dp.Value)
		case "ledger_mismatch":
			assert.EqualValues(t, 1, dp.Value)
		default:
			t.Fatalf("unexpected alert kind %q", kind.AsString())
		}
	}

	replays := got["pos_payment_idempotent_replays_total"]
	require.Len(t, replays, 1)
	assert.EqualValues(t, 1, replays[0].Value)
	assert.True(t, replays[0].Attributes.HasValue(AttrOperation))
	op, _ := replays[0].Attributes.Value(AttrOperation)
	assert.Equal(t, attribute.StringValue("allocate_payment"), op)

	rejections := got["pos_stock_rejections_total"]
	require.Len(t, rejections, 1)
	assert.EqualValues(t, 1, rejections[0].Value)
}

func TestBusinessMetrics_NilIsNoop(t *testing.T) {
	var bm *BusinessMetrics
	assert.NotPanics(t, func() {
		bm.RecordReconciliationAlert(context.Background(), "negative_stock", "critical")
		bm.RecordIdempotentReplay(context.Background(), "create_payment")
		bm.RecordStockRejection(context.Background(), "sale")
	})

	_, err := NewBusinessMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
}
