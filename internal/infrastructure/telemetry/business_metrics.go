package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when business metrics are built without a meter
var ErrMeterNil = errors.New("telemetry: meter is nil")

// Metric attribute keys
var (
	AttrOperation     = attribute.Key("operation")
	AttrAlertKind     = attribute.Key("alert_kind")
	AttrAlertSeverity = attribute.Key("severity")
	AttrStockChange   = attribute.Key("stock_change")
)

// BusinessMetrics counts the events operators alert on. A nil
// *BusinessMetrics records nothing.
type BusinessMetrics struct {
	reconciliationAlerts *Counter
	idempotentReplays    *Counter
	stockRejections      *Counter
}

// NewBusinessMetrics registers the poscore counters on meter
func NewBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	bm := &BusinessMetrics{}
	var err error
	if bm.reconciliationAlerts, err = NewCounter(meter,
		"pos_reconciliation_alerts_total",
		"Drifts found by reconciliation scans",
		"{alerts}"); err != nil {
		return nil, err
	}
	if bm.idempotentReplays, err = NewCounter(meter,
		"pos_payment_idempotent_replays_total",
		"Payment requests answered from a stored response",
		"{requests}"); err != nil {
		return nil, err
	}
	if bm.stockRejections, err = NewCounter(meter,
		"pos_stock_rejections_total",
		"Stock decrements rejected with INSUFFICIENT_STOCK",
		"{changes}"); err != nil {
		return nil, err
	}
	return bm, nil
}

// RecordReconciliationAlert counts one alert of a scan
func (bm *BusinessMetrics) RecordReconciliationAlert(ctx context.Context, kind, severity string) {
	if bm == nil {
		return
	}
	bm.reconciliationAlerts.Inc(ctx, AttrAlertKind.String(kind), AttrAlertSeverity.String(severity))
}

// RecordIdempotentReplay counts a payment request answered by replay
func (bm *BusinessMetrics) RecordIdempotentReplay(ctx context.Context, operation string) {
	if bm == nil {
		return
	}
	bm.idempotentReplays.Inc(ctx, AttrOperation.String(operation))
}

// RecordStockRejection counts a stock change refused for insufficient stock
func (bm *BusinessMetrics) RecordStockRejection(ctx context.Context, changeType string) {
	if bm == nil {
		return
	}
	bm.stockRejections.Inc(ctx, AttrStockChange.String(changeType))
}
