package scheduler

import (
	"context"
	"time"

	"github.com/erp/poscore/internal/application/reconciliation"
	"go.uber.org/zap"
)

const (
	LockSweepJobName      = "invoice_lock_sweep"
	ReconciliationJobName = "reconciliation_scan"
)

// LockSweeper persists the lock flag on sales past their edit window
type LockSweeper interface {
	LockExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// Reconciler runs one reconciliation scan
type Reconciler interface {
	Run(ctx context.Context) (*reconciliation.Report, error)
}

// LockSweepJob locks expired sales in batches until a batch comes back short
func LockSweepJob(sweeper LockSweeper, interval time.Duration, batchSize int, logger *zap.Logger) Job {
	if batchSize <= 0 {
		batchSize = 500
	}
	return Job{
		Name:     LockSweepJobName,
		Interval: interval,
		Run: func(ctx context.Context) error {
			now := time.Now().UTC()
			total := 0
			for {
				locked, err := sweeper.LockExpired(ctx, now, batchSize)
				total += locked
				if err != nil {
					return err
				}
				if locked < batchSize {
					break
				}
			}
			if total > 0 {
				logger.Info("Invoices locked", zap.Int("count", total))
			}
			return nil
		},
	}
}

// ReconciliationJob runs the reconciliation scan. Alerts are logged by the
// scan itself; the job only records a summary.
func ReconciliationJob(reconciler Reconciler, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     ReconciliationJobName,
		Interval: interval,
		Run: func(ctx context.Context) error {
			report, err := reconciler.Run(ctx)
			if err != nil {
				return err
			}
			if !report.Healthy() {
				counts := report.CountByKind()
				fields := make([]zap.Field, 0, len(counts))
				for kind, n := range counts {
					fields = append(fields, zap.Int(string(kind), n))
				}
				logger.Warn("Reconciliation found drift", fields...)
			}
			return nil
		},
	}
}
