package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	reportuc "github.com/kailas-cloud/rollup/internal/usecase/report"
)

// ReportRunner runs one report.
type ReportRunner interface {
	Run(ctx context.Context) (reportuc.Result, error)
}

// Schedule runs the report every interval until ctx is done. Failed runs are logged
// and do not stop the schedule.
func Schedule(ctx context.Context, interval time.Duration, runner ReportRunner, logger *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Report schedule started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Info("Report schedule stopped")
			return nil
		case <-ticker.C:
			res, err := runner.Run(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("Scheduled report failed", zap.Error(err))
				continue
			}
			logger.Info("Scheduled report finished",
				zap.String("run_id", res.RunID),
				zap.Bool("complete", res.Complete),
				zap.String("reason", string(res.Reason)),
				zap.Int("records", len(res.Records)),
				zap.Int64("units_used", res.UnitsUsed),
			)
		}
	}
}
