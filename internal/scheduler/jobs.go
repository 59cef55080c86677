package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const BreachJobName = "revision-breach"

// BreachMarker flags documents whose next revision date has passed.
type BreachMarker interface {
	MarkBreached(ctx context.Context, now time.Time) (int, error)
}

// BreachJob sweeps live documents past their next revision date.
func BreachJob(marker BreachMarker, spec string, logger *zap.Logger) Job {
	return Job{
		Name:    BreachJobName,
		Spec:    spec,
		Timeout: 10 * time.Minute,
		Run: func(ctx context.Context) error {
			flagged, err := marker.MarkBreached(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			logger.Info("revision breach sweep completed", zap.Int("flagged", flagged))
			return nil
		},
	}
}
