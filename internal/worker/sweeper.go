package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sweeper deletes expired unconfirmed registrations.
type Sweeper interface {
	SweepExpired(ctx context.Context) ([]uuid.UUID, error)
}

// ExpirySweeper runs the expiry sweep on a fixed interval.
type ExpirySweeper struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger
}

// NewExpirySweeper creates a sweeper that runs every interval.
func NewExpirySweeper(s Sweeper, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpirySweeper{sweeper: s, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (e *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("expiry sweeper stopping")
			return
		case <-ticker.C:
			e.sweep(ctx)
		}
	}
}

func (e *ExpirySweeper) sweep(ctx context.Context) {
	ids, err := e.sweeper.SweepExpired(ctx)
	if err != nil {
		e.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if len(ids) > 0 {
		e.logger.Info("expiry sweep finished", zap.Int("deleted", len(ids)))
	}
}
