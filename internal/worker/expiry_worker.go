package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/service"
)

// ExpiryWorker periodically flips overdue identities to EXPIRED. The sweep is
// a single conditional update in the store, so concurrent instances of the
// fleet can all run it without double-expiring anything.
type ExpiryWorker struct {
	identities *service.IdentityService
	interval   time.Duration
	logger     *zap.Logger
}

// NewExpiryWorker constructs the worker.
func NewExpiryWorker(identities *service.IdentityService, interval time.Duration, logger *zap.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpiryWorker{identities: identities, interval: interval, logger: logger}
}

// Run sweeps until the context is cancelled.
func (w *ExpiryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := w.identities.ExpireDue(ctx, time.Now())
			if err != nil {
				w.logger.Warn("expiry sweep failed", zap.Error(err))
				continue
			}
			if count > 0 {
				w.logger.Info("expired identities", zap.Int("count", count))
			}
		}
	}
}
