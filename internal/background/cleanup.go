package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiredCodePurger deletes magic codes that expired before now.
type ExpiredCodePurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CleanupRecorder receives the outcome of each run.
type CleanupRecorder interface {
	RecordCleanup(purged int64, err error)
}

// CleanupManager periodically removes expired magic codes. Expired codes can
// never be redeemed, so this only keeps the table small; Mongo deployments
// also have a TTL index doing the same.
type CleanupManager struct {
	codes    ExpiredCodePurger
	metrics  CleanupRecorder
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(codes ExpiredCodePurger, metrics CleanupRecorder, logger *slog.Logger, interval time.Duration) *CleanupManager {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &CleanupManager{
		codes:    codes,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start runs cleanup immediately and then on every tick until Stop is
// called or ctx is cancelled. It blocks.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	purged, err := cm.codes.DeleteExpired(cleanupCtx, cm.now().UTC())
	if cm.metrics != nil {
		cm.metrics.RecordCleanup(purged, err)
	}
	if err != nil {
		cm.logger.Error("failed to purge expired magic codes", slog.Any("error", err))
		return
	}

	if purged > 0 {
		cm.logger.Info("expired magic codes purged", slog.Int64("rows_deleted", purged))
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
