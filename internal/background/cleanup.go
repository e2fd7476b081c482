package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/tkaraba/slotbook/internal/metrics"
)

// ExpiredDeleter removes rows whose expiry has passed and reports the count.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SweepTarget names a table for logging and metrics.
type SweepTarget struct {
	Name string
	Repo ExpiredDeleter
}

// CleanupManager periodically sweeps expired refresh tokens and mailed
// token tables. Each sweep is idempotent: deleting rows that are already
// gone is a no-op, so overlapping runs and restarts are safe.
type CleanupManager struct {
	targets  []SweepTarget
	logger   *slog.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	targets []SweepTarget,
	logger *slog.Logger,
	m *metrics.Metrics,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		targets:  targets,
		logger:   logger,
		metrics:  m,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep. Blocks until Stop is called or the
// context is cancelled; run it in its own goroutine.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runSweep(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runSweep deletes expired rows from every target table. A failure on one
// table does not stop the others; the next tick retries everything.
func (cm *CleanupManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, target := range cm.targets {
		rowsDeleted, err := target.Repo.DeleteExpired(sweepCtx)
		if err != nil {
			cm.logger.Error("sweep failed",
				slog.String("table", target.Name),
				slog.Any("error", err))
			continue
		}

		if rowsDeleted > 0 {
			cm.metrics.SweepDeleted.WithLabelValues(target.Name).Add(float64(rowsDeleted))
			cm.logger.Info("sweep completed",
				slog.String("table", target.Name),
				slog.Int64("rows_deleted", rowsDeleted))
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
