package worker

import (
	"context"
	"fmt"
	"time"

	"snapshot-restore/internal/catalog"
	"snapshot-restore/internal/config"
	"snapshot-restore/internal/logging"
)

// Watchdog fails backup records stuck in PENDING or RUNNING past the job
// timeout, typically left behind by a crashed process. Without it a dead
// job would look in-flight forever.
type Watchdog struct {
	catalog *catalog.Catalog
	cfg     *config.Config
	logger  *logging.Logger
	now     func() time.Time
}

// NewWatchdog creates a stale-job watchdog
func NewWatchdog(cat *catalog.Catalog, cfg *config.Config, logger *logging.Logger) *Watchdog {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Watchdog{
		catalog: cat,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Start runs the watchdog until the context is cancelled. One sweep runs
// immediately so a restart cleans up promptly.
func (w *Watchdog) Start(ctx context.Context) {
	go func() {
		w.Sweep(ctx)

		ticker := time.NewTicker(w.cfg.Backup.WatchdogIntervalDuration())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Sweep(ctx)
			}
		}
	}()
}

// Sweep fails every record untouched for longer than the job timeout
func (w *Watchdog) Sweep(ctx context.Context) {
	timeout := w.cfg.Backup.JobTimeoutDuration()
	cutoff := w.now().Add(-timeout)

	count, err := w.catalog.FailStale(ctx, cutoff,
		fmt.Sprintf("backup job exceeded the %s timeout", timeout))
	if err != nil {
		w.logger.Errorf("Watchdog sweep failed: %v", err)
		return
	}
	if count > 0 {
		w.logger.WithField("count", count).Warn("Watchdog failed stale backup jobs")
	}
}
