package session

import (
	"context"
	"log/slog"
	"strings"
)

// Watchdog supervises the resource on a fixed cadence: it restarts a
// crashed or bloated browser and exports proactively when memory gets
// close to the ceiling. Scheduling is owned by the caller (a cron entry);
// Tick is one supervision pass.
type Watchdog struct {
	mgr     *Manager
	breaker Breaker
	logger  *slog.Logger
}

// NewWatchdog creates a watchdog over the given manager.
func NewWatchdog(mgr *Manager, breaker Breaker, logger *slog.Logger) *Watchdog {
	return &Watchdog{mgr: mgr, breaker: breaker, logger: logger}
}

// Tick runs one supervision pass. Skipped entirely while a manual login
// session holds the resource or while the refresh circuit is open: an open
// circuit means the resource is already known-bad and restart churn would
// only fight the reset timeout.
func (w *Watchdog) Tick(ctx context.Context) {
	if w.mgr.ManualSessionActive() {
		w.logger.Debug("watchdog skipped: manual login session active")
		return
	}
	if w.breaker.IsOpen() {
		w.logger.Debug("watchdog skipped: circuit open")
		return
	}

	h := w.mgr.GetHealth(ctx)

	if h.Running && w.nearMemoryCeiling(h.MemoryMB) {
		w.logger.Warn("memory near ceiling, exporting proactively",
			"memory_mb", h.MemoryMB,
			"ceiling_mb", w.mgr.cfg.MemoryCeilingMB)
		if _, err := w.mgr.ForceExport(ctx); err != nil {
			w.logger.Warn("proactive export failed", "error", err)
		}
	}

	if !h.Running || h.NeedsRestart {
		reason := restartReason(h)
		w.logger.Warn("watchdog restarting resource", "reason", h.Reason)
		if err := w.mgr.Restart(ctx, reason); err != nil {
			w.breaker.RecordFailure()
			w.logger.Error("watchdog restart failed", "error", err)
		}
	}
}

func (w *Watchdog) nearMemoryCeiling(memoryMB int) bool {
	ceiling := w.mgr.cfg.MemoryCeilingMB
	if ceiling <= 0 || memoryMB <= 0 {
		return false
	}
	return float64(memoryMB) > w.mgr.cfg.MemoryExportFraction*float64(ceiling)
}

func restartReason(h Health) string {
	switch {
	case strings.Contains(h.Reason, "memory"):
		return "memory"
	case strings.Contains(h.Reason, "rotation"):
		return "rotation"
	default:
		return "crash"
	}
}
