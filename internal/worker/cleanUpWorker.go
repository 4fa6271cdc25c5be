package worker

import (
	"context"
	"time"

	"github.com/ds124wfegd/courseportal/internal/metrics"
	"github.com/sirupsen/logrus"
)

// StaleEntryRemover deletes waitlist entries of users who already hold an
// enrollment.
type StaleEntryRemover interface {
	DeleteStale(ctx context.Context) (int64, error)
}

type WaitlistCleanupWorker struct {
	waitlist StaleEntryRemover
	interval time.Duration
}

func NewWaitlistCleanupWorker(waitlist StaleEntryRemover, interval time.Duration) *WaitlistCleanupWorker {
	return &WaitlistCleanupWorker{
		waitlist: waitlist,
		interval: interval,
	}
}

// Start blocks until ctx is cancelled.
func (w *WaitlistCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.WithField("interval", w.interval).Info("Waitlist cleanup worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Waitlist cleanup worker stopped")
			return
		case <-ticker.C:
			w.cleanup(ctx)
		}
	}
}

func (w *WaitlistCleanupWorker) cleanup(ctx context.Context) {
	removed, err := w.waitlist.DeleteStale(ctx)
	if err != nil {
		metrics.WorkerRuns.WithLabelValues("waitlist_cleanup", "error").Inc()
		logrus.WithError(err).Error("Failed to remove stale waitlist entries")
		return
	}
	metrics.WorkerRuns.WithLabelValues("waitlist_cleanup", "ok").Inc()

	if removed == 0 {
		logrus.Debug("No stale waitlist entries found")
		return
	}
	logrus.WithField("removed", removed).Info("Stale waitlist entries removed")
}
