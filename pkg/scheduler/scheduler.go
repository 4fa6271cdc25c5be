package scheduler

import (
	"context"
	"time"

	"github.com/ds124wfegd/courseportal/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Sweeper promotes waiting users into slots that have free seats.
type Sweeper interface {
	SweepWaitlists(ctx context.Context) (int, error)
}

type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
}

func NewScheduler(sweeper Sweeper, interval time.Duration) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
	}
}

// Start runs a sweep immediately and then on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx)
	for {
		select {
		case <-ticker.C:
			s.run(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	promoted, err := s.sweeper.SweepWaitlists(ctx)
	if err != nil {
		metrics.WorkerRuns.WithLabelValues("waitlist_sweep", "error").Inc()
		logrus.WithError(err).WithField("promoted", promoted).Error("Waitlist sweep failed")
		return
	}
	metrics.WorkerRuns.WithLabelValues("waitlist_sweep", "ok").Inc()
}
