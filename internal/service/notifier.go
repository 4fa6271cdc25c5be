package service

import (
	"context"
	"sync"
	"time"

	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/ds124wfegd/courseportal/internal/metrics"
	"github.com/ds124wfegd/courseportal/pkg/queue"
	"github.com/sirupsen/logrus"
)

// TaskRunner executes a task in process.
type TaskRunner interface {
	HandleTask(ctx context.Context, task *queue.Task) error
}

// DirectNotifier runs the promotion task in a goroutine instead of going
// through Redis. There is no retry; failures are logged.
type DirectNotifier struct {
	runner  TaskRunner
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDirectNotifier(runner TaskRunner, timeout time.Duration) *DirectNotifier {
	return &DirectNotifier{runner: runner, timeout: timeout}
}

func (n *DirectNotifier) NotifyPromotion(ctx context.Context, p entity.Promotion) error {
	task := queue.PromotionTask(p.UserID, p.Email, p.Name, p.CourseName, p.SlotLabel, p.CourseID)
	task.ID = "direct_" + p.UserID

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()

		if err := n.runner.HandleTask(tctx, task); err != nil {
			metrics.NotificationFailures.Inc()
			logrus.WithError(err).WithFields(logrus.Fields{
				"user_id":   p.UserID,
				"course_id": p.CourseID,
			}).Error("Direct promotion notification failed")
		}
	}()
	return nil
}

// Wait blocks until pending notifications finished.
func (n *DirectNotifier) Wait() {
	n.wg.Wait()
}
