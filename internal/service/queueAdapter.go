package service

import (
	"context"

	"github.com/ds124wfegd/courseportal/internal/entity"
	"github.com/ds124wfegd/courseportal/pkg/queue"
)

// TaskPublisher is the publishing half of queue.Queue.
type TaskPublisher interface {
	Publish(ctx context.Context, task *queue.Task) error
}

// QueueNotifier turns promotions into waitlist_promoted tasks; delivery and
// retries happen in the queue workers.
type QueueNotifier struct {
	queue TaskPublisher
}

func NewQueueNotifier(q TaskPublisher) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

func (n *QueueNotifier) NotifyPromotion(ctx context.Context, p entity.Promotion) error {
	if n.queue == nil {
		return nil
	}
	return n.queue.Publish(ctx, queue.PromotionTask(p.UserID, p.Email, p.Name, p.CourseName, p.SlotLabel, p.CourseID))
}
