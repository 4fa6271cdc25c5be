package queue

import (
	"context"
)

// Queue is a durable task queue.
type Queue interface {
	Publish(ctx context.Context, task *Task) error
	Subscribe(ctx context.Context, handler HandlerFunc) error
	Close() error
}

// HandlerFunc executes one task. Returning a permanent error (see Permanent)
// skips the remaining retries.
type HandlerFunc func(ctx context.Context, task *Task) error
