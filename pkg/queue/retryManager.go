package queue

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryManager manages retry logic for failed tasks
type RetryManager struct {
	baseDelay time.Duration
	maxDelay  time.Duration
	jitter    func(n int64) int64
}

// NewRetryManager creates a new RetryManager
func NewRetryManager(baseDelay time.Duration) *RetryManager {
	return &RetryManager{
		baseDelay: baseDelay,
		maxDelay:  baseDelay * 16, // Maximum 16x base delay
		jitter:    rand.Int63n,
	}
}

// ShouldRetry determines if a task should be retried and returns the delay
func (r *RetryManager) ShouldRetry(task *Task, err error) (bool, time.Duration) {
	if task.Attempts >= task.MaxRetries {
		return false, 0
	}
	if !r.isRetryableError(err) {
		return false, 0
	}
	return true, r.calculateBackoff(task.Attempts)
}

func (r *RetryManager) isRetryableError(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// calculateBackoff returns base * 2^(attempt-1) with ±25% jitter, capped at
// maxDelay.
func (r *RetryManager) calculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return r.baseDelay
	}

	backoff := r.baseDelay * time.Duration(1<<(attempt-1))
	if backoff > r.maxDelay {
		backoff = r.maxDelay
	}

	if quarter := int64(backoff / 4); quarter > 0 {
		backoff += time.Duration(r.jitter(2*quarter+1) - quarter)
	}

	if backoff > r.maxDelay {
		backoff = r.maxDelay
	}
	return backoff
}
