package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ds124wfegd/courseportal/internal/metrics"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries   = 3
	defaultBaseDelay    = 5 * time.Second
	defaultQueueTimeout = 5 * time.Second
	defaultPollInterval = 10 * time.Second
)

// RedisQueue implements Queue on a Redis list (ready tasks), a sorted set
// (delayed tasks, scored by execute time) and a per-instance processing list
// that holds a task while one of this instance's workers runs it.
type RedisQueue struct {
	client          *redis.Client
	mainQueue       string
	delayedQueue    string
	processingQueue string
	retryManager    *RetryManager
	dlqHandler      DLQHandler
	config          *RedisQueueConfig
	stopChan        chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// RedisQueueConfig contains configuration for RedisQueue
type RedisQueueConfig struct {
	MainQueue       string
	DelayedQueue    string
	ProcessingQueue string
	DLQ             string

	MaxRetries   int
	BaseDelay    time.Duration
	QueueTimeout time.Duration
	PollInterval time.Duration
	Workers      int

	// InstanceID scopes the processing list, so recovery on startup only
	// touches tasks this instance was running. It must be stable across
	// restarts of the same instance.
	InstanceID string
}

// DefaultRedisQueueConfig returns default configuration
func DefaultRedisQueueConfig() *RedisQueueConfig {
	return &RedisQueueConfig{
		MainQueue:       "coursereg:tasks",
		DelayedQueue:    "coursereg:tasks:delayed",
		ProcessingQueue: "coursereg:tasks:processing",
		DLQ:             "coursereg:dlq",
		MaxRetries:      defaultMaxRetries,
		BaseDelay:       defaultBaseDelay,
		QueueTimeout:    defaultQueueTimeout,
		PollInterval:    defaultPollInterval,
		Workers:         1,
		InstanceID:      defaultInstanceID(),
	}
}

func defaultInstanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

// NewRedisQueue wraps an already connected client. A nil dlqHandler stores
// failures in cfg.DLQ.
func NewRedisQueue(client *redis.Client, cfg *RedisQueueConfig, dlqHandler DLQHandler) *RedisQueue {
	if cfg == nil {
		cfg = DefaultRedisQueueConfig()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if dlqHandler == nil {
		dlqHandler = NewRedisDLQHandler(client, cfg.DLQ, cfg.MainQueue)
	}
	processing := cfg.ProcessingQueue
	if cfg.InstanceID != "" {
		processing += ":" + cfg.InstanceID
	}

	logrus.WithFields(logrus.Fields{
		"main":       cfg.MainQueue,
		"delayed":    cfg.DelayedQueue,
		"processing": processing,
		"dlq":        cfg.DLQ,
	}).Info("RedisQueue initialized")

	return &RedisQueue{
		client:          client,
		mainQueue:       cfg.MainQueue,
		delayedQueue:    cfg.DelayedQueue,
		processingQueue: processing,
		retryManager:    NewRetryManager(cfg.BaseDelay),
		dlqHandler:      dlqHandler,
		config:          cfg,
		stopChan:        make(chan struct{}),
	}
}

// DLQ exposes the dead letter queue for admin tooling.
func (r *RedisQueue) DLQ() DLQHandler {
	return r.dlqHandler
}

// Publish sends a task to the queue
func (r *RedisQueue) Publish(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	r.applyDefaults(task)
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	log := logrus.WithFields(logrus.Fields{"task_id": task.ID, "task_type": task.Type})

	if task.ExecuteAt.After(time.Now()) {
		score := float64(task.ExecuteAt.UnixNano()) / 1e9
		if err := r.client.ZAdd(ctx, r.delayedQueue, &redis.Z{Score: score, Member: taskData}).Err(); err != nil {
			return fmt.Errorf("failed to publish delayed task: %w", err)
		}
		metrics.QueueTasks.WithLabelValues(string(task.Type), "delayed").Inc()
		log.WithField("execute_at", task.ExecuteAt.Format(time.RFC3339)).Debug("Task scheduled")
		return nil
	}

	if err := r.client.LPush(ctx, r.mainQueue, taskData).Err(); err != nil {
		return fmt.Errorf("failed to publish immediate task: %w", err)
	}
	metrics.QueueTasks.WithLabelValues(string(task.Type), "queued").Inc()
	log.Debug("Task published to main queue")
	return nil
}

// Subscribe starts the delayed-task mover and cfg.Workers consumers. They
// stop when ctx is done or Close is called.
func (r *RedisQueue) Subscribe(ctx context.Context, handler HandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	// Tasks left in the processing list by a crashed worker go back first.
	if err := r.recoverProcessing(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to recover in-flight tasks")
	}

	r.wg.Add(1)
	go r.processDelayedTasks(ctx)

	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.processMainQueue(ctx, handler)
	}

	logrus.WithField("workers", r.config.Workers).Info("RedisQueue subscriber started")
	return nil
}

func (r *RedisQueue) processMainQueue(ctx context.Context, handler HandlerFunc) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		default:
			if err := r.processOne(ctx, handler); err != nil {
				logrus.WithError(err).Error("Error processing task")
				select {
				case <-ctx.Done():
					return
				case <-r.stopChan:
					return
				case <-time.After(time.Second): // Backoff on error
				}
			}
		}
	}
}

func (r *RedisQueue) processOne(ctx context.Context, handler HandlerFunc) error {
	taskData, err := r.client.BRPopLPush(ctx, r.mainQueue, r.processingQueue, r.config.QueueTimeout).Result()
	if err == redis.Nil {
		return nil // Timeout, no tasks
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to move task to processing queue: %w", err)
	}

	var task Task
	if err := json.Unmarshal([]byte(taskData), &task); err != nil {
		r.dlqHandler.HandleFailedTask(ctx, &Task{
			ID:        "corrupted_" + uuid.NewString(),
			Type:      "corrupted",
			Data:      map[string]interface{}{"raw_data": taskData},
			CreatedAt: time.Now(),
		}, fmt.Errorf("invalid task format: %w", err))
	} else if err := r.executeTaskWithRetry(ctx, &task, handler); err != nil {
		if ctx.Err() != nil {
			// Shutting down: leave the task for recoverProcessing.
			logrus.WithField("task_id", task.ID).Info("Task interrupted by shutdown, kept for recovery")
			return nil
		}
		metrics.QueueTasks.WithLabelValues(string(task.Type), "dead_lettered").Inc()
		r.dlqHandler.HandleFailedTask(ctx, &task, err)
	} else {
		metrics.QueueTasks.WithLabelValues(string(task.Type), "done").Inc()
	}

	// Remove from processing queue once the task is done or dead-lettered
	if err := r.client.LRem(context.WithoutCancel(ctx), r.processingQueue, 1, taskData).Err(); err != nil {
		logrus.WithError(err).Warn("Failed to remove task from processing queue")
	}
	return nil
}

func (r *RedisQueue) executeTaskWithRetry(ctx context.Context, task *Task, handler HandlerFunc) error {
	for {
		task.Attempts++

		err := handler(ctx, task)
		if err == nil {
			return nil
		}

		shouldRetry, delay := r.retryManager.ShouldRetry(task, err)
		if !shouldRetry {
			return err
		}

		metrics.QueueTasks.WithLabelValues(string(task.Type), "retried").Inc()
		logrus.WithFields(logrus.Fields{
			"task_id":     task.ID,
			"attempt":     task.Attempts,
			"max_retries": task.MaxRetries,
			"delay":       delay.String(),
		}).WithError(err).Warn("Task failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			// Continue to next attempt
		}
	}
}

func (r *RedisQueue) processDelayedTasks(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			if err := r.moveReadyDelayedTasks(ctx); err != nil {
				logrus.WithError(err).Error("Failed to process delayed tasks")
			}
		}
	}
}

// moveReadyDelayedTasks moves ready delayed tasks to main queue
func (r *RedisQueue) moveReadyDelayedTasks(ctx context.Context) error {
	now := fmt.Sprintf("%f", float64(time.Now().UnixNano())/1e9)

	tasks, err := r.client.ZRangeByScore(ctx, r.delayedQueue, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get delayed tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	for _, taskData := range tasks {
		pipe.LPush(ctx, r.mainQueue, taskData)
		pipe.ZRem(ctx, r.delayedQueue, taskData)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to move delayed tasks: %w", err)
	}

	logrus.WithField("count", len(tasks)).Debug("Moved delayed tasks to main queue")
	return nil
}

func (r *RedisQueue) recoverProcessing(ctx context.Context) error {
	for {
		err := r.client.RPopLPush(ctx, r.processingQueue, r.mainQueue).Err()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (r *RedisQueue) applyDefaults(task *Task) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.MaxRetries == 0 {
		task.MaxRetries = r.config.MaxRetries
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.ExecuteAt.IsZero() {
		task.ExecuteAt = now
	}
}

// HealthCheck pings the underlying Redis connection.
func (r *RedisQueue) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// Close stops consumers and waits for in-flight tasks. The Redis client is
// owned by the caller.
func (r *RedisQueue) Close() error {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
	logrus.Info("RedisQueue closed")
	return nil
}

