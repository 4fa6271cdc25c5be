package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// DLQHandler handles failed tasks by moving them to Dead Letter Queue
type DLQHandler interface {
	HandleFailedTask(ctx context.Context, task *Task, err error)
	GetFailedTasks(ctx context.Context, limit int) ([]*FailedTask, error)
	RequeueFailedTask(ctx context.Context, taskID string) error
	DeleteFailedTask(ctx context.Context, taskID string) error
}

// FailedTask represents a task that failed execution
type FailedTask struct {
	Task     *Task     `json:"task"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
	Attempts int       `json:"attempts"`
}

// RedisDLQHandler keeps failed tasks in a sorted set scored by failure time.
type RedisDLQHandler struct {
	client    *redis.Client
	dlq       string
	mainQueue string
}

func NewRedisDLQHandler(client *redis.Client, dlq, mainQueue string) *RedisDLQHandler {
	return &RedisDLQHandler{
		client:    client,
		dlq:       dlq,
		mainQueue: mainQueue,
	}
}

// HandleFailedTask stores a failed task in the DLQ
func (d *RedisDLQHandler) HandleFailedTask(ctx context.Context, task *Task, err error) {
	failedTask := &FailedTask{
		Task:     task,
		Error:    err.Error(),
		FailedAt: time.Now(),
		Attempts: task.Attempts,
	}

	taskData, marshalErr := json.Marshal(failedTask)
	if marshalErr != nil {
		logrus.WithError(marshalErr).WithField("task_id", task.ID).Error("Failed to marshal failed task")
		return
	}

	// Detached from the caller: a task failing during shutdown still lands here.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	score := float64(failedTask.FailedAt.UnixNano()) / 1e9
	if redisErr := d.client.ZAdd(ctx, d.dlq, &redis.Z{Score: score, Member: taskData}).Err(); redisErr != nil {
		logrus.WithError(redisErr).WithField("task_id", task.ID).Error("Failed to send task to DLQ")
		return
	}

	logrus.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"task_type": task.Type,
		"attempts":  task.Attempts,
	}).WithError(err).Warn("Task moved to DLQ")
}

// GetFailedTasks returns the newest failures first.
func (d *RedisDLQHandler) GetFailedTasks(ctx context.Context, limit int) ([]*FailedTask, error) {
	if limit <= 0 {
		limit = 50
	}

	members, err := d.client.ZRevRange(ctx, d.dlq, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get failed tasks: %w", err)
	}

	failedTasks := make([]*FailedTask, 0, len(members))
	for _, member := range members {
		var failedTask FailedTask
		if err := json.Unmarshal([]byte(member), &failedTask); err != nil {
			logrus.WithError(err).Warn("Skipping unreadable DLQ entry")
			continue
		}
		failedTasks = append(failedTasks, &failedTask)
	}
	return failedTasks, nil
}

// RequeueFailedTask moves a failed task back to the main queue with a fresh
// attempt budget.
func (d *RedisDLQHandler) RequeueFailedTask(ctx context.Context, taskID string) error {
	member, failedTask, err := d.find(ctx, taskID)
	if err != nil {
		return err
	}

	failedTask.Task.Attempts = 0
	failedTask.Task.ExecuteAt = time.Now()

	taskData, err := json.Marshal(failedTask.Task)
	if err != nil {
		return fmt.Errorf("failed to marshal task for requeue: %w", err)
	}

	pipe := d.client.TxPipeline()
	pipe.LPush(ctx, d.mainQueue, taskData)
	pipe.ZRem(ctx, d.dlq, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to requeue task: %w", err)
	}

	logrus.WithField("task_id", taskID).Info("Task requeued from DLQ")
	return nil
}

// DeleteFailedTask permanently removes a failed task from DLQ
func (d *RedisDLQHandler) DeleteFailedTask(ctx context.Context, taskID string) error {
	member, _, err := d.find(ctx, taskID)
	if err != nil {
		return err
	}

	if err := d.client.ZRem(ctx, d.dlq, member).Err(); err != nil {
		return fmt.Errorf("failed to delete task from DLQ: %w", err)
	}

	logrus.WithField("task_id", taskID).Info("Task deleted from DLQ")
	return nil
}

func (d *RedisDLQHandler) find(ctx context.Context, taskID string) (string, *FailedTask, error) {
	members, err := d.client.ZRange(ctx, d.dlq, 0, -1).Result()
	if err != nil {
		return "", nil, fmt.Errorf("failed to get DLQ tasks: %w", err)
	}

	for _, member := range members {
		var failedTask FailedTask
		if err := json.Unmarshal([]byte(member), &failedTask); err != nil {
			continue
		}
		if failedTask.Task != nil && failedTask.Task.ID == taskID {
			return member, &failedTask, nil
		}
	}
	return "", nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
}
