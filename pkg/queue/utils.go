package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTaskNotFound is returned by DLQ operations for an unknown task id.
var ErrTaskNotFound = errors.New("task not found")

type TaskType string

const (
	// TaskTypeWaitlistPromoted tells a promoted user they got a seat.
	TaskTypeWaitlistPromoted TaskType = "waitlist_promoted"
	// TaskTypeStaffAlert posts a free-form message to the staff chat.
	TaskTypeStaffAlert TaskType = "staff_alert"
)

// Task represents a unit of work in the queue
type Task struct {
	ID         string                 `json:"id"`
	Type       TaskType               `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	CreatedAt  time.Time              `json:"created_at"`
	Attempts   int                    `json:"attempts"`
	MaxRetries int                    `json:"max_retries"`
}

// Validate checks if the task is valid
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task ID is required")
	}
	if strings.TrimSpace(string(t.Type)) == "" {
		return fmt.Errorf("task type is required")
	}
	if t.Data == nil {
		t.Data = make(map[string]interface{})
	}
	return nil
}

// GetString returns a string value from task data
func (t *Task) GetString(key string) string {
	if val, ok := t.Data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetInt64 returns an integer value from task data. Numbers decoded from
// JSON arrive as float64.
func (t *Task) GetInt64(key string) int64 {
	if val, ok := t.Data[key]; ok {
		switch v := val.(type) {
		case int:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}

// RequireString is GetString that fails permanently on a missing value.
func (t *Task) RequireString(key string) (string, error) {
	s := t.GetString(key)
	if s == "" {
		return "", Permanent(fmt.Errorf("task %s: missing %q", t.ID, key))
	}
	return s, nil
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
