package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	err  error
	sent []string
}

func (m *fakeMailer) Send(_ context.Context, to, subject, _ string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

type fakeBot struct {
	err      error
	messages []string
}

func (b *fakeBot) SendMessage(_ context.Context, chatID, text string) error {
	if b.err != nil {
		return b.err
	}
	b.messages = append(b.messages, chatID+"|"+text)
	return nil
}

func TestTaskHandlerWaitlistPromoted(t *testing.T) {
	mailer := &fakeMailer{}
	bot := &fakeBot{}
	h := NewTaskHandler(mailer, bot, "staff")

	task := PromotionTask("u1", "ann@example.com", "Ann", "Physics", "after lunch", 7)
	task.ID = "t1"

	require.NoError(t, h.HandleTask(context.Background(), task))
	assert.Equal(t, []string{"ann@example.com|You got a seat in Physics"}, mailer.sent)
	require.Len(t, bot.messages, 1)
	assert.Contains(t, bot.messages[0], "staff|")
	assert.Contains(t, bot.messages[0], "Physics (after lunch)")
}

func TestTaskHandlerStaffAlertFailureDoesNotFailPromotion(t *testing.T) {
	mailer := &fakeMailer{}
	h := NewTaskHandler(mailer, &fakeBot{err: errors.New("telegram down")}, "staff")

	err := h.HandleTask(context.Background(), PromotionTask("u1", "ann@example.com", "Ann", "Physics", "single", 1))
	require.NoError(t, err)
	assert.Len(t, mailer.sent, 1)
}

func TestTaskHandlerErrors(t *testing.T) {
	tests := []struct {
		name      string
		handler   *TaskHandler
		task      *Task
		permanent bool
	}{
		{
			name:      "unknown type",
			handler:   NewTaskHandler(nil, nil, ""),
			task:      &Task{ID: "x", Type: "nope"},
			permanent: true,
		},
		{
			name:      "missing email",
			handler:   NewTaskHandler(&fakeMailer{}, nil, ""),
			task:      PromotionTask("u1", "", "Ann", "Physics", "single", 1),
			permanent: true,
		},
		{
			name:      "smtp failure is retryable",
			handler:   NewTaskHandler(&fakeMailer{err: errors.New("connection refused")}, nil, ""),
			task:      PromotionTask("u1", "ann@example.com", "Ann", "Physics", "single", 1),
			permanent: false,
		},
		{
			name:      "staff alert failure is retryable",
			handler:   NewTaskHandler(nil, &fakeBot{err: errors.New("timeout")}, "staff"),
			task:      StaffAlertTask("hello"),
			permanent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.handler.HandleTask(context.Background(), tt.task)
			require.Error(t, err)
			assert.Equal(t, tt.permanent, IsPermanent(err))
		})
	}
}

func TestRetryManagerShouldRetry(t *testing.T) {
	rm := NewRetryManager(time.Second)
	rm.jitter = func(n int64) int64 { return n / 2 } // no jitter

	tests := []struct {
		name      string
		attempts  int
		err       error
		wantRetry bool
		wantDelay time.Duration
	}{
		{"first failure", 1, errors.New("boom"), true, time.Second},
		{"second failure", 2, errors.New("boom"), true, 2 * time.Second},
		{"budget spent", 3, errors.New("boom"), false, 0},
		{"permanent", 1, Permanent(errors.New("bad data")), false, 0},
		{"canceled", 1, context.Canceled, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Attempts: tt.attempts, MaxRetries: 3}
			retry, delay := rm.ShouldRetry(task, tt.err)
			assert.Equal(t, tt.wantRetry, retry)
			assert.Equal(t, tt.wantDelay, delay)
		})
	}
}

func TestRetryManagerBackoffBounds(t *testing.T) {
	rm := NewRetryManager(100 * time.Millisecond)

	for attempt := 1; attempt <= 8; attempt++ {
		delay := rm.calculateBackoff(attempt)
		assert.Greater(t, delay, time.Duration(0))
		assert.LessOrEqual(t, delay, rm.maxDelay)
	}
}

func TestTaskGetters(t *testing.T) {
	task := &Task{ID: "t", Type: TaskTypeStaffAlert, Data: map[string]interface{}{
		"s": "value",
		"f": float64(42),
		"i": 7,
	}}

	assert.Equal(t, "value", task.GetString("s"))
	assert.Equal(t, "", task.GetString("f"))
	assert.Equal(t, int64(42), task.GetInt64("f"))
	assert.Equal(t, int64(7), task.GetInt64("i"))
	assert.Equal(t, int64(0), task.GetInt64("missing"))

	_, err := task.RequireString("missing")
	assert.True(t, IsPermanent(err))
	assert.NoError(t, task.Validate())
}
