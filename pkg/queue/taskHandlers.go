package queue

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Mailer delivers a plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// TelegramBot posts a message to a chat.
type TelegramBot interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// TaskHandler executes the portal's notification tasks.
type TaskHandler struct {
	mailer      Mailer
	telegramBot TelegramBot
	staffChatID string
}

// NewTaskHandler builds a handler; mailer and telegramBot may be nil when the
// channel is disabled.
func NewTaskHandler(mailer Mailer, telegramBot TelegramBot, staffChatID string) *TaskHandler {
	return &TaskHandler{
		mailer:      mailer,
		telegramBot: telegramBot,
		staffChatID: staffChatID,
	}
}

// PromotionTask builds the task that tells a promoted user about their seat.
func PromotionTask(userID, email, name, courseName, slotLabel string, courseID int64) *Task {
	return &Task{
		Type: TaskTypeWaitlistPromoted,
		Data: map[string]interface{}{
			"user_id":     userID,
			"email":       email,
			"name":        name,
			"course_id":   courseID,
			"course_name": courseName,
			"slot_label":  slotLabel,
		},
	}
}

func StaffAlertTask(message string) *Task {
	return &Task{
		Type: TaskTypeStaffAlert,
		Data: map[string]interface{}{"message": message},
	}
}

func (h *TaskHandler) HandleTask(ctx context.Context, task *Task) error {
	logrus.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"task_type":   task.Type,
		"attempt":     task.Attempts,
		"max_retries": task.MaxRetries,
	}).Debug("Handling task")

	switch task.Type {
	case TaskTypeWaitlistPromoted:
		return h.handleWaitlistPromoted(ctx, task)
	case TaskTypeStaffAlert:
		return h.handleStaffAlert(ctx, task)
	default:
		return Permanent(fmt.Errorf("unknown task type: %s", task.Type))
	}
}

func (h *TaskHandler) handleWaitlistPromoted(ctx context.Context, task *Task) error {
	email, err := task.RequireString("email")
	if err != nil {
		return err
	}
	courseName, err := task.RequireString("course_name")
	if err != nil {
		return err
	}
	slot := task.GetString("slot_label")
	name := task.GetString("name")

	if h.mailer == nil {
		logrus.WithField("task_id", task.ID).Warn("Mailer disabled, promotion email not sent")
	} else {
		subject, body := PromotionMessage(name, courseName, slot)
		if err := h.mailer.Send(ctx, email, subject, body); err != nil {
			return fmt.Errorf("failed to send promotion email: %w", err)
		}
	}

	// The email already went out; a failed staff alert must not trigger a
	// retry that would send it twice.
	if h.telegramBot != nil && h.staffChatID != "" {
		text := fmt.Sprintf("Waitlist promotion: %s <%s> got a seat in %s (%s)", name, email, courseName, slot)
		if err := h.telegramBot.SendMessage(ctx, h.staffChatID, text); err != nil {
			logrus.WithError(err).WithField("task_id", task.ID).Warn("Failed to send staff alert")
		}
	}

	logrus.WithFields(logrus.Fields{
		"task_id":   task.ID,
		"user_id":   task.GetString("user_id"),
		"course_id": task.GetInt64("course_id"),
		"slot":      slot,
	}).Info("Promotion notification delivered")
	return nil
}

func (h *TaskHandler) handleStaffAlert(ctx context.Context, task *Task) error {
	message, err := task.RequireString("message")
	if err != nil {
		return err
	}
	if h.telegramBot == nil || h.staffChatID == "" {
		return nil
	}
	if err := h.telegramBot.SendMessage(ctx, h.staffChatID, message); err != nil {
		return fmt.Errorf("failed to send staff alert: %w", err)
	}
	return nil
}

// PromotionMessage renders the email a promoted user receives.
func PromotionMessage(name, courseName, slot string) (subject, body string) {
	if name == "" {
		name = "there"
	}
	subject = fmt.Sprintf("You got a seat in %s", courseName)
	body = fmt.Sprintf(
		"Hello %s,\n\nA seat opened up and you have been moved from the waitlist into %s (%s).\n"+
			"Your enrollment is already confirmed. If you no longer need the seat, please withdraw in the portal so the next person can take it.\n",
		name, courseName, slot,
	)
	return subject, body
}
