package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeEmailDelivery is the asynq task type for outbound transactional email.
const TypeEmailDelivery = "notify:email"

// DefaultQueue is the asynq queue emails are enqueued on.
const DefaultQueue = "notifications"

// EmailTask is the payload carried by a TypeEmailDelivery task.
type EmailTask struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewEmailTask builds an asynq task for a single email delivery.
func NewEmailTask(payload EmailTask) (*asynq.Task, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notify: encode email task: %w", err)
	}
	return asynq.NewTask(TypeEmailDelivery, encoded), nil
}

// Enqueuer pushes email deliveries onto the task queue.
type Enqueuer struct {
	Client *asynq.Client
	Queue  string
}

// EnqueueEmail schedules an email for asynchronous delivery.
func (e Enqueuer) EnqueueEmail(ctx context.Context, payload EmailTask) error {
	if e.Client == nil {
		return fmt.Errorf("notify: task client not configured")
	}
	task, err := NewEmailTask(payload)
	if err != nil {
		return err
	}
	queue := e.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	_, err = e.Client.EnqueueContext(ctx, task, asynq.Queue(queue), asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("notify: enqueue email: %w", err)
	}
	return nil
}
