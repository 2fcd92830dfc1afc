package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/cargotrack/backend-cargo/internal/common"
)

// EmailWorker consumes email delivery tasks from the queue.
type EmailWorker struct {
	Mail   common.EmailSender
	Logger *zerolog.Logger
}

// ProcessTask implements asynq.Handler for TypeEmailDelivery tasks.
func (w EmailWorker) ProcessTask(_ context.Context, task *asynq.Task) error {
	var payload EmailTask
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("notify: decode email task: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("notify: email task without recipient: %w", asynq.SkipRetry)
	}
	if w.Mail == nil {
		return fmt.Errorf("notify: mailer not configured")
	}
	if err := w.Mail.Send(payload.To, payload.Subject, payload.Body); err != nil {
		return fmt.Errorf("notify: send email: %w", err)
	}
	if w.Logger != nil {
		w.Logger.Info().Str("to", payload.To).Str("subject", payload.Subject).Msg("email delivered")
	}
	return nil
}

// NewMux wires the notification task handlers onto an asynq mux.
func NewMux(worker EmailWorker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeEmailDelivery, worker)
	return mux
}
