package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/crmcore/internal/notify"
	"github.com/nikhilbhutani/crmcore/internal/queue"
)

// EmailWorker delivers queued email through a synchronous sender.
type EmailWorker struct {
	sender notify.Sender
}

func NewEmailWorker(sender notify.Sender) *EmailWorker {
	return &EmailWorker{sender: sender}
}

func (w *EmailWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.EmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email task without recipient: %w", asynq.SkipRetry)
	}

	if err := w.sender.Send(ctx, notify.Message{To: payload.To, Subject: payload.Subject, HTML: payload.HTML}); err != nil {
		slog.Warn("email delivery failed", "subject", payload.Subject, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	slog.Info("email delivered", "subject", payload.Subject)
	return nil
}
