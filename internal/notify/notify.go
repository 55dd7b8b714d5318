// Package notify delivers transactional email. Callers depend on Sender;
// the concrete sender (SMTP, queued, log-only) is chosen at startup.
package notify

import (
	"context"
	"log/slog"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender records messages instead of sending them. It is the sender
// when no SMTP server is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email not sent, no SMTP configured", "to", msg.To, "subject", msg.Subject)
	return nil
}
