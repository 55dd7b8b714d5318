package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/nikhilbhutani/crmcore/internal/config"
)

// SMTPSender sends HTML mail through a submission server, upgrading
// with STARTTLS when the server offers it.
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	timeout  time.Duration
	now      func() time.Time
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password,
		from:     cfg.From,
		timeout:  15 * time.Second,
		now:      time.Now,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(s.timeout),
	}
	if s.user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.user),
			mail.WithPassword(s.password),
		)
	}
	client, err := mail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", s.host, err)
	}
	return nil
}

// build validates both addresses; header injection through them fails here.
func (s *SMTPSender) build(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("mail from %q: %w", s.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(s.now())
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}
