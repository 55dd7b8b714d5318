package notify

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/crmcore/internal/config"
)

func TestPasswordResetTemplate(t *testing.T) {
	link := "http://localhost:5173/reset-password?token=abc_DEF-123"
	msg, err := PasswordReset("ada@example.com", link, time.Hour)
	require.NoError(t, err)

	require.Equal(t, "ada@example.com", msg.To)
	require.Contains(t, msg.HTML, `href="`+link+`"`)
	require.Contains(t, msg.HTML, "expires in 1 hour")
}

func TestWelcomeTemplateEscapes(t *testing.T) {
	msg, err := Welcome("bob@example.com", "<script>Bob</script>", "Temp#1234")
	require.NoError(t, err)

	require.NotContains(t, msg.HTML, "<script>")
	require.Contains(t, msg.HTML, "&lt;script&gt;Bob")
	require.Contains(t, msg.HTML, "Temp#1234")
}

func TestHumanDuration(t *testing.T) {
	require.Equal(t, "1 hour", humanDuration(time.Hour))
	require.Equal(t, "2 hours", humanDuration(2*time.Hour))
	require.Equal(t, "30 minutes", humanDuration(30*time.Minute))
	require.Equal(t, "1.5s", humanDuration(1500*time.Millisecond))
}

func testSMTPSender(at time.Time) *SMTPSender {
	s := NewSMTPSender(config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "crm@example.com"})
	s.now = func() time.Time { return at }
	return s
}

func TestSMTPMessage(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m, err := testSMTPSender(at).build(Message{To: "ada@example.com", Subject: "Réinitialiser", HTML: "<p>hi</p>"})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	head, body, ok := strings.Cut(buf.String(), "\r\n\r\n")
	require.True(t, ok)
	lower := strings.ToLower(head)
	require.Contains(t, lower, "from: <crm@example.com>")
	require.Contains(t, lower, "to: <ada@example.com>")
	require.Contains(t, lower, "subject: =?utf-8?q?")
	require.Contains(t, lower, "content-type: text/html; charset=utf-8")
	require.Contains(t, head, "Fri, 02 Jan 2026 03:04:05 +0000")
	require.Contains(t, body, "<p>hi</p>")
}

func TestSMTPMessageRejectsHeaderInjection(t *testing.T) {
	s := testSMTPSender(time.Now())

	_, err := s.build(Message{To: "ada@example.com\r\nBcc: eve@example.com", Subject: "x", HTML: "x"})
	require.Error(t, err)

	_, err = s.build(Message{To: "", Subject: "x", HTML: "x"})
	require.Error(t, err)

	s.from = "crm@example.com\r\nBcc: eve@example.com"
	_, err = s.build(Message{To: "ada@example.com", Subject: "x", HTML: "x"})
	require.Error(t, err)
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, s.Send(context.Background(), Message{To: "x@example.com"}))
}
