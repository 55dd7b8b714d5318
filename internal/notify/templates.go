package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var (
	resetTmpl = template.Must(template.New("reset").Parse(`<html><body>
<h2>Password Reset</h2>
<p>Click the link below to reset your CRM password. This link expires in {{.Expires}}.</p>
<p><a href="{{.Link}}" style="background:#6366f1;color:#fff;padding:10px 20px;border-radius:6px;text-decoration:none;">Reset Password</a></p>
<p>If you did not request a password reset, ignore this email.</p>
</body></html>
`))

	welcomeTmpl = template.Must(template.New("welcome").Parse(`<html><body>
<h2>Welcome, {{.Name}}!</h2>
<p>Your CRM account has been created by your administrator.</p>
<p><strong>Email:</strong> {{.Email}}<br>
<strong>Temporary Password:</strong> {{.Password}}</p>
<p>Please log in and change your password immediately.</p>
</body></html>
`))
)

// PasswordReset builds the reset email for link, valid for ttl.
func PasswordReset(to, link string, ttl time.Duration) (Message, error) {
	var buf bytes.Buffer
	err := resetTmpl.Execute(&buf, struct {
		Link    string
		Expires string
	}{link, humanDuration(ttl)})
	if err != nil {
		return Message{}, fmt.Errorf("render reset email: %w", err)
	}
	return Message{To: to, Subject: "CRM - Password Reset Request", HTML: buf.String()}, nil
}

// Welcome builds the account-created email carrying a temporary password.
func Welcome(to, name, tempPassword string) (Message, error) {
	var buf bytes.Buffer
	err := welcomeTmpl.Execute(&buf, struct {
		Name     string
		Email    string
		Password string
	}{name, to, tempPassword})
	if err != nil {
		return Message{}, fmt.Errorf("render welcome email: %w", err)
	}
	return Message{To: to, Subject: "Welcome to CRM - Your Account Details", HTML: buf.String()}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
