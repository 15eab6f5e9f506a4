// Package email sends verification mail and tracks pending verification
// codes.
package email

import (
	"fmt"
	"strings"

	"github.com/Fusionaimcp4/Fusion/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Mailer sends transactional email through SMTP.
type Mailer struct {
	dialer      *gomail.Dialer
	from        string
	frontendURL string
}

// NewMailer constructs a Mailer from SMTP configuration. Returns nil when
// mail sending is not configured; callers treat a nil Mailer as disabled.
func NewMailer(cfg config.SMTPConfig) *Mailer {
	if !cfg.Enabled() {
		return nil
	}
	port := cfg.Port
	if port <= 0 {
		port = 587
	}
	return &Mailer{
		dialer:      gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
		from:        cfg.From,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
	}
}

// SendVerificationCode mails a verification code to the given address.
func (m *Mailer) SendVerificationCode(to, code string) error {
	if m == nil {
		return fmt.Errorf("email: mailer not configured")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Verify your Fusion AI email")

	link := ""
	if m.frontendURL != "" {
		link = fmt.Sprintf(`<p>Or open <a href="%s/verify-email?code=%s">the verification page</a>.</p>`, m.frontendURL, code)
	}
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Welcome to Fusion AI</h2>
			<p>Your verification code is:</p>
			<h1 style="letter-spacing: 5px;">%s</h1>
			<p>This code expires in 15 minutes.</p>
			%s
			<p>If you didn't create an account, you can ignore this email.</p>
		</div>
	`, code, link)
	msg.SetBody("text/html", body)

	if errSend := m.dialer.DialAndSend(msg); errSend != nil {
		log.WithError(errSend).WithField("to", to).Warn("email: failed to send verification code")
		return errSend
	}
	return nil
}
