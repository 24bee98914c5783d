// Package notify delivers booking notifications by email and mobile push.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

// Email is a multipart message with plain text and HTML bodies.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// EmailSender delivers a single email.
type EmailSender interface {
	Send(ctx context.Context, msg Email) error
}

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail through an SMTP relay using gomail.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender creates a new SMTPSender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send dials the relay and delivers msg. gomail has no context support, so a
// cancelled ctx abandons the wait but not the SMTP session itself.
func (s *SMTPSender) Send(ctx context.Context, msg Email) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("email to %s: %w", msg.To, ctx.Err())
	}
}

// LogEmailSender logs messages instead of sending them. It is wired when SMTP is not configured.
type LogEmailSender struct {
	logger *zap.Logger
}

// NewLogEmailSender creates a new LogEmailSender.
func NewLogEmailSender(logger *zap.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger}
}

// Send implements EmailSender.
func (s *LogEmailSender) Send(_ context.Context, msg Email) error {
	s.logger.Info("email delivery disabled, message dropped",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
