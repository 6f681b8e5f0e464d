package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"erpai/internal/config"
)

// SMTPMailer delivers action-triggered mail over plain SMTP.
type SMTPMailer struct {
	Addr     string
	From     string
	Username string
	Password string
}

// New returns a mailer, or nil when mail is not configured.
func New(cfg config.MailerConfig) *SMTPMailer {
	if strings.TrimSpace(cfg.SMTPAddr) == "" {
		return nil
	}
	return &SMTPMailer{
		Addr:     cfg.SMTPAddr,
		From:     cfg.From,
		Username: cfg.Username,
		Password: cfg.Password,
	}
}

var sendMail = smtp.SendMail

func (m *SMTPMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return errors.New("no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if m.Username != "" {
		host := m.Addr
		if idx := strings.LastIndex(host, ":"); idx >= 0 {
			host = host[:idx]
		}
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		m.From, strings.Join(to, ", "), subject, body)
	return sendMail(m.Addr, auth, m.From, to, []byte(msg))
}
