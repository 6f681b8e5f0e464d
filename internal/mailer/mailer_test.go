package mailer

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"erpai/internal/config"
)

func TestNewDisabled(t *testing.T) {
	if m := New(config.MailerConfig{}); m != nil {
		t.Fatalf("expected nil mailer")
	}
}

func TestSendBuildsMessage(t *testing.T) {
	old := sendMail
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}
	defer func() { sendMail = old }()

	m := New(config.MailerConfig{SMTPAddr: "mail:25", From: "bot@example.com"})
	err := m.Send(context.Background(), []string{"ops@example.com"}, "Order update", "Order 42 shipped")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if gotAddr != "mail:25" || gotFrom != "bot@example.com" || len(gotTo) != 1 {
		t.Fatalf("addr=%s from=%s to=%v", gotAddr, gotFrom, gotTo)
	}
	body := string(gotMsg)
	if !strings.Contains(body, "Subject: Order update") || !strings.Contains(body, "Order 42 shipped") {
		t.Fatalf("msg: %s", body)
	}
}

func TestSendNoRecipients(t *testing.T) {
	m := &SMTPMailer{Addr: "mail:25", From: "bot@example.com"}
	if err := m.Send(context.Background(), nil, "s", "b"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSendCancelledContext(t *testing.T) {
	m := &SMTPMailer{Addr: "mail:25", From: "bot@example.com"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, []string{"x@example.com"}, "s", "b"); err == nil {
		t.Fatalf("expected error")
	}
}
