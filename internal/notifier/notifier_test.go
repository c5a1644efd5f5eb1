package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	logx "chronovault/pkg/logx"
)

func TestOpenChannelSelection(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Channel: "log"}, logx.Nop()); err != nil {
		t.Fatalf("open log: %v", err)
	}
	// Empty channel falls back to the dry-run logger.
	if _, err := Open(Config{}, logx.Nop()); err != nil {
		t.Fatalf("open default: %v", err)
	}
	if _, err := Open(Config{Channel: "morse"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown channel")
	}
	if _, err := Open(Config{Channel: "smtp"}, logx.Nop()); err == nil {
		t.Fatal("expected error for smtp without host")
	}
	if _, err := Open(Config{
		Channel: "smtp",
		SMTP:    SMTPConfig{Host: "mail.example.com"},
	}, logx.Nop()); err == nil {
		t.Fatal("expected error for smtp without from address")
	}
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()
	n := NewLog(logx.Nop())
	if err := n.Send(context.Background(), "someone", "subject", "body"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := n.Send(context.Background(), "  ", "subject", "body"); !errors.Is(err, ErrNoRecipient) {
		t.Fatalf("empty recipient = %v, want ErrNoRecipient", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Send(ctx, "someone", "s", "b"); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestBuildMail(t *testing.T) {
	t.Parallel()
	raw := string(buildMail("vault@example.com", "you@example.com", "A Subject", "line one\nline two"))

	header, body, ok := strings.Cut(raw, "\r\n\r\n")
	if !ok {
		t.Fatalf("no header/body separator:\n%q", raw)
	}
	for _, want := range []string{
		"From: vault@example.com",
		"To: you@example.com",
		"Subject: A Subject",
		"Content-Type: text/plain; charset=utf-8",
	} {
		if !strings.Contains(header, want) {
			t.Fatalf("header missing %q:\n%s", want, header)
		}
	}
	if !strings.Contains(body, "line one\r\nline two") {
		t.Fatalf("body newlines not normalized to CRLF:\n%q", body)
	}
	if strings.Contains(strings.ReplaceAll(raw, "\r\n", ""), "\n") {
		t.Fatal("bare LF left in message")
	}
}
