package notifier

import (
	"context"
	"errors"
	"time"
)

var ErrNoRecipient = errors.New("notifier: empty recipient")

// Notifier attempts to reach a recipient with a rendered message.
//
// Send is best-effort: a nil return means the transport accepted the
// message, a non-nil return means this attempt failed and the caller may
// retry later. Implementations must honor ctx cancellation.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Config selects and configures the outbound channel.
type Config struct {
	Channel  string
	SMTP     SMTPConfig
	Telegram TelegramConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	StartTLS bool

	// DialTimeout bounds connection establishment; 0 means 10s.
	DialTimeout time.Duration
}

type TelegramConfig struct {
	Token string
}
