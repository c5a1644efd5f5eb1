package notifier

import (
	"errors"
	"strings"

	logx "chronovault/pkg/logx"
)

// Open initializes the configured channel.
func Open(cfg Config, log logx.Logger) (Notifier, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Channel)) {
	case "smtp", "mail", "email":
		return newSMTP(cfg.SMTP)
	case "telegram":
		return newTelegram(cfg.Telegram, log)
	case "", "log":
		return NewLog(log), nil
	default:
		return nil, errors.New("unknown notifier channel: " + cfg.Channel)
	}
}
