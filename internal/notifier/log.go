package notifier

import (
	"context"
	"strings"

	logx "chronovault/pkg/logx"
)

// logNotifier writes the notification to the logger instead of a transport.
// Used for dry runs and local development.
type logNotifier struct {
	log logx.Logger
}

func NewLog(log logx.Logger) Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &logNotifier{log: log}
}

func (n *logNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	if strings.TrimSpace(recipient) == "" {
		return ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info("notification (dry run)",
		logx.String("recipient", recipient),
		logx.String("subject", subject),
		logx.Int("body_len", len(body)),
	)
	return nil
}
