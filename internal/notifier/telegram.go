package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	logx "chronovault/pkg/logx"
)

// telegramNotifier sends via the Bot API. The recipient is a numeric chat id.
type telegramNotifier struct {
	bot *tele.Bot
	log logx.Logger
}

func newTelegram(cfg TelegramConfig, log logx.Logger) (Notifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	// Send-only: no poller attached.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &telegramNotifier{bot: b, log: log}, nil
}

func (n *telegramNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	if strings.TrimSpace(recipient) == "" {
		return ErrNoRecipient
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(recipient), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram recipient %q is not a chat id: %w", recipient, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := body
	if subject != "" {
		text = subject + "\n\n" + body
	}
	_, err = n.bot.Send(&tele.Chat{ID: chatID}, text)
	return err
}
