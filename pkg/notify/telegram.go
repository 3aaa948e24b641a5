package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Telegram caps messages at 4096 characters.
const telegramMessageLimit = 4096

type Telegram struct {
	bot    *tele.Bot
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("notify: telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("notify: telegram chat id is not set")
	}
	// Send-only: no poller, just the API client.
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, text string) error {
	// telebot's Send has no context; bound it ourselves so a hung call
	// cannot stall the poll cycle.
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(
			&tele.Chat{ID: t.chatID},
			Truncate(text, telegramMessageLimit),
			&tele.SendOptions{DisableWebPagePreview: true},
		)
		done <- err
	}()

	timeout := time.NewTimer(15 * time.Second)
	defer timeout.Stop()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-timeout.C:
		return errors.New("telegram send timed out")
	}
}
