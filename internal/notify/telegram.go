package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "staywatch/pkg/logx"
)

// TelegramSender is a send-only Telegram channel. No poller is started; the
// bot object is used purely as an outbound API client.
type TelegramSender struct {
	bot    *tele.Bot
	chatID int64
	log    logx.Logger
}

func NewTelegramSender(token string, chatID int64, log logx.Logger) (*TelegramSender, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram: token is missing from environment")
	}
	if chatID == 0 {
		return nil, errors.New("telegram: chat_id is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: b, chatID: chatID, log: log}, nil
}

func (t *TelegramSender) Name() string { return "telegram" }

// Send posts the plain text to the configured chat. Attachments are sent as
// documents; HTML bodies are dropped (Telegram has its own markup rules).
func (t *TelegramSender) Send(ctx context.Context, m Message) error {
	rec := &tele.Chat{ID: t.chatID}

	text := m.Text
	if m.Subject != "" {
		text = m.Subject + "\n" + text
	}

	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(rec, text, &tele.SendOptions{DisableWebPagePreview: true})
		if err == nil {
			for _, a := range m.Attachments {
				doc := &tele.Document{
					File:     tele.FromReader(strings.NewReader(string(a.Data))),
					FileName: a.Filename,
					MIME:     a.MIMEType,
				}
				if _, derr := t.bot.Send(rec, doc); derr != nil {
					err = derr
					break
				}
			}
		}
		done <- err
	}()

	// telebot calls don't take a context; bound them ourselves.
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return errors.New("telegram: send timed out")
	}
}
