package render

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/mishka20003-proger/live-sales-notifications/internal/cycle"
	"github.com/mishka20003-proger/live-sales-notifications/internal/eventbus"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

// TelegramBot is a send-only Telegram client. It satisfies logx.Sender so the
// same bot can carry log lines.
type TelegramBot struct {
	bot *tele.Bot
}

func NewTelegramBot(token string) (*TelegramBot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &TelegramBot{bot: b}, nil
}

func (t *TelegramBot) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	return err
}

// Mirror forwards shown notifications from the event bus to a chat. It runs
// off the bus so a slow network never stalls the cycle runner; events are
// dropped when the subscription buffer is full.
type Mirror struct {
	send   logx.Sender
	chatID int64
	log    logx.Logger
	now    func() time.Time
}

func NewMirror(send logx.Sender, chatID int64, log logx.Logger) *Mirror {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Mirror{send: send, chatID: chatID, log: log, now: time.Now}
}

// Run consumes bus events until ctx is done.
func (m *Mirror) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(32, cycle.EventShown)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			shown, ok := ev.Data.(cycle.Shown)
			if !ok {
				continue
			}
			n := Build(shown.Event, shown.Flags, m.now())
			sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := m.send.SendText(sctx, m.chatID, telegramText(n))
			cancel()
			if err != nil {
				m.log.Warn("telegram mirror send failed", logx.String("id", n.ID), logx.Err(err))
			}
		}
	}
}
