package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "dealbot/internal/transport"
)

type Config struct {
	Token string
	// Timeout bounds every outbound API call.
	Timeout time.Duration
}

// Adapter implements kit.Adapter on top of telebot.
// This bot is send-only: it never polls for updates.
type Adapter struct {
	bot *tele.Bot
}

func New(cfg Config) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Adapter{bot: b}, nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	_, err := a.send(ctx, to, text, nil, opt)
	return err
}

func (a *Adapter) SendPhoto(ctx context.Context, to kit.ChatTarget, photoURL, caption string, opt *kit.SendOptions) error {
	photo := &tele.Photo{File: tele.FromURL(photoURL), Caption: caption}
	_, err := a.send(ctx, to, "", photo, opt)
	return err
}

func (a *Adapter) send(ctx context.Context, to kit.ChatTarget, text string, photo *tele.Photo, opt *kit.SendOptions) (*tele.Message, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chat := &tele.Chat{ID: to.ChatID}
	sendOpt := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}
	if opt.ButtonText != "" && opt.ButtonURL != "" {
		rm := &tele.ReplyMarkup{}
		rm.Inline(rm.Row(rm.URL(opt.ButtonText, opt.ButtonURL)))
		sendOpt.ReplyMarkup = rm
	}

	// telebot has no per-call context; honor cancellation up front.
	if ctx != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	if photo != nil {
		return a.bot.Send(chat, photo, sendOpt)
	}
	return a.bot.Send(chat, text, sendOpt)
}
