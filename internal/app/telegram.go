package app

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"
)

// botTransport отправляет RelayContent через Telegram Bot API.
type botTransport struct {
	bot *tele.Bot
}

func newBotTransport(bot *tele.Bot) *botTransport {
	return &botTransport{bot: bot}
}

func (t *botTransport) Send(_ context.Context, chatID int64, content RelayContent, opts SendOptions) (int64, error) {
	recipient := tele.ChatID(chatID)

	sendOpts := &tele.SendOptions{}
	if opts.ParseMode != "" {
		sendOpts.ParseMode = tele.ParseMode(opts.ParseMode)
	}
	if opts.ReplyTo != 0 {
		sendOpts.ReplyTo = &tele.Message{ID: int(opts.ReplyTo)}
	}

	var what interface{}
	switch content.Kind {
	case ContentText:
		what = content.Text
	case ContentPhoto:
		what = &tele.Photo{File: tele.File{FileID: content.FileID}, Caption: content.Caption}
	case ContentVideo:
		what = &tele.Video{File: tele.File{FileID: content.FileID}, Caption: content.Caption}
	case ContentDocument:
		what = &tele.Document{File: tele.File{FileID: content.FileID}, Caption: content.Caption}
	case ContentVoice:
		what = &tele.Voice{File: tele.File{FileID: content.FileID}}
	case ContentAudio:
		what = &tele.Audio{File: tele.File{FileID: content.FileID}, Caption: content.Caption}
	case ContentSticker:
		what = &tele.Sticker{File: tele.File{FileID: content.FileID}}
	default:
		return 0, ErrUnsupportedContent
	}

	var msg *tele.Message
	err := sendWithRetry(3, 500*time.Millisecond, func() error {
		var sendErr error
		msg, sendErr = t.bot.Send(recipient, what, sendOpts)
		return sendErr
	})
	if err != nil {
		return 0, fmt.Errorf("telegram send (%s -> %d): %w", content.Kind, chatID, err)
	}
	return int64(msg.ID), nil
}
