package app

import (
	"context"
	"errors"
	"log"

	tele "gopkg.in/telebot.v3"
)

// ==========================================
// МАРШРУТИЗАЦИЯ ВХОДЯЩИХ СООБЩЕНИЙ
// ==========================================

type menuCommand int

const (
	cmdNone menuCommand = iota
	cmdNews
	cmdCourses
	cmdDiscount
	cmdPayment
	cmdSubscribe
	cmdFAQ
	cmdConsultation
	cmdRating
	cmdCancel
)

// menuIndex строится из обеих таблиц локализации, чтобы кнопки распознавались
// независимо от языка пользователя.
var menuIndex = buildMenuIndex()

func buildMenuIndex() map[string]menuCommand {
	keys := map[string]menuCommand{
		"menu_news":         cmdNews,
		"menu_courses":      cmdCourses,
		"menu_discount":     cmdDiscount,
		"menu_payment":      cmdPayment,
		"menu_subscribe":    cmdSubscribe,
		"menu_faq":          cmdFAQ,
		"menu_consultation": cmdConsultation,
		"menu_rating":       cmdRating,
		"cancel_button":     cmdCancel,
	}
	idx := make(map[string]menuCommand, len(keys)*2)
	for key, cmd := range keys {
		for _, lang := range []Language{LangCyrillic, LangLatin} {
			idx[Translate(key, lang)] = cmd
		}
	}
	return idx
}

func classifyMenuCommand(text string) menuCommand {
	return menuIndex[text]
}

// contentFromMessage переводит сообщение Telegram в транспортно-независимое
// содержимое. Для неподдерживаемых типов возвращает ошибку.
func contentFromMessage(m *tele.Message) (RelayContent, error) {
	switch {
	case m.Photo != nil:
		return RelayContent{Kind: ContentPhoto, FileID: m.Photo.FileID, Caption: m.Caption}, nil
	case m.Video != nil:
		return RelayContent{Kind: ContentVideo, FileID: m.Video.FileID, Caption: m.Caption}, nil
	case m.Document != nil:
		return RelayContent{Kind: ContentDocument, FileID: m.Document.FileID, Caption: m.Caption}, nil
	case m.Voice != nil:
		return RelayContent{Kind: ContentVoice, FileID: m.Voice.FileID}, nil
	case m.Audio != nil:
		return RelayContent{Kind: ContentAudio, FileID: m.Audio.FileID, Caption: m.Caption}, nil
	case m.Sticker != nil:
		return RelayContent{Kind: ContentSticker, FileID: m.Sticker.FileID}, nil
	case m.Text != "":
		return RelayContent{Kind: ContentText, Text: m.Text}, nil
	default:
		return RelayContent{}, ErrUnsupportedContent
	}
}

// continuationText возвращает текст продолжения переписки; для медиа без
// текста уходит заглушка, чтобы администратор увидел сам факт ответа.
func continuationText(m *tele.Message) string {
	if m.Text != "" {
		return m.Text
	}
	if m.Photo != nil || m.Video != nil || m.Document != nil ||
		m.Voice != nil || m.Audio != nil || m.Sticker != nil {
		return "[Media fayl]"
	}
	return ""
}

func relayUserFrom(sender *tele.User) RelayUser {
	return RelayUser{
		ID:        sender.ID,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
		Username:  sender.Username,
	}
}

// Dispatcher разбирает входящие сообщения в строгом порядке приоритетов:
// ответ администратора в группе, продолжение диалога пользователя, режим
// консультации и только потом обычное меню.
type Dispatcher struct {
	engine      *RelayEngine
	tracker     *ConsultationTracker
	adminChatID int64
	lang        func(userID int64) Language
	menu        func(c tele.Context, cmd menuCommand) error
}

func NewDispatcher(engine *RelayEngine, tracker *ConsultationTracker, adminChatID int64, lang func(userID int64) Language, menu func(c tele.Context, cmd menuCommand) error) *Dispatcher {
	return &Dispatcher{engine: engine, tracker: tracker, adminChatID: adminChatID, lang: lang, menu: menu}
}

func (d *Dispatcher) HandleMessage(c tele.Context) error {
	m := c.Message()
	if m == nil || m.Sender == nil {
		return nil
	}
	ctx := context.Background()

	// 1. Ответ администратора в группе.
	if m.Chat != nil && m.Chat.ID == d.adminChatID {
		if m.ReplyTo == nil {
			return nil
		}
		content, err := contentFromMessage(m)
		if err != nil {
			log.Printf("⚠️ Неподдерживаемый тип ответа администратора: %v", err)
			return c.Reply("⚠️ Bu turdagi xabar qo'llab-quvvatlanmaydi")
		}
		_, err = d.engine.RelayAdminReply(ctx, int64(m.ReplyTo.ID), int64(m.ID), content)
		switch {
		case errors.Is(err, ErrNoThread):
			return c.Reply("❌ Bu xabar uchun user topilmadi.")
		case errors.Is(err, ErrUnsupportedContent):
			return c.Reply("⚠️ Bu turdagi xabar qo'llab-quvvatlanmaydi")
		case err != nil:
			log.Printf("❌ Ошибка доставки ответа администратора: %v", err)
			return c.Reply("❌ Xabarni yetkazib bo'lmadi")
		}
		return nil
	}

	user := relayUserFrom(m.Sender)

	// 2. Продолжение диалога: пользователь отвечает на сообщение бота.
	if m.ReplyTo != nil {
		if text := continuationText(m); text != "" {
			_, handled, err := d.engine.RelayUserContinuation(ctx, user, int64(m.ReplyTo.ID), text)
			if err != nil {
				log.Printf("❌ Ошибка продолжения диалога %d: %v", user.ID, err)
				return c.Send(Translate("error_occurred", d.lang(user.ID)))
			}
			if handled {
				return c.Send(Translate("consultation_sent", d.lang(user.ID)))
			}
		}
	}

	// 3. Режим консультации.
	if d.tracker.IsActive(user.ID) && m.Text != "" {
		if classifyMenuCommand(m.Text) == cmdCancel {
			d.tracker.Clear(user.ID)
			return d.menu(c, cmdCancel)
		}
		lang := d.lang(user.ID)
		if _, err := d.engine.RelayUserMessage(ctx, user, m.Text); err != nil {
			log.Printf("❌ Ошибка пересылки вопроса %d: %v", user.ID, err)
			return c.Send(Translate("error_occurred", lang))
		}
		return c.Send(Translate("consultation_sent", lang))
	}

	// 4. Обычное меню.
	return d.menu(c, classifyMenuCommand(m.Text))
}
