package app

import (
	"context"
	"log"
	"time"

	tele "gopkg.in/telebot.v3"
)

// Пауза между отправками, чтобы не упереться в лимиты Telegram (~30 msg/sec).
const broadcastPace = 50 * time.Millisecond

// Broadcaster рассылает объявления всем пользователям или подписчикам одного
// направления. Запускается из админ-панели в фоне через runHeavy.
type Broadcaster struct {
	bot  *tele.Bot
	repo Repository
}

func NewBroadcaster(bot *tele.Bot, repo Repository) *Broadcaster {
	return &Broadcaster{bot: bot, repo: repo}
}

// Run выполняет рассылку и пишет итог в журнал. audience — "all" либо имя
// направления подписки.
func (b *Broadcaster) Run(ctx context.Context, audience, messageLatin, messageCyrillic, imageURL string) (*BroadcastLog, error) {
	var (
		users []User
		err   error
	)
	if audience == "all" || audience == "" {
		audience = "all"
		users, err = b.repo.ListUsers(ctx)
	} else {
		users, err = b.repo.ListUsersBySubscription(ctx, audience)
	}
	if err != nil {
		return nil, err
	}

	entry := &BroadcastLog{
		Audience: audience,
		Message:  shorten(messageLatin, 200),
		Total:    len(users),
	}
	log.Printf("📢 Рассылка началась: аудитория=%s, получателей=%d", audience, len(users))

	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		text := messageCyrillic
		if normalizeLanguage(u.Language) == LangLatin {
			text = messageLatin
		}
		if err := b.sendOne(u.UserID, text, imageURL); err != nil {
			entry.Fail++
			log.Printf("⚠️ Рассылка: пользователь %d недоступен: %v", u.UserID, err)
		} else {
			entry.Success++
		}
		time.Sleep(broadcastPace)
	}

	if err := b.repo.CreateBroadcastLog(ctx, entry); err != nil {
		log.Printf("⚠️ Не удалось записать журнал рассылки: %v", err)
	}
	log.Printf("📢 Рассылка завершена: доставлено=%d, ошибок=%d", entry.Success, entry.Fail)
	return entry, nil
}

func (b *Broadcaster) sendOne(userID int64, text, imageURL string) error {
	recipient := tele.ChatID(userID)
	if imageURL != "" {
		photo := &tele.Photo{File: tele.FromURL(imageURL), Caption: text}
		_, err := b.bot.Send(recipient, photo)
		return err
	}
	_, err := b.bot.Send(recipient, text)
	return err
}
