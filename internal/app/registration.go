package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v3"
)

// ==========================================
// РЕГИСТРАЦИЯ: язык -> телефон -> курсы -> главное меню
// ==========================================

// courseDraft — пользователи, вводящие интересующие курсы, и уже собранные
// названия.
type courseDraft struct {
	mu     sync.Mutex
	byUser map[int64][]string
	active map[int64]bool
}

func newCourseDraft() *courseDraft {
	return &courseDraft{
		byUser: make(map[int64][]string),
		active: make(map[int64]bool),
	}
}

func (d *courseDraft) Start(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active[userID] = true
	d.byUser[userID] = nil
}

func (d *courseDraft) Active(userID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active[userID]
}

func (d *courseDraft) Add(userID int64, course string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active[userID] {
		return
	}
	d.byUser[userID] = append(d.byUser[userID], course)
}

// Finish отдает собранный список и закрывает режим ввода.
func (d *courseDraft) Finish(userID int64) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	courses := d.byUser[userID]
	delete(d.byUser, userID)
	delete(d.active, userID)
	return courses
}

// isFinishPhrase распознает завершение ввода курсов на обоих языках,
// с кнопкой или набранное вручную.
func isFinishPhrase(text string) bool {
	if text == Translate("finish_button", LangLatin) || text == Translate("finish_button", LangCyrillic) {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "tugatish", "тугатиш":
		return true
	}
	return false
}

func languageMarkup() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(
		markup.Row(tele.Btn{Text: "🇺🇿 O'zbekcha (lotin)", Data: "lang:" + string(LangLatin)}),
		markup.Row(tele.Btn{Text: "🇺🇿 Ўзбекча (кирилл)", Data: "lang:" + string(LangCyrillic)}),
	)
	return markup
}

func phoneMarkup(lang Language) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	markup.Reply(markup.Row(markup.Contact(Translate("phone_button", lang))))
	return markup
}

func (b *Bot) handleStart(c tele.Context) error {
	sender := c.Sender()
	ctx := context.Background()

	if err := b.repo.UpsertUser(ctx, sender.ID, sender.Username, sender.FirstName, sender.LastName); err != nil {
		log.Printf("❌ Ошибка сохранения пользователя %d: %v", sender.ID, err)
		return c.Send(Translate("error_occurred", LangCyrillic))
	}

	user, err := b.loadUser(ctx, sender.ID)
	if err != nil {
		log.Printf("❌ Ошибка чтения пользователя %d: %v", sender.ID, err)
		return c.Send(Translate("error_occurred", LangCyrillic))
	}
	if user != nil && user.RegistrationDone {
		lang := b.lang(sender.ID)
		return c.Send(Translate("welcome", lang), mainMenu(lang))
	}

	log.Printf("👋 Новый пользователь: %d (@%s)", sender.ID, sender.Username)
	return c.Send(Translate("choose_language", LangCyrillic), languageMarkup())
}

func (b *Bot) handleLanguageChoice(c tele.Context, raw string) error {
	userID := c.Sender().ID
	lang := normalizeLanguage(raw)

	if err := b.repo.UpdateUserLanguage(context.Background(), userID, lang); err != nil {
		log.Printf("❌ Ошибка смены языка %d: %v", userID, err)
		return c.Respond(&tele.CallbackResponse{Text: Translate("error_occurred", lang)})
	}
	b.langs.Set(userID, lang)
	c.Respond(&tele.CallbackResponse{Text: Translate("language_selected", lang)})

	user, err := b.loadUser(context.Background(), userID)
	if err == nil && user != nil && user.RegistrationDone {
		return c.Send(Translate("language_selected", lang), mainMenu(lang))
	}
	return c.Send(Translate("share_phone", lang), phoneMarkup(lang))
}

func (b *Bot) handleContact(c tele.Context) error {
	m := c.Message()
	if m.Contact == nil {
		return nil
	}
	userID := c.Sender().ID
	lang := b.lang(userID)

	// Принимаем только собственный контакт отправителя.
	if m.Contact.UserID != 0 && m.Contact.UserID != userID {
		return c.Send(Translate("share_phone", lang), phoneMarkup(lang))
	}

	ctx := context.Background()
	if err := b.repo.UpdateUserPhone(ctx, userID, m.Contact.PhoneNumber); err != nil {
		log.Printf("❌ Ошибка сохранения телефона %d: %v", userID, err)
		return c.Send(Translate("error_occurred", lang))
	}

	// Последний шаг: интересующие курсы свободным текстом.
	b.courses.Start(userID)
	if err := c.Send(Translate("phone_received", lang)); err != nil {
		return err
	}
	return c.Send(Translate("ask_courses", lang), finishMenu(lang))
}

func finishMenu(lang Language) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	markup.Reply(markup.Row(markup.Text(Translate("finish_button", lang))))
	return markup
}

// handleCourseInput собирает названия курсов до фразы завершения, затем
// закрывает регистрацию и сообщает о новом пользователе в админ-группу.
func (b *Bot) handleCourseInput(c tele.Context) error {
	userID := c.Sender().ID
	lang := b.lang(userID)
	text := strings.TrimSpace(c.Text())
	if text == "" {
		return nil
	}

	if !isFinishPhrase(text) {
		b.courses.Add(userID, text)
		return c.Send(Translate("course_added", lang))
	}

	courses := b.courses.Finish(userID)
	ctx := context.Background()
	if len(courses) > 0 {
		if err := b.repo.UpdateUserCourses(ctx, userID, courses); err != nil {
			log.Printf("❌ Ошибка сохранения курсов %d: %v", userID, err)
			return c.Send(Translate("error_occurred", lang))
		}
	}
	if err := b.repo.CompleteRegistration(ctx, userID); err != nil {
		log.Printf("❌ Ошибка завершения регистрации %d: %v", userID, err)
		return c.Send(Translate("error_occurred", lang))
	}

	log.Printf("✅ Регистрация завершена: %d (курсов: %d)", userID, len(courses))
	b.notifyNewUser(ctx, userID)
	return c.Send(Translate("registration_complete", lang), mainMenu(lang))
}

// notifyNewUser отправляет карточку нового пользователя в админ-группу.
func (b *Bot) notifyNewUser(ctx context.Context, userID int64) {
	user, err := b.repo.GetUser(ctx, userID)
	if err != nil {
		log.Printf("⚠️ Не удалось прочитать пользователя %d для уведомления: %v", userID, err)
		return
	}
	username := "yo'q"
	if user.Username != "" {
		username = "@" + user.Username
	}
	courses := "—"
	if len(user.InterestedCourses) > 0 {
		courses = strings.Join(user.InterestedCourses, ", ")
	}
	card := fmt.Sprintf("🆕 Yangi foydalanuvchi ro'yxatdan o'tdi!\n\n👤 %s %s\n🆔 ID: %d\n📱 Username: %s\n☎️ Tel: %s\n🎓 Kurslar: %s",
		user.FirstName, user.LastName, user.UserID, username, user.Phone, courses)
	if _, err := b.bot.Send(tele.ChatID(b.cfg.AdminGroupID), card); err != nil {
		log.Printf("⚠️ Не удалось уведомить админ-группу о пользователе %d: %v", userID, err)
	}
}
