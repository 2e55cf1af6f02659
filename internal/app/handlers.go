package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v3"
)

// ==========================================
// СОСТОЯНИЕ ДИАЛОГОВ
// ==========================================

// languageCache держит язык каждого пользователя в памяти, чтобы не ходить в
// БД на каждое нажатие кнопки.
type languageCache struct {
	mu     sync.Mutex
	byUser map[int64]Language
}

func newLanguageCache() *languageCache {
	return &languageCache{byUser: make(map[int64]Language)}
}

func (c *languageCache) Get(userID int64) Language {
	c.mu.Lock()
	defer c.mu.Unlock()
	if lang, ok := c.byUser[userID]; ok {
		return lang
	}
	return LangCyrillic
}

func (c *languageCache) Set(userID int64, lang Language) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byUser[userID] = lang
}

// navStore — позиции пользователей в листалках новостей и FAQ.
type navStore struct {
	mu  sync.Mutex
	pos map[string]int // ключ "news:123" или "faq:123"
}

func newNavStore() *navStore {
	return &navStore{pos: make(map[string]int)}
}

func (s *navStore) key(section string, userID int64) string {
	return fmt.Sprintf("%s:%d", section, userID)
}

func (s *navStore) Get(section string, userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos[s.key(section, userID)]
}

func (s *navStore) Set(section string, userID int64, idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos[s.key(section, userID)] = idx
}

// subscriptionDraft — направления, отмеченные пользователем до подтверждения.
type subscriptionDraft struct {
	mu     sync.Mutex
	byUser map[int64]map[string]bool
}

func newSubscriptionDraft() *subscriptionDraft {
	return &subscriptionDraft{byUser: make(map[int64]map[string]bool)}
}

func (d *subscriptionDraft) Toggle(userID int64, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := d.byUser[userID]
	if set == nil {
		set = make(map[string]bool)
		d.byUser[userID] = set
	}
	if set[name] {
		delete(set, name)
	} else {
		set[name] = true
	}
}

func (d *subscriptionDraft) Selected(userID int64) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for name := range d.byUser[userID] {
		out = append(out, name)
	}
	return out
}

func (d *subscriptionDraft) Seed(userID int64, names []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	d.byUser[userID] = set
}

func (d *subscriptionDraft) Has(userID int64, name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.byUser[userID][name]
}

func (d *subscriptionDraft) Reset(userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byUser, userID)
}

// ==========================================
// БОТ
// ==========================================

type Bot struct {
	bot     *tele.Bot
	repo    Repository
	tracker *ConsultationTracker
	engine  *RelayEngine
	cfg     *Config

	langs   *languageCache
	nav     *navStore
	draft   *subscriptionDraft
	courses *courseDraft
}

func NewBot(b *tele.Bot, repo Repository, cfg *Config) *Bot {
	tracker := NewConsultationTracker()
	engine := NewRelayEngine(repo, repo, tracker, newBotTransport(b), cfg.AdminGroupID)
	return &Bot{
		bot:     b,
		repo:    repo,
		tracker: tracker,
		engine:  engine,
		cfg:     cfg,
		langs:   newLanguageCache(),
		nav:     newNavStore(),
		draft:   newSubscriptionDraft(),
		courses: newCourseDraft(),
	}
}

func (b *Bot) RegisterHandlers() {
	b.bot.Use(RecoverMiddleware())

	dispatcher := NewDispatcher(b.engine, b.tracker, b.cfg.AdminGroupID, b.langs.Get, b.handleMenu)

	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle(tele.OnContact, b.handleContact)
	b.bot.Handle(tele.OnCallback, b.handleCallback)
	b.bot.Handle(tele.OnText, dispatcher.HandleMessage)
	b.bot.Handle(tele.OnPhoto, dispatcher.HandleMessage)
	b.bot.Handle(tele.OnVideo, dispatcher.HandleMessage)
	b.bot.Handle(tele.OnDocument, dispatcher.HandleMessage)
	b.bot.Handle(tele.OnVoice, dispatcher.HandleMessage)
	b.bot.Handle(tele.OnAudio, dispatcher.HandleMessage)
	b.bot.Handle(tele.OnSticker, dispatcher.HandleMessage)
}

func (b *Bot) lang(userID int64) Language {
	return b.langs.Get(userID)
}

// mainMenu собирает клавиатуру главного меню на языке пользователя.
func mainMenu(lang Language) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	rows := [][]string{
		{"menu_news", "menu_courses"},
		{"menu_discount", "menu_payment"},
		{"menu_subscribe", "menu_faq"},
		{"menu_consultation", "menu_rating"},
	}
	var replyRows []tele.Row
	for _, pair := range rows {
		replyRows = append(replyRows, menu.Row(
			menu.Text(Translate(pair[0], lang)),
			menu.Text(Translate(pair[1], lang)),
		))
	}
	menu.Reply(replyRows...)
	return menu
}

func cancelMenu(lang Language) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(menu.Row(menu.Text(Translate("cancel_button", lang))))
	return menu
}

// handleMenu получает от диспетчера уже распознанную команду меню.
func (b *Bot) handleMenu(c tele.Context, cmd menuCommand) error {
	userID := c.Sender().ID
	lang := b.lang(userID)

	// Незавершенная регистрация: текст сейчас — названия курсов.
	if b.courses.Active(userID) {
		return b.handleCourseInput(c)
	}

	switch cmd {
	case cmdNews:
		b.nav.Set("news", userID, 0)
		return b.showNews(c, 0)
	case cmdCourses:
		return b.sendWebAppCard(c, "courses_title", "courses_description", "courses_view", b.cfg.SiteURL)
	case cmdDiscount:
		return b.sendSettingText(c, "discount_text")
	case cmdPayment:
		return b.sendSettingText(c, "payment_text")
	case cmdSubscribe:
		return b.showSubscriptionPicker(c)
	case cmdFAQ:
		b.nav.Set("faq", userID, 0)
		return b.showFAQ(c, 0)
	case cmdConsultation:
		b.tracker.Set(userID)
		text := Translate("consultation_title", lang) + "\n\n" + Translate("consultation_prompt", lang)
		return c.Send(text, cancelMenu(lang))
	case cmdRating:
		return b.sendWebAppCard(c, "rating_title", "rating_description", "rating_view", b.cfg.RatingURL)
	case cmdCancel:
		return c.Send(Translate("consultation_cancel", lang), mainMenu(lang))
	default:
		// Незнакомый текст вне всех режимов: показываем меню заново.
		return c.Send(Translate("welcome", lang), mainMenu(lang))
	}
}

func (b *Bot) sendSettingText(c tele.Context, key string) error {
	lang := b.lang(c.Sender().ID)
	setting, err := b.repo.GetSetting(context.Background(), key)
	if err != nil {
		log.Printf("⚠️ Настройка %s недоступна: %v", key, err)
		return c.Send(Translate("error_occurred", lang))
	}
	text := setting.ValueCyrillic
	if lang == LangLatin {
		text = setting.ValueLatin
	}
	return c.Send(text, mainMenu(lang))
}

func (b *Bot) sendWebAppCard(c tele.Context, titleKey, descKey, btnKey, url string) error {
	lang := b.lang(c.Sender().ID)
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(tele.Btn{
		Text:   Translate(btnKey, lang),
		WebApp: &tele.WebApp{URL: url},
	}))
	text := Translate(titleKey, lang) + "\n\n" + Translate(descKey, lang)
	return c.Send(text, markup)
}

// ==========================================
// ЛИСТАЛКИ НОВОСТЕЙ И FAQ
// ==========================================

func clampIndex(idx, length int) int {
	if length == 0 {
		return 0
	}
	// Зацикливаем: после последней записи снова первая.
	idx %= length
	if idx < 0 {
		idx += length
	}
	return idx
}

func navButtons(lang Language, section string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(
		markup.Row(
			tele.Btn{Text: Translate("btn_prev", lang), Data: section + ":prev"},
			tele.Btn{Text: Translate("btn_next", lang), Data: section + ":next"},
		),
		markup.Row(tele.Btn{Text: Translate("btn_main_menu", lang), Data: "nav:menu"}),
	)
	return markup
}

func (b *Bot) showNews(c tele.Context, idx int) error {
	userID := c.Sender().ID
	lang := b.lang(userID)

	news, err := b.repo.ListNews(context.Background())
	if err != nil {
		log.Printf("❌ Ошибка чтения новостей: %v", err)
		return c.Send(Translate("error_occurred", lang))
	}
	if len(news) == 0 {
		return c.Send(Translate("no_news", lang), mainMenu(lang))
	}

	idx = clampIndex(idx, len(news))
	b.nav.Set("news", userID, idx)
	item := news[idx]

	title, body := item.TitleCyrillic, item.ContentCyrillic
	if lang == LangLatin {
		title, body = item.TitleLatin, item.ContentLatin
	}
	text := fmt.Sprintf("📰 *%s*\n\n%s\n\n(%d/%d)", title, body, idx+1, len(news))
	markup := navButtons(lang, "news")

	if item.ImageURL != "" {
		photo := &tele.Photo{File: tele.FromURL(item.ImageURL), Caption: text}
		return c.Send(photo, markup, tele.ModeMarkdown)
	}
	return c.Send(text, markup, tele.ModeMarkdown)
}

func (b *Bot) showFAQ(c tele.Context, idx int) error {
	userID := c.Sender().ID
	lang := b.lang(userID)

	faq, err := b.repo.ListFAQ(context.Background())
	if err != nil {
		log.Printf("❌ Ошибка чтения FAQ: %v", err)
		return c.Send(Translate("error_occurred", lang))
	}
	if len(faq) == 0 {
		return c.Send(Translate("no_faq", lang), mainMenu(lang))
	}

	idx = clampIndex(idx, len(faq))
	b.nav.Set("faq", userID, idx)
	item := faq[idx]

	question, answer := item.QuestionCyrillic, item.AnswerCyrillic
	if lang == LangLatin {
		question, answer = item.QuestionLatin, item.AnswerLatin
	}
	text := fmt.Sprintf("%s %s\n\n%s %s\n\n(%d/%d)",
		Translate("faq_question", lang), question,
		Translate("faq_answer", lang), answer,
		idx+1, len(faq))
	return c.Send(text, navButtons(lang, "faq"))
}

// ==========================================
// ПОДПИСКИ
// ==========================================

func (b *Bot) showSubscriptionPicker(c tele.Context) error {
	userID := c.Sender().ID
	lang := b.lang(userID)

	cats, err := b.repo.ListCategories(context.Background())
	if err != nil {
		log.Printf("❌ Ошибка чтения направлений: %v", err)
		return c.Send(Translate("error_occurred", lang))
	}

	if user, err := b.repo.GetUser(context.Background(), userID); err == nil {
		b.draft.Seed(userID, user.Subscriptions)
	}

	text := Translate("subscribe_title", lang) + "\n\n" + Translate("subscribe_description", lang)
	return c.Send(text, b.subscriptionMarkup(userID, lang, cats))
}

func (b *Bot) subscriptionMarkup(userID int64, lang Language, cats []SubscriptionCategory) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, cat := range cats {
		name := cat.NameLatin
		label := name
		if lang == LangCyrillic {
			label = cat.NameCyrillic
		}
		if b.draft.Has(userID, name) {
			label = "✅ " + label
		}
		rows = append(rows, markup.Row(tele.Btn{Text: label, Data: "sub:" + name}))
	}
	rows = append(rows, markup.Row(tele.Btn{Text: Translate("subscribe_confirm", lang), Data: "sub_confirm"}))
	markup.Inline(rows...)
	return markup
}

// ==========================================
// CALLBACK-КНОПКИ
// ==========================================

func (b *Bot) handleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	data := strings.TrimPrefix(cb.Data, "\f")
	userID := c.Sender().ID
	lang := b.lang(userID)

	switch {
	case strings.HasPrefix(data, "lang:"):
		return b.handleLanguageChoice(c, strings.TrimPrefix(data, "lang:"))

	case data == "news:next":
		defer c.Respond()
		return b.showNews(c, b.nav.Get("news", userID)+1)
	case data == "news:prev":
		defer c.Respond()
		return b.showNews(c, b.nav.Get("news", userID)-1)
	case data == "faq:next":
		defer c.Respond()
		return b.showFAQ(c, b.nav.Get("faq", userID)+1)
	case data == "faq:prev":
		defer c.Respond()
		return b.showFAQ(c, b.nav.Get("faq", userID)-1)
	case data == "nav:menu":
		defer c.Respond()
		return c.Send(Translate("welcome", lang), mainMenu(lang))

	case strings.HasPrefix(data, "sub:"):
		name := strings.TrimPrefix(data, "sub:")
		b.draft.Toggle(userID, name)
		cats, err := b.repo.ListCategories(context.Background())
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: Translate("error_occurred", lang)})
		}
		defer c.Respond()
		return c.Edit(b.subscriptionMarkup(userID, lang, cats))

	case data == "sub_confirm":
		selected := b.draft.Selected(userID)
		if len(selected) == 0 {
			return c.Respond(&tele.CallbackResponse{Text: Translate("select_min_one", lang), ShowAlert: true})
		}
		if err := b.repo.UpdateUserSubscriptions(context.Background(), userID, selected); err != nil {
			log.Printf("❌ Ошибка сохранения подписок %d: %v", userID, err)
			return c.Respond(&tele.CallbackResponse{Text: Translate("error_occurred", lang)})
		}
		b.draft.Reset(userID)
		c.Respond(&tele.CallbackResponse{Text: Translate("subscribe_selected", lang)})
		return c.Send(Translate("subscribe_notification", lang), mainMenu(lang))
	}
	return c.Respond()
}

func (b *Bot) loadUser(ctx context.Context, userID int64) (*User, error) {
	user, err := b.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	b.langs.Set(userID, normalizeLanguage(user.Language))
	return user, nil
}
