package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
)

// ==========================================
// ПЕРЕСЫЛКА СООБЩЕНИЙ (пользователь <-> админ-группа)
// ==========================================

type ContentKind int

const (
	ContentText ContentKind = iota
	ContentPhoto
	ContentVideo
	ContentDocument
	ContentVoice
	ContentAudio
	ContentSticker
)

func (k ContentKind) String() string {
	switch k {
	case ContentText:
		return "text"
	case ContentPhoto:
		return "photo"
	case ContentVideo:
		return "video"
	case ContentDocument:
		return "document"
	case ContentVoice:
		return "voice"
	case ContentAudio:
		return "audio"
	case ContentSticker:
		return "sticker"
	default:
		return "unknown"
	}
}

// RelayContent — содержимое сообщения в независимом от транспорта виде.
// Для текста заполнен Text, для медиа — FileID и опционально Caption.
type RelayContent struct {
	Kind    ContentKind
	Text    string
	FileID  string
	Caption string
}

type SendOptions struct {
	ReplyTo   int64 // ID сообщения, на которое отвечаем; 0 — без ответа
	ParseMode string
}

// Transport отправляет сообщение в чат и возвращает ID доставленного
// сообщения. Реализуется поверх Telegram Bot API; в тестах подменяется.
type Transport interface {
	Send(ctx context.Context, chatID int64, content RelayContent, opts SendOptions) (int64, error)
}

type RelayUser struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

var (
	ErrNoThread           = errors.New("relay: no thread for message")
	ErrUnsupportedContent = errors.New("relay: unsupported content type")
)

// ThreadStore — журнал соответствий message_id -> пользователь.
type ThreadStore interface {
	SaveMessageThread(ctx context.Context, messageID, userID, chatID int64) error
	FindThreadByMessageID(ctx context.Context, messageID int64) (*MessageThread, error)
}

// SessionStore — последний якорь диалога каждого пользователя.
type SessionStore interface {
	SaveChatSession(ctx context.Context, userID, threadID int64) error
	GetChatSession(ctx context.Context, userID int64) (*ChatSession, error)
}

type RelayEngine struct {
	threads     ThreadStore
	sessions    SessionStore
	tracker     *ConsultationTracker
	transport   Transport
	adminChatID int64
}

func NewRelayEngine(threads ThreadStore, sessions SessionStore, tracker *ConsultationTracker, transport Transport, adminChatID int64) *RelayEngine {
	return &RelayEngine{
		threads:     threads,
		sessions:    sessions,
		tracker:     tracker,
		transport:   transport,
		adminChatID: adminChatID,
	}
}

var markdownEscaper = regexp.MustCompile("[_*\\[\\]()~`>#+=|{}.!-]")

func escapeMarkdown(s string) string {
	return markdownEscaper.ReplaceAllString(s, "\\$0")
}

// userCard оформляет вопрос пользователя для админ-группы: кто пишет, его ID и
// username, затем сам текст.
func userCard(user RelayUser, text string) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	username := "yo'q"
	if user.Username != "" {
		username = "@" + user.Username
	}
	return fmt.Sprintf("👤 *%s:* %s\n🆔 ID: `%d`\n📱 Username: %s\n\n💬 *Xabar:*\n%s",
		Translate("user_label", LangLatin), escapeMarkdown(name), user.ID, escapeMarkdown(username), escapeMarkdown(text))
}

// RelayUserMessage пересылает первый вопрос пользователя в админ-группу.
// Записи в журнал и сессию делаются только после успешной отправки; при
// ошибке флаг ожидания остается установленным.
func (e *RelayEngine) RelayUserMessage(ctx context.Context, user RelayUser, text string) (int64, error) {
	card := userCard(user, text)
	deliveredID, err := e.transport.Send(ctx, e.adminChatID, RelayContent{Kind: ContentText, Text: card}, SendOptions{ParseMode: "Markdown"})
	if err != nil {
		return 0, fmt.Errorf("отправка вопроса в админ-группу: %w", err)
	}
	if err := e.threads.SaveMessageThread(ctx, deliveredID, user.ID, e.adminChatID); err != nil {
		return deliveredID, fmt.Errorf("запись треда: %w", err)
	}
	if err := e.sessions.SaveChatSession(ctx, user.ID, deliveredID); err != nil {
		return deliveredID, fmt.Errorf("запись сессии: %w", err)
	}
	e.tracker.Clear(user.ID)
	log.Printf("📨 Вопрос пользователя %d доставлен в админ-группу (msg %d)", user.ID, deliveredID)
	return deliveredID, nil
}

// RelayAdminReply обрабатывает ответ администратора в группе: находит
// пользователя по ID сообщения, на которое ответили, и доставляет ему
// содержимое. После доставки регистрируются два треда — сообщение самого
// администратора и доставленная копия — чтобы дальнейшие ответы на любое из
// них находили того же пользователя.
func (e *RelayEngine) RelayAdminReply(ctx context.Context, repliedToID, adminMessageID int64, content RelayContent) (int64, error) {
	thread, err := e.threads.FindThreadByMessageID(ctx, repliedToID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrNoThread
		}
		return 0, fmt.Errorf("поиск треда %d: %w", repliedToID, err)
	}

	out, err := adminReplyContent(content)
	if err != nil {
		return 0, err
	}
	deliveredID, err := e.transport.Send(ctx, thread.UserID, out, SendOptions{ParseMode: "Markdown"})
	if err != nil {
		return 0, fmt.Errorf("доставка ответа пользователю %d: %w", thread.UserID, err)
	}

	if err := e.threads.SaveMessageThread(ctx, adminMessageID, thread.UserID, e.adminChatID); err != nil {
		return deliveredID, fmt.Errorf("запись треда ответа: %w", err)
	}
	if err := e.threads.SaveMessageThread(ctx, deliveredID, thread.UserID, e.adminChatID); err != nil {
		return deliveredID, fmt.Errorf("запись треда копии: %w", err)
	}
	log.Printf("📬 Ответ администратора доставлен пользователю %d (msg %d)", thread.UserID, deliveredID)
	return deliveredID, nil
}

// adminReplyContent снабжает исходящее содержимое префиксом "Admin javobi".
// Голосовые и стикеры уходят как есть: подпись к ним не поддерживается.
func adminReplyContent(content RelayContent) (RelayContent, error) {
	prefix := "👨‍💼 *" + Translate("admin_reply", LangLatin) + "*"
	switch content.Kind {
	case ContentText:
		content.Text = prefix + "\n\n" + escapeMarkdown(content.Text)
	case ContentPhoto, ContentVideo, ContentDocument, ContentAudio:
		caption := prefix
		if content.Caption != "" {
			caption += "\n\n" + escapeMarkdown(content.Caption)
		}
		content.Caption = caption
	case ContentVoice, ContentSticker:
		content.Caption = ""
	default:
		return RelayContent{}, ErrUnsupportedContent
	}
	return content, nil
}

// RelayUserContinuation обрабатывает ответ пользователя на доставленное ему
// сообщение администратора. Возвращает handled=false, если тред не найден,
// принадлежит другому пользователю или у пользователя нет якоря переписки, —
// тогда сообщение уходит в обычную обработку меню.
func (e *RelayEngine) RelayUserContinuation(ctx context.Context, user RelayUser, repliedToID int64, text string) (int64, bool, error) {
	thread, err := e.threads.FindThreadByMessageID(ctx, repliedToID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("поиск треда %d: %w", repliedToID, err)
	}
	if thread.UserID != user.ID {
		return 0, false, nil
	}

	// Без якоря продолжения не бывает: ответ некуда привязать.
	session, err := e.sessions.GetChatSession(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("чтение сессии %d: %w", user.ID, err)
	}
	if session.ThreadID == 0 {
		return 0, false, nil
	}

	card := userCard(user, text)
	deliveredID, err := e.transport.Send(ctx, e.adminChatID, RelayContent{Kind: ContentText, Text: card}, SendOptions{ReplyTo: session.ThreadID, ParseMode: "Markdown"})
	if err != nil {
		return 0, true, fmt.Errorf("отправка продолжения в админ-группу: %w", err)
	}
	if err := e.threads.SaveMessageThread(ctx, deliveredID, user.ID, e.adminChatID); err != nil {
		return deliveredID, true, fmt.Errorf("запись треда: %w", err)
	}
	if err := e.sessions.SaveChatSession(ctx, user.ID, deliveredID); err != nil {
		return deliveredID, true, fmt.Errorf("запись сессии: %w", err)
	}
	log.Printf("📨 Продолжение диалога пользователя %d доставлено (msg %d)", user.ID, deliveredID)
	return deliveredID, true, nil
}
