package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// ==========================================
// ТЕСТОВЫЕ ДВОЙНИКИ
// ==========================================

type sentMessage struct {
	chatID  int64
	content RelayContent
	opts    SendOptions
	id      int64
}

type fakeTransport struct {
	mu      sync.Mutex
	nextID  int64
	sent    []sentMessage
	failErr error
}

func (t *fakeTransport) Send(_ context.Context, chatID int64, content RelayContent, opts SendOptions) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failErr != nil {
		return 0, t.failErr
	}
	t.nextID++
	msg := sentMessage{chatID: chatID, content: content, opts: opts, id: t.nextID}
	t.sent = append(t.sent, msg)
	return t.nextID, nil
}

func (t *fakeTransport) last() sentMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sent[len(t.sent)-1]
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

type memoryStore struct {
	mu       sync.Mutex
	threads  map[int64]*MessageThread
	sessions map[int64]*ChatSession
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		threads:  make(map[int64]*MessageThread),
		sessions: make(map[int64]*ChatSession),
	}
}

func (s *memoryStore) SaveMessageThread(_ context.Context, messageID, userID, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[messageID] = &MessageThread{MessageID: messageID, UserID: userID, ChatID: chatID}
	return nil
}

func (s *memoryStore) FindThreadByMessageID(_ context.Context, messageID int64) (*MessageThread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.threads[messageID]; ok {
		copy := *t
		return &copy, nil
	}
	return nil, ErrNotFound
}

func (s *memoryStore) SaveChatSession(_ context.Context, userID, threadID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = &ChatSession{UserID: userID, ThreadID: threadID}
	return nil
}

func (s *memoryStore) GetChatSession(_ context.Context, userID int64) (*ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.sessions[userID]; ok {
		copy := *c
		return &copy, nil
	}
	return nil, ErrNotFound
}

const testAdminChat int64 = -100200300

func newTestEngine() (*RelayEngine, *fakeTransport, *memoryStore, *ConsultationTracker) {
	transport := &fakeTransport{}
	store := newMemoryStore()
	tracker := NewConsultationTracker()
	engine := NewRelayEngine(store, store, tracker, transport, testAdminChat)
	return engine, transport, store, tracker
}

// ==========================================
// ТЕСТЫ
// ==========================================

func TestRelayUserMessage(t *testing.T) {
	engine, transport, store, tracker := newTestEngine()
	ctx := context.Background()

	user := RelayUser{ID: 42, FirstName: "Ali", Username: "ali_dev"}
	tracker.Set(user.ID)

	deliveredID, err := engine.RelayUserMessage(ctx, user, "Kurslar haqida savol")
	if err != nil {
		t.Fatalf("RelayUserMessage: %v", err)
	}

	msg := transport.last()
	if msg.chatID != testAdminChat {
		t.Errorf("сообщение ушло в чат %d, ожидался %d", msg.chatID, testAdminChat)
	}
	if !strings.Contains(msg.content.Text, "Ali") || !strings.Contains(msg.content.Text, "@ali\\_dev") {
		t.Errorf("карточка не содержит данных пользователя: %q", msg.content.Text)
	}
	if !strings.Contains(msg.content.Text, "42") {
		t.Errorf("карточка не содержит ID пользователя: %q", msg.content.Text)
	}

	thread, err := store.FindThreadByMessageID(ctx, deliveredID)
	if err != nil {
		t.Fatalf("тред не записан: %v", err)
	}
	if thread.UserID != user.ID || thread.ChatID != testAdminChat {
		t.Errorf("тред записан неверно: %+v", thread)
	}

	session, err := store.GetChatSession(ctx, user.ID)
	if err != nil {
		t.Fatalf("сессия не записана: %v", err)
	}
	if session.ThreadID != deliveredID {
		t.Errorf("якорь сессии %d, ожидался %d", session.ThreadID, deliveredID)
	}

	if tracker.IsActive(user.ID) {
		t.Error("флаг ожидания должен сниматься после успешной пересылки")
	}
}

func TestRelayUserMessageSendFailure(t *testing.T) {
	engine, transport, store, tracker := newTestEngine()
	ctx := context.Background()

	transport.failErr = errors.New("telegram: 502")
	user := RelayUser{ID: 42, FirstName: "Ali"}
	tracker.Set(user.ID)

	if _, err := engine.RelayUserMessage(ctx, user, "savol"); err == nil {
		t.Fatal("ожидалась ошибка отправки")
	}

	// Ничего не записано, пользователь остается в режиме консультации.
	if len(store.threads) != 0 || len(store.sessions) != 0 {
		t.Error("при ошибке отправки записей быть не должно")
	}
	if !tracker.IsActive(user.ID) {
		t.Error("флаг ожидания должен сохраняться при ошибке отправки")
	}
}

func TestRelayAdminReply(t *testing.T) {
	engine, transport, store, _ := newTestEngine()
	ctx := context.Background()

	// Вопрос пользователя уже доставлен как сообщение 10.
	if err := store.SaveMessageThread(ctx, 10, 42, testAdminChat); err != nil {
		t.Fatal(err)
	}

	deliveredID, err := engine.RelayAdminReply(ctx, 10, 55, RelayContent{Kind: ContentText, Text: "Javob tayyor"})
	if err != nil {
		t.Fatalf("RelayAdminReply: %v", err)
	}

	msg := transport.last()
	if msg.chatID != 42 {
		t.Errorf("ответ ушел в чат %d, ожидался 42", msg.chatID)
	}
	if !strings.Contains(msg.content.Text, "Admin javobi") {
		t.Errorf("ответ без префикса администратора: %q", msg.content.Text)
	}

	// Оба сообщения — администратора и доставленная копия — ведут к пользователю.
	for _, id := range []int64{55, deliveredID} {
		thread, err := store.FindThreadByMessageID(ctx, id)
		if err != nil {
			t.Fatalf("тред %d не записан: %v", id, err)
		}
		if thread.UserID != 42 {
			t.Errorf("тред %d указывает на пользователя %d, ожидался 42", id, thread.UserID)
		}
	}
}

func TestRelayAdminReplyNoThread(t *testing.T) {
	engine, transport, _, _ := newTestEngine()

	_, err := engine.RelayAdminReply(context.Background(), 999, 55, RelayContent{Kind: ContentText, Text: "hm"})
	if !errors.Is(err, ErrNoThread) {
		t.Fatalf("ожидался ErrNoThread, получено: %v", err)
	}
	if transport.count() != 0 {
		t.Error("при отсутствии треда отправок быть не должно")
	}
}

func TestRelayAdminReplyMedia(t *testing.T) {
	cases := []struct {
		name        string
		content     RelayContent
		wantCaption bool
	}{
		{"photo", RelayContent{Kind: ContentPhoto, FileID: "ph1", Caption: "rasm"}, true},
		{"document", RelayContent{Kind: ContentDocument, FileID: "doc1"}, true},
		{"voice", RelayContent{Kind: ContentVoice, FileID: "v1"}, false},
		{"sticker", RelayContent{Kind: ContentSticker, FileID: "st1"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, transport, store, _ := newTestEngine()
			ctx := context.Background()
			if err := store.SaveMessageThread(ctx, 10, 42, testAdminChat); err != nil {
				t.Fatal(err)
			}

			if _, err := engine.RelayAdminReply(ctx, 10, 55, tc.content); err != nil {
				t.Fatalf("RelayAdminReply: %v", err)
			}
			msg := transport.last()
			if msg.content.FileID != tc.content.FileID {
				t.Errorf("file_id %q, ожидался %q", msg.content.FileID, tc.content.FileID)
			}
			hasCaption := strings.Contains(msg.content.Caption, "Admin javobi")
			if hasCaption != tc.wantCaption {
				t.Errorf("подпись %q: наличие префикса=%v, ожидалось %v", msg.content.Caption, hasCaption, tc.wantCaption)
			}
		})
	}
}

func TestRelayUserContinuation(t *testing.T) {
	engine, transport, store, _ := newTestEngine()
	ctx := context.Background()

	// Пользователю 42 доставлен ответ администратора как сообщение 20,
	// якорь переписки в группе — сообщение 15.
	if err := store.SaveMessageThread(ctx, 20, 42, testAdminChat); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveChatSession(ctx, 42, 15); err != nil {
		t.Fatal(err)
	}

	user := RelayUser{ID: 42, FirstName: "Ali"}
	deliveredID, handled, err := engine.RelayUserContinuation(ctx, user, 20, "Yana bir savol")
	if err != nil {
		t.Fatalf("RelayUserContinuation: %v", err)
	}
	if !handled {
		t.Fatal("продолжение должно быть обработано")
	}

	msg := transport.last()
	if msg.chatID != testAdminChat {
		t.Errorf("продолжение ушло в чат %d, ожидался %d", msg.chatID, testAdminChat)
	}
	if msg.opts.ReplyTo != 15 {
		t.Errorf("ответ поставлен на сообщение %d, ожидался якорь 15", msg.opts.ReplyTo)
	}

	session, err := store.GetChatSession(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if session.ThreadID != deliveredID {
		t.Errorf("якорь не обновлен: %d, ожидался %d", session.ThreadID, deliveredID)
	}
}

func TestRelayUserContinuationOwnerGuard(t *testing.T) {
	engine, transport, store, _ := newTestEngine()
	ctx := context.Background()

	// Тред принадлежит пользователю 42, а отвечает 43.
	if err := store.SaveMessageThread(ctx, 20, 42, testAdminChat); err != nil {
		t.Fatal(err)
	}

	_, handled, err := engine.RelayUserContinuation(ctx, RelayUser{ID: 43}, 20, "salom")
	if err != nil {
		t.Fatalf("чужой тред не должен давать ошибку: %v", err)
	}
	if handled {
		t.Error("чужой тред должен уходить в обычную обработку")
	}
	if transport.count() != 0 {
		t.Error("для чужого треда отправок быть не должно")
	}
}

func TestRelayUserContinuationNoAnchor(t *testing.T) {
	engine, transport, store, _ := newTestEngine()
	ctx := context.Background()

	// Тред есть, но якорь переписки у пользователя отсутствует.
	if err := store.SaveMessageThread(ctx, 20, 42, testAdminChat); err != nil {
		t.Fatal(err)
	}

	_, handled, err := engine.RelayUserContinuation(ctx, RelayUser{ID: 42}, 20, "salom")
	if err != nil {
		t.Fatalf("отсутствие якоря не должно давать ошибку: %v", err)
	}
	if handled {
		t.Error("без якоря сообщение должно уходить в обычную обработку")
	}
	if transport.count() != 0 {
		t.Error("без якоря отправок быть не должно")
	}
}

func TestRelayUserContinuationUnknownMessage(t *testing.T) {
	engine, _, _, _ := newTestEngine()

	_, handled, err := engine.RelayUserContinuation(context.Background(), RelayUser{ID: 42}, 777, "salom")
	if err != nil {
		t.Fatalf("неизвестный тред не должен давать ошибку: %v", err)
	}
	if handled {
		t.Error("неизвестный тред должен уходить в обычную обработку")
	}
}

// Полный цикл: вопрос, ответ администратора, продолжение, второй ответ.
func TestRelayConversationFlow(t *testing.T) {
	engine, transport, store, tracker := newTestEngine()
	ctx := context.Background()

	user := RelayUser{ID: 42, FirstName: "Ali", Username: "ali_dev"}
	tracker.Set(user.ID)

	// 1. Вопрос пользователя попадает в админ-группу.
	questionID, err := engine.RelayUserMessage(ctx, user, "Kurs narxi qancha?")
	if err != nil {
		t.Fatal(err)
	}

	// 2. Администратор отвечает на карточку (его сообщение 1001).
	replyID, err := engine.RelayAdminReply(ctx, questionID, 1001, RelayContent{Kind: ContentText, Text: "2 mln so'm"})
	if err != nil {
		t.Fatal(err)
	}
	if transport.last().chatID != user.ID {
		t.Fatal("ответ должен попасть пользователю")
	}

	// 3. Пользователь продолжает, отвечая на доставленное сообщение.
	contID, handled, err := engine.RelayUserContinuation(ctx, user, replyID, "Chegirma bormi?")
	if err != nil || !handled {
		t.Fatalf("продолжение: handled=%v, err=%v", handled, err)
	}
	if got := transport.last().opts.ReplyTo; got != questionID {
		t.Errorf("продолжение отвечает на %d, ожидался якорь %d", got, questionID)
	}

	// 4. Администратор отвечает уже на продолжение (сообщение 77).
	if _, err := engine.RelayAdminReply(ctx, contID, 77, RelayContent{Kind: ContentText, Text: "Ha, 10%"}); err != nil {
		t.Fatal(err)
	}
	if transport.last().chatID != user.ID {
		t.Error("второй ответ должен попасть тому же пользователю")
	}

	// Все зарегистрированные сообщения ведут к пользователю 42.
	for id := range store.threads {
		if store.threads[id].UserID != user.ID {
			t.Errorf("тред %d указывает на %d", id, store.threads[id].UserID)
		}
	}
}
