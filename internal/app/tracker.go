package app

import "sync"

// ConsultationTracker отмечает пользователей, ожидающих отправки вопроса на
// консультацию. Флаг ставится при входе в режим и снимается после успешной
// пересылки или отмены.
type ConsultationTracker struct {
	mu      sync.Mutex
	waiting map[int64]bool
}

func NewConsultationTracker() *ConsultationTracker {
	return &ConsultationTracker{waiting: make(map[int64]bool)}
}

func (t *ConsultationTracker) Set(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.waiting[userID] = true
}

// Clear снимает флаг и сообщает, был ли он установлен. Повторная отмена
// безопасна.
func (t *ConsultationTracker) Clear(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.waiting[userID]
	delete(t.waiting, userID)
	return was
}

func (t *ConsultationTracker) IsActive(userID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waiting[userID]
}
