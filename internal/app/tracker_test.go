package app

import (
	"sync"
	"testing"
)

func TestConsultationTracker(t *testing.T) {
	tracker := NewConsultationTracker()

	if tracker.IsActive(1) {
		t.Error("новый пользователь не должен быть в режиме консультации")
	}

	tracker.Set(1)
	if !tracker.IsActive(1) {
		t.Error("флаг не установился")
	}
	if tracker.IsActive(2) {
		t.Error("флаг не должен затрагивать других пользователей")
	}

	if !tracker.Clear(1) {
		t.Error("Clear должен сообщить, что флаг был установлен")
	}
	if tracker.IsActive(1) {
		t.Error("флаг не снялся")
	}

	// Повторная отмена безопасна.
	if tracker.Clear(1) {
		t.Error("повторный Clear должен вернуть false")
	}
}

func TestConsultationTrackerConcurrent(t *testing.T) {
	tracker := NewConsultationTracker()
	var wg sync.WaitGroup
	for i := int64(0); i < 100; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			tracker.Set(id)
			tracker.IsActive(id)
			tracker.Clear(id)
		}(i)
	}
	wg.Wait()

	for i := int64(0); i < 100; i++ {
		if tracker.IsActive(i) {
			t.Fatalf("пользователь %d остался в режиме консультации", i)
		}
	}
}
