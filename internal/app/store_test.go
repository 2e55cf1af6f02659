package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("создание репозитория: %v", err)
	}
	if err := repo.Init(context.Background()); err != nil {
		t.Fatalf("инициализация репозитория: %v", err)
	}
	t.Cleanup(func() { repo.Close(context.Background()) })
	return repo
}

func TestUserLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertUser(ctx, 42, "ali_dev", "Ali", "Valiyev"); err != nil {
		t.Fatal(err)
	}

	user, err := repo.GetUser(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if user.Username != "ali_dev" || user.FirstName != "Ali" {
		t.Errorf("пользователь сохранен неверно: %+v", user)
	}
	if user.RegistrationDone {
		t.Error("новый пользователь не должен быть зарегистрирован")
	}
	if normalizeLanguage(user.Language) != LangCyrillic {
		t.Errorf("язык по умолчанию: %q", user.Language)
	}

	// Повторный /start обновляет имя, но не сбрасывает прочие поля.
	if err := repo.UpdateUserPhone(ctx, 42, "+998901234567"); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertUser(ctx, 42, "ali_dev", "Alisher", "Valiyev"); err != nil {
		t.Fatal(err)
	}
	user, _ = repo.GetUser(ctx, 42)
	if user.FirstName != "Alisher" {
		t.Errorf("имя не обновилось: %q", user.FirstName)
	}
	if user.Phone != "+998901234567" {
		t.Errorf("телефон потерян при повторном upsert: %q", user.Phone)
	}

	if err := repo.UpdateUserLanguage(ctx, 42, LangLatin); err != nil {
		t.Fatal(err)
	}
	if err := repo.CompleteRegistration(ctx, 42); err != nil {
		t.Fatal(err)
	}
	user, _ = repo.GetUser(ctx, 42)
	if normalizeLanguage(user.Language) != LangLatin || !user.RegistrationDone {
		t.Errorf("регистрация не завершилась: %+v", user)
	}
}

func TestUserNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetUser(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound, получено: %v", err)
	}
	if err := repo.UpdateUserPhone(ctx, 999, "+998"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound, получено: %v", err)
	}
}

func TestSubscriptions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		if err := repo.UpsertUser(ctx, id, "", "User", ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.UpdateUserSubscriptions(ctx, 1, []string{"Frontend", "Backend"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateUserSubscriptions(ctx, 2, []string{"Frontend"}); err != nil {
		t.Fatal(err)
	}

	subs, err := repo.ListUsersBySubscription(ctx, "Frontend")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 2 {
		t.Errorf("у Frontend %d подписчиков, ожидалось 2", len(subs))
	}

	subs, err = repo.ListUsersBySubscription(ctx, "Design")
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 0 {
		t.Errorf("у Design %d подписчиков, ожидалось 0", len(subs))
	}
}

func TestSeededDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, key := range []string{"discount_text", "payment_text"} {
		setting, err := repo.GetSetting(ctx, key)
		if err != nil {
			t.Fatalf("настройка %s не создана: %v", key, err)
		}
		if setting.ValueLatin == "" || setting.ValueCyrillic == "" {
			t.Errorf("настройка %s пустая: %+v", key, setting)
		}
	}

	cats, err := repo.ListCategories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 4 {
		t.Errorf("создано %d направлений, ожидалось 4", len(cats))
	}
}

func TestNewsCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n := &News{TitleLatin: "Yangi kurs", ContentLatin: "Tafsilotlar..."}
	if err := repo.CreateNews(ctx, n); err != nil {
		t.Fatal(err)
	}
	if n.ID == "" {
		t.Error("новости должен присваиваться ID")
	}

	news, err := repo.ListNews(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(news) != 1 || news[0].TitleLatin != "Yangi kurs" {
		t.Errorf("список новостей: %+v", news)
	}

	if err := repo.DeleteNews(ctx, n.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteNews(ctx, n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторное удаление: ожидался ErrNotFound, получено %v", err)
	}
}

func TestThreadsAndSessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveMessageThread(ctx, 100, 42, -200); err != nil {
		t.Fatal(err)
	}
	thread, err := repo.FindThreadByMessageID(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if thread.UserID != 42 || thread.ChatID != -200 {
		t.Errorf("тред записан неверно: %+v", thread)
	}

	if _, err := repo.FindThreadByMessageID(ctx, 101); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидался ErrNotFound, получено: %v", err)
	}

	// Повторная запись того же message_id не падает.
	if err := repo.SaveMessageThread(ctx, 100, 42, -200); err != nil {
		t.Fatal(err)
	}

	if err := repo.SaveChatSession(ctx, 42, 100); err != nil {
		t.Fatal(err)
	}
	session, err := repo.GetChatSession(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if session.ThreadID != 100 {
		t.Errorf("якорь сессии: %d", session.ThreadID)
	}

	// Якорь перезаписывается новым сообщением.
	if err := repo.SaveChatSession(ctx, 42, 105); err != nil {
		t.Fatal(err)
	}
	session, _ = repo.GetChatSession(ctx, 42)
	if session.ThreadID != 105 {
		t.Errorf("якорь не обновился: %d", session.ThreadID)
	}
}

func TestDashboardStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		if err := repo.UpsertUser(ctx, id, "", "User", ""); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.UpdateUserSubscriptions(ctx, 1, []string{"Frontend"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateNews(ctx, &News{TitleLatin: "n"}); err != nil {
		t.Fatal(err)
	}

	stats, err := repo.DashboardStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalUsers != 2 || stats.TotalNews != 1 {
		t.Errorf("статистика: %+v", stats)
	}
	if stats.SubscriptionCounts["Frontend"] != 1 {
		t.Errorf("подписки: %+v", stats.SubscriptionCounts)
	}
}
