package app

import (
	"context"
	"testing"
)

func TestCourseDraft(t *testing.T) {
	draft := newCourseDraft()

	if draft.Active(42) {
		t.Error("новый пользователь не должен быть в режиме ввода курсов")
	}

	// Добавление вне режима игнорируется.
	draft.Add(42, "Frontend")
	if got := draft.Finish(42); len(got) != 0 {
		t.Errorf("вне режима собрано %v", got)
	}

	draft.Start(42)
	if !draft.Active(42) {
		t.Error("режим ввода не включился")
	}
	draft.Add(42, "Frontend")
	draft.Add(42, "Backend")
	if draft.Active(43) {
		t.Error("режим не должен затрагивать других пользователей")
	}

	courses := draft.Finish(42)
	if len(courses) != 2 || courses[0] != "Frontend" || courses[1] != "Backend" {
		t.Errorf("собрано %v", courses)
	}
	if draft.Active(42) {
		t.Error("Finish должен закрывать режим ввода")
	}
	if got := draft.Finish(42); len(got) != 0 {
		t.Errorf("повторный Finish вернул %v", got)
	}
}

func TestIsFinishPhrase(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{Translate("finish_button", LangLatin), true},
		{Translate("finish_button", LangCyrillic), true},
		{"tugatish", true},
		{"Tugatish", true},
		{"  тугатиш  ", true},
		{"Frontend", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isFinishPhrase(tc.in); got != tc.want {
			t.Errorf("isFinishPhrase(%q) = %v, ожидалось %v", tc.in, got, tc.want)
		}
	}
}

func TestUpdateUserCourses(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertUser(ctx, 42, "ali_dev", "Ali", ""); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdateUserCourses(ctx, 42, []string{"Frontend", "Mobile"}); err != nil {
		t.Fatal(err)
	}

	user, err := repo.GetUser(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(user.InterestedCourses) != 2 || user.InterestedCourses[0] != "Frontend" {
		t.Errorf("курсы сохранены неверно: %v", user.InterestedCourses)
	}
}
