package app

import "testing"

func TestTranslate(t *testing.T) {
	if got := Translate("menu_news", LangLatin); got == "" || got == "menu_news" {
		t.Errorf("latin menu_news = %q", got)
	}
	if got := Translate("menu_news", LangCyrillic); got == "" || got == "menu_news" {
		t.Errorf("cyrillic menu_news = %q", got)
	}

	// Неизвестный ключ возвращается как есть, чтобы опечатку было видно.
	if got := Translate("no_such_key", LangLatin); got != "no_such_key" {
		t.Errorf("неизвестный ключ = %q", got)
	}
}

func TestLocaleTablesMirrorEachOther(t *testing.T) {
	cyr, lat := locales[LangCyrillic], locales[LangLatin]
	for key := range cyr {
		if _, ok := lat[key]; !ok {
			t.Errorf("ключ %q есть в кириллице, но отсутствует в латинице", key)
		}
	}
	for key := range lat {
		if _, ok := cyr[key]; !ok {
			t.Errorf("ключ %q есть в латинице, но отсутствует в кириллице", key)
		}
	}
}

func TestNormalizeLanguage(t *testing.T) {
	cases := []struct {
		in   string
		want Language
	}{
		{"uz_latin", LangLatin},
		{"uz_cyrillic", LangCyrillic},
		{"", LangCyrillic},
		{"en", LangCyrillic},
	}
	for _, tc := range cases {
		if got := normalizeLanguage(tc.in); got != tc.want {
			t.Errorf("normalizeLanguage(%q) = %q, ожидалось %q", tc.in, got, tc.want)
		}
	}
}
