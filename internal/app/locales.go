package app

// ==========================================
// ЛОКАЛИЗАЦИЯ (узбекский: кириллица и латиница)
// ==========================================

type Language string

const (
	LangCyrillic Language = "uz_cyrillic"
	LangLatin    Language = "uz_latin"
)

// normalizeLanguage приводит любое сохраненное значение к одному из двух
// поддерживаемых алфавитов. Старые записи могли хранить просто "uz".
func normalizeLanguage(s string) Language {
	if Language(s) == LangLatin {
		return LangLatin
	}
	return LangCyrillic
}

var locales = map[Language]map[string]string{
	LangCyrillic: {
		// Старт и регистрация
		"welcome":               "Ассалому алайкум",
		"choose_language":       "🌐 Тилни танланг:",
		"language_selected":     "✅ Тил танланди: Ўзбекча (Кирилл)",
		"share_phone":           "📱 Телефон рақамингизни улашинг:",
		"phone_button":          "📱 Телефон рақамни улашиш",
		"phone_received":        "✅ Телефон рақам қабул қилинди!",
		"registration_complete": "🎉 Рўйхатдан ўтиш муваффақиятли якунланди!\n\nЭнди ботнинг барча имкониятларидан фойдаланишингиз мумкин.",
		"ask_courses":           "🎓 Қайси курсларга қизиқасиз? Курс номини ёзиб юборинг.\n\nТугатиш учун «✅ Тугатиш» тугмасини босинг.",
		"course_added":          "✅ Қабул қилинди. Яна курс қўшинг ёки тугатинг.",
		"finish_button":         "✅ Тугатиш",

		// Главное меню
		"menu_news":         "📰 Янгиликлар",
		"menu_courses":      "🎓 Курслар",
		"menu_discount":     "💸 Чегирма билан олиш",
		"menu_payment":      "💳 Тўлов турлари",
		"menu_subscribe":    "🔔 Обуна бўлиш",
		"menu_faq":          "❓ FAQ",
		"menu_consultation": "👨‍💼 Консултация",
		"menu_rating":       "🏆 Рейтинг",

		// Новости
		"no_news": "⚠️ Ҳозирча янгиликлар йўқ",

		// Курсы
		"courses_title":       "🎓 WMG Academy курслари",
		"courses_description": "Курслар ҳақида тўлиқ маълумот олиш учун қуйидаги тугмани босинг:",
		"courses_view":        "🎓 Курсларни кўриш",

		// Рейтинг
		"rating_title":       "🏆 Топ ўқувчилар рейтинги",
		"rating_description": "Рейтингни кўриш учун қуйидаги тугмани босинг:",
		"rating_view":        "🏆 Рейтингни кўриш",

		// Подписки
		"subscribe_title":        "🔔 Қайси йўналишларга обуна бўлмоқчисиз?",
		"subscribe_description":  "Broadcast хабарлари фақат танланган йўналишга келади:\n\n💡 Бир нечта йўналишни танлашингиз мумкин:",
		"subscribe_confirm":      "✅ Тасдиқлаш",
		"subscribe_selected":     "✅ Сиз қуйидаги йўналишларга обуна бўлдингиз:",
		"subscribe_notification": "📬 Сизга ушбу йўналишлардаги янгиликларни юбориб турамиз!",
		"select_min_one":         "⚠️ Камида битта йўналиш танланг!",

		// FAQ
		"no_faq":       "⚠️ Ҳозирча FAQ йўқ",
		"faq_question": "❓ Савол:",
		"faq_answer":   "✅ Жавоб:",

		// Консультация
		"consultation_title":  "👨‍💼 Консултация",
		"consultation_prompt": "Саволингизни ёзинг, тез орада жавоб берамиз!\n\n💬 Хабар юборинг:",
		"consultation_sent":   "✅ Хабарингиз юборилди! Тез орада жавоб берамиз.",
		"consultation_cancel": "❌ Консултация бекор қилинди",
		"cancel_button":       "❌ Бекор қилиш",

		// Кнопки
		"btn_next":      "Кейинги ➡️",
		"btn_prev":      "⬅️ Олдинги",
		"btn_main_menu": "🏠 Бош меню",

		// Сообщения админа
		"admin_reply":   "👨‍💼 Админ жавоби:",
		"user_label":    "👤 Фойдаланувчи:",
		"message_label": "💬 Хабар:",

		// Ошибки
		"error_occurred": "❌ Хатолик юз берди. Илтимос қайта уриниб кўринг.",
	},

	LangLatin: {
		// Старт и регистрация
		"welcome":               "Assalomu aleykum",
		"choose_language":       "🌐 Tilni tanlang:",
		"language_selected":     "✅ Til tanlandi: O'zbekcha (Lotin)",
		"share_phone":           "📱 Telefon raqamingizni ulashing:",
		"phone_button":          "📱 Telefon raqamni ulashish",
		"phone_received":        "✅ Telefon raqam qabul qilindi!",
		"registration_complete": "🎉 Ro'yxatdan o'tish muvaffaqiyatli yakunlandi!\n\nEndi botning barcha imkoniyatlaridan foydalanishingiz mumkin.",
		"ask_courses":           "🎓 Qaysi kurslarga qiziqasiz? Kurs nomini yozib yuboring.\n\nTugatish uchun «✅ Tugatish» tugmasini bosing.",
		"course_added":          "✅ Qabul qilindi. Yana kurs qo'shing yoki tugating.",
		"finish_button":         "✅ Tugatish",

		// Главное меню
		"menu_news":         "📰 Yangiliklar",
		"menu_courses":      "🎓 Kurslar",
		"menu_discount":     "💸 Chegirma bilan olish",
		"menu_payment":      "💳 To'lov turlari",
		"menu_subscribe":    "🔔 Obuna bo'lish",
		"menu_faq":          "❓ FAQ",
		"menu_consultation": "👨‍💼 Konsultatsiya",
		"menu_rating":       "🏆 Reyting",

		// Новости
		"no_news": "⚠️ Hozircha yangiliklar yo'q",

		// Курсы
		"courses_title":       "🎓 WMG Academy kurslari",
		"courses_description": "Kurslar haqida to'liq ma'lumot olish uchun quyidagi tugmani bosing:",
		"courses_view":        "🎓 Kurslarni ko'rish",

		// Рейтинг
		"rating_title":       "🏆 Top o'quvchilar reytingi",
		"rating_description": "Reytingni ko'rish uchun quyidagi tugmani bosing:",
		"rating_view":        "🏆 Reytingni ko'rish",

		// Подписки
		"subscribe_title":        "🔔 Qaysi yo'nalishlarga obuna bo'lmoqchisiz?",
		"subscribe_description":  "Broadcast xabarlari faqat tanlangan yo'nalishga keladi:\n\n💡 Bir nechta yo'nalishni tanlashingiz mumkin:",
		"subscribe_confirm":      "✅ Tasdiqlash",
		"subscribe_selected":     "✅ Siz quyidagi yo'nalishlarga obuna bo'ldingiz:",
		"subscribe_notification": "📬 Sizga ushbu yo'nalishlardagi yangiliklarni yuborib turamiz!",
		"select_min_one":         "⚠️ Kamida bitta yo'nalish tanlang!",

		// FAQ
		"no_faq":       "⚠️ Hozircha FAQ yo'q",
		"faq_question": "❓ Savol:",
		"faq_answer":   "✅ Javob:",

		// Консультация
		"consultation_title":  "👨‍💼 Konsultatsiya",
		"consultation_prompt": "Savolingizni yozing, tez orada javob beramiz!\n\n💬 Xabar yuboring:",
		"consultation_sent":   "✅ Xabaringiz yuborildi! Tez orada javob beramiz.",
		"consultation_cancel": "❌ Konsultatsiya bekor qilindi",
		"cancel_button":       "❌ Bekor qilish",

		// Кнопки
		"btn_next":      "Keyingi ➡️",
		"btn_prev":      "⬅️ Oldingi",
		"btn_main_menu": "🏠 Bosh menu",

		// Сообщения админа
		"admin_reply":   "👨‍💼 Admin javobi:",
		"user_label":    "👤 Foydalanuvchi:",
		"message_label": "💬 Xabar:",

		// Ошибки
		"error_occurred": "❌ Xatolik yuz berdi. Iltimos qayta urinib ko'ring.",
	},
}

// Translate возвращает строку по ключу. Кириллица служит запасным
// вариантом, неизвестный ключ возвращается как есть.
func Translate(key string, lang Language) string {
	if table, ok := locales[lang]; ok {
		if s, ok := table[key]; ok {
			return s
		}
	}
	if s, ok := locales[LangCyrillic][key]; ok {
		return s
	}
	return key
}
