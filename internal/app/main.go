package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tele "gopkg.in/telebot.v3"
)

// ==========================================
// КОНФИГУРАЦИЯ И ЗАПУСК
// ==========================================

type Config struct {
	Token         string `json:"token"`
	AdminGroupID  int64  `json:"admin_group_id"`
	BotAPIUrl     string `json:"bot_api_url"`
	WebAddr       string `json:"web_addr"`
	StorageDriver string `json:"storage_driver"` // "sqlite" (по умолчанию) или "mongo"
	MongoURI      string `json:"mongo_uri"`
	JWTSecret     string `json:"jwt_secret"`
	AdminUser     string `json:"admin_user"`
	AdminPassword string `json:"admin_password"`
	SiteURL       string `json:"site_url"`
	RatingURL     string `json:"rating_url"`
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		WebAddr:       ":8080",
		StorageDriver: "sqlite",
		AdminUser:     "admin",
		SiteURL:       "https://wmg.uz",
		RatingURL:     "https://wmg.uz/rating",
	}
	if _, err := os.Stat(configFilePath); err == nil {
		if err := loadJSON(configFilePath, cfg); err != nil {
			return nil, err
		}
	}

	// Переменные окружения важнее файла.
	if v := os.Getenv("WMG_BOT_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("WMG_ADMIN_GROUP_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.AdminGroupID = id
		}
	}
	if v := os.Getenv("WMG_BOT_API_URL"); v != "" {
		cfg.BotAPIUrl = v
	}
	if v := os.Getenv("WMG_WEB_ADDR"); v != "" {
		cfg.WebAddr = v
	}
	if v := os.Getenv("WMG_STORAGE_DRIVER"); v != "" {
		cfg.StorageDriver = v
	}
	if v := os.Getenv("WMG_MONGO_URI"); v != "" {
		cfg.MongoURI = v
	}
	if v := os.Getenv("WMG_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("WMG_ADMIN_USER"); v != "" {
		cfg.AdminUser = v
	}
	if v := os.Getenv("WMG_ADMIN_PASSWORD"); v != "" {
		cfg.AdminPassword = v
	}
	if v := os.Getenv("WMG_SITE_URL"); v != "" {
		cfg.SiteURL = v
	}
	if v := os.Getenv("WMG_RATING_URL"); v != "" {
		cfg.RatingURL = v
	}
	return cfg, nil
}

func newRepository(cfg *Config) (Repository, error) {
	if cfg.StorageDriver == "mongo" {
		return NewMongoRepository(cfg.MongoURI), nil
	}
	return NewSQLiteRepository(dbFilePath)
}

// Run поднимает бота, хранилище и веб-сервер и блокируется до сигнала
// завершения.
func Run() {
	initAppLayout()
	InitLogger()
	defer CloseLogger()
	markStart()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if cfg.Token == "" {
		log.Fatal("❌ Не задан токен бота (WMG_BOT_TOKEN или configs/config.json)")
	}
	if cfg.AdminGroupID == 0 {
		log.Fatal("❌ Не задан ID админ-группы (WMG_ADMIN_GROUP_ID)")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("❌ Не задан секрет для подписи токенов (WMG_JWT_SECRET)")
	}

	ctx := context.Background()
	repo, err := newRepository(cfg)
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации хранилища: %v", err)
	}
	if err := repo.Init(ctx); err != nil {
		log.Fatalf("❌ Ошибка инициализации хранилища: %v", err)
	}
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			log.Printf("⚠️ Ошибка закрытия хранилища: %v", err)
		}
	}()

	pref := tele.Settings{
		Token:  cfg.Token,
		URL:    cfg.BotAPIUrl,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	bot, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("❌ Ошибка создания бота: %v", err)
	}
	// Сбрасываем вебхук, иначе long polling не получит обновлений.
	if err := bot.RemoveWebhook(true); err != nil {
		log.Printf("⚠️ Не удалось снять вебхук: %v", err)
	}

	b := NewBot(bot, repo, cfg)
	b.RegisterHandlers()

	auth := NewAuthService(repo, cfg.JWTSecret)
	if err := auth.EnsureDefaultAdmin(ctx, cfg.AdminUser, cfg.AdminPassword); err != nil {
		log.Fatalf("❌ Ошибка создания администратора: %v", err)
	}

	web := NewWebServer(cfg.WebAddr, repo, auth, NewBroadcaster(bot, repo))
	web.Start()

	stop := make(chan struct{})
	startHousekeeping(stop)

	safeGo("telegram-poller", bot.Start)
	log.Printf("🚀 Бот запущен (админ-группа %d)", cfg.AdminGroupID)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("🛑 Завершение работы...")
	close(stop)
	bot.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := web.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Ошибка остановки веб-сервера: %v", err)
	}
	log.Println("👋 Бот остановлен.")
}
