package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("storage: record not found")

// ==========================================
// МОДЕЛИ
// ==========================================

type User struct {
	UserID            int64     `json:"user_id" gorm:"primaryKey" bson:"_id"`
	Username          string    `json:"username" bson:"username"`
	FirstName         string    `json:"first_name" bson:"first_name"`
	LastName          string    `json:"last_name" bson:"last_name"`
	Phone             string    `json:"phone" bson:"phone"`
	Language          string    `json:"language" gorm:"default:'uz_cyrillic'" bson:"language"`
	InterestedCourses []string  `json:"interested_courses" gorm:"serializer:json" bson:"interested_courses"`
	Subscriptions     []string  `json:"subscriptions" gorm:"serializer:json" bson:"subscriptions"`
	RegistrationDone  bool      `json:"registration_done" gorm:"default:false" bson:"registration_done"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}

type News struct {
	ID              string    `json:"id" gorm:"type:text;primaryKey" bson:"_id,omitempty"`
	TitleLatin      string    `json:"title_latin" bson:"title_latin"`
	TitleCyrillic   string    `json:"title_cyrillic" bson:"title_cyrillic"`
	ContentLatin    string    `json:"content_latin" gorm:"type:text" bson:"content_latin"`
	ContentCyrillic string    `json:"content_cyrillic" gorm:"type:text" bson:"content_cyrillic"`
	ImageURL        string    `json:"image_url" bson:"image_url"`
	CreatedAt       time.Time `json:"created_at" gorm:"index" bson:"created_at"`
}

type FAQ struct {
	ID               string    `json:"id" gorm:"type:text;primaryKey" bson:"_id,omitempty"`
	QuestionLatin    string    `json:"question_latin" bson:"question_latin"`
	QuestionCyrillic string    `json:"question_cyrillic" bson:"question_cyrillic"`
	AnswerLatin      string    `json:"answer_latin" gorm:"type:text" bson:"answer_latin"`
	AnswerCyrillic   string    `json:"answer_cyrillic" gorm:"type:text" bson:"answer_cyrillic"`
	CreatedAt        time.Time `json:"created_at" gorm:"index" bson:"created_at"`
}

type Setting struct {
	Key           string    `json:"key" gorm:"primaryKey" bson:"_id"`
	ValueLatin    string    `json:"value_latin" gorm:"type:text" bson:"value_latin"`
	ValueCyrillic string    `json:"value_cyrillic" gorm:"type:text" bson:"value_cyrillic"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

// SubscriptionCategory — направление (Frontend, Backend и т.д.), по которому
// пользователи подписываются на рассылки.
type SubscriptionCategory struct {
	ID                  string    `json:"id" gorm:"type:text;primaryKey" bson:"_id,omitempty"`
	NameLatin           string    `json:"name_latin" bson:"name_latin"`
	NameCyrillic        string    `json:"name_cyrillic" bson:"name_cyrillic"`
	DescriptionLatin    string    `json:"description_latin" bson:"description_latin"`
	DescriptionCyrillic string    `json:"description_cyrillic" bson:"description_cyrillic"`
	CreatedAt           time.Time `json:"created_at" gorm:"index" bson:"created_at"`
}

type AdminAccount struct {
	Username     string    `json:"username" gorm:"primaryKey" bson:"_id"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// MessageThread связывает ID доставленного сообщения с пользователем, которому
// принадлежит диалог. Записи только добавляются и никогда не изменяются.
type MessageThread struct {
	MessageID int64     `json:"message_id" gorm:"primaryKey;autoIncrement:false" bson:"_id"`
	UserID    int64     `json:"user_id" gorm:"index" bson:"user_id"`
	ChatID    int64     `json:"chat_id" bson:"chat_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// ChatSession хранит последний якорь диалога: ID сообщения в админ-группе, на
// которое будет отвечать продолжение переписки пользователя.
type ChatSession struct {
	UserID        int64     `json:"user_id" gorm:"primaryKey;autoIncrement:false" bson:"_id"`
	ThreadID      int64     `json:"thread_id" bson:"thread_id"`
	LastMessageAt time.Time `json:"last_message_at" bson:"last_message_at"`
}

type BroadcastLog struct {
	ID        string    `json:"id" gorm:"type:text;primaryKey" bson:"_id,omitempty"`
	Audience  string    `json:"audience" bson:"audience"`
	Message   string    `json:"message" gorm:"type:text" bson:"message"`
	Total     int       `json:"total" bson:"total"`
	Success   int       `json:"success" bson:"success"`
	Fail      int       `json:"fail" bson:"fail"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type DashboardStats struct {
	TotalUsers         int64            `json:"total_users"`
	TotalNews          int64            `json:"total_news"`
	TotalFAQ           int64            `json:"total_faq"`
	SubscriptionCounts map[string]int64 `json:"subscription_counts"`
	DailyRegistrations map[string]int64 `json:"daily_registrations"` // последние 7 дней, ключ YYYY-MM-DD
}

// ==========================================
// РЕПОЗИТОРИЙ
// ==========================================

type Repository interface {
	Init(ctx context.Context) error
	Close(ctx context.Context) error

	UpsertUser(ctx context.Context, userID int64, username, firstName, lastName string) error
	GetUser(ctx context.Context, userID int64) (*User, error)
	UpdateUserLanguage(ctx context.Context, userID int64, lang Language) error
	UpdateUserPhone(ctx context.Context, userID int64, phone string) error
	UpdateUserCourses(ctx context.Context, userID int64, courses []string) error
	UpdateUserSubscriptions(ctx context.Context, userID int64, subs []string) error
	CompleteRegistration(ctx context.Context, userID int64) error
	ListUsers(ctx context.Context) ([]User, error)
	ListUsersBySubscription(ctx context.Context, name string) ([]User, error)

	CreateNews(ctx context.Context, n *News) error
	ListNews(ctx context.Context) ([]News, error)
	DeleteNews(ctx context.Context, id string) error

	CreateFAQ(ctx context.Context, f *FAQ) error
	ListFAQ(ctx context.Context) ([]FAQ, error)
	DeleteFAQ(ctx context.Context, id string) error

	GetSetting(ctx context.Context, key string) (*Setting, error)
	UpdateSetting(ctx context.Context, key, valueLatin, valueCyrillic string) error

	CreateCategory(ctx context.Context, cat *SubscriptionCategory) error
	ListCategories(ctx context.Context) ([]SubscriptionCategory, error)
	DeleteCategory(ctx context.Context, id string) error

	GetAdminAccount(ctx context.Context, username string) (*AdminAccount, error)
	CreateAdminAccount(ctx context.Context, acc *AdminAccount) error

	SaveMessageThread(ctx context.Context, messageID, userID, chatID int64) error
	FindThreadByMessageID(ctx context.Context, messageID int64) (*MessageThread, error)
	SaveChatSession(ctx context.Context, userID, threadID int64) error
	GetChatSession(ctx context.Context, userID int64) (*ChatSession, error)

	CreateBroadcastLog(ctx context.Context, entry *BroadcastLog) error
	DashboardStats(ctx context.Context) (*DashboardStats, error)
}

// ==========================================
// SQLITE (GORM) РЕАЛИЗАЦИЯ
// ==========================================

type SQLiteRepository struct {
	db *gorm.DB
}

func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("создание директории БД: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Silent),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("открытие БД: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(2 * time.Hour)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Init(ctx context.Context) error {
	if r.db == nil {
		return errors.New("sqlite repository is not initialized")
	}
	if err := r.db.WithContext(ctx).AutoMigrate(
		&User{}, &News{}, &FAQ{}, &Setting{}, &SubscriptionCategory{},
		&AdminAccount{}, &MessageThread{}, &ChatSession{}, &BroadcastLog{},
	); err != nil {
		return err
	}
	log.Println("🔌 БД подключена (SQLite, WAL).")
	return seedDefaults(ctx, r)
}

func (r *SQLiteRepository) Close(_ context.Context) error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *SQLiteRepository) UpsertUser(ctx context.Context, userID int64, username, firstName, lastName string) error {
	u := User{
		UserID:    userID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
		CreatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "first_name", "last_name"}),
	}).Create(&u).Error
}

func (r *SQLiteRepository) GetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "user_id = ?", userID).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &u, nil
}

func (r *SQLiteRepository) UpdateUserLanguage(ctx context.Context, userID int64, lang Language) error {
	return r.userUpdate(ctx, userID, map[string]any{"language": string(lang)})
}

func (r *SQLiteRepository) UpdateUserPhone(ctx context.Context, userID int64, phone string) error {
	return r.userUpdate(ctx, userID, map[string]any{"phone": phone})
}

func (r *SQLiteRepository) UpdateUserCourses(ctx context.Context, userID int64, courses []string) error {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "user_id = ?", userID).Error; err != nil {
		return mapGormError(err)
	}
	u.InterestedCourses = courses
	return r.db.WithContext(ctx).Save(&u).Error
}

func (r *SQLiteRepository) UpdateUserSubscriptions(ctx context.Context, userID int64, subs []string) error {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "user_id = ?", userID).Error; err != nil {
		return mapGormError(err)
	}
	u.Subscriptions = subs
	return r.db.WithContext(ctx).Save(&u).Error
}

func (r *SQLiteRepository) CompleteRegistration(ctx context.Context, userID int64) error {
	return r.userUpdate(ctx, userID, map[string]any{"registration_done": true})
}

func (r *SQLiteRepository) userUpdate(ctx context.Context, userID int64, values map[string]any) error {
	res := r.db.WithContext(ctx).Model(&User{}).Where("user_id = ?", userID).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error
	return users, err
}

func (r *SQLiteRepository) ListUsersBySubscription(ctx context.Context, name string) ([]User, error) {
	// Подписки сериализуются в JSON-массив, поэтому фильтруем в памяти.
	users, err := r.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var out []User
	for _, u := range users {
		for _, s := range u.Subscriptions {
			if s == name {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (r *SQLiteRepository) CreateNews(ctx context.Context, n *News) error {
	ensureEntityDefaults(&n.ID, &n.CreatedAt)
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *SQLiteRepository) ListNews(ctx context.Context) ([]News, error) {
	var news []News
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&news).Error
	return news, err
}

func (r *SQLiteRepository) DeleteNews(ctx context.Context, id string) error {
	return deleteByID[News](r.db.WithContext(ctx), id)
}

func (r *SQLiteRepository) CreateFAQ(ctx context.Context, f *FAQ) error {
	ensureEntityDefaults(&f.ID, &f.CreatedAt)
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *SQLiteRepository) ListFAQ(ctx context.Context) ([]FAQ, error) {
	var faq []FAQ
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&faq).Error
	return faq, err
}

func (r *SQLiteRepository) DeleteFAQ(ctx context.Context, id string) error {
	return deleteByID[FAQ](r.db.WithContext(ctx), id)
}

func (r *SQLiteRepository) GetSetting(ctx context.Context, key string) (*Setting, error) {
	var s Setting
	if err := r.db.WithContext(ctx).First(&s, "key = ?", key).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &s, nil
}

func (r *SQLiteRepository) UpdateSetting(ctx context.Context, key, valueLatin, valueCyrillic string) error {
	s := Setting{Key: key, ValueLatin: valueLatin, ValueCyrillic: valueCyrillic, UpdatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value_latin", "value_cyrillic", "updated_at"}),
	}).Create(&s).Error
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, cat *SubscriptionCategory) error {
	ensureEntityDefaults(&cat.ID, &cat.CreatedAt)
	return r.db.WithContext(ctx).Create(cat).Error
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]SubscriptionCategory, error) {
	var cats []SubscriptionCategory
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&cats).Error
	return cats, err
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	return deleteByID[SubscriptionCategory](r.db.WithContext(ctx), id)
}

func (r *SQLiteRepository) GetAdminAccount(ctx context.Context, username string) (*AdminAccount, error) {
	var acc AdminAccount
	if err := r.db.WithContext(ctx).First(&acc, "username = ?", username).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &acc, nil
}

func (r *SQLiteRepository) CreateAdminAccount(ctx context.Context, acc *AdminAccount) error {
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(acc).Error
}

func (r *SQLiteRepository) SaveMessageThread(ctx context.Context, messageID, userID, chatID int64) error {
	mt := MessageThread{MessageID: messageID, UserID: userID, ChatID: chatID, CreatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "chat_id"}),
	}).Create(&mt).Error
}

func (r *SQLiteRepository) FindThreadByMessageID(ctx context.Context, messageID int64) (*MessageThread, error) {
	var mt MessageThread
	if err := r.db.WithContext(ctx).First(&mt, "message_id = ?", messageID).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &mt, nil
}

func (r *SQLiteRepository) SaveChatSession(ctx context.Context, userID, threadID int64) error {
	cs := ChatSession{UserID: userID, ThreadID: threadID, LastMessageAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"thread_id", "last_message_at"}),
	}).Create(&cs).Error
}

func (r *SQLiteRepository) GetChatSession(ctx context.Context, userID int64) (*ChatSession, error) {
	var cs ChatSession
	if err := r.db.WithContext(ctx).First(&cs, "user_id = ?", userID).Error; err != nil {
		return nil, mapGormError(err)
	}
	return &cs, nil
}

func (r *SQLiteRepository) CreateBroadcastLog(ctx context.Context, entry *BroadcastLog) error {
	ensureEntityDefaults(&entry.ID, &entry.CreatedAt)
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *SQLiteRepository) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{
		SubscriptionCounts: make(map[string]int64),
		DailyRegistrations: make(map[string]int64),
	}
	db := r.db.WithContext(ctx)
	if err := db.Model(&User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&News{}).Count(&stats.TotalNews).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&FAQ{}).Count(&stats.TotalFAQ).Error; err != nil {
		return nil, err
	}

	users, err := r.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().AddDate(0, 0, -6)
	for _, u := range users {
		for _, s := range u.Subscriptions {
			stats.SubscriptionCounts[s]++
		}
		if !u.CreatedAt.Before(truncateToDay(cutoff)) {
			stats.DailyRegistrations[u.CreatedAt.Format("2006-01-02")]++
		}
	}
	return stats, nil
}

// ==========================================
// ОБЩЕЕ
// ==========================================

func deleteByID[T any](db *gorm.DB, id string) error {
	var model T
	res := db.Where("id = ?", id).Delete(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func mapGormError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func ensureEntityDefaults(id *string, createdAt *time.Time) {
	if strings.TrimSpace(*id) == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now()
	}
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// seedDefaults создает стартовые настройки и направления при первом запуске.
func seedDefaults(ctx context.Context, repo Repository) error {
	if _, err := repo.GetSetting(ctx, "discount_text"); errors.Is(err, ErrNotFound) {
		if err := repo.UpdateSetting(ctx, "discount_text",
			"Chegirma olish uchun quyidagi manzilga murojaat qiling...",
			"Чегирма олиш учун қуйидаги манзилга мурожаат қилинг..."); err != nil {
			return err
		}
		if err := repo.UpdateSetting(ctx, "payment_text",
			"💳 To'lov turlari:\n\n🔹 Click\n🔹 Payme\n🔹 Uzum\n🔹 Naqd pul",
			"💳 Тўлов турлари:\n\n🔹 Click\n🔹 Payme\n🔹 Uzum\n🔹 Нақд пул"); err != nil {
			return err
		}
		log.Println("✅ Стандартные настройки созданы")
	} else if err != nil {
		return err
	}

	cats, err := repo.ListCategories(ctx)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		defaults := []SubscriptionCategory{
			{NameLatin: "Frontend", NameCyrillic: "Фронтенд", DescriptionLatin: "HTML, CSS, JavaScript, React", DescriptionCyrillic: "HTML, CSS, JavaScript, React"},
			{NameLatin: "Backend", NameCyrillic: "Бэкенд", DescriptionLatin: "Node.js, Python, Databases", DescriptionCyrillic: "Node.js, Python, Databases"},
			{NameLatin: "Mobile", NameCyrillic: "Мобил", DescriptionLatin: "React Native, Flutter", DescriptionCyrillic: "React Native, Flutter"},
			{NameLatin: "Design", NameCyrillic: "Дизайн", DescriptionLatin: "UI/UX, Figma, Adobe", DescriptionCyrillic: "UI/UX, Figma, Adobe"},
		}
		for i := range defaults {
			if err := repo.CreateCategory(ctx, &defaults[i]); err != nil {
				return err
			}
		}
		log.Println("✅ Стандартные направления созданы")
	}
	return nil
}
