package app

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository — альтернативное хранилище для установок, где уже развернута
// MongoDB. Поведение идентично SQLite-реализации.
type MongoRepository struct {
	client *mongo.Client
	db     *mongo.Database
	uri    string
}

func NewMongoRepository(uri string) *MongoRepository {
	return &MongoRepository{uri: uri}
}

func (r *MongoRepository) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(r.uri))
	if err != nil {
		return err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return err
	}
	r.client = client
	r.db = client.Database("wmgbot")

	threads := r.db.Collection("message_threads")
	if _, err := threads.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	}); err != nil {
		return err
	}

	log.Println("🔌 БД подключена (MongoDB).")
	return seedDefaults(ctx, r)
}

func (r *MongoRepository) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}

func mapMongoError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (r *MongoRepository) UpsertUser(ctx context.Context, userID int64, username, firstName, lastName string) error {
	_, err := r.db.Collection("users").UpdateByID(ctx, userID,
		bson.M{
			"$set": bson.M{
				"username":   username,
				"first_name": firstName,
				"last_name":  lastName,
			},
			"$setOnInsert": bson.M{
				"language":           string(LangCyrillic),
				"interested_courses": []string{},
				"subscriptions":      []string{},
				"registration_done":  false,
				"created_at":         time.Now(),
			},
		},
		options.Update().SetUpsert(true))
	return err
}

func (r *MongoRepository) GetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	err := r.db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&u)
	if err != nil {
		return nil, mapMongoError(err)
	}
	u.UserID = userID
	return &u, nil
}

func (r *MongoRepository) userSet(ctx context.Context, userID int64, set bson.M) error {
	res, err := r.db.Collection("users").UpdateByID(ctx, userID, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) UpdateUserLanguage(ctx context.Context, userID int64, lang Language) error {
	return r.userSet(ctx, userID, bson.M{"language": string(lang)})
}

func (r *MongoRepository) UpdateUserPhone(ctx context.Context, userID int64, phone string) error {
	return r.userSet(ctx, userID, bson.M{"phone": phone})
}

func (r *MongoRepository) UpdateUserCourses(ctx context.Context, userID int64, courses []string) error {
	return r.userSet(ctx, userID, bson.M{"interested_courses": courses})
}

func (r *MongoRepository) UpdateUserSubscriptions(ctx context.Context, userID int64, subs []string) error {
	return r.userSet(ctx, userID, bson.M{"subscriptions": subs})
}

func (r *MongoRepository) CompleteRegistration(ctx context.Context, userID int64) error {
	return r.userSet(ctx, userID, bson.M{"registration_done": true})
}

func (r *MongoRepository) ListUsers(ctx context.Context) ([]User, error) {
	cur, err := r.db.Collection("users").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var users []User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *MongoRepository) ListUsersBySubscription(ctx context.Context, name string) ([]User, error) {
	cur, err := r.db.Collection("users").Find(ctx, bson.M{"subscriptions": name})
	if err != nil {
		return nil, err
	}
	var users []User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *MongoRepository) CreateNews(ctx context.Context, n *News) error {
	ensureEntityDefaults(&n.ID, &n.CreatedAt)
	_, err := r.db.Collection("news").InsertOne(ctx, n)
	return err
}

func (r *MongoRepository) ListNews(ctx context.Context) ([]News, error) {
	cur, err := r.db.Collection("news").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var news []News
	if err := cur.All(ctx, &news); err != nil {
		return nil, err
	}
	return news, nil
}

func (r *MongoRepository) DeleteNews(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "news", id)
}

func (r *MongoRepository) CreateFAQ(ctx context.Context, f *FAQ) error {
	ensureEntityDefaults(&f.ID, &f.CreatedAt)
	_, err := r.db.Collection("faq").InsertOne(ctx, f)
	return err
}

func (r *MongoRepository) ListFAQ(ctx context.Context) ([]FAQ, error) {
	cur, err := r.db.Collection("faq").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var faq []FAQ
	if err := cur.All(ctx, &faq); err != nil {
		return nil, err
	}
	return faq, nil
}

func (r *MongoRepository) DeleteFAQ(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "faq", id)
}

func (r *MongoRepository) GetSetting(ctx context.Context, key string) (*Setting, error) {
	var s Setting
	err := r.db.Collection("settings").FindOne(ctx, bson.M{"_id": key}).Decode(&s)
	if err != nil {
		return nil, mapMongoError(err)
	}
	s.Key = key
	return &s, nil
}

func (r *MongoRepository) UpdateSetting(ctx context.Context, key, valueLatin, valueCyrillic string) error {
	_, err := r.db.Collection("settings").UpdateByID(ctx, key,
		bson.M{"$set": bson.M{
			"value_latin":    valueLatin,
			"value_cyrillic": valueCyrillic,
			"updated_at":     time.Now(),
		}},
		options.Update().SetUpsert(true))
	return err
}

func (r *MongoRepository) CreateCategory(ctx context.Context, cat *SubscriptionCategory) error {
	ensureEntityDefaults(&cat.ID, &cat.CreatedAt)
	_, err := r.db.Collection("categories").InsertOne(ctx, cat)
	return err
}

func (r *MongoRepository) ListCategories(ctx context.Context) ([]SubscriptionCategory, error) {
	cur, err := r.db.Collection("categories").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var cats []SubscriptionCategory
	if err := cur.All(ctx, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

func (r *MongoRepository) DeleteCategory(ctx context.Context, id string) error {
	return r.deleteByID(ctx, "categories", id)
}

func (r *MongoRepository) deleteByID(ctx context.Context, collection, id string) error {
	res, err := r.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) GetAdminAccount(ctx context.Context, username string) (*AdminAccount, error) {
	var acc AdminAccount
	err := r.db.Collection("admins").FindOne(ctx, bson.M{"_id": username}).Decode(&acc)
	if err != nil {
		return nil, mapMongoError(err)
	}
	acc.Username = username
	return &acc, nil
}

func (r *MongoRepository) CreateAdminAccount(ctx context.Context, acc *AdminAccount) error {
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now()
	}
	_, err := r.db.Collection("admins").InsertOne(ctx, acc)
	return err
}

func (r *MongoRepository) SaveMessageThread(ctx context.Context, messageID, userID, chatID int64) error {
	_, err := r.db.Collection("message_threads").UpdateByID(ctx, messageID,
		bson.M{
			"$set":         bson.M{"user_id": userID, "chat_id": chatID},
			"$setOnInsert": bson.M{"created_at": time.Now()},
		},
		options.Update().SetUpsert(true))
	return err
}

func (r *MongoRepository) FindThreadByMessageID(ctx context.Context, messageID int64) (*MessageThread, error) {
	var mt MessageThread
	err := r.db.Collection("message_threads").FindOne(ctx, bson.M{"_id": messageID}).Decode(&mt)
	if err != nil {
		return nil, mapMongoError(err)
	}
	mt.MessageID = messageID
	return &mt, nil
}

func (r *MongoRepository) SaveChatSession(ctx context.Context, userID, threadID int64) error {
	_, err := r.db.Collection("chat_sessions").UpdateByID(ctx, userID,
		bson.M{"$set": bson.M{"thread_id": threadID, "last_message_at": time.Now()}},
		options.Update().SetUpsert(true))
	return err
}

func (r *MongoRepository) GetChatSession(ctx context.Context, userID int64) (*ChatSession, error) {
	var cs ChatSession
	err := r.db.Collection("chat_sessions").FindOne(ctx, bson.M{"_id": userID}).Decode(&cs)
	if err != nil {
		return nil, mapMongoError(err)
	}
	cs.UserID = userID
	return &cs, nil
}

func (r *MongoRepository) CreateBroadcastLog(ctx context.Context, entry *BroadcastLog) error {
	ensureEntityDefaults(&entry.ID, &entry.CreatedAt)
	_, err := r.db.Collection("broadcast_logs").InsertOne(ctx, entry)
	return err
}

func (r *MongoRepository) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{
		SubscriptionCounts: make(map[string]int64),
		DailyRegistrations: make(map[string]int64),
	}
	var err error
	if stats.TotalUsers, err = r.db.Collection("users").CountDocuments(ctx, bson.M{}); err != nil {
		return nil, err
	}
	if stats.TotalNews, err = r.db.Collection("news").CountDocuments(ctx, bson.M{}); err != nil {
		return nil, err
	}
	if stats.TotalFAQ, err = r.db.Collection("faq").CountDocuments(ctx, bson.M{}); err != nil {
		return nil, err
	}

	users, err := r.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := truncateToDay(time.Now().AddDate(0, 0, -6))
	for _, u := range users {
		for _, s := range u.Subscriptions {
			stats.SubscriptionCounts[s]++
		}
		if !u.CreatedAt.Before(cutoff) {
			stats.DailyRegistrations[u.CreatedAt.Format("2006-01-02")]++
		}
	}
	return stats, nil
}
