// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"cloudshift-go/internal/model"
	"cloudshift-go/pkg/log"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// 聊天存储中的集合名。聊天文档只存元数据，
// 消息单独存放在 chat_messages 集合中以 chatId 关联。
const (
	ChatsCollection    = "migration_chats"
	MessagesCollection = "chat_messages"
)

// ErrChatNotFound 表示请求的聊天不存在。
// 调用方通过 errors.Is 判断"不存在"而非依赖异常。
var ErrChatNotFound = errors.New("chat not found")

// ChatRepository 定义了聊天及其消息的持久化操作。
// 远端存储是唯一权威数据源，所有读操作以它为准。
type ChatRepository interface {
	// CreateChat 分配新标识并持久化一个空消息列表的聊天，返回完整的聊天记录。
	CreateChat(ctx context.Context, userID, title string) (*model.Chat, error)
	// GetChat 读取单个聊天及其按时间升序排列的全部消息；不存在时返回 ErrChatNotFound。
	GetChat(ctx context.Context, chatID string) (*model.Chat, error)
	// GetUserChats 读取该用户的全部聊天（含消息），按 updatedAt 降序返回。
	GetUserChats(ctx context.Context, userID string) ([]model.Chat, error)
	// UpdateChat 对聊天元数据做部分更新，并无条件刷新 updatedAt。
	UpdateChat(ctx context.Context, chatID string, update model.ChatUpdate) error
	// DeleteChat 删除聊天记录并级联删除其全部消息。
	DeleteChat(ctx context.Context, chatID string) error
	// AddMessage 为消息分配标识并持久化到聊天下，同时刷新聊天的 updatedAt。
	AddMessage(ctx context.Context, chatID string, msg model.Message) (*model.Message, error)
}

// messageDoc 是消息在 Mongo 中的持久化形态。
// 可选字段使用指针加 omitempty：缺失时整个字段不写入文档。
type messageDoc struct {
	ID              string                 `bson:"_id"`
	ChatID          string                 `bson:"chatId"`
	Role            string                 `bson:"role"`
	Content         string                 `bson:"content"`
	Timestamp       time.Time              `bson:"timestamp"`
	File            *model.FileInfo        `bson:"file,omitempty"`
	MigrationResult *model.MigrationResult `bson:"migrationResult,omitempty"`
}

// chatDoc 是聊天元数据在 Mongo 中的持久化形态，不包含消息。
type chatDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	Title     string    `bson:"title"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type mongoChatRepository struct {
	db *mongo.Database
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *mongo.Database) ChatRepository {
	return &mongoChatRepository{db: db}
}

func (r *mongoChatRepository) chats() *mongo.Collection {
	return r.db.Collection(ChatsCollection)
}

func (r *mongoChatRepository) messages() *mongo.Collection {
	return r.db.Collection(MessagesCollection)
}

// CreateChat 在存储层生成聊天标识并写入元数据文档。
func (r *mongoChatRepository) CreateChat(ctx context.Context, userID, title string) (*model.Chat, error) {
	now := time.Now()
	doc := chatDoc{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.chats().InsertOne(ctx, doc); err != nil {
		return nil, err
	}

	return &model.Chat{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Title:     doc.Title,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Messages:  []model.Message{},
	}, nil
}

// GetChat 读取聊天元数据和消息序列。消息按 timestamp 升序由 Mongo 排序返回。
func (r *mongoChatRepository) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	var doc chatDoc
	err := r.chats().FindOne(ctx, bson.M{"_id": chatID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}

	messages, err := r.fetchMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}

	chat := toChat(doc)
	chat.Messages = messages
	return &chat, nil
}

// GetUserChats 只按归属过滤查询，排序在客户端完成。
// 这是刻意的取舍：避免 userId+updatedAt 的组合索引要求，
// 代价是每次加载一次 O(n log n) 的内存排序。
func (r *mongoChatRepository) GetUserChats(ctx context.Context, userID string) ([]model.Chat, error) {
	cursor, err := r.chats().Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []chatDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	chats := make([]model.Chat, 0, len(docs))
	for _, doc := range docs {
		chat := toChat(doc)
		// 单个聊天的消息读取失败不应中断整批加载，
		// 降级为空消息列表并记录告警。
		messages, err := r.fetchMessages(ctx, doc.ID)
		if err != nil {
			log.Warnf("[ChatRepository] 读取聊天 %s 的消息失败，降级为空列表: %v", doc.ID, err)
			messages = []model.Message{}
		}
		chat.Messages = messages
		chats = append(chats, chat)
	}

	// 最近活跃的聊天排在最前；updatedAt 相同的保持查询返回的相对顺序。
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})

	return chats, nil
}

// UpdateChat 对元数据做部分更新，updatedAt 无条件刷新为当前时间。
func (r *mongoChatRepository) UpdateChat(ctx context.Context, chatID string, update model.ChatUpdate) error {
	set := bson.M{"updatedAt": time.Now()}
	if update.Title != nil {
		set["title"] = *update.Title
	}

	res, err := r.chats().UpdateOne(ctx, bson.M{"_id": chatID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrChatNotFound
	}
	return nil
}

// DeleteChat 级联删除：先清空消息，再删聊天文档。
// 两次写入之间失败时留下的是一个无消息的聊天，而不是孤儿消息。
func (r *mongoChatRepository) DeleteChat(ctx context.Context, chatID string) error {
	if _, err := r.messages().DeleteMany(ctx, bson.M{"chatId": chatID}); err != nil {
		return err
	}

	res, err := r.chats().DeleteOne(ctx, bson.M{"_id": chatID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrChatNotFound
	}
	return nil
}

// AddMessage 在存储层生成消息标识，持久化消息并刷新聊天的 updatedAt。
// 输入消息缺失的可选字段不会以占位形式写入文档。
func (r *mongoChatRepository) AddMessage(ctx context.Context, chatID string, msg model.Message) (*model.Message, error) {
	// 先确认聊天存在，避免写入悬空消息
	err := r.chats().FindOne(ctx, bson.M{"_id": chatID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msg.ID = uuid.NewString()

	doc := messageDoc{
		ID:              msg.ID,
		ChatID:          chatID,
		Role:            msg.Role,
		Content:         msg.Content,
		Timestamp:       msg.Timestamp,
		File:            msg.File,
		MigrationResult: msg.MigrationResult,
	}

	if _, err := r.messages().InsertOne(ctx, doc); err != nil {
		return nil, err
	}

	// 追加后聊天的 updatedAt 不早于任何消息的时间戳
	now := time.Now()
	if now.Before(msg.Timestamp) {
		now = msg.Timestamp
	}
	if _, err := r.chats().UpdateOne(ctx, bson.M{"_id": chatID},
		bson.M{"$set": bson.M{"updatedAt": now}}); err != nil {
		return nil, err
	}

	return &msg, nil
}

// fetchMessages 按时间升序读取一个聊天的全部消息。
func (r *mongoChatRepository) fetchMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	opts := options.Find().SetSort(bson.M{"timestamp": 1})
	cursor, err := r.messages().Find(ctx, bson.M{"chatId": chatID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	messages := make([]model.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, model.Message{
			ID:              doc.ID,
			Role:            doc.Role,
			Content:         doc.Content,
			Timestamp:       doc.Timestamp,
			File:            doc.File,
			MigrationResult: doc.MigrationResult,
		})
	}
	return messages, nil
}

func toChat(doc chatDoc) model.Chat {
	return model.Chat{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Title:     doc.Title,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Messages:  []model.Message{},
	}
}
