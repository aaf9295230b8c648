// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"time"

	"cloudshift-go/internal/config"
	"cloudshift-go/internal/model"
	"cloudshift-go/internal/repository"
	"cloudshift-go/internal/session"
	"cloudshift-go/pkg/es"
	"cloudshift-go/pkg/events"
	"cloudshift-go/pkg/kafka"
	"cloudshift-go/pkg/log"
)

// ChatService 是同步层：把每次变更同时落到远端聊天存储和会话缓存，
// 读取时以远端存储为准刷新缓存。消息索引与审计事件是尽力而为的旁路写，
// 失败只告警，不影响主流程。
type ChatService interface {
	CreateChat(ctx context.Context, user *model.User, title string) (*model.Chat, error)
	GetChat(ctx context.Context, user *model.User, chatID string) (*model.Chat, error)
	GetUserChats(ctx context.Context, user *model.User) ([]model.Chat, error)
	UpdateChat(ctx context.Context, user *model.User, chatID string, update model.ChatUpdate) (*model.Chat, error)
	RenameChat(ctx context.Context, user *model.User, chatID, title string) (*model.Chat, error)
	DeleteChat(ctx context.Context, user *model.User, chatID string) error
	AddMessage(ctx context.Context, user *model.User, chatID string, msg model.Message) (*model.Message, error)
	SessionState(user *model.User) session.State
}

type chatService struct {
	chatRepo repository.ChatRepository
	sessions *session.Manager
	esCfg    config.ElasticsearchConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(chatRepo repository.ChatRepository, sessions *session.Manager, esCfg config.ElasticsearchConfig) ChatService {
	return &chatService{
		chatRepo: chatRepo,
		sessions: sessions,
		esCfg:    esCfg,
	}
}

// CreateChat 新建一个空聊天：先持久化，再插入会话缓存并设为当前聊天。
func (s *chatService) CreateChat(ctx context.Context, user *model.User, title string) (*model.Chat, error) {
	chat, err := s.chatRepo.CreateChat(ctx, user.StoreID(), title)
	if err != nil {
		return nil, err
	}

	store := s.sessions.Get(user.StoreID())
	store.AddChat(*chat)
	store.SetCurrentChat(chat)

	s.produceEvent(ctx, events.ChatEvent{
		Type:      events.TypeChatCreated,
		ChatID:    chat.ID,
		UserID:    chat.UserID,
		Timestamp: time.Now(),
	})

	log.Infof("[ChatService] 用户 %s 创建聊天 %s", chat.UserID, chat.ID)
	return chat, nil
}

// GetChat 从远端存储读取聊天并刷新缓存的当前聊天。
// 不属于该用户的聊天按不存在处理。
func (s *chatService) GetChat(ctx context.Context, user *model.User, chatID string) (*model.Chat, error) {
	chat, err := s.fetchOwnedChat(ctx, user, chatID)
	if err != nil {
		return nil, err
	}

	s.sessions.Get(user.StoreID()).SetCurrentChat(chat)
	return chat, nil
}

// GetUserChats 加载该用户的全部聊天并整体替换缓存中的列表。
// 仓储层保证按 updatedAt 降序返回。加载过程反映在会话状态的
// loading/error 字段上，供订阅端展示。
func (s *chatService) GetUserChats(ctx context.Context, user *model.User) ([]model.Chat, error) {
	store := s.sessions.Get(user.StoreID())
	store.SetLoading(true)
	defer store.SetLoading(false)

	chats, err := s.chatRepo.GetUserChats(ctx, user.StoreID())
	if err != nil {
		store.SetError("Failed to load chats")
		return nil, err
	}

	store.SetError("")
	store.SetChats(chats)
	return chats, nil
}

// UpdateChat 对聊天元数据做部分更新，随后用存储中的最新状态刷新缓存。
func (s *chatService) UpdateChat(ctx context.Context, user *model.User, chatID string, update model.ChatUpdate) (*model.Chat, error) {
	if _, err := s.fetchOwnedChat(ctx, user, chatID); err != nil {
		return nil, err
	}

	if err := s.chatRepo.UpdateChat(ctx, chatID, update); err != nil {
		return nil, err
	}

	chat, err := s.chatRepo.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	s.sessions.Get(user.StoreID()).UpdateChat(*chat)

	s.produceEvent(ctx, events.ChatEvent{
		Type:      events.TypeChatRenamed,
		ChatID:    chatID,
		UserID:    user.StoreID(),
		Timestamp: time.Now(),
	})
	return chat, nil
}

// RenameChat 是 UpdateChat 的便捷封装，只修改标题。
func (s *chatService) RenameChat(ctx context.Context, user *model.User, chatID, title string) (*model.Chat, error) {
	return s.UpdateChat(ctx, user, chatID, model.ChatUpdate{Title: &title})
}

// DeleteChat 删除聊天（含级联的消息），并清理缓存与消息索引。
func (s *chatService) DeleteChat(ctx context.Context, user *model.User, chatID string) error {
	if _, err := s.fetchOwnedChat(ctx, user, chatID); err != nil {
		return err
	}

	if err := s.chatRepo.DeleteChat(ctx, chatID); err != nil {
		return err
	}

	s.sessions.Get(user.StoreID()).DeleteChat(chatID)

	if es.ESClient != nil {
		if err := es.DeleteByChatID(ctx, s.esCfg.IndexName, chatID); err != nil {
			log.Warnf("[ChatService] 清理聊天 %s 的消息索引失败: %v", chatID, err)
		}
	}

	s.produceEvent(ctx, events.ChatEvent{
		Type:      events.TypeChatDeleted,
		ChatID:    chatID,
		UserID:    user.StoreID(),
		Timestamp: time.Now(),
	})

	log.Infof("[ChatService] 用户 %s 删除聊天 %s", user.StoreID(), chatID)
	return nil
}

// AddMessage 把消息追加到聊天：持久化、更新缓存、索引、发事件。
func (s *chatService) AddMessage(ctx context.Context, user *model.User, chatID string, msg model.Message) (*model.Message, error) {
	chat, err := s.fetchOwnedChat(ctx, user, chatID)
	if err != nil {
		return nil, err
	}

	saved, err := s.chatRepo.AddMessage(ctx, chatID, msg)
	if err != nil {
		return nil, err
	}

	// 追加目标是当前聊天时走缓存的追加路径；
	// 否则重读后整体替换，保持列表副本与存储一致。
	store := s.sessions.Get(user.StoreID())
	snapshot := store.Snapshot()
	if snapshot.CurrentChat != nil && snapshot.CurrentChat.ID == chatID {
		store.AddMessage(*saved)
	} else {
		chat.Messages = append(chat.Messages, *saved)
		chat.UpdatedAt = saved.Timestamp
		store.UpdateChat(*chat)
	}

	if es.ESClient != nil {
		doc := es.MessageDoc{
			MessageID: saved.ID,
			ChatID:    chatID,
			UserID:    user.StoreID(),
			Role:      saved.Role,
			Content:   saved.Content,
			Timestamp: saved.Timestamp,
		}
		if err := es.IndexMessage(ctx, s.esCfg.IndexName, doc); err != nil {
			log.Warnf("[ChatService] 索引消息 %s 失败: %v", saved.ID, err)
		}
	}

	s.produceEvent(ctx, events.ChatEvent{
		Type:      events.TypeMessageAppended,
		ChatID:    chatID,
		UserID:    user.StoreID(),
		MessageID: saved.ID,
		Role:      saved.Role,
		Timestamp: time.Now(),
	})

	return saved, nil
}

// SessionState 返回该用户会话缓存的当前快照。
func (s *chatService) SessionState(user *model.User) session.State {
	return s.sessions.Get(user.StoreID()).Snapshot()
}

// fetchOwnedChat 读取聊天并校验归属；他人的聊天一律按不存在处理，不泄露存在性。
func (s *chatService) fetchOwnedChat(ctx context.Context, user *model.User, chatID string) (*model.Chat, error) {
	chat, err := s.chatRepo.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != user.StoreID() {
		return nil, repository.ErrChatNotFound
	}
	return chat, nil
}

// produceEvent 发送审计事件，失败只告警。
func (s *chatService) produceEvent(ctx context.Context, event events.ChatEvent) {
	if !kafka.Ready() {
		return
	}
	if err := kafka.ProduceChatEvent(ctx, event); err != nil {
		log.Warnf("[ChatService] 发送聊天事件失败 type=%s chat=%s: %v", event.Type, event.ChatID, err)
	}
}
