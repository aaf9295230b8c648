package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"cloudshift-go/internal/config"
	"cloudshift-go/internal/model"
	"cloudshift-go/internal/repository"
	"cloudshift-go/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatRepo 是 ChatRepository 的内存实现，语义与 Mongo 实现保持一致：
// 消息单独存放、按时间升序读回、删除聊天时级联删除消息。
type fakeChatRepo struct {
	chats    map[string]model.Chat
	messages map[string][]model.Message
	nextID   int
	listErr  error
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		chats:    make(map[string]model.Chat),
		messages: make(map[string][]model.Message),
	}
}

func (r *fakeChatRepo) CreateChat(_ context.Context, userID, title string) (*model.Chat, error) {
	r.nextID++
	now := time.Now()
	chat := model.Chat{
		ID:        fmt.Sprintf("chat-%d", r.nextID),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []model.Message{},
	}
	r.chats[chat.ID] = chat
	return &chat, nil
}

func (r *fakeChatRepo) GetChat(_ context.Context, chatID string) (*model.Chat, error) {
	chat, ok := r.chats[chatID]
	if !ok {
		return nil, repository.ErrChatNotFound
	}
	msgs := make([]model.Message, len(r.messages[chatID]))
	copy(msgs, r.messages[chatID])
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	chat.Messages = msgs
	return &chat, nil
}

func (r *fakeChatRepo) GetUserChats(_ context.Context, userID string) ([]model.Chat, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []model.Chat
	for id, chat := range r.chats {
		if chat.UserID != userID {
			continue
		}
		loaded, _ := r.GetChat(context.Background(), id)
		out = append(out, *loaded)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *fakeChatRepo) UpdateChat(_ context.Context, chatID string, update model.ChatUpdate) error {
	chat, ok := r.chats[chatID]
	if !ok {
		return repository.ErrChatNotFound
	}
	if update.Title != nil {
		chat.Title = *update.Title
	}
	chat.UpdatedAt = time.Now()
	r.chats[chatID] = chat
	return nil
}

func (r *fakeChatRepo) DeleteChat(_ context.Context, chatID string) error {
	if _, ok := r.chats[chatID]; !ok {
		return repository.ErrChatNotFound
	}
	delete(r.messages, chatID)
	delete(r.chats, chatID)
	return nil
}

func (r *fakeChatRepo) AddMessage(_ context.Context, chatID string, msg model.Message) (*model.Message, error) {
	chat, ok := r.chats[chatID]
	if !ok {
		return nil, repository.ErrChatNotFound
	}
	r.nextID++
	msg.ID = fmt.Sprintf("msg-%d", r.nextID)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	r.messages[chatID] = append(r.messages[chatID], msg)

	updated := time.Now()
	if msg.Timestamp.After(updated) {
		updated = msg.Timestamp
	}
	chat.UpdatedAt = updated
	r.chats[chatID] = chat
	return &msg, nil
}

func newTestChatService() (ChatService, *fakeChatRepo, *session.Manager) {
	repo := newFakeChatRepo()
	sessions := session.NewManager()
	svc := NewChatService(repo, sessions, config.ElasticsearchConfig{IndexName: "chat_messages"})
	return svc, repo, sessions
}

func testUser(id uint) *model.User {
	return &model.User{ID: id, Email: fmt.Sprintf("user%d@example.com", id)}
}

func TestCreateChatBecomesCurrentChat(t *testing.T) {
	svc, _, sessions := newTestChatService()
	user := testUser(1)

	chat, err := svc.CreateChat(context.Background(), user, "New Migration")
	require.NoError(t, err)
	assert.NotEmpty(t, chat.ID)
	assert.Equal(t, user.StoreID(), chat.UserID)
	assert.Empty(t, chat.Messages)

	state := sessions.Get(user.StoreID()).Snapshot()
	require.NotNil(t, state.CurrentChat)
	assert.Equal(t, chat.ID, state.CurrentChat.ID)
	require.Len(t, state.Chats, 1)
}

func TestGetChatOfOtherUserNotFound(t *testing.T) {
	svc, _, _ := newTestChatService()
	owner := testUser(1)
	intruder := testUser(2)

	chat, err := svc.CreateChat(context.Background(), owner, "private")
	require.NoError(t, err)

	_, err = svc.GetChat(context.Background(), intruder, chat.ID)
	assert.ErrorIs(t, err, repository.ErrChatNotFound)
}

func TestGetChatUnknownIDNotFound(t *testing.T) {
	svc, _, _ := newTestChatService()

	_, err := svc.GetChat(context.Background(), testUser(1), "ghost")
	assert.ErrorIs(t, err, repository.ErrChatNotFound)
}

func TestGetUserChatsFiltersAndSorts(t *testing.T) {
	svc, _, sessions := newTestChatService()
	user := testUser(1)
	other := testUser(2)

	first, err := svc.CreateChat(context.Background(), user, "first")
	require.NoError(t, err)
	second, err := svc.CreateChat(context.Background(), user, "second")
	require.NoError(t, err)
	_, err = svc.CreateChat(context.Background(), other, "not mine")
	require.NoError(t, err)

	// 给第一个聊天追加消息，使它成为最近更新的
	_, err = svc.AddMessage(context.Background(), user, first.ID, model.Message{
		Role: model.RoleUser, Content: "bump",
	})
	require.NoError(t, err)

	chats, err := svc.GetUserChats(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, first.ID, chats[0].ID)
	assert.Equal(t, second.ID, chats[1].ID)

	// 列表加载整体替换会话缓存
	state := sessions.Get(user.StoreID()).Snapshot()
	require.Len(t, state.Chats, 2)
	assert.Equal(t, first.ID, state.Chats[0].ID)
}

func TestGetUserChatsFailureSetsSessionError(t *testing.T) {
	svc, repo, sessions := newTestChatService()
	user := testUser(1)
	repo.listErr = errors.New("mongo unreachable")

	_, err := svc.GetUserChats(context.Background(), user)
	require.Error(t, err)

	state := sessions.Get(user.StoreID()).Snapshot()
	assert.Equal(t, "Failed to load chats", state.Error)
	assert.False(t, state.Loading)

	// 下一次成功加载清除错误
	repo.listErr = nil
	_, err = svc.GetUserChats(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, sessions.Get(user.StoreID()).Snapshot().Error)
}

func TestRenameChatUpdatesTitleAndBumpsUpdatedAt(t *testing.T) {
	svc, _, sessions := newTestChatService()
	user := testUser(1)

	chat, err := svc.CreateChat(context.Background(), user, "untitled")
	require.NoError(t, err)
	created := chat.UpdatedAt

	renamed, err := svc.RenameChat(context.Background(), user, chat.ID, "migration notes")
	require.NoError(t, err)
	assert.Equal(t, "migration notes", renamed.Title)
	assert.False(t, renamed.UpdatedAt.Before(created))

	state := sessions.Get(user.StoreID()).Snapshot()
	assert.Equal(t, "migration notes", state.Chats[0].Title)
}

func TestRenameUnknownChatNotFound(t *testing.T) {
	svc, _, _ := newTestChatService()

	_, err := svc.RenameChat(context.Background(), testUser(1), "ghost", "x")
	assert.ErrorIs(t, err, repository.ErrChatNotFound)
}

func TestDeleteChatCascadesAndClearsSession(t *testing.T) {
	svc, repo, sessions := newTestChatService()
	user := testUser(1)

	chat, err := svc.CreateChat(context.Background(), user, "doomed")
	require.NoError(t, err)
	_, err = svc.AddMessage(context.Background(), user, chat.ID, model.Message{
		Role: model.RoleUser, Content: "soon gone",
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteChat(context.Background(), user, chat.ID))

	// 消息随聊天一起删除
	assert.Empty(t, repo.messages[chat.ID])
	_, err = svc.GetChat(context.Background(), user, chat.ID)
	assert.ErrorIs(t, err, repository.ErrChatNotFound)

	state := sessions.Get(user.StoreID()).Snapshot()
	assert.Nil(t, state.CurrentChat)
	assert.Empty(t, state.Chats)
}

func TestDeleteChatOfOtherUserNotFound(t *testing.T) {
	svc, _, _ := newTestChatService()
	owner := testUser(1)

	chat, err := svc.CreateChat(context.Background(), owner, "private")
	require.NoError(t, err)

	err = svc.DeleteChat(context.Background(), testUser(2), chat.ID)
	assert.ErrorIs(t, err, repository.ErrChatNotFound)
}

func TestAddMessageAllocatesIDAndBumpsUpdatedAt(t *testing.T) {
	svc, _, _ := newTestChatService()
	user := testUser(1)

	chat, err := svc.CreateChat(context.Background(), user, "talk")
	require.NoError(t, err)

	msg, err := svc.AddMessage(context.Background(), user, chat.ID, model.Message{
		Role: model.RoleUser, Content: "hello",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())

	loaded, err := svc.GetChat(context.Background(), user, chat.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 1)
	// updatedAt 不早于消息时间戳
	assert.False(t, loaded.UpdatedAt.Before(msg.Timestamp))
}

func TestAddMessagePreservesOrder(t *testing.T) {
	svc, _, _ := newTestChatService()
	user := testUser(1)

	chat, err := svc.CreateChat(context.Background(), user, "ordered")
	require.NoError(t, err)

	base := time.Now()
	for i := 0; i < 3; i++ {
		_, err = svc.AddMessage(context.Background(), user, chat.ID, model.Message{
			Role:      model.RoleUser,
			Content:   fmt.Sprintf("msg %d", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	loaded, err := svc.GetChat(context.Background(), user, chat.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 3)
	for i, msg := range loaded.Messages {
		assert.Equal(t, fmt.Sprintf("msg %d", i), msg.Content)
	}
}

func TestAddMessageMirrorsIntoCurrentChat(t *testing.T) {
	svc, _, sessions := newTestChatService()
	user := testUser(1)

	chat, err := svc.CreateChat(context.Background(), user, "current")
	require.NoError(t, err)

	_, err = svc.AddMessage(context.Background(), user, chat.ID, model.Message{
		Role: model.RoleUser, Content: "mirrored",
	})
	require.NoError(t, err)

	state := sessions.Get(user.StoreID()).Snapshot()
	require.NotNil(t, state.CurrentChat)
	require.Len(t, state.CurrentChat.Messages, 1)
	assert.Equal(t, "mirrored", state.CurrentChat.Messages[0].Content)
}

func TestAddMessageToNonCurrentChatUpdatesListCopy(t *testing.T) {
	svc, _, sessions := newTestChatService()
	user := testUser(1)

	background, err := svc.CreateChat(context.Background(), user, "background")
	require.NoError(t, err)
	current, err := svc.CreateChat(context.Background(), user, "current")
	require.NoError(t, err)

	_, err = svc.AddMessage(context.Background(), user, background.ID, model.Message{
		Role: model.RoleUser, Content: "offstage",
	})
	require.NoError(t, err)

	state := sessions.Get(user.StoreID()).Snapshot()
	require.NotNil(t, state.CurrentChat)
	assert.Equal(t, current.ID, state.CurrentChat.ID)
	assert.Empty(t, state.CurrentChat.Messages)

	for _, c := range state.Chats {
		if c.ID == background.ID {
			require.Len(t, c.Messages, 1)
			assert.Equal(t, "offstage", c.Messages[0].Content)
		}
	}
}

func TestAddMessageOptionalFieldsRoundTrip(t *testing.T) {
	svc, _, _ := newTestChatService()
	user := testUser(1)

	chat, err := svc.CreateChat(context.Background(), user, "attachments")
	require.NoError(t, err)

	_, err = svc.AddMessage(context.Background(), user, chat.ID, model.Message{
		Role:    model.RoleUser,
		Content: "with file",
		File:    &model.FileInfo{Name: "app.zip", Type: "application/zip", Size: 1024},
	})
	require.NoError(t, err)
	_, err = svc.AddMessage(context.Background(), user, chat.ID, model.Message{
		Role:    model.RoleAssistant,
		Content: "done",
		MigrationResult: &model.MigrationResult{
			Workspace: "/tmp/ws", Report: "OK",
		},
	})
	require.NoError(t, err)

	loaded, err := svc.GetChat(context.Background(), user, chat.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 2)

	require.NotNil(t, loaded.Messages[0].File)
	assert.Equal(t, "app.zip", loaded.Messages[0].File.Name)
	assert.Nil(t, loaded.Messages[0].MigrationResult)

	assert.Nil(t, loaded.Messages[1].File)
	require.NotNil(t, loaded.Messages[1].MigrationResult)
	assert.Equal(t, "OK", loaded.Messages[1].MigrationResult.Report)
}
