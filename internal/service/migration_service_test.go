package service

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"cloudshift-go/internal/config"
	"cloudshift-go/internal/model"
	"cloudshift-go/internal/repository"
	"cloudshift-go/pkg/migration"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend 是迁移后端客户端的测试替身。
type fakeBackend struct {
	healthy bool
	result  *migration.Result
	err     error

	gotSourceURL   string
	gotFileName    string
	gotFileContent string
	gotSuggestions bool
}

func (f *fakeBackend) Health(context.Context) bool { return f.healthy }

func (f *fakeBackend) MigrateFile(_ context.Context, fileName string, file io.Reader, includeSuggestions bool) (*migration.Result, error) {
	f.gotFileName = fileName
	f.gotSuggestions = includeSuggestions
	content, _ := io.ReadAll(file)
	f.gotFileContent = string(content)
	return f.result, f.err
}

func (f *fakeBackend) MigrateURL(_ context.Context, sourceURL string, includeSuggestions bool) (*migration.Result, error) {
	f.gotSourceURL = sourceURL
	f.gotSuggestions = includeSuggestions
	return f.result, f.err
}

func newTestMigrationService(backend *fakeBackend) (MigrationService, ChatService) {
	chatSvc, _, _ := newTestChatService()
	svc := NewMigrationService(chatSvc, backend, config.MinIOConfig{BucketName: "archives"})
	return svc, chatSvc
}

func TestRunURLMigrationSuccess(t *testing.T) {
	backend := &fakeBackend{
		result: &migration.Result{Workspace: "/tmp/ws", Report: "OK"},
	}
	svc, chatSvc := newTestMigrationService(backend)
	user := testUser(1)

	chat, err := chatSvc.CreateChat(context.Background(), user, "migrate me")
	require.NoError(t, err)

	exchange, err := svc.RunURLMigration(context.Background(), user, chat.ID, "https://github.com/acme/legacy", true)
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/acme/legacy", backend.gotSourceURL)
	assert.True(t, backend.gotSuggestions)

	assert.Equal(t, model.RoleUser, exchange.UserMessage.Role)
	assert.Equal(t, "GitHub Repository: https://github.com/acme/legacy", exchange.UserMessage.Content)

	assert.Equal(t, model.RoleAssistant, exchange.AssistantMessage.Role)
	assert.Contains(t, exchange.AssistantMessage.Content, "Migration completed successfully!")
	assert.Contains(t, exchange.AssistantMessage.Content, "/tmp/ws")
	require.NotNil(t, exchange.AssistantMessage.MigrationResult)
	assert.Equal(t, "OK", exchange.AssistantMessage.MigrationResult.Report)

	// 两条消息都已持久化，先用户后助手
	loaded, err := chatSvc.GetChat(context.Background(), user, chat.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, model.RoleUser, loaded.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, loaded.Messages[1].Role)
}

func TestRunURLMigrationBackendDownBecomesAssistantMessage(t *testing.T) {
	backend := &fakeBackend{
		err: &migration.BackendError{
			Status: http.StatusServiceUnavailable,
			Reason: http.StatusText(http.StatusServiceUnavailable),
		},
	}
	svc, chatSvc := newTestMigrationService(backend)
	user := testUser(1)

	chat, err := chatSvc.CreateChat(context.Background(), user, "doomed run")
	require.NoError(t, err)

	// 后端失败不向调用方抛错
	exchange, err := svc.RunURLMigration(context.Background(), user, chat.ID, "https://github.com/acme/legacy", false)
	require.NoError(t, err)

	assert.Equal(t, model.RoleAssistant, exchange.AssistantMessage.Role)
	assert.Contains(t, exchange.AssistantMessage.Content, "Backend error: 503")
	assert.Contains(t, exchange.AssistantMessage.Content, "Migration Error:")
	assert.Nil(t, exchange.AssistantMessage.MigrationResult)

	loaded, err := chatSvc.GetChat(context.Background(), user, chat.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, model.RoleUser, loaded.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, loaded.Messages[1].Role)
}

func TestRunFileMigrationAttachesFileMetadata(t *testing.T) {
	backend := &fakeBackend{
		result: &migration.Result{Workspace: "/tmp/ws", Report: "migrated"},
	}
	svc, chatSvc := newTestMigrationService(backend)
	user := testUser(1)

	chat, err := chatSvc.CreateChat(context.Background(), user, "upload run")
	require.NoError(t, err)

	exchange, err := svc.RunFileMigration(
		context.Background(), user, chat.ID,
		"please migrate this",
		"legacy.zip", "application/zip",
		strings.NewReader("zip-bytes"), 9,
		false,
	)
	require.NoError(t, err)

	// 后端拿到完整的文件内容
	assert.Equal(t, "legacy.zip", backend.gotFileName)
	assert.Equal(t, "zip-bytes", backend.gotFileContent)

	assert.Equal(t, "please migrate this", exchange.UserMessage.Content)
	require.NotNil(t, exchange.UserMessage.File)
	assert.Equal(t, "legacy.zip", exchange.UserMessage.File.Name)
	assert.Equal(t, "application/zip", exchange.UserMessage.File.Type)
	assert.Equal(t, int64(9), exchange.UserMessage.File.Size)

	// 助手消息不带文件字段
	assert.Nil(t, exchange.AssistantMessage.File)
	require.NotNil(t, exchange.AssistantMessage.MigrationResult)
}

func TestRunMigrationUnknownChat(t *testing.T) {
	backend := &fakeBackend{result: &migration.Result{}}
	svc, _ := newTestMigrationService(backend)

	_, err := svc.RunURLMigration(context.Background(), testUser(1), "ghost", "https://github.com/a/b", false)
	assert.ErrorIs(t, err, repository.ErrChatNotFound)
}

func TestBackendAvailable(t *testing.T) {
	svc, _ := newTestMigrationService(&fakeBackend{healthy: true})
	assert.True(t, svc.BackendAvailable(context.Background()))

	svc, _ = newTestMigrationService(&fakeBackend{healthy: false})
	assert.False(t, svc.BackendAvailable(context.Background()))
}
