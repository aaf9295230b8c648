package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloudshift-go/internal/config"
	"cloudshift-go/internal/model"
	"cloudshift-go/pkg/log"
	"cloudshift-go/pkg/migration"
	"cloudshift-go/pkg/storage"
)

// MigrationExchange 是一次迁移请求产生的一对消息：
// 用户侧的请求消息和助手侧的结果消息，二者都已持久化。
type MigrationExchange struct {
	UserMessage      model.Message `json:"userMessage"`
	AssistantMessage model.Message `json:"assistantMessage"`
}

// MigrationService 负责把迁移请求转化为聊天消息：
// 先落用户消息，再调用迁移后端，最后把结果（成功或失败）
// 落成一条助手消息。后端失败不向上抛错，只体现在助手消息内容里。
type MigrationService interface {
	BackendAvailable(ctx context.Context) bool
	RunFileMigration(ctx context.Context, user *model.User, chatID, prompt, fileName, contentType string, file io.Reader, size int64, includeSuggestions bool) (*MigrationExchange, error)
	RunURLMigration(ctx context.Context, user *model.User, chatID, sourceURL string, includeSuggestions bool) (*MigrationExchange, error)
	ArchiveURL(ctx context.Context, user *model.User, chatID, messageID string) (string, error)
}

type migrationService struct {
	chatSvc  ChatService
	backend  migration.Client
	minioCfg config.MinIOConfig
}

// NewMigrationService 创建一个新的 MigrationService 实例。
func NewMigrationService(chatSvc ChatService, backend migration.Client, minioCfg config.MinIOConfig) MigrationService {
	return &migrationService{
		chatSvc:  chatSvc,
		backend:  backend,
		minioCfg: minioCfg,
	}
}

// BackendAvailable 探测迁移后端是否可达。
func (s *migrationService) BackendAvailable(ctx context.Context) bool {
	return s.backend.Health(ctx)
}

// RunFileMigration 处理 zip 上传的迁移：留存压缩包副本，调用后端，写回结果。
func (s *migrationService) RunFileMigration(ctx context.Context, user *model.User, chatID, prompt, fileName, contentType string, file io.Reader, size int64, includeSuggestions bool) (*MigrationExchange, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}

	userMsg, err := s.chatSvc.AddMessage(ctx, user, chatID, model.Message{
		Role:    model.RoleUser,
		Content: prompt,
		File: &model.FileInfo{
			Name: fileName,
			Type: contentType,
			Size: size,
		},
	})
	if err != nil {
		return nil, err
	}

	s.archiveUpload(ctx, chatID, userMsg.ID, fileName, contentType, data)

	result, callErr := s.backend.MigrateFile(ctx, fileName, bytes.NewReader(data), includeSuggestions)
	return s.finish(ctx, user, chatID, *userMsg, result, callErr, false)
}

// RunURLMigration 处理 GitHub 仓库地址的迁移。
func (s *migrationService) RunURLMigration(ctx context.Context, user *model.User, chatID, sourceURL string, includeSuggestions bool) (*MigrationExchange, error) {
	userMsg, err := s.chatSvc.AddMessage(ctx, user, chatID, model.Message{
		Role:    model.RoleUser,
		Content: fmt.Sprintf("GitHub Repository: %s", sourceURL),
	})
	if err != nil {
		return nil, err
	}

	result, callErr := s.backend.MigrateURL(ctx, sourceURL, includeSuggestions)
	return s.finish(ctx, user, chatID, *userMsg, result, callErr, true)
}

// ArchiveURL 为某条带附件的消息生成压缩包副本的预签名下载链接。
func (s *migrationService) ArchiveURL(ctx context.Context, user *model.User, chatID, messageID string) (string, error) {
	chat, err := s.chatSvc.GetChat(ctx, user, chatID)
	if err != nil {
		return "", err
	}

	for _, msg := range chat.Messages {
		if msg.ID != messageID {
			continue
		}
		if msg.File == nil {
			return "", fmt.Errorf("消息 %s 没有附件", messageID)
		}
		objectName := archiveObjectName(chatID, messageID, msg.File.Name)
		return storage.GetPresignedURL(ctx, s.minioCfg.BucketName, objectName, 24*time.Hour)
	}
	return "", fmt.Errorf("消息 %s 不存在", messageID)
}

// finish 把后端调用的结果写成一条助手消息。后端失败不是错误，
// 降级成带恢复提示的消息内容；只有消息本身落库失败才返回错误。
func (s *migrationService) finish(ctx context.Context, user *model.User, chatID string, userMsg model.Message, result *migration.Result, callErr error, urlMode bool) (*MigrationExchange, error) {
	assistant := model.Message{Role: model.RoleAssistant}
	if callErr != nil {
		assistant.Content = failureContent(callErr, urlMode)
		log.Warnf("[MigrationService] 迁移后端调用失败 chat=%s: %v", chatID, callErr)
	} else {
		assistant.Content = fmt.Sprintf(
			"Migration completed successfully!\n\nWorkspace: %s\n\nReport:\n%s",
			result.Workspace, result.Report,
		)
		assistant.MigrationResult = &model.MigrationResult{
			Workspace: result.Workspace,
			Report:    result.Report,
		}
	}

	saved, err := s.chatSvc.AddMessage(ctx, user, chatID, assistant)
	if err != nil {
		return nil, err
	}

	return &MigrationExchange{
		UserMessage:      userMsg,
		AssistantMessage: *saved,
	}, nil
}

// archiveUpload 把上传的压缩包留存到对象存储，失败只告警。
func (s *migrationService) archiveUpload(ctx context.Context, chatID, messageID, fileName, contentType string, data []byte) {
	if storage.MinioClient == nil {
		return
	}
	objectName := archiveObjectName(chatID, messageID, fileName)
	if err := storage.PutObject(ctx, s.minioCfg.BucketName, objectName, contentType, data); err != nil {
		log.Warnf("[MigrationService] 留存压缩包 %s 失败: %v", objectName, err)
	}
}

func archiveObjectName(chatID, messageID, fileName string) string {
	return fmt.Sprintf("archives/%s/%s_%s", chatID, messageID, fileName)
}

func failureContent(callErr error, urlMode bool) string {
	hint := "The migration backend may not be running or the file could not be processed. Please make sure the backend is started and try again."
	if urlMode {
		hint = "The migration backend may not be running or the repository could not be processed. Please make sure the backend is started and the GitHub URL is valid, then try again."
	}
	return fmt.Sprintf("Migration Error: %v\n\n%s", callErr, hint)
}
