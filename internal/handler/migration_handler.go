package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cloudshift-go/internal/repository"
	"cloudshift-go/internal/service"
	"cloudshift-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// MigrationHandler 负责处理代码迁移相关的 API 请求。
type MigrationHandler struct {
	migrationService service.MigrationService
}

// NewMigrationHandler 创建一个新的 MigrationHandler 实例。
func NewMigrationHandler(migrationService service.MigrationService) *MigrationHandler {
	return &MigrationHandler{migrationService: migrationService}
}

// MigrateFile 处理 zip 上传的迁移请求。
// 请求是 multipart 表单：file（压缩包）、chatId、prompt（可选）、
// includeSuggestions（可选，"true"/"false"）。
func (h *MigrationHandler) MigrateFile(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	chatID := c.PostForm("chatId")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "chatId 不能为空",
		})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "缺少上传文件",
		})
		return
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".zip") {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "只支持 zip 压缩包",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Errorf("MigrateFile: open upload failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "读取上传文件失败",
		})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/zip"
	}

	exchange, err := h.migrationService.RunFileMigration(
		c.Request.Context(), user, chatID,
		c.PostForm("prompt"),
		fileHeader.Filename, contentType,
		file, fileHeader.Size,
		parseBool(c.PostForm("includeSuggestions")),
	)
	if err != nil {
		h.renderMigrationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": exchange})
}

// MigrateURLRequest 定义了按仓库地址迁移 API 的请求体结构。
type MigrateURLRequest struct {
	ChatID             string `json:"chatId" binding:"required"`
	SourceURL          string `json:"sourceUrl" binding:"required"`
	IncludeSuggestions bool   `json:"includeSuggestions"`
}

// MigrateURL 处理 GitHub 仓库地址的迁移请求。
func (h *MigrationHandler) MigrateURL(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	var req MigrateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：chatId 和 sourceUrl 不能为空",
		})
		return
	}

	exchange, err := h.migrationService.RunURLMigration(
		c.Request.Context(), user, req.ChatID, req.SourceURL, req.IncludeSuggestions)
	if err != nil {
		h.renderMigrationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": exchange})
}

// Health 探测迁移后端是否可达。
func (h *MigrationHandler) Health(c *gin.Context) {
	available := h.migrationService.BackendAvailable(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"backendAvailable": available},
	})
}

// Archive 为带附件的消息生成压缩包副本的下载链接。
func (h *MigrationHandler) Archive(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	url, err := h.migrationService.ArchiveURL(
		c.Request.Context(), user, c.Param("chatId"), c.Param("messageId"))
	if err != nil {
		if errors.Is(err, repository.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    http.StatusNotFound,
				"message": "聊天不存在",
			})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"url": url}})
}

// renderMigrationError 处理迁移流程的落库错误。
// 后端调用失败不会走到这里，它已经被降级成助手消息。
func (h *MigrationHandler) renderMigrationError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrChatNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "聊天不存在",
		})
		return
	}
	log.Errorf("migration request failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    http.StatusInternalServerError,
		"message": "迁移请求处理失败",
	})
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
