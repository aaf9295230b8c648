package handler

import (
	"errors"
	"net/http"

	"cloudshift-go/internal/model"
	"cloudshift-go/internal/repository"
	"cloudshift-go/internal/service"
	"cloudshift-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ChatHandler 负责处理聊天的增删改查与消息追加。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// CreateChatRequest 定义了创建聊天 API 的请求体结构。
type CreateChatRequest struct {
	Title string `json:"title"`
}

// CreateChat 处理创建聊天的请求。
func (h *ChatHandler) CreateChat(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	// 请求体可以为空，标题缺省为 "New Chat"
	var req CreateChatRequest
	_ = c.ShouldBindJSON(&req)
	if req.Title == "" {
		req.Title = "New Chat"
	}

	chat, err := h.chatService.CreateChat(c.Request.Context(), user, req.Title)
	if err != nil {
		log.Errorf("CreateChat: failed for user '%s': %v", user.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "创建聊天失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": chat})
}

// GetChats 返回当前用户的全部聊天，按最近更新排序。
func (h *ChatHandler) GetChats(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	chats, err := h.chatService.GetUserChats(c.Request.Context(), user)
	if err != nil {
		log.Errorf("GetChats: failed for user '%s': %v", user.Email, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "获取聊天列表失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": chats})
}

// GetChat 返回单个聊天及其全部消息。
func (h *ChatHandler) GetChat(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	chat, err := h.chatService.GetChat(c.Request.Context(), user, c.Param("chatId"))
	if err != nil {
		h.renderChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": chat})
}

// UpdateChatRequest 定义了更新聊天 API 的请求体结构。
// 目前只支持修改标题。
type UpdateChatRequest struct {
	Title string `json:"title" binding:"required"`
}

// UpdateChat 处理聊天的部分更新（重命名）。
func (h *ChatHandler) UpdateChat(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	var req UpdateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：title 不能为空",
		})
		return
	}

	chat, err := h.chatService.RenameChat(c.Request.Context(), user, c.Param("chatId"), req.Title)
	if err != nil {
		h.renderChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": chat})
}

// DeleteChat 删除聊天及其全部消息。
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	if err := h.chatService.DeleteChat(c.Request.Context(), user, c.Param("chatId")); err != nil {
		h.renderChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "聊天已删除"})
}

// AddMessageRequest 定义了追加消息 API 的请求体结构。
type AddMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// AddMessage 把一条用户消息追加到聊天。
// 助手消息只能由迁移流程产生，这里不接受 role 字段。
func (h *ChatHandler) AddMessage(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	var req AddMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "无效的请求负载：content 不能为空",
		})
		return
	}

	msg, err := h.chatService.AddMessage(c.Request.Context(), user, c.Param("chatId"), model.Message{
		Role:    model.RoleUser,
		Content: req.Content,
	})
	if err != nil {
		h.renderChatError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": msg})
}

// GetSession 返回当前用户会话状态的快照。
func (h *ChatHandler) GetSession(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	state := h.chatService.SessionState(user)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": state})
}

// renderChatError 把 service 层错误映射为响应：
// 不存在（含他人聊天）返回 404，其余按内部错误处理。
func (h *ChatHandler) renderChatError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrChatNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    http.StatusNotFound,
			"message": "聊天不存在",
		})
		return
	}
	log.Errorf("chat operation failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    http.StatusInternalServerError,
		"message": "操作失败",
	})
}
