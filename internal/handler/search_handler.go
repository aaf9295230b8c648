package handler

import (
	"net/http"
	"strconv"

	"cloudshift-go/internal/service"
	"cloudshift-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 结构体定义了消息检索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
	}
}

// SearchMessages 是处理消息全文检索请求的 Gin 处理函数。
// 只检索当前用户自己的消息。
func (h *SearchHandler) SearchMessages(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		log.Warnf("[SearchHandler] 检索请求失败: q 参数为空")
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的查询参数"})
		return
	}

	sizeStr := c.DefaultQuery("size", "20")
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size <= 0 {
		size = 20
	}

	user, err := currentUser(c)
	if err != nil {
		log.Errorf("[SearchHandler] 无法从 Gin 上下文中获取用户信息")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	results, err := h.searchService.SearchMessages(c.Request.Context(), user, query, size)
	if err != nil {
		log.Errorf("[SearchHandler] 消息检索失败, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "搜索失败"})
		return
	}

	log.Infof("[SearchHandler] 消息检索成功, query: '%s', 返回 %d 条结果", query, len(results))
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": results, "message": "success"})
}
