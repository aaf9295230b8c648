package handler

import (
	"net/http"

	"cloudshift-go/internal/service"
	"cloudshift-go/internal/session"
	"cloudshift-go/pkg/log"
	"cloudshift-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// SessionHandler 通过 WebSocket 向客户端推送会话状态快照。
// 每当该用户的会话状态发生变化（创建/删除聊天、追加消息等），
// 客户端会收到一份完整的最新快照。
type SessionHandler struct {
	sessions    *session.Manager
	userService service.UserService
	jwtManager  *token.JWTManager
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(sessions *session.Manager, userService service.UserService, jwtManager *token.JWTManager) *SessionHandler {
	return &SessionHandler{
		sessions:    sessions,
		userService: userService,
		jwtManager:  jwtManager,
	}
}

// Handle 处理一个传入的 WebSocket 连接。
// WebSocket 无法携带请求头，token 放在路径中。
func (h *SessionHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}
	if h.userService.IsTokenBlacklisted(c.Request.Context(), tokenString) {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "token 已失效", "data": nil})
		return
	}

	user, err := h.userService.GetProfile(claims.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "无法获取用户信息", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("会话 WebSocket 连接已建立，用户: %s", user.Email)

	store := h.sessions.Get(user.StoreID())
	updates, cancel := store.Subscribe()
	defer cancel()

	// 连接建立后先推一份当前快照
	if err := conn.WriteJSON(store.Snapshot()); err != nil {
		log.Warnf("推送初始会话快照失败: %v", err)
		return
	}

	// 读协程只用于感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case state, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(state); err != nil {
				log.Warnf("推送会话快照失败，用户 %s: %v", user.Email, err)
				return
			}
		case <-done:
			log.Infof("会话 WebSocket 连接已断开，用户: %s", user.Email)
			return
		}
	}
}
