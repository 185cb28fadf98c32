package websocket

import (
	"net/http"

	"dungeon-raid/internal/hub"
	"dungeon-raid/internal/middleware"
	"dungeon-raid/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	sessions *store.SessionStore // 用于校验会话和成员身份
}

// NewWebSocketHandler 创建 WebSocketHandler 实例
func NewWebSocketHandler(h *hub.Hub, sessions *store.SessionStore) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if sessions == nil {
		panic("SessionStore cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 允许所有来源连接 (生产环境应配置具体的允许来源)
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &WebSocketHandler{
		upgrader: upgrader,
		hub:      h,
		sessions: sessions,
	}
}

// HandleConnection 处理 WebSocket 连接请求
// URL 预期格式: /ws/session/{code}
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	// 1. 获取认证玩家 ID (由 Auth 中间件设置)
	playerIDAny, exists := c.Get(middleware.PlayerIDKey)
	if !exists {
		logrus.Warn("WS Handler: Player ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Player not authenticated"})
		return // 返回 HTTP 错误，因为此时还未升级到 WebSocket
	}
	playerID, ok := playerIDAny.(uint)
	if !ok {
		logrus.Error("WS Handler: Player ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	logCtx := logrus.WithField("player_id", playerID)

	// 2. 校验会话存在且调用者是成员
	code := c.Param("code")
	logCtx = logCtx.WithField("session", code)

	session, found := h.sessions.Get(code)
	if !found {
		logCtx.Warn("WS Handler: Session not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	session.Lock()
	_, isMember := session.Members[playerID]
	session.Unlock()
	if !isMember {
		logCtx.Warn("WS Handler: Player is not a session member")
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this session"})
		return
	}

	// 3. 升级 HTTP 连接到 WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 方法会自动发送 HTTP 错误响应，所以这里只需要记录日志
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	// 4. 创建 Client 并向 Hub 注册
	client := hub.NewClient(h.hub, conn, code, playerID)

	registerMsg := hub.HubMessage{
		Type:   "register",
		Client: client,
		Code:   code,
		UserID: playerID,
	}
	if !h.hub.QueueMessage(registerMsg) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}
	logCtx.Info("WS Handler: Client registration request queued to Hub")

	// 5. 启动客户端的读写 Goroutine；后续通信由读写泵处理
	client.Run()
}
