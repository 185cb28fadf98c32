package hub

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
type Client struct {
	hub      *Hub            // 指向其所属的 Hub
	conn     *websocket.Conn // WebSocket 连接
	code     string          // 客户端订阅的会话码
	playerID uint            // 客户端的玩家 ID
	send     chan []byte     // 用于向此客户端发送消息的缓冲通道
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, code string, playerID uint) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		code:     code,
		playerID: playerID,
		send:     make(chan []byte, 256),
	}
}

// ReadPump 将消息从 WebSocket 连接泵送到 Hub 的 messageChan。
// 它在自己的 goroutine 中运行。
func (c *Client) ReadPump() {
	defer func() {
		// 清理操作：请求 Hub 注销此客户端
		unregisterMsg := HubMessage{Type: "unregister", Client: c}
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-time.After(1 * time.Second):
			logrus.WithFields(logrus.Fields{"player_id": c.playerID, "session": c.code}).Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		logrus.WithFields(logrus.Fields{"player_id": c.playerID, "session": c.code}).Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait)) // 收到 Pong 后重置读取超时
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithFields(logrus.Fields{"player_id": c.playerID, "session": c.code})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break // 退出循环，触发 defer 中的注销
		}

		// 只处理文本消息
		if messageType == websocket.TextMessage {
			logCtx := logrus.WithFields(logrus.Fields{"player_id": c.playerID, "session": c.code})
			logCtx.Debugf("Received raw message (size: %d)", len(message))

			actionMsg := HubMessage{
				Type:    "action",
				Code:    c.code,
				UserID:  c.playerID,
				Client:  c,
				RawData: message,
			}

			// 非阻塞发送到 Hub，如果 Hub 处理不过来则丢弃
			select {
			case c.hub.messageChan <- actionMsg:
				logCtx.Debug("Raw message sent to Hub channel")
			default:
				logCtx.Warn("Hub message channel full, dropping client message")
			}
		} else {
			logrus.WithFields(logrus.Fields{"player_id": c.playerID, "session": c.code}).Debugf("Received non-text message type: %d", messageType)
		}
	}
}

// WritePump 将消息从 Client 的 send 通道泵送到 WebSocket 连接。
// 它在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	// 定期发送 Ping 消息保持连接活跃
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithFields(logrus.Fields{"player_id": c.playerID, "session": c.code}).Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭了（通常在注销时）
				logrus.WithFields(logrus.Fields{"player_id": c.playerID, "session": c.code}).Info("Hub closed send channel")
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{"player_id": c.playerID, "session": c.code}).WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithFields(logrus.Fields{"player_id": c.playerID, "session": c.code}).WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}

func (c *Client) SessionCode() string { return c.code }
func (c *Client) PlayerID() uint     { return c.playerID }
func (c *Client) CloseConn()         { c.conn.Close() }
