package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/dto"
	"dungeon-raid/internal/service"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 包内使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024
)

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type    string  // "register", "unregister", "action", "broadcast"
	Code    string  // 会话码
	UserID  uint    // 来源玩家 ID
	Client  *Client // 仅用于 register/unregister (和 action 关联的 client)
	RawData []byte  // action: 原始 WebSocket 消息; broadcast: 已序列化的载荷
}

// Hub 维护按会话码分组的活跃客户端集合，并实现引擎的 Presenter 出站接口。
// 引擎在持有会话锁时调用 Presenter 方法，因此所有出站路径都是非阻塞入队。
type Hub struct {
	// 内部通道，处理所有入站事件与出站广播
	messageChan chan HubMessage

	// 客户端集合，按会话码组织
	sessions   map[string]map[*Client]bool
	sessionsMu sync.RWMutex

	// 注入的地下城引擎，用于处理回合行动提交
	engine *service.DungeonService
}

// NewHub 创建并返回一个新的 Hub 实例。
// 引擎与 Hub 相互依赖 (引擎广播经由 Hub，Hub 提交行动给引擎)，
// 因此引擎在构造后通过 AttachEngine 注入。
func NewHub() *Hub {
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		sessions:    make(map[string]map[*Client]bool),
	}
}

// AttachEngine 注入地下城引擎，必须在 Run 之前调用一次。
func (h *Hub) AttachEngine(engine *service.DungeonService) {
	if engine == nil {
		panic("DungeonService cannot be nil for Hub")
	}
	h.engine = engine
}

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case "register":
			h.registerClient(msg.Client)
		case "unregister":
			h.unregisterClient(msg.Client)
		case "action":
			// 异步处理客户端提交，避免阻塞 Hub 主循环；
			// 回合的顺序保证由引擎的会话锁和回合序号负责
			go h.handleClientAction(msg)
		case "broadcast":
			h.broadcast(msg.Code, msg.RawData, nil)
		default:
			log.Warnf("Hub: Received unknown message type: %s from player %d in session %s", msg.Type, msg.UserID, msg.Code)
		}
	}
	log.Info("Hub is shutting down...")
}

// registerClient 处理客户端注册逻辑
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"session":   client.SessionCode(),
		"player_id": client.PlayerID(),
		"action":    "registerClient",
	})

	h.sessionsMu.Lock()
	if _, ok := h.sessions[client.SessionCode()]; !ok {
		h.sessions[client.SessionCode()] = make(map[*Client]bool)
		logCtx.Info("Client list created for new session")
	}
	h.sessions[client.SessionCode()][client] = true
	h.sessionsMu.Unlock()
	logCtx.Info("Client registered to Hub")

	// 异步推送当前会话画面，让新连接或重连的客户端立即同步
	go h.sendCurrentView(client)
}

// unregisterClient 处理客户端注销逻辑
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"session":   client.SessionCode(),
		"player_id": client.PlayerID(),
		"action":    "unregisterClient",
	})

	h.sessionsMu.Lock()
	if clients, exists := h.sessions[client.SessionCode()]; exists {
		if _, clientExists := clients[client]; clientExists {
			delete(clients, client)

			// 关闭此客户端的 send 通道，这将导致其 WritePump 退出
			select {
			case <-client.send:
				logCtx.Warn("Client send channel already closed or has data during unregister")
			default:
				close(client.send)
			}

			if len(clients) == 0 {
				delete(h.sessions, client.SessionCode())
				logCtx.Info("Session group empty, removed from Hub")
			}
		} else {
			logCtx.Warn("Client not found in session group during unregister")
		}
	} else {
		logCtx.Warn("Session group not found during client unregister")
	}
	h.sessionsMu.Unlock()
	logCtx.Info("Client unregistered from Hub")
}

// sendCurrentView 异步请求引擎重新渲染当前画面。
// 注意：断开不等于离开队伍，成员身份由引擎的退出流程管理。
func (h *Hub) sendCurrentView(client *Client) {
	if client == nil || h.engine == nil {
		return
	}
	if err := h.engine.Refresh(context.Background(), client.SessionCode()); err != nil {
		logrus.WithError(err).WithField("session", client.SessionCode()).
			Debug("Refresh on register failed (session may be gone)")
		h.sendError(client, "Session no longer exists")
	}
}

// handleClientAction 异步处理客户端发送的回合行动提交
func (h *Hub) handleClientAction(msg HubMessage) {
	ctx := context.Background()
	logCtx := logrus.WithFields(logrus.Fields{
		"session":   msg.Code,
		"player_id": msg.UserID,
		"operation": "handleClientAction",
	})
	logCtx.Debugf("Processing client action (data size: %d)", len(msg.RawData))

	var incoming dto.IncomingAction
	if err := json.Unmarshal(msg.RawData, &incoming); err != nil {
		logCtx.WithError(err).Warn("Malformed action frame")
		h.sendError(msg.Client, "Malformed action")
		return
	}

	kind := domain.ActionKind(incoming.Type)
	switch kind {
	case domain.ActionAttack, domain.ActionDefend, domain.ActionUseItem, domain.ActionWait:
	default:
		h.sendError(msg.Client, "Unknown action type")
		return
	}

	if err := h.engine.SubmitAction(ctx, msg.Code, msg.UserID, incoming.TurnSeq, kind, incoming.ItemKey); err != nil {
		// 过期回合与重复提交是正常的竞态结果，只通知提交者
		logCtx.WithError(err).Debug("Action rejected by engine")
		h.sendError(msg.Client, err.Error())
		return
	}
	logCtx.Debug("Action accepted")
}

// sendError 向单个客户端发送一条瞬时错误消息 (非阻塞)。
func (h *Hub) sendError(client *Client, message string) {
	if client == nil {
		return
	}
	data, err := json.Marshal(dto.ErrorDTO{Type: "error", Message: message})
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
		logrus.WithFields(logrus.Fields{"session": client.SessionCode(), "player_id": client.PlayerID()}).
			Warn("Client send channel full when sending error, message dropped")
	}
}

// broadcast 将消息发送给指定会话组的所有客户端，可选排除发送者
func (h *Hub) broadcast(code string, message []byte, sender *Client) {
	h.sessionsMu.RLock()
	clients, ok := h.sessions[code]
	clientsToSend := make([]*Client, 0, len(clients))
	if ok {
		for client := range clients {
			if client != sender {
				clientsToSend = append(clientsToSend, client)
			}
		}
	}
	h.sessionsMu.RUnlock()

	if len(clientsToSend) == 0 {
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"session":         code,
		"message_size":    len(message),
		"recipient_count": len(clientsToSend),
	})
	logCtx.Debug("Broadcasting message to clients")

	for _, client := range clientsToSend {
		// 非阻塞发送，避免单个慢客户端阻塞广播
		select {
		case client.send <- message:
		default:
			logCtx.WithField("receiver_player_id", client.PlayerID()).
				Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

// --- service.Presenter 实现 ---
// 引擎在持有会话锁时调用这些方法，必须立即返回。

// SessionUpdated 广播一次会话状态渲染。
func (h *Hub) SessionUpdated(code string, payload dto.RenderPayload) {
	h.enqueueBroadcast(code, payload)
}

// FloorCleared 广播一次击杀结算。
func (h *Hub) FloorCleared(code string, payload dto.RewardPayload) {
	h.enqueueBroadcast(code, payload)
}

// SessionFinished 广播会话结束总结。
func (h *Hub) SessionFinished(code string, payload dto.SummaryPayload) {
	h.enqueueBroadcast(code, payload)
}

func (h *Hub) enqueueBroadcast(code string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).WithField("session", code).Error("Failed to marshal broadcast payload")
		return
	}
	h.QueueMessage(HubMessage{Type: "broadcast", Code: code, RawData: data})
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 true 如果消息成功入队，false 如果队列已满。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"session":      msg.Code,
			"player_id":    msg.UserID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}
