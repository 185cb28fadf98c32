package http

import (
	"net/http"

	"dungeon-raid/internal/domain"
	"dungeon-raid/internal/middleware"
	"dungeon-raid/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DungeonHandler 封装了地下城会话生命周期相关的 HTTP 处理逻辑。
// 回合内的实时交互走 WebSocket，这里提供生命周期操作和行动提交的 HTTP 入口。
type DungeonHandler struct {
	engine *service.DungeonService
}

// NewDungeonHandler 创建 DungeonHandler 实例
func NewDungeonHandler(engine *service.DungeonService) *DungeonHandler {
	if engine == nil {
		panic("DungeonService cannot be nil for DungeonHandler")
	}
	return &DungeonHandler{engine: engine}
}

// currentPlayerID 从 Gin 上下文取认证中间件写入的玩家 ID。
func currentPlayerID(c *gin.Context) (uint, bool) {
	idAny, exists := c.Get(middleware.PlayerIDKey)
	if !exists {
		logrus.Warn("Handler: player ID not found in context, middleware missing or failed?")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Player not authenticated"})
		return 0, false
	}
	id, ok := idAny.(uint)
	if !ok {
		logrus.Error("Handler: player ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error processing player ID"})
		return 0, false
	}
	return id, true
}

// CreateSessionRequest 定义创建会话请求的结构体
type CreateSessionRequest struct {
	Password string `json:"password" binding:"omitempty,len=4,numeric"`
}

// CreateSessionResponse 定义创建会话成功的响应结构体
type CreateSessionResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Name    string `json:"name"`
}

// CreateSession 处理创建地下城会话的请求
func (h *DungeonHandler) CreateSession(c *gin.Context) {
	playerID, ok := currentPlayerID(c)
	if !ok {
		return
	}
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: password must be 4 digits if set"})
		return
	}

	session, err := h.engine.CreateSession(c.Request.Context(), playerID, req.Password)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{"player_id": playerID, "session": session.Code}).
		Info("Handler.CreateSession: session created")
	c.JSON(http.StatusOK, CreateSessionResponse{
		Message: "Session created successfully",
		Code:    session.Code,
		Name:    session.Name,
	})
}

// JoinSessionRequest 定义加入会话请求的结构体
type JoinSessionRequest struct {
	Password string `json:"password" binding:"omitempty,len=4,numeric"`
}

// JoinSession 处理加入会话的请求
func (h *DungeonHandler) JoinSession(c *gin.Context) {
	playerID, ok := currentPlayerID(c)
	if !ok {
		return
	}
	code := c.Param("code")
	var req JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := h.engine.JoinSession(c.Request.Context(), code, playerID, req.Password); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Joined session successfully", "code": code})
}

// Browse 列出当前区域可加入的大厅
func (h *DungeonHandler) Browse(c *gin.Context) {
	playerID, ok := currentPlayerID(c)
	if !ok {
		return
	}
	lobbies, err := h.engine.Browse(c.Request.Context(), playerID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"sessions": lobbies})
}

// SetReadyRequest 定义准备状态切换请求的结构体
type SetReadyRequest struct {
	Ready *bool `json:"ready" binding:"required"`
}

// SetReady 切换大厅内的准备标记
func (h *DungeonHandler) SetReady(c *gin.Context) {
	playerID, ok := currentPlayerID(c)
	if !ok {
		return
	}
	var req SetReadyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: ready flag required"})
		return
	}

	if err := h.engine.SetReady(c.Request.Context(), c.Param("code"), playerID, *req.Ready); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Ready state updated"})
}

// StartSession 由房主开启战斗
func (h *DungeonHandler) StartSession(c *gin.Context) {
	playerID, ok := currentPlayerID(c)
	if !ok {
		return
	}
	if err := h.engine.StartSession(c.Request.Context(), c.Param("code"), playerID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Dungeon started"})
}

// SubmitActionRequest 定义行动提交请求的结构体
type SubmitActionRequest struct {
	Type    string `json:"type" binding:"required,oneof=attack defend use_item wait"`
	TurnSeq uint64 `json:"turn_seq" binding:"required"`
	ItemKey string `json:"item_key" binding:"omitempty"`
}

// SubmitAction 是行动提交的 HTTP 入口 (与 WebSocket 帧等价)
func (h *DungeonHandler) SubmitAction(c *gin.Context) {
	playerID, ok := currentPlayerID(c)
	if !ok {
		return
	}
	var req SubmitActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	err := h.engine.SubmitAction(c.Request.Context(), c.Param("code"), playerID, req.TurnSeq, domain.ActionKind(req.Type), req.ItemKey)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Action accepted"})
}

// LeaveSession 处理大厅内的离开请求
func (h *DungeonHandler) LeaveSession(c *gin.Context) {
	playerID, ok := currentPlayerID(c)
	if !ok {
		return
	}
	if err := h.engine.LeaveSession(c.Request.Context(), c.Param("code"), playerID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Left session"})
}

// RequestExit 在战斗中发起退出确认
func (h *DungeonHandler) RequestExit(c *gin.Context) {
	playerID, ok := currentPlayerID(c)
	if !ok {
		return
	}
	if err := h.engine.RequestExit(c.Request.Context(), c.Param("code"), playerID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Exit requested, confirm within 30 seconds"})
}

// ConfirmExit 消费退出确认并离开战斗中的会话
func (h *DungeonHandler) ConfirmExit(c *gin.Context) {
	playerID, ok := currentPlayerID(c)
	if !ok {
		return
	}
	if err := h.engine.ConfirmExit(c.Request.Context(), c.Param("code"), playerID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "Exited session"})
}
