package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/xhd0728/LuLeMe/internal/auth"
	"github.com/xhd0728/LuLeMe/internal/battle"
)

type battleCodeReq struct {
	Code string `json:"code"`
}

func (r *battleCodeReq) normalize() {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
}

// battleError 把对战子系统的业务错误映射为 HTTP 响应。
func battleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, battle.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "房间不存在或已过期"})
	case errors.Is(err, battle.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"message": "只有房主能开始"})
	case errors.Is(err, battle.ErrNotEnoughPlayers):
		c.JSON(http.StatusBadRequest, gin.H{"message": "至少 2 人才能开始"})
	case errors.Is(err, battle.ErrNotInRoom):
		c.JSON(http.StatusBadRequest, gin.H{"message": "你不在该房间中"})
	case errors.Is(err, battle.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"message": "当前状态不允许该操作"})
	case errors.Is(err, battle.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"message": "房间创建失败，请重试"})
	default:
		log.Error().Err(err).Msg("battle")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "操作失败"})
	}
}

// BattleCreate 创建房间，调用者即房主。
func (h *Handler) BattleCreate(c *gin.Context) {
	snap, err := h.store.Create(auth.UserID(c), auth.Username(c))
	if err != nil {
		battleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已创建房间", "code": snap.Code, "state": snap})
}

// BattleJoin 加入等待中的房间，重复加入幂等成功。
func (h *Handler) BattleJoin(c *gin.Context) {
	var req battleCodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "请求格式不正确"})
		return
	}
	req.normalize()
	snap, err := h.store.Join(req.Code, auth.UserID(c), auth.Username(c))
	if err != nil {
		battleError(c, err)
		return
	}
	h.hub.BroadcastState(snap.Code, snap)
	c.JSON(http.StatusOK, gin.H{"message": "已加入", "state": snap})
}

// BattleReady 更新准备状态。
func (h *Handler) BattleReady(c *gin.Context) {
	var req struct {
		Code  string `json:"code"`
		Ready bool   `json:"ready"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "请求格式不正确"})
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	snap, err := h.store.SetReady(code, auth.UserID(c), req.Ready)
	if err != nil {
		battleError(c, err)
		return
	}
	h.hub.BroadcastState(snap.Code, snap)
	c.JSON(http.StatusOK, gin.H{"message": "准备状态已更新", "state": snap})
}

// BattleLeave 离开房间。房主离开时转让房主，无人时解散房间。
func (h *Handler) BattleLeave(c *gin.Context) {
	var req battleCodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "请求格式不正确"})
		return
	}
	req.normalize()
	snap, deleted, err := h.store.Leave(req.Code, auth.UserID(c))
	if err != nil {
		battleError(c, err)
		return
	}
	if deleted {
		c.JSON(http.StatusOK, gin.H{"message": "房间已解散", "room_deleted": true})
		return
	}
	h.hub.BroadcastState(snap.Code, snap)
	c.JSON(http.StatusOK, gin.H{"message": "已离开房间", "state": snap})
}

// BattleStart 房主开始对战。
func (h *Handler) BattleStart(c *gin.Context) {
	var req battleCodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "请求格式不正确"})
		return
	}
	req.normalize()
	snap, err := h.store.Start(req.Code, auth.UserID(c))
	if err != nil {
		battleError(c, err)
		return
	}
	h.hub.BroadcastState(snap.Code, snap)
	c.JSON(http.StatusOK, gin.H{"message": "对战开始！", "state": snap})
}

// BattleTap 在对局中记一次点击，返回调用者最新计数。
func (h *Handler) BattleTap(c *gin.Context) {
	var req battleCodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "请求格式不正确"})
		return
	}
	req.normalize()
	count, snap, err := h.store.Tap(req.Code, auth.UserID(c))
	if err != nil {
		battleError(c, err)
		return
	}
	h.hub.BroadcastState(snap.Code, snap)
	c.JSON(http.StatusOK, gin.H{"message": "已记录", "count": count, "state": snap})
}

// BattleSurrender 投降。
func (h *Handler) BattleSurrender(c *gin.Context) {
	var req battleCodeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "请求格式不正确"})
		return
	}
	req.normalize()
	snap, err := h.store.Surrender(req.Code, auth.UserID(c))
	if err != nil {
		battleError(c, err)
		return
	}
	h.hub.BroadcastState(snap.Code, snap)
	c.JSON(http.StatusOK, gin.H{"message": "已投降", "state": snap})
}

// BattleState 轮询房间状态。
func (h *Handler) BattleState(c *gin.Context) {
	snap, err := h.store.State(c.Query("code"))
	if err != nil {
		battleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": snap})
}

// BattleRooms 列出所有可加入的房间。
func (h *Handler) BattleRooms(c *gin.Context) {
	type roomDTO struct {
		Code        string    `json:"code"`
		CreatorName string    `json:"creator_name"`
		PlayerCount int       `json:"player_count"`
		CreatedAt   time.Time `json:"created_at"`
	}
	waiting := h.store.ListWaiting()
	out := make([]roomDTO, 0, len(waiting))
	for _, snap := range waiting {
		out = append(out, roomDTO{
			Code:        snap.Code,
			CreatorName: snap.OwnerName,
			PlayerCount: len(snap.Players),
			CreatedAt:   snap.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": out})
}
