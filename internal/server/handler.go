package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/xhd0728/LuLeMe/internal/auth"
	"github.com/xhd0728/LuLeMe/internal/battle"
	"github.com/xhd0728/LuLeMe/internal/service"
	"github.com/xhd0728/LuLeMe/internal/ws"
)

// Handler 聚合所有 HTTP handler，依赖注入 service 层与对战组件。
type Handler struct {
	userSvc *service.UserService
	recSvc  *service.RecordService
	lbSvc   *service.LeaderboardService
	store   *battle.Store
	hub     *ws.Hub
}

func NewHandler(userSvc *service.UserService, recSvc *service.RecordService, lbSvc *service.LeaderboardService, store *battle.Store, hub *ws.Hub) *Handler {
	return &Handler{userSvc: userSvc, recSvc: recSvc, lbSvc: lbSvc, store: store, hub: hub}
}

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register 处理用户注册请求，注册成功直接视为登录。
func (h *Handler) Register(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "请求格式不正确"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if len([]rune(req.Username)) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "用户名至少 3 个字符"})
		return
	}
	if len(req.Password) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "密码至少 6 位"})
		return
	}
	result, err := h.userSvc.Register(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"message": "用户名已存在，请换一个"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("register")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "注册失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "注册成功",
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"user":          gin.H{"id": result.User.ID, "username": result.User.Username},
	})
}

// Login 处理用户登录请求。
func (h *Handler) Login(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "请求格式不正确"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	result, err := h.userSvc.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "用户名或密码错误"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("login")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "登录失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "登录成功",
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"user":          gin.H{"id": result.User.ID, "username": result.User.Username},
	})
}

// RefreshToken 处理 token 刷新请求（旋转刷新）。
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "请求格式不正确"})
		return
	}
	result, err := h.userSvc.RefreshTokens(req.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("refresh token")
		c.JSON(http.StatusUnauthorized, gin.H{"message": "登录已过期，请重新登录"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": result.AccessToken, "refresh_token": result.RefreshToken})
}

// Logout 吊销 refresh token。
func (h *Handler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&req)
	if err := h.userSvc.Logout(req.RefreshToken); err != nil {
		log.Warn().Err(err).Msg("logout")
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退出"})
}

// Me 返回当前用户、汇总统计和当月记录。
func (h *Handler) Me(c *gin.Context) {
	userID := auth.UserID(c)
	summary, records, err := h.recSvc.BuildSummary(userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("build summary")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "获取数据失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    gin.H{"id": userID, "username": auth.Username(c)},
		"summary": summary,
		"records": records,
	})
}

// Records 查询某月的打卡记录。
func (h *Handler) Records(c *gin.Context) {
	year, err1 := strconv.Atoi(c.Query("year"))
	month, err2 := strconv.Atoi(c.Query("month"))
	if err1 != nil || err2 != nil || service.ValidateMonth(year, month) != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "year 或 month 参数不合法"})
		return
	}
	records, err := h.recSvc.MonthRecords(auth.UserID(c), year, month)
	if err != nil {
		log.Error().Err(err).Uint("user_id", auth.UserID(c)).Msg("month records")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "获取数据失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// RecordToday 给今天的打卡计数加一并返回最新汇总。
func (h *Handler) RecordToday(c *gin.Context) {
	userID := auth.UserID(c)
	if err := h.recSvc.TapToday(userID); err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("record today")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "记录失败"})
		return
	}
	summary, records, err := h.recSvc.BuildSummary(userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("build summary")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "获取数据失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "记录成功", "summary": summary, "records": records})
}

// ClearToday 清除今天的打卡记录。
func (h *Handler) ClearToday(c *gin.Context) {
	userID := auth.UserID(c)
	if err := h.recSvc.ClearToday(userID); err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("clear today")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "操作失败"})
		return
	}
	summary, records, err := h.recSvc.BuildSummary(userID)
	if err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("build summary")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "获取数据失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已清除今日记录", "summary": summary, "records": records})
}

// ChangePassword 已登录用户修改密码。
func (h *Handler) ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "请求格式不正确"})
		return
	}
	if len(req.NewPassword) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "新密码至少 6 位"})
		return
	}
	if err := h.userSvc.ChangePassword(auth.UserID(c), req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrWrongPassword) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "原密码不正确"})
			return
		}
		log.Error().Err(err).Uint("user_id", auth.UserID(c)).Msg("change password")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "操作失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "密码已修改"})
}

// ResetPassword 按用户名重置密码。
func (h *Handler) ResetPassword(c *gin.Context) {
	var req struct {
		Username    string `json:"username"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "请求格式不正确"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if len([]rune(req.Username)) < 3 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "用户名无效"})
		return
	}
	if len(req.NewPassword) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "新密码至少 6 位"})
		return
	}
	if err := h.userSvc.ResetPassword(req.Username, req.NewPassword); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "用户不存在"})
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("reset password")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "操作失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "密码已重置，请用新密码登录"})
}

// Leaderboard 返回总榜与当月榜。
func (h *Handler) Leaderboard(c *gin.Context) {
	board, err := h.lbSvc.Top10()
	if err != nil {
		log.Error().Err(err).Msg("leaderboard")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "获取数据失败"})
		return
	}
	c.JSON(http.StatusOK, board)
}
