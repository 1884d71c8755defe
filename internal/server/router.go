package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xhd0728/LuLeMe/internal/auth"
	"github.com/xhd0728/LuLeMe/internal/battle"
	"github.com/xhd0728/LuLeMe/internal/config"
	"github.com/xhd0728/LuLeMe/internal/metrics"
	"github.com/xhd0728/LuLeMe/internal/mw"
	"github.com/xhd0728/LuLeMe/internal/service"
	"github.com/xhd0728/LuLeMe/internal/ws"

	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, db *gorm.DB, store *battle.Store, hub *ws.Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.RequestLog())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	// 对战期间客户端会高频调用 tap / state，限速给足余量。
	r.Use(mw.RateLimit(rate.Every(time.Second/30), 60))

	h := NewHandler(
		service.NewUserService(db, cfg),
		service.NewRecordService(db),
		service.NewLeaderboardService(db),
		store,
		hub,
	)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)
	api.POST("/auth/logout", h.Logout)
	api.POST("/password/reset", h.ResetPassword)
	api.GET("/leaderboard", h.Leaderboard)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.Middleware(cfg, db))

	authed.GET("/me", h.Me)
	authed.GET("/records", h.Records)
	authed.POST("/record", h.RecordToday)
	authed.DELETE("/record/today", h.ClearToday)
	authed.POST("/password/change", h.ChangePassword)

	authed.POST("/battle/create", h.BattleCreate)
	authed.POST("/battle/join", h.BattleJoin)
	authed.POST("/battle/ready", h.BattleReady)
	authed.POST("/battle/leave", h.BattleLeave)
	authed.POST("/battle/start", h.BattleStart)
	authed.POST("/battle/tap", h.BattleTap)
	authed.POST("/battle/surrender", h.BattleSurrender)
	authed.GET("/battle/state", h.BattleState)
	authed.GET("/battle/rooms", h.BattleRooms)

	r.GET("/ws/battle", ws.Serve(hub, store, cfg))

	registerStatic(r)
	return r
}

// registerStatic 把非 API 路径回退到静态前端，
// 用 NoRoute 避免与已注册路由的通配符冲突。
func registerStatic(r *gin.Engine) {
	webDir := "./web"
	r.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/ws/") {
			c.JSON(http.StatusNotFound, gin.H{"message": "未找到资源"})
			return
		}
		rel := strings.TrimPrefix(filepath.Clean(path), "/")
		if rel != "" {
			target := filepath.Join(webDir, rel)
			if fi, err := os.Stat(target); err == nil && !fi.IsDir() {
				c.File(target)
				return
			}
		}
		index := filepath.Join(webDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			c.File(index)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"message": "未找到资源"})
	})
}
