package main

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xhd0728/LuLeMe/internal/battle"
	"github.com/xhd0728/LuLeMe/internal/config"
	"github.com/xhd0728/LuLeMe/internal/db"
	clog "github.com/xhd0728/LuLeMe/internal/log"
	"github.com/xhd0728/LuLeMe/internal/server"
	"github.com/xhd0728/LuLeMe/internal/ws"
)

func main() {
	// main 负责加载配置、初始化日志、连接数据库、
	// 构造对战房间注册表并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	gdb, err := db.Connect(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	store := battle.NewStore(
		time.Duration(cfg.BattleDurationSeconds)*time.Second,
		time.Duration(cfg.BattleRoomTTLMinutes)*time.Minute,
		time.Duration(cfg.BattleSweepSeconds)*time.Second,
	)
	store.Run()
	defer store.Stop()

	hub := ws.NewHub()
	r := server.SetupRouter(cfg, gdb, store, hub)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
