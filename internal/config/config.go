package config

import (
	"errors"
	"os"
	"strconv"
)

type Config struct {
	Port                  string
	DatabasePath          string
	JWTSecret             string
	Env                   string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int
	BattleDurationSeconds int
	BattleRoomTTLMinutes  int
	BattleSweepSeconds    int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, strconv.Itoa(def)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func Load() Config {
	return Config{
		Port:                  getenv("APP_PORT", "5001"),
		DatabasePath:          getenv("DATABASE_PATH", "luleme.db"),
		JWTSecret:             getenv("JWT_SECRET", "dev-secret-change-me"),
		Env:                   getenv("APP_ENV", "dev"),
		AccessTokenTTLMinutes: getenvInt("ACCESS_TOKEN_TTL_MINUTES", 15),
		RefreshTokenTTLDays:   getenvInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BattleDurationSeconds: getenvInt("BATTLE_DURATION_SECONDS", 60),
		BattleRoomTTLMinutes:  getenvInt("BATTLE_ROOM_TTL_MINUTES", 5),
		BattleSweepSeconds:    getenvInt("BATTLE_SWEEP_SECONDS", 30),
	}
}

// Validate 检查配置是否可用于启动，生产环境禁止使用默认密钥。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("port is required")
	}
	if cfg.DatabasePath == "" {
		return errors.New("database path is required")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == "dev-secret-change-me" {
		return errors.New("default JWT secret is not allowed outside dev")
	}
	if cfg.BattleDurationSeconds <= 0 || cfg.BattleRoomTTLMinutes <= 0 {
		return errors.New("battle duration and room TTL must be positive")
	}
	return nil
}
