package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	JWTSecret  string
	SessionTTL time.Duration

	// Privy（外部IdP）
	// AppIDとAppSecretの両方が設定されている場合のみ本番検証モードになる。
	// 未設定の場合はdevバイパスモードで起動する。
	PrivyAppID     string
	PrivyAppSecret string
	PrivyAPIURL    string // テスト用にオーバーライド可能

	// Rate Limit（req/min単位）
	RateLimitGeneral int
	RateLimitPost    int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigins []string
}

// PrivyConfigured は本番のIdP検証モードで動作するかを返す。
// devバイパスはこの値がfalseの場合にのみ有効になる。
// トークンの形状ではなく起動時の設定だけで判定する。
func (c *Config) PrivyConfigured() bool {
	return c.PrivyAppID != "" && c.PrivyAppSecret != ""
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 7*24*time.Hour)
	cfg.PrivyAppID = os.Getenv("PRIVY_APP_ID")
	cfg.PrivyAppSecret = os.Getenv("PRIVY_APP_SECRET")
	cfg.PrivyAPIURL = getEnvString("PRIVY_API_URL", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitPost = getEnvInt("RATE_LIMIT_POST", 50)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigins = splitOrigins(getEnvString("CORS_ALLOWED_ORIGINS", "https://open.spotify.com"))

	return cfg, nil
}

// splitOrigins はカンマ区切りのオリジンリストをパースする。
func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
