// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string        `envconfig:"DATABASE_URL" required:"true" validate:"required"`
	DBMaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	DBMaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	DBConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`

	// OAuth
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID" required:"true" validate:"required"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET" required:"true" validate:"required"`
	GoogleRedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL" required:"true" validate:"required,url"`

	// サインインを許可するメールアドレス。両方空の場合は全員を許可する。
	AllowedDomains   []string `envconfig:"ALLOWED_DOMAINS"`
	AllowedAddresses []string `envconfig:"ALLOWED_ADDRESSES"`

	// Session
	SessionMaxAge int `envconfig:"SESSION_MAX_AGE" default:"86400" validate:"gt=0"`
	// 期限切れセッションの削除間隔。0の場合はserve中の定期削除を行わない。
	SessionCleanupInterval time.Duration `envconfig:"SESSION_CLEANUP_INTERVAL" default:"1h"`

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int `envconfig:"RATE_LIMIT_GENERAL" default:"120"`
	RateLimitInvite  int `envconfig:"RATE_LIMIT_INVITE" default:"20"`

	// Logging
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFile          string `envconfig:"LOG_FILE"`
	LogMaxSizeMB     int    `envconfig:"LOG_MAX_SIZE_MB" default:"100"`
	LogRetentionDays int    `envconfig:"LOG_RETENTION_DAYS" default:"14"`

	// Server
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	BaseURL    string `envconfig:"BASE_URL" required:"true" validate:"required,url"`

	// Cookie
	CookieSecure bool   `ignored:"true"`
	CookieDomain string `envconfig:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や値の形式が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	// 空文字が設定された必須項目はenvconfigでは検出できない
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.AllowedDomains = normalizeList(cfg.AllowedDomains)
	cfg.AllowedAddresses = normalizeList(cfg.AllowedAddresses)

	return cfg, nil
}

// normalizeList は空白を除去して小文字にし、空要素を取り除く。
func normalizeList(values []string) []string {
	var result []string
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}
