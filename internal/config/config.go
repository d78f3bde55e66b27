package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// External APIs
	NewsAPIKey      string
	NewsAPICountry  string
	NewsAPIPageSize int
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIMaxTokens int

	// Auth
	JWTSecret string

	// Fetch
	FetchTimeout     time.Duration
	GenerateTimeout  time.Duration
	FetchMaxSize     int64
	HeadlineCacheTTL time.Duration

	// Scheduler
	DigestCheckInterval time.Duration
	DigestRetentionDays int

	// Rate Limit（req/min単位。ミドルウェア側でreq/secに変換する）
	RateLimitPerMinute int
	RateLimitBurst     int
	AuthRatePerMinute  int
	AuthRateBurst      int

	// Server
	ServerPort string
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

	cfg.NewsAPIKey = os.Getenv("NEWSAPI_KEY")
	if cfg.NewsAPIKey == "" {
		missing = append(missing, "NEWSAPI_KEY")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.NewsAPICountry = getEnvString("NEWSAPI_COUNTRY", "us")
	cfg.NewsAPIPageSize = getEnvInt("NEWSAPI_PAGE_SIZE", 20)
	cfg.OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.OpenAIMaxTokens = getEnvInt("OPENAI_MAX_TOKENS", 2000)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	cfg.GenerateTimeout = getEnvDuration("GENERATE_TIMEOUT", 60*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.HeadlineCacheTTL = getEnvDuration("HEADLINE_CACHE_TTL", time.Hour)
	cfg.DigestCheckInterval = getEnvDuration("DIGEST_CHECK_INTERVAL", 15*time.Minute)
	cfg.DigestRetentionDays = getEnvInt("DIGEST_RETENTION_DAYS", 90)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 60)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.AuthRatePerMinute = getEnvInt("AUTH_RATE_PER_MINUTE", 5)
	cfg.AuthRateBurst = getEnvInt("AUTH_RATE_BURST", 3)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
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
