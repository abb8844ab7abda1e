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

	// Patch source
	SourceBaseURL string   // パッチノート一覧ページのベースURL
	FeedURL       string   // RSSソース使用時のフィードURL（空ならHTMLソース）
	Versions      []string // 明示的なバージョンリスト（指定時はインデックス探索をスキップ）
	MajorMin      int      // 探索対象のメジャーバージョン下限
	MajorMax      int      // 探索対象のメジャーバージョン上限
	MinorMax      int      // 探索対象のマイナーバージョン上限

	// Fetch
	FetchTimeout   time.Duration
	FetchMaxSize   int64
	FetchUserAgent string
	FetchRateLimit float64 // 外部ソースへの秒間リクエスト数
	FetchRateBurst int

	// Worker
	IngestInterval   time.Duration
	RunRetentionDays int

	// Server
	ServerPort string
}

// デフォルト値
const (
	defaultSourceBaseURL = "https://teamfighttactics.leagueoflegends.com/en-us/news/game-updates/"
	defaultUserAgent     = "Patchvote/1.0 Patch Ingestor"
)

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

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SourceBaseURL = getEnvString("PATCH_SOURCE_BASE_URL", defaultSourceBaseURL)
	cfg.FeedURL = getEnvString("PATCH_FEED_URL", "")
	cfg.Versions = getEnvList("PATCH_VERSIONS")
	cfg.MajorMin = getEnvInt("PATCH_MAJOR_MIN", 14)
	cfg.MajorMax = getEnvInt("PATCH_MAJOR_MAX", 16)
	cfg.MinorMax = getEnvInt("PATCH_MINOR_MAX", 24)

	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 20*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchUserAgent = getEnvString("FETCH_USER_AGENT", defaultUserAgent)
	cfg.FetchRateLimit = getEnvFloat("FETCH_RATE_LIMIT", 1.0)
	cfg.FetchRateBurst = getEnvInt("FETCH_RATE_BURST", 1)

	cfg.IngestInterval = getEnvDuration("INGEST_INTERVAL", 6*time.Hour)
	cfg.RunRetentionDays = getEnvInt("RUN_RETENTION_DAYS", 14)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvList はカンマ区切りの環境変数を空白除去済みのスライスとして読み込む。
// 未設定または空の場合はnilを返す。
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var items []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
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

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
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
