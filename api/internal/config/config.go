package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	DatabaseURL string

	// none | gemini | gpt
	VisionEngine   string
	VisionRPS      float64
	VisionCacheTTL time.Duration
	GeminiAPIKey   string
	GeminiModel    string
	OpenAIAPIKey   string
	OpenAIModel    string

	TelegramBotToken    string
	TelegramAdminChatID int64
	AdminURL            string

	PolicyFile    string
	ReviewTimeout time.Duration
}

func mustEnv(getenv func(string) string, k string) (string, error) {
	v := strings.TrimSpace(getenv(k))
	if v == "" {
		return "", fmt.Errorf("missing required env %s", k)
	}
	return v, nil
}

func getEnv(getenv func(string) string, k, def string) string {
	if v := strings.TrimSpace(getenv(k)); v != "" {
		return v
	}
	return def
}

// Load читает конфиг из окружения; при ошибке завершает процесс.
func Load() *Config {
	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:         getEnv(getenv, "PORT", "8000"),
		DatabaseURL:  resolveDSN(getenv),
		VisionEngine: strings.ToLower(getEnv(getenv, "VISION_ENGINE", "none")),
		GeminiModel:  getEnv(getenv, "GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIModel:  getEnv(getenv, "OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey: getEnv(getenv, "GEMINI_API_KEY", ""),
		OpenAIAPIKey: getEnv(getenv, "OPENAI_API_KEY", ""),

		TelegramBotToken: getEnv(getenv, "TELEGRAM_BOT_TOKEN", ""),
		AdminURL:         getEnv(getenv, "ADMIN_URL", ""),
		PolicyFile:       getEnv(getenv, "POLICY_FILE", ""),
	}

	var err error
	// ключ обязателен только для выбранного движка
	switch cfg.VisionEngine {
	case "none", "noop":
	case "gemini":
		if cfg.GeminiAPIKey, err = mustEnv(getenv, "GEMINI_API_KEY"); err != nil {
			return nil, err
		}
	case "gpt", "openai":
		if cfg.OpenAIAPIKey, err = mustEnv(getenv, "OPENAI_API_KEY"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown VISION_ENGINE %q", cfg.VisionEngine)
	}

	if cfg.VisionRPS, err = strconv.ParseFloat(getEnv(getenv, "VISION_RPS", "2"), 64); err != nil {
		return nil, fmt.Errorf("VISION_RPS: %w", err)
	}
	if cfg.VisionCacheTTL, err = time.ParseDuration(getEnv(getenv, "VISION_CACHE_TTL", "168h")); err != nil {
		return nil, fmt.Errorf("VISION_CACHE_TTL: %w", err)
	}
	sec, err := strconv.Atoi(getEnv(getenv, "REVIEW_TIMEOUT_SEC", "30"))
	if err != nil || sec <= 0 {
		return nil, fmt.Errorf("REVIEW_TIMEOUT_SEC must be a positive integer")
	}
	cfg.ReviewTimeout = time.Duration(sec) * time.Second

	if cfg.TelegramBotToken != "" {
		raw, err := mustEnv(getenv, "TELEGRAM_ADMIN_CHAT_ID")
		if err != nil {
			return nil, err
		}
		if cfg.TelegramAdminChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("TELEGRAM_ADMIN_CHAT_ID: %w", err)
		}
	}
	return cfg, nil
}

func resolveDSN(getenv func(string) string) string {
	// Prefer DATABASE_URL if provided
	if v := strings.TrimSpace(getenv("DATABASE_URL")); v != "" {
		return v
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv(getenv, "POSTGRES_USER", "assist"), getenv("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(getEnv(getenv, "PGHOST", "db"), getEnv(getenv, "PGPORT", "5432")),
		Path:     "/" + getEnv(getenv, "POSTGRES_DB", "assist"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SafeDSNSummary — DSN без пароля для логов.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
