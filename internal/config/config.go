package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultPersona is the system prompt prepended to every upstream request.
// Language handling is delegated to the model: it answers in the language the
// user writes in.
const DefaultPersona = "Bạn là SEVY AI, tạo ra bởi tổ chức phi lợi nhuận SEVY " +
	"chuyên về giáo dục giới tính cho học sinh Việt Nam. " +
	"Trả lời ngắn gọn, bằng ngôn ngữ mà người dùng sử dụng."

// Config contains all runtime settings for the relay service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowedOrigins   []string

	LogLevel  string
	LogPretty bool

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	ChatModel       string
	ChatTemperature float64
	ChatMaxTokens   int
	HistoryMaxTurns int
	PersonaPrompt   string
	ReplyStripBold  bool
	UpstreamTimeout time.Duration

	CountersDatabaseURL string
	CountersCacheTTL    time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "sevyai"),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		OpenAIAPIKey:        trimmedEnv("OPENAI_API_KEY"),
		OpenAIBaseURL:       trimmedEnv("OPENAI_BASE_URL"),
		ChatModel:           envOrDefault("CHAT_MODEL", "gpt-4o-mini"),
		ChatTemperature:     0.7,
		ChatMaxTokens:       1000,
		HistoryMaxTurns:     10,
		PersonaPrompt:       envOrDefault("PERSONA_PROMPT", DefaultPersona),
		ReplyStripBold:      true,
		UpstreamTimeout:     60 * time.Second,
		CountersDatabaseURL: trimmedEnv("COUNTERS_DATABASE_URL"),
		CountersCacheTTL:    30 * time.Second,
		ShutdownTimeout:     15 * time.Second,
	}

	cfg.AllowedOrigins = splitAndTrim(envOrDefault("APP_ALLOWED_ORIGINS", "*"))

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.UpstreamTimeout, err = durationFromEnv("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.CountersCacheTTL, err = durationFromEnv("COUNTERS_CACHE_TTL", cfg.CountersCacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatTemperature, err = floatFromEnv("CHAT_TEMPERATURE", cfg.ChatTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatMaxTokens, err = intFromEnv("CHAT_MAX_TOKENS", cfg.ChatMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryMaxTurns, err = intFromEnv("CHAT_HISTORY_MAX_TURNS", cfg.HistoryMaxTurns)
	if err != nil {
		return Config{}, err
	}
	cfg.ReplyStripBold, err = boolFromEnv("REPLY_STRIP_BOLD", cfg.ReplyStripBold)
	if err != nil {
		return Config{}, err
	}
	cfg.LogPretty, err = boolFromEnv("LOG_PRETTY", cfg.LogPretty)
	if err != nil {
		return Config{}, err
	}

	if cfg.CountersDatabaseURL == "" {
		cfg.CountersDatabaseURL, err = assembleStoreURL()
		if err != nil {
			return Config{}, err
		}
	}

	if cfg.HistoryMaxTurns <= 0 || cfg.HistoryMaxTurns%2 != 0 {
		return Config{}, fmt.Errorf("CHAT_HISTORY_MAX_TURNS must be a positive even number")
	}
	if cfg.ChatMaxTokens <= 0 {
		return Config{}, fmt.Errorf("CHAT_MAX_TOKENS must be positive")
	}
	if cfg.ChatTemperature < 0 || cfg.ChatTemperature > 2 {
		return Config{}, fmt.Errorf("CHAT_TEMPERATURE must be between 0 and 2")
	}
	if cfg.CountersCacheTTL <= 0 {
		return Config{}, fmt.Errorf("COUNTERS_CACHE_TTL must be positive")
	}
	if cfg.UpstreamTimeout < time.Second {
		return Config{}, fmt.Errorf("UPSTREAM_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

// assembleStoreURL builds a connection URI from split credential variables,
// the layout the original deployment used (username, password, host suffix).
func assembleStoreURL() (string, error) {
	user := trimmedEnv("COUNTERS_DB_USERNAME")
	pass := trimmedEnv("COUNTERS_DB_PASSWORD")
	host := trimmedEnv("COUNTERS_DB_HOST")
	if user == "" && pass == "" && host == "" {
		return "", nil
	}
	if user == "" || host == "" {
		return "", fmt.Errorf("COUNTERS_DB_USERNAME and COUNTERS_DB_HOST must both be set when assembling a store URL")
	}
	return fmt.Sprintf("postgres://%s:%s@%s", url.QueryEscape(user), url.QueryEscape(pass), host), nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(trimmedEnv(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
