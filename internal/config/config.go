// Package config holds the client's tunables and loads endpoint and backend
// settings from the environment (optionally seeded from a .env file).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Chat
	DefaultPollInterval = 2 * time.Second
	MatchWindow         = 10 * time.Second
	SendRefetchDelay    = 100 * time.Millisecond

	// Forms
	MinPasswordLength = 6

	// Subscriptions
	SubscriptionAckTimeout = 10 * time.Second

	DefaultHTTPURL = "http://localhost:3001/graphql"
	DefaultWSURL   = "ws://localhost:3001/graphql"

	AppDirectoryName = "chatflow"
	tokenFileName    = "tokens.json"
)

// Token store backends.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQL    = "sql"
)

// Config is the resolved client configuration.
type Config struct {
	HTTPURL      string
	WSURL        string
	PollInterval time.Duration
	HTTPTimeout  time.Duration

	// Profile namespaces persisted tokens so several accounts can coexist.
	Profile    string
	TokenStore string
	TokenFile  string
	RedisAddr  string
	RedisDB    int
	// RedisChannel receives relayed subscription events.
	RedisChannel string
	PostgresDSN  string

	LogLevel string
	LogFile  string

	TelegramToken  string
	TelegramChatID int64
	Language       string
}

// LoadDotenv seeds the environment from .env files. Callers usually treat
// the error as a warning: a missing .env is normal outside development.
func LoadDotenv(envFiles ...string) error {
	return godotenv.Load(envFiles...)
}

// Load builds a Config from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPURL:       getEnv("CHATFLOW_HTTP_URL", DefaultHTTPURL),
		WSURL:         getEnv("CHATFLOW_WS_URL", ""),
		Profile:       getEnv("CHATFLOW_PROFILE", "default"),
		TokenStore:    strings.ToLower(getEnv("CHATFLOW_TOKEN_STORE", StoreFile)),
		TokenFile:     os.Getenv("CHATFLOW_TOKEN_FILE"),
		RedisAddr:     getEnv("CHATFLOW_REDIS_ADDR", "localhost:6379"),
		RedisChannel:  getEnv("CHATFLOW_REDIS_CHANNEL", "chatflow:events"),
		PostgresDSN:   os.Getenv("CHATFLOW_POSTGRES_DSN"),
		LogLevel:      getEnv("CHATFLOW_LOG_LEVEL", "info"),
		LogFile:       os.Getenv("CHATFLOW_LOG_FILE"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		Language:      getEnv("CHATFLOW_LANG", "en"),
	}
	if cfg.WSURL == "" {
		cfg.WSURL = DeriveWSURL(cfg.HTTPURL)
	}

	var err error
	if cfg.PollInterval, err = getDuration("CHATFLOW_POLL_INTERVAL", DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getDuration("CHATFLOW_HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("CHATFLOW_REDIS_DB", 0); err != nil {
		return nil, err
	}
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.TokenStore {
	case StoreFile, StoreMemory, StoreRedis:
	case StoreSQL:
		if c.PostgresDSN == "" {
			return fmt.Errorf("CHATFLOW_POSTGRES_DSN is required for the sql token store")
		}
	default:
		return fmt.Errorf("unknown token store %q", c.TokenStore)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// TokenFilePath returns the token file location, defaulting to
// <user config dir>/chatflow/<profile>/tokens.json.
func (c *Config) TokenFilePath() (string, error) {
	if c.TokenFile != "" {
		return c.TokenFile, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, AppDirectoryName, c.Profile, tokenFileName), nil
}

// DeriveWSURL maps http(s)://host/path to ws(s)://host/path.
func DeriveWSURL(httpURL string) string {
	switch {
	case strings.HasPrefix(httpURL, "https://"):
		return "wss://" + strings.TrimPrefix(httpURL, "https://")
	case strings.HasPrefix(httpURL, "http://"):
		return "ws://" + strings.TrimPrefix(httpURL, "http://")
	default:
		return DefaultWSURL
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
