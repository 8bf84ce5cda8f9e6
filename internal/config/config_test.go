package config_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chatflow/client/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"CHATFLOW_HTTP_URL", "CHATFLOW_WS_URL", "CHATFLOW_TOKEN_STORE",
		"CHATFLOW_POLL_INTERVAL", "CHATFLOW_PROFILE", "TELEGRAM_CHAT_ID",
	} {
		t.Setenv(key, "")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.DefaultHTTPURL, cfg.HTTPURL)
	assert.Equal(t, config.DefaultWSURL, cfg.WSURL)
	assert.Equal(t, config.StoreFile, cfg.TokenStore)
	assert.Equal(t, config.DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, "default", cfg.Profile)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHATFLOW_HTTP_URL", "https://chat.example.com/graphql")
	t.Setenv("CHATFLOW_WS_URL", "")
	t.Setenv("CHATFLOW_TOKEN_STORE", "MEMORY")
	t.Setenv("CHATFLOW_POLL_INTERVAL", "5s")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "wss://chat.example.com/graphql", cfg.WSURL)
	assert.Equal(t, config.StoreMemory, cfg.TokenStore)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, int64(-100123), cfg.TelegramChatID)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("unknown store", func(t *testing.T) {
		t.Setenv("CHATFLOW_TOKEN_STORE", "etcd")
		_, err := config.Load()
		assert.Error(t, err)
	})
	t.Run("sql without dsn", func(t *testing.T) {
		t.Setenv("CHATFLOW_TOKEN_STORE", "sql")
		t.Setenv("CHATFLOW_POSTGRES_DSN", "")
		_, err := config.Load()
		assert.Error(t, err)
	})
	t.Run("bad interval", func(t *testing.T) {
		t.Setenv("CHATFLOW_TOKEN_STORE", "memory")
		t.Setenv("CHATFLOW_POLL_INTERVAL", "soon")
		_, err := config.Load()
		assert.Error(t, err)
	})
}

func TestTokenFilePath(t *testing.T) {
	cfg := &config.Config{Profile: "work"}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)

	path, err := cfg.TokenFilePath()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, filepath.Join("chatflow", "work", "tokens.json")), path)

	cfg.TokenFile = "/tmp/explicit.json"
	path, err = cfg.TokenFilePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit.json", path)
}
