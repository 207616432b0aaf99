package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Bot.PollInterval != 60*time.Second {
		t.Errorf("Expected default poll interval to be 60s, got %s", config.Bot.PollInterval)
	}
	if config.Bot.ReelDelay != 10*time.Second {
		t.Errorf("Expected default reel delay to be 10s, got %s", config.Bot.ReelDelay)
	}
	if config.Bot.ProcessedFile != "processed.json" {
		t.Errorf("Expected default processed file to be processed.json, got %s", config.Bot.ProcessedFile)
	}
	if config.Status.Timeout != 5*time.Second {
		t.Errorf("Expected webhook timeout to be 5s, got %s", config.Status.Timeout)
	}
	if config.Server.Addr() != "0.0.0.0:3000" {
		t.Errorf("Expected default addr 0.0.0.0:3000, got %s", config.Server.Addr())
	}

	assert.NoError(t, config.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	config := DefaultConfig()
	err := config.loadFromLookuper(envconfig.MapLookuper(map[string]string{
		"IG_USERNAME":           "reposter",
		"IG_SESSION_ID":         "test-session-id",
		"IG_CSRF_TOKEN":         "test-csrf-token",
		"ALLOWED_SENDER":        "alice",
		"POLL_INTERVAL_SECONDS": "30",
		"WEBHOOK_URL":           "https://dash.example.com",
		"KV_REST_API_URL":       "https://kv.example.com",
		"KV_REST_API_TOKEN":     "secret",
		"PORT":                  "8080",
		"NOTIFICATIONS_ENABLED": "true",
		"LOG_LEVEL":             "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "reposter", config.Instagram.Username)
	assert.Equal(t, "test-session-id", config.Instagram.SessionID)
	assert.Equal(t, "test-csrf-token", config.Instagram.CSRFToken)
	assert.Equal(t, "alice", config.Bot.AllowedSender)
	assert.Equal(t, 30*time.Second, config.Bot.PollInterval)
	assert.Equal(t, "https://dash.example.com", config.Status.WebhookURL)
	assert.Equal(t, "https://kv.example.com", config.Server.KVRestURL)
	assert.Equal(t, "secret", config.Server.KVRestToken)
	assert.Equal(t, 8080, config.Server.Port)
	assert.True(t, config.Notifications.Enabled)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadFromEnvKeepsUnsetValues(t *testing.T) {
	config := DefaultConfig()
	config.Bot.AllowedSender = "from-file"

	require.NoError(t, config.loadFromLookuper(envconfig.MapLookuper(map[string]string{})))

	assert.Equal(t, "from-file", config.Bot.AllowedSender)
	assert.Equal(t, 60*time.Second, config.Bot.PollInterval)
	assert.Equal(t, 3000, config.Server.Port)
}

func TestLoadFromEnvInvalidBool(t *testing.T) {
	config := DefaultConfig()
	err := config.loadFromLookuper(envconfig.MapLookuper(map[string]string{
		"NOTIFICATIONS_ENABLED": "sometimes",
	}))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			modify: func(c *Config) {},
		},
		{
			name:    "poll interval too short",
			modify:  func(c *Config) { c.Bot.PollInterval = 10 * time.Millisecond },
			wantErr: "poll interval",
		},
		{
			name:    "bad port",
			modify:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name: "telegram without token",
			modify: func(c *Config) {
				c.Notifications.Enabled = true
				c.Notifications.NotificationType = "telegram"
			},
			wantErr: "telegram",
		},
		{
			name:    "bad log format",
			modify:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid log format",
		},
		{
			name:    "empty store key",
			modify:  func(c *Config) { c.Server.StoreKey = "" },
			wantErr: "store key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateBot(t *testing.T) {
	config := DefaultConfig()
	err := config.ValidateBot()
	require.Error(t, err)
	for _, want := range []string{"session ID", "CSRF token", "allowed sender"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got %v", want, err)
		}
	}

	config.Instagram.SessionID = "s"
	config.Instagram.CSRFToken = "c"
	config.Bot.AllowedSender = "@"
	assert.Error(t, config.ValidateBot(), "a bare @ is not a sender")

	config.Bot.AllowedSender = "@alice"
	assert.NoError(t, config.ValidateBot())
}

func TestMergeCommandLineFlags(t *testing.T) {
	config := DefaultConfig()
	config.MergeCommandLineFlags(map[string]interface{}{
		"allowed-sender": "bob",
		"poll-interval":  15 * time.Second,
		"port":           9000,
		"log-level":      "warn",
		"no-color":       true,
		"webhook-url":    "",
	})

	assert.Equal(t, "bob", config.Bot.AllowedSender)
	assert.Equal(t, 15*time.Second, config.Bot.PollInterval)
	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.True(t, config.Logging.NoColor)
	assert.Empty(t, config.Status.WebhookURL)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := DefaultConfig()
	original.Bot.AllowedSender = "carol"
	original.Bot.PollInterval = 45 * time.Second
	original.Server.RedisURL = "redis://localhost:6379/0"
	require.NoError(t, original.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "carol", loaded.Bot.AllowedSender)
	assert.Equal(t, 45*time.Second, loaded.Bot.PollInterval)
	assert.Equal(t, "redis://localhost:6379/0", loaded.Server.RedisURL)
}

func TestLoadFromFileDurationStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "bot:\n  allowed_sender: dave\n  poll_interval: 2m\n  reel_delay: 3s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	config := DefaultConfig()
	require.NoError(t, config.LoadFromFile(path))
	assert.Equal(t, 2*time.Minute, config.Bot.PollInterval)
	assert.Equal(t, 3*time.Second, config.Bot.ReelDelay)
	assert.Equal(t, 5, config.Bot.HeartbeatEvery)
}

func TestLoadFromFileMissing(t *testing.T) {
	config := DefaultConfig()
	err := config.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
