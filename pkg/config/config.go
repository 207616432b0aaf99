package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the repost bot and the status server
type Config struct {
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Bot controls the DM poll loop
	Bot BotConfig `yaml:"bot" json:"bot"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	Upload    UploadConfig    `yaml:"upload" json:"upload"`

	// Status is where the bot reports progress
	Status StatusConfig `yaml:"status" json:"status"`

	// Server is the status endpoint and dashboard
	Server ServerConfig `yaml:"server" json:"server"`

	Archive       ArchiveConfig      `yaml:"archive" json:"archive"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
}

// InstagramConfig holds the web session used to talk to Instagram
type InstagramConfig struct {
	Username  string `yaml:"username" json:"username"`
	SessionID string `yaml:"session_id" json:"session_id"`
	CSRFToken string `yaml:"csrf_token" json:"csrf_token"`
	DSUserID  string `yaml:"ds_user_id" json:"ds_user_id"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	AppID     string `yaml:"app_id" json:"app_id"`
}

// BotConfig holds the poll loop settings
type BotConfig struct {
	AllowedSender  string        `yaml:"allowed_sender" json:"allowed_sender"`
	PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval"`
	ReelDelay      time.Duration `yaml:"reel_delay" json:"reel_delay"`
	HeartbeatEvery int           `yaml:"heartbeat_every" json:"heartbeat_every"`
	ProcessedFile  string        `yaml:"processed_file" json:"processed_file"`
	CleanupAfter   time.Duration `yaml:"cleanup_after" json:"cleanup_after"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Directory   string        `yaml:"directory" json:"directory"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxFileSize int64         `yaml:"max_file_size" json:"max_file_size"`
}

// UploadConfig holds reel upload settings
type UploadConfig struct {
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	ProcessingTimeout time.Duration `yaml:"processing_timeout" json:"processing_timeout"`
	ProcessingPoll    time.Duration `yaml:"processing_poll" json:"processing_poll"`
	ShareToFeed       bool          `yaml:"share_to_feed" json:"share_to_feed"`
}

// StatusConfig configures progress reporting from the bot
type StatusConfig struct {
	WebhookURL   string        `yaml:"webhook_url" json:"webhook_url"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	QueueSize    int           `yaml:"queue_size" json:"queue_size"`
	RefreshEvery time.Duration `yaml:"refresh_every" json:"refresh_every"`
}

// ServerConfig configures the status endpoint and its backing store
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	StoreKey        string        `yaml:"store_key" json:"store_key"`
	KVRestURL       string        `yaml:"kv_rest_api_url" json:"kv_rest_api_url"`
	KVRestToken     string        `yaml:"kv_rest_api_token" json:"-"`
	RedisURL        string        `yaml:"redis_url" json:"redis_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// ArchiveConfig configures optional S3 archiving of reposted reels
type ArchiveConfig struct {
	S3Bucket string        `yaml:"s3_bucket" json:"s3_bucket"`
	S3Prefix string        `yaml:"s3_prefix" json:"s3_prefix"`
	Region   string        `yaml:"region" json:"region"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled          bool   `yaml:"enabled" json:"enabled"`
	OnComplete       bool   `yaml:"on_complete" json:"on_complete"`
	OnError          bool   `yaml:"on_error" json:"on_error"`
	NotificationType string `yaml:"notification_type" json:"notification_type"`
	TelegramToken    string `yaml:"telegram_token" json:"-"`
	TelegramChatID   int64  `yaml:"telegram_chat_id" json:"telegram_chat_id"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	// Format of stdout logs: console or json. Log files are always JSON lines.
	Format  string `yaml:"format" json:"format"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// Addr returns the listen address for the status server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Enabled reports whether archiving is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.S3Bucket != ""
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			AppID:     "936619743392459",
		},
		Bot: BotConfig{
			PollInterval:   60 * time.Second,
			ReelDelay:      10 * time.Second,
			HeartbeatEvery: 5,
			ProcessedFile:  "processed.json",
			CleanupAfter:   24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			BackoffMultiplier: 2.0,
			MaxRetries:        3,
			RetryDelay:        5 * time.Second,
		},
		Download: DownloadConfig{
			Directory:   "downloads",
			Timeout:     2 * time.Minute,
			MaxFileSize: 0, // no limit
		},
		Upload: UploadConfig{
			Timeout:           5 * time.Minute,
			ProcessingTimeout: 2 * time.Minute,
			ProcessingPoll:    5 * time.Second,
			ShareToFeed:       true,
		},
		Status: StatusConfig{
			Timeout:      5 * time.Second,
			QueueSize:    32,
			RefreshEvery: 3 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			StoreKey:        "bot_state",
			ShutdownTimeout: 10 * time.Second,
		},
		Archive: ArchiveConfig{
			S3Prefix: "reels/",
			Timeout:  2 * time.Minute,
		},
		Notifications: NotificationConfig{
			Enabled:          false,
			OnComplete:       true,
			OnError:          true,
			NotificationType: "desktop",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// envOverlay lists the environment variables read on top of the file config.
// Zero values mean "not set".
type envOverlay struct {
	Username       string `env:"IG_USERNAME"`
	SessionID      string `env:"IG_SESSION_ID"`
	CSRFToken      string `env:"IG_CSRF_TOKEN"`
	DSUserID       string `env:"IG_DS_USER_ID"`
	UserAgent      string `env:"IG_USER_AGENT"`
	AllowedSender  string `env:"ALLOWED_SENDER"`
	PollSeconds    int    `env:"POLL_INTERVAL_SECONDS"`
	WebhookURL     string `env:"WEBHOOK_URL"`
	KVRestURL      string `env:"KV_REST_API_URL"`
	KVRestToken    string `env:"KV_REST_API_TOKEN"`
	RedisURL       string `env:"REDIS_URL"`
	Host           string `env:"HOST"`
	Port           int    `env:"PORT"`
	DownloadsDir   string `env:"DOWNLOADS_DIR"`
	ProcessedFile  string `env:"PROCESSED_FILE"`
	ArchiveBucket  string `env:"ARCHIVE_S3_BUCKET"`
	ArchivePrefix  string `env:"ARCHIVE_S3_PREFIX"`
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`
	Notifications  string `env:"NOTIFICATIONS_ENABLED"`
	LogLevel       string `env:"LOG_LEVEL"`
	LogFormat      string `env:"LOG_FORMAT"`
	LogFile        string `env:"LOG_FILE"`
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	return c.loadFromLookuper(envconfig.OsLookuper())
}

func (c *Config) loadFromLookuper(l envconfig.Lookuper) error {
	var env envOverlay
	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &env,
		Lookuper: l,
	}); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}

	setString(&c.Instagram.Username, env.Username)
	setString(&c.Instagram.SessionID, env.SessionID)
	setString(&c.Instagram.CSRFToken, env.CSRFToken)
	setString(&c.Instagram.DSUserID, env.DSUserID)
	setString(&c.Instagram.UserAgent, env.UserAgent)
	setString(&c.Bot.AllowedSender, env.AllowedSender)
	if env.PollSeconds > 0 {
		c.Bot.PollInterval = time.Duration(env.PollSeconds) * time.Second
	}
	setString(&c.Bot.ProcessedFile, env.ProcessedFile)
	setString(&c.Status.WebhookURL, env.WebhookURL)
	setString(&c.Server.KVRestURL, env.KVRestURL)
	setString(&c.Server.KVRestToken, env.KVRestToken)
	setString(&c.Server.RedisURL, env.RedisURL)
	setString(&c.Server.Host, env.Host)
	if env.Port > 0 {
		c.Server.Port = env.Port
	}
	setString(&c.Download.Directory, env.DownloadsDir)
	setString(&c.Archive.S3Bucket, env.ArchiveBucket)
	setString(&c.Archive.S3Prefix, env.ArchivePrefix)
	setString(&c.Notifications.TelegramToken, env.TelegramToken)
	if env.TelegramChatID != 0 {
		c.Notifications.TelegramChatID = env.TelegramChatID
	}
	if env.Notifications != "" {
		enabled, err := strconv.ParseBool(env.Notifications)
		if err != nil {
			return fmt.Errorf("invalid NOTIFICATIONS_ENABLED %q: %w", env.Notifications, err)
		}
		c.Notifications.Enabled = enabled
	}
	setString(&c.Logging.Level, env.LogLevel)
	setString(&c.Logging.Format, env.LogFormat)
	setString(&c.Logging.File, env.LogFile)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".igrepost.yaml",
		".igrepost.yml",
		filepath.Join(home, ".config", "igrepost", "config.yaml"),
		filepath.Join(home, ".config", "igrepost", "config.yml"),
		filepath.Join(home, ".igrepost.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks settings shared by every command
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Bot.PollInterval < time.Second {
		errs = append(errs, errors.New("poll interval must be at least 1s"))
	}
	if c.Bot.ReelDelay < 0 {
		errs = append(errs, errors.New("reel delay cannot be negative"))
	}
	if c.Bot.HeartbeatEvery <= 0 {
		errs = append(errs, errors.New("heartbeat_every must be positive"))
	}
	if c.Download.Directory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Status.Timeout <= 0 {
		errs = append(errs, errors.New("status timeout must be positive"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port %d", c.Server.Port))
	}
	if c.Server.StoreKey == "" {
		errs = append(errs, errors.New("store key is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Logging.Format))
	}

	validNotifTypes := map[string]bool{
		"terminal": true, "desktop": true, "telegram": true, "none": true,
	}
	if !validNotifTypes[strings.ToLower(c.Notifications.NotificationType)] {
		errs = append(errs, errors.New("invalid notification type"))
	}
	if c.Notifications.Enabled && strings.EqualFold(c.Notifications.NotificationType, "telegram") {
		if c.Notifications.TelegramToken == "" || c.Notifications.TelegramChatID == 0 {
			errs = append(errs, errors.New("telegram notifications need a bot token and chat id"))
		}
	}

	return errors.Join(errs...)
}

// ValidateBot checks the settings the repost bot cannot run without
func (c *Config) ValidateBot() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Instagram.SessionID == "" {
		errs = append(errs, errors.New("Instagram session ID is required"))
	}
	if c.Instagram.CSRFToken == "" {
		errs = append(errs, errors.New("Instagram CSRF token is required"))
	}
	if strings.TrimPrefix(c.Bot.AllowedSender, "@") == "" {
		errs = append(errs, errors.New("allowed sender is required"))
	}
	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["allowed-sender"].(string); ok && v != "" {
		c.Bot.AllowedSender = v
	}
	if v, ok := flags["poll-interval"].(time.Duration); ok && v > 0 {
		c.Bot.PollInterval = v
	}
	if v, ok := flags["webhook-url"].(string); ok && v != "" {
		c.Status.WebhookURL = v
	}
	if v, ok := flags["downloads"].(string); ok && v != "" {
		c.Download.Directory = v
	}
	if v, ok := flags["port"].(int); ok && v > 0 {
		c.Server.Port = v
	}
	if v, ok := flags["host"].(string); ok && v != "" {
		c.Server.Host = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["no-color"].(bool); ok && v {
		c.Logging.NoColor = true
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env never overrides variables already present in the environment
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igrepost.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
