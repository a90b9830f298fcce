package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the relay bot
type Config struct {
	// Telegram bot settings
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`

	// Instagram session and client settings
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Rate limiting configuration for Instagram requests
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Transient media storage
	Staging StagingConfig `yaml:"staging" json:"staging"`

	// Delays between relayed items
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Caption and menu presentation
	Delivery DeliveryConfig `yaml:"delivery" json:"delivery"`

	// Follower/following tracking
	Tracking TrackingConfig `yaml:"tracking" json:"tracking"`

	// Concurrent request handling
	Dispatch DispatchConfig `yaml:"dispatch" json:"dispatch"`

	// Health and metrics endpoint
	Ops OpsConfig `yaml:"ops" json:"ops"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	Token                 string        `yaml:"token" json:"token"`
	APIEndpoint           string        `yaml:"api_endpoint" json:"api_endpoint"`
	SendTimeout           time.Duration `yaml:"send_timeout" json:"send_timeout"`
	PollTimeout           int           `yaml:"poll_timeout" json:"poll_timeout"`
	MessagesPerSecond     float64       `yaml:"messages_per_second" json:"messages_per_second"`
	ChatMessagesPerSecond float64       `yaml:"chat_messages_per_second" json:"chat_messages_per_second"`
	Debug                 bool          `yaml:"debug" json:"debug"`
}

// InstagramConfig holds the Instagram session cookies and client settings
type InstagramConfig struct {
	Username       string        `yaml:"username" json:"username"`
	SessionID      string        `yaml:"session_id" json:"session_id"`
	DSUserID       string        `yaml:"ds_user_id" json:"ds_user_id"`
	CSRFToken      string        `yaml:"csrf_token" json:"csrf_token"`
	RUR            string        `yaml:"rur" json:"rur"`
	MID            string        `yaml:"mid" json:"mid"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent"`
	UserAgentsFile string        `yaml:"user_agents_file" json:"user_agents_file"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	VerifySession  bool          `yaml:"verify_session" json:"verify_session"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// Algorithm is "sliding_window" or "token_bucket"
	Algorithm         string        `yaml:"algorithm" json:"algorithm"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
}

// StagingConfig holds transient storage configuration
type StagingConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	MaxFileSize   int64  `yaml:"max_file_size" json:"max_file_size"`
}

// PacingConfig holds the fixed delays between relayed items
type PacingConfig struct {
	StoryDelay     time.Duration `yaml:"story_delay" json:"story_delay"`
	HighlightDelay time.Duration `yaml:"highlight_delay" json:"highlight_delay"`
}

// DeliveryConfig holds caption and menu presentation settings
type DeliveryConfig struct {
	TimeZone          string        `yaml:"time_zone" json:"time_zone"`
	HighlightsPerPage int           `yaml:"highlights_per_page" json:"highlights_per_page"`
	// SessionTTL is how long a chat remembers its current profile; 0 keeps it forever
	SessionTTL        time.Duration `yaml:"session_ttl" json:"session_ttl"`
}

// TrackingConfig holds follower tracking settings
type TrackingConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Schedule        string `yaml:"schedule" json:"schedule"`
	DataDirectory   string `yaml:"data_directory" json:"data_directory"`
	DatabasePath    string `yaml:"database_path" json:"database_path"`
	NotifyUnchanged bool   `yaml:"notify_unchanged" json:"notify_unchanged"`
	MaxPages        int    `yaml:"max_pages" json:"max_pages"`
}

// DispatchConfig holds worker pool settings for incoming updates
type DispatchConfig struct {
	Workers   int `yaml:"workers" json:"workers"`
	QueueSize int `yaml:"queue_size" json:"queue_size"`
}

// OpsConfig holds the health/metrics HTTP server settings
type OpsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file" json:"file"`
}

// DefaultMaxFileSize is the largest file relayed to Telegram (50 MiB)
const DefaultMaxFileSize int64 = 50 * 1024 * 1024

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			APIEndpoint:           "https://api.telegram.org/bot%s/%s",
			SendTimeout:           60 * time.Second,
			PollTimeout:           60,
			MessagesPerSecond:     30,
			ChatMessagesPerSecond: 1,
		},
		Instagram: InstagramConfig{
			UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			RequestTimeout: 30 * time.Second,
			VerifySession:  true,
		},
		RateLimit: RateLimitConfig{
			Algorithm:         "sliding_window",
			RequestsPerMinute: 60,
			MaxRetries:        3,
			RetryDelay:        2 * time.Second,
			BackoffMultiplier: 2.0,
		},
		Staging: StagingConfig{
			BaseDirectory: filepath.Join(os.TempDir(), "igrelay"),
			MaxFileSize:   DefaultMaxFileSize,
		},
		Pacing: PacingConfig{
			StoryDelay:     2 * time.Second,
			HighlightDelay: 3 * time.Second,
		},
		Delivery: DeliveryConfig{
			TimeZone:          "Asia/Jakarta",
			HighlightsPerPage: 10,
			SessionTTL:        24 * time.Hour,
		},
		Tracking: TrackingConfig{
			Enabled:         true,
			Schedule:        "@every 1h",
			DataDirectory:   "",
			DatabasePath:    "",
			NotifyUnchanged: true,
			MaxPages:        50,
		},
		Dispatch: DispatchConfig{
			Workers:   4,
			QueueSize: 64,
		},
		Ops: OpsConfig{
			Enabled: false,
			Address: ":9090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			File:   "",
		},
	}
}

// cleanValue strips whitespace and surrounding quotes that often end up in .env files
func cleanValue(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, `"'`)
	return strings.TrimSpace(value)
}

// lookupEnv returns the first non-empty variable among names
func lookupEnv(names ...string) (string, bool) {
	for _, name := range names {
		if value := cleanValue(os.Getenv(name)); value != "" {
			return value, true
		}
	}
	return "", false
}

// LoadFromEnv loads configuration from environment variables.
// The unprefixed names (TOKEN_BOT, INSTAGRAM_*) are accepted for existing deployments.
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Telegram
	if token, ok := lookupEnv("IGRELAY_TELEGRAM_TOKEN", "TOKEN_BOT"); ok {
		c.Telegram.Token = token
	}
	if timeout, ok := lookupEnv("IGRELAY_SEND_TIMEOUT"); ok {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGRELAY_SEND_TIMEOUT: %w", err))
		} else {
			c.Telegram.SendTimeout = d
		}
	}

	// Instagram session cookies
	if username, ok := lookupEnv("IGRELAY_INSTAGRAM_USERNAME", "INSTAGRAM_USERNAME"); ok {
		c.Instagram.Username = username
	}
	if sessionID, ok := lookupEnv("IGRELAY_SESSION_ID", "INSTAGRAM_SESSIONID"); ok {
		c.Instagram.SessionID = sessionID
	}
	if dsUserID, ok := lookupEnv("IGRELAY_DS_USER_ID", "INSTAGRAM_DS_USER_ID"); ok {
		c.Instagram.DSUserID = dsUserID
	}
	if csrfToken, ok := lookupEnv("IGRELAY_CSRF_TOKEN", "INSTAGRAM_CSRFTOKEN"); ok {
		c.Instagram.CSRFToken = csrfToken
	}
	if rur, ok := lookupEnv("IGRELAY_RUR", "INSTAGRAM_RUR"); ok {
		c.Instagram.RUR = rur
	}
	if mid, ok := lookupEnv("IGRELAY_MID", "INSTAGRAM_MID"); ok {
		c.Instagram.MID = mid
	}
	if userAgent, ok := lookupEnv("IGRELAY_USER_AGENT"); ok {
		c.Instagram.UserAgent = userAgent
	}
	if agentsFile, ok := lookupEnv("IGRELAY_USER_AGENTS_FILE"); ok {
		c.Instagram.UserAgentsFile = agentsFile
	}

	// Rate limiting
	if rpm, ok := lookupEnv("IGRELAY_REQUESTS_PER_MINUTE"); ok {
		val, err := strconv.Atoi(rpm)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGRELAY_REQUESTS_PER_MINUTE: %w", err))
		} else if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if algo, ok := lookupEnv("IGRELAY_RATE_LIMIT_ALGORITHM"); ok {
		c.RateLimit.Algorithm = strings.ToLower(algo)
	}

	// Staging and presentation
	if dir, ok := lookupEnv("IGRELAY_STAGING_DIR"); ok {
		c.Staging.BaseDirectory = dir
	}
	if tz, ok := lookupEnv("IGRELAY_TIME_ZONE"); ok {
		c.Delivery.TimeZone = tz
	}

	// Tracking
	if enabled, ok := lookupEnv("IGRELAY_TRACKING_ENABLED"); ok {
		c.Tracking.Enabled = strings.ToLower(enabled) == "true"
	}
	if schedule, ok := lookupEnv("IGRELAY_TRACKING_SCHEDULE"); ok {
		c.Tracking.Schedule = schedule
	}
	if dbPath, ok := lookupEnv("IGRELAY_DATABASE_PATH"); ok {
		c.Tracking.DatabasePath = dbPath
	}

	// Ops server
	if addr, ok := lookupEnv("IGRELAY_OPS_ADDRESS"); ok {
		c.Ops.Address = addr
		c.Ops.Enabled = true
	}

	// Logging level
	if logLevel, ok := lookupEnv("IGRELAY_LOG_LEVEL"); ok {
		c.Logging.Level = logLevel
	}
	if logFormat, ok := lookupEnv("IGRELAY_LOG_FORMAT"); ok {
		c.Logging.Format = logFormat
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
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
	for _, loc := range ConfigLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// ConfigLocations lists the config file paths searched, in order of precedence
func ConfigLocations() []string {
	home := os.Getenv("HOME")
	return []string{
		".igrelay.yaml",
		".igrelay.yml",
		filepath.Join(home, ".config", "igrelay", "config.yaml"),
		filepath.Join(home, ".config", "igrelay", "config.yml"),
		filepath.Join(home, ".igrelay.yaml"),
		filepath.Join(home, ".igrelay.yml"),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	// Telegram
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("Telegram bot token is required"))
	}
	if c.Telegram.SendTimeout <= 0 {
		errs = append(errs, errors.New("send timeout must be positive"))
	}
	if c.Telegram.MessagesPerSecond <= 0 || c.Telegram.ChatMessagesPerSecond <= 0 {
		errs = append(errs, errors.New("message rates must be positive"))
	}

	// Rate limiting
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	switch c.RateLimit.Algorithm {
	case "", "sliding_window", "token_bucket":
	default:
		errs = append(errs, fmt.Errorf("unknown rate limit algorithm %q", c.RateLimit.Algorithm))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Instagram.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	// Staging
	if c.Staging.BaseDirectory == "" {
		errs = append(errs, errors.New("staging directory is required"))
	}
	if c.Staging.MaxFileSize <= 0 {
		errs = append(errs, errors.New("max file size must be positive"))
	}

	// Pacing
	if c.Pacing.StoryDelay < 0 || c.Pacing.HighlightDelay < 0 {
		errs = append(errs, errors.New("pacing delays cannot be negative"))
	}

	// Delivery
	if _, err := time.LoadLocation(c.Delivery.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("invalid time zone %q: %w", c.Delivery.TimeZone, err))
	}
	if c.Delivery.HighlightsPerPage <= 0 {
		errs = append(errs, errors.New("highlights per page must be positive"))
	}
	if c.Delivery.SessionTTL < 0 {
		errs = append(errs, errors.New("session ttl cannot be negative"))
	}

	// Tracking
	if c.Tracking.Enabled && c.Tracking.Schedule == "" {
		errs = append(errs, errors.New("tracking schedule is required when tracking is enabled"))
	}
	if c.Tracking.MaxPages <= 0 {
		errs = append(errs, errors.New("tracking max pages must be positive"))
	}

	// Dispatch
	if c.Dispatch.Workers <= 0 {
		errs = append(errs, errors.New("dispatch workers must be positive"))
	}
	if c.Dispatch.QueueSize <= 0 {
		errs = append(errs, errors.New("dispatch queue size must be positive"))
	}

	// Ops
	if c.Ops.Enabled && c.Ops.Address == "" {
		errs = append(errs, errors.New("ops address is required when ops server is enabled"))
	}

	// Logging
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, errors.New("invalid log format"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ValidateSession checks that the Instagram session cookies needed for API calls are present
func (c *Config) ValidateSession() error {
	var errs []error
	if c.Instagram.SessionID == "" {
		errs = append(errs, errors.New("Instagram session ID is required"))
	}
	if c.Instagram.CSRFToken == "" {
		errs = append(errs, errors.New("Instagram CSRF token is required"))
	}
	return errors.Join(errs...)
}

// HasSession reports whether session cookies were supplied by file, env or flags
func (c *Config) HasSession() bool {
	return c.ValidateSession() == nil
}

// Location returns the configured display time zone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Delivery.TimeZone)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
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
	if token, ok := flags["token"].(string); ok && token != "" {
		c.Telegram.Token = token
	}
	if sessionID, ok := flags["session-id"].(string); ok && sessionID != "" {
		c.Instagram.SessionID = sessionID
	}
	if csrfToken, ok := flags["csrf-token"].(string); ok && csrfToken != "" {
		c.Instagram.CSRFToken = csrfToken
	}
	if stagingDir, ok := flags["staging-dir"].(string); ok && stagingDir != "" {
		c.Staging.BaseDirectory = stagingDir
	}
	if workers, ok := flags["workers"].(int); ok && workers > 0 {
		c.Dispatch.Workers = workers
	}
	if opsAddr, ok := flags["ops-address"].(string); ok && opsAddr != "" {
		c.Ops.Address = opsAddr
		c.Ops.Enabled = true
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igrelay.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
