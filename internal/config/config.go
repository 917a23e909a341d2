// Package config handles configuration loading for Orion Sentinel.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Playbooks PlaybooksConfig `yaml:"playbooks"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Source    SourceConfig    `yaml:"source"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Actions   ActionsConfig   `yaml:"actions"`
	Notify    NotifyConfig    `yaml:"notify"`
	Audit     AuditConfig     `yaml:"audit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PlaybooksConfig holds playbook store settings.
type PlaybooksConfig struct {
	File       string `yaml:"file"`
	AllowEmpty bool   `yaml:"allow_empty"` // Start with zero playbooks instead of failing
}

// SchedulerConfig holds poll loop settings.
type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Lookback     time.Duration `yaml:"lookback"`
}

// DispatchConfig holds action execution settings.
type DispatchConfig struct {
	GlobalDryRun  bool          `yaml:"global_dry_run"`
	ActionTimeout time.Duration `yaml:"action_timeout"`
}

// SourceConfig holds event source settings.
type SourceConfig struct {
	Loki LokiSourceConfig `yaml:"loki"`
}

// LokiSourceConfig holds Loki query settings.
type LokiSourceConfig struct {
	URL     string        `yaml:"url"`
	Query   string        `yaml:"query"`
	Limit   int           `yaml:"limit"`
	Timeout time.Duration `yaml:"timeout"`
}

// DedupConfig selects the processed-event window backend.
type DedupConfig struct {
	Backend  string      `yaml:"backend"` // "memory" or "redis"
	Capacity int         `yaml:"capacity"`
	Redis    RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for durable dedup.
type RedisConfig struct {
	Address   string        `yaml:"address"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	KeyPrefix string        `yaml:"key_prefix"`
	Retention time.Duration `yaml:"retention"`
}

// ActionsConfig holds settings for the external systems actions touch.
type ActionsConfig struct {
	PiHole    PiHoleConfig    `yaml:"pihole"`
	Inventory InventoryConfig `yaml:"inventory"`
}

// PiHoleConfig holds Pi-hole admin API settings.
type PiHoleConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// InventoryConfig holds device inventory API settings.
type InventoryConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// NotifyConfig holds notification channel settings.
type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Log      bool           `yaml:"log"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// WebhookConfig holds generic webhook settings.
type WebhookConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// AuditConfig holds audit sink settings. Each sink is optional; the
// structured log sink is always on.
type AuditConfig struct {
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	S3         S3Config         `yaml:"s3"`
	Loki       LokiAuditConfig  `yaml:"loki"`
}

// ClickHouseConfig holds ClickHouse audit sink settings.
type ClickHouseConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Hosts         []string      `yaml:"hosts"`
	Database      string        `yaml:"database"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// KafkaConfig holds Kafka audit sink settings.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// S3Config holds S3 archive settings.
type S3Config struct {
	Enabled       bool          `yaml:"enabled"`
	Endpoint      string        `yaml:"endpoint"`
	Region        string        `yaml:"region"`
	Bucket        string        `yaml:"bucket"`
	Prefix        string        `yaml:"prefix"`
	AccessKey     string        `yaml:"access_key"`
	SecretKey     string        `yaml:"secret_key"`
	UsePathStyle  bool          `yaml:"use_path_style"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LokiAuditConfig holds Loki push settings for the audit trail.
type LokiAuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Playbooks: PlaybooksConfig{
			File:       "configs/playbooks.yaml",
			AllowEmpty: false,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
			Lookback:     5 * time.Minute,
		},
		Dispatch: DispatchConfig{
			GlobalDryRun:  true, // Opt in to live actions explicitly
			ActionTimeout: 15 * time.Second,
		},
		Source: SourceConfig{
			Loki: LokiSourceConfig{
				URL:     "http://localhost:3100",
				Query:   `{stream="events"}`,
				Limit:   1000,
				Timeout: 10 * time.Second,
			},
		},
		Dedup: DedupConfig{
			Backend:  "memory",
			Capacity: 10000,
			Redis: RedisConfig{
				Address:   "localhost:6379",
				KeyPrefix: "soar:processed:",
				Retention: 24 * time.Hour,
			},
		},
		Notify: NotifyConfig{
			Log: true,
		},
		Audit: AuditConfig{
			ClickHouse: ClickHouseConfig{
				Enabled:       false,
				Hosts:         []string{"localhost:9000"},
				Database:      "soar",
				Username:      "default",
				DialTimeout:   10 * time.Second,
				BatchSize:     500,
				FlushInterval: 5 * time.Second,
			},
			Kafka: KafkaConfig{
				Enabled: false,
				Brokers: []string{"localhost:9092"},
				Topic:   "soar.actions",
			},
			S3: S3Config{
				Enabled:       false,
				Region:        "us-east-1",
				Bucket:        "soar-action-archive",
				Prefix:        "actions/",
				FlushInterval: 5 * time.Minute,
			},
			Loki: LokiAuditConfig{
				Enabled: false,
				URL:     "http://localhost:3100",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a file or returns defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Check for config file path in environment
	configPath := os.Getenv("SOAR_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, use defaults
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if file := os.Getenv("SOAR_PLAYBOOKS_FILE"); file != "" {
		c.Playbooks.File = file
	}

	if v := os.Getenv("SOAR_ALLOW_EMPTY_PLAYBOOKS"); v == "true" {
		c.Playbooks.AllowEmpty = true
	}

	if v := os.Getenv("SOAR_DRY_RUN"); v != "" {
		c.Dispatch.GlobalDryRun = v == "true"
	}

	if v := os.Getenv("SOAR_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Scheduler.PollInterval = d
		}
	}

	if level := os.Getenv("SOAR_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if url := os.Getenv("LOKI_URL"); url != "" {
		c.Source.Loki.URL = url
		c.Audit.Loki.URL = url
	}

	if url := os.Getenv("PIHOLE_URL"); url != "" {
		c.Actions.PiHole.URL = url
	}

	if key := os.Getenv("PIHOLE_API_KEY"); key != "" {
		c.Actions.PiHole.APIKey = key
	}

	if url := os.Getenv("INVENTORY_URL"); url != "" {
		c.Actions.Inventory.URL = url
	}

	if key := os.Getenv("INVENTORY_API_KEY"); key != "" {
		c.Actions.Inventory.APIKey = key
	}

	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		c.Dedup.Backend = "redis"
		c.Dedup.Redis.Address = addr
	}

	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		c.Dedup.Redis.Password = pass
	}

	if host := os.Getenv("CLICKHOUSE_HOST"); host != "" {
		c.Audit.ClickHouse.Enabled = true
		c.Audit.ClickHouse.Hosts = []string{host}
	}

	if pass := os.Getenv("CLICKHOUSE_PASSWORD"); pass != "" {
		c.Audit.ClickHouse.Password = pass
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Audit.Kafka.Enabled = true
		c.Audit.Kafka.Brokers = splitAndTrim(brokers, ",")
	}

	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Notify.Telegram.Enabled = true
		c.Notify.Telegram.BotToken = token
	}

	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		c.Notify.Telegram.ChatID = chat
	}

	if key := os.Getenv("S3_ACCESS_KEY"); key != "" {
		c.Audit.S3.AccessKey = key
	}

	if key := os.Getenv("S3_SECRET_KEY"); key != "" {
		c.Audit.S3.SecretKey = key
	}
}

// splitAndTrim splits a string by separator and trims whitespace from each part.
func splitAndTrim(s, sep string) []string {
	parts := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Playbooks.File == "" {
		return fmt.Errorf("playbooks file must be set")
	}

	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	if c.Scheduler.Lookback < c.Scheduler.PollInterval {
		return fmt.Errorf("lookback must cover at least one poll interval")
	}

	switch c.Dedup.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown dedup backend: %q", c.Dedup.Backend)
	}

	if c.Dedup.Backend == "memory" && c.Dedup.Capacity <= 0 {
		return fmt.Errorf("dedup capacity must be positive")
	}

	if c.Source.Loki.URL == "" {
		return fmt.Errorf("source loki url must be set")
	}

	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("telegram channel requires bot_token and chat_id")
	}

	if c.Notify.Webhook.Enabled && c.Notify.Webhook.URL == "" {
		return fmt.Errorf("webhook channel requires url")
	}

	if c.Audit.Kafka.Enabled && len(c.Audit.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka sink requires brokers")
	}

	if c.Audit.S3.Enabled && c.Audit.S3.Bucket == "" {
		return fmt.Errorf("s3 archive requires bucket")
	}

	return nil
}
