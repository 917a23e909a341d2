package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Dispatch.GlobalDryRun {
		t.Error("default config must start in dry run")
	}
	if cfg.Scheduler.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.Scheduler.PollInterval)
	}
	if cfg.Dedup.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", cfg.Dedup.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
playbooks:
  file: /etc/soar/playbooks.yaml
scheduler:
  poll_interval: 10s
  lookback: 2m
dispatch:
  global_dry_run: false
dedup:
  backend: redis
  redis:
    address: redis.internal:6379
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SOAR_CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Playbooks.File != "/etc/soar/playbooks.yaml" {
		t.Errorf("Playbooks.File = %q", cfg.Playbooks.File)
	}
	if cfg.Scheduler.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want 10s", cfg.Scheduler.PollInterval)
	}
	if cfg.Dispatch.GlobalDryRun {
		t.Error("global_dry_run should be overridden to false")
	}
	if cfg.Dedup.Backend != "redis" || cfg.Dedup.Redis.Address != "redis.internal:6379" {
		t.Errorf("dedup = %q %q", cfg.Dedup.Backend, cfg.Dedup.Redis.Address)
	}
	// Untouched sections keep defaults.
	if cfg.Source.Loki.Limit != 1000 {
		t.Errorf("Loki.Limit = %d, want default 1000", cfg.Source.Loki.Limit)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SOAR_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Playbooks.File != "configs/playbooks.yaml" {
		t.Errorf("Playbooks.File = %q, want default", cfg.Playbooks.File)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("playbooks: ["), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SOAR_CONFIG_PATH", path)

	if _, err := Load(); err == nil {
		t.Error("Load() should fail on malformed YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SOAR_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	t.Setenv("SOAR_DRY_RUN", "false")
	t.Setenv("SOAR_POLL_INTERVAL", "45s")
	t.Setenv("SOAR_PLAYBOOKS_FILE", "/opt/playbooks.yaml")
	t.Setenv("PIHOLE_URL", "http://pihole.lan")
	t.Setenv("PIHOLE_API_KEY", "secret")
	t.Setenv("REDIS_ADDRESS", "cache.lan:6379")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Dispatch.GlobalDryRun {
		t.Error("SOAR_DRY_RUN=false not applied")
	}
	if cfg.Scheduler.PollInterval != 45*time.Second {
		t.Errorf("PollInterval = %v, want 45s", cfg.Scheduler.PollInterval)
	}
	if cfg.Playbooks.File != "/opt/playbooks.yaml" {
		t.Errorf("Playbooks.File = %q", cfg.Playbooks.File)
	}
	if cfg.Actions.PiHole.URL != "http://pihole.lan" || cfg.Actions.PiHole.APIKey != "secret" {
		t.Errorf("pihole = %+v", cfg.Actions.PiHole)
	}
	if cfg.Dedup.Backend != "redis" || cfg.Dedup.Redis.Address != "cache.lan:6379" {
		t.Errorf("redis override not applied: %+v", cfg.Dedup)
	}
	if !cfg.Audit.Kafka.Enabled || len(cfg.Audit.Kafka.Brokers) != 2 || cfg.Audit.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("kafka brokers = %v", cfg.Audit.Kafka.Brokers)
	}
	if !cfg.Notify.Telegram.Enabled || cfg.Notify.Telegram.ChatID != "42" {
		t.Errorf("telegram = %+v", cfg.Notify.Telegram)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty playbooks file", func(c *Config) { c.Playbooks.File = "" }, true},
		{"zero poll interval", func(c *Config) { c.Scheduler.PollInterval = 0 }, true},
		{"lookback shorter than interval", func(c *Config) {
			c.Scheduler.PollInterval = time.Minute
			c.Scheduler.Lookback = time.Second
		}, true},
		{"unknown dedup backend", func(c *Config) { c.Dedup.Backend = "dynamo" }, true},
		{"zero memory capacity", func(c *Config) { c.Dedup.Capacity = 0 }, true},
		{"redis backend ignores capacity", func(c *Config) {
			c.Dedup.Backend = "redis"
			c.Dedup.Capacity = 0
		}, false},
		{"telegram without token", func(c *Config) { c.Notify.Telegram.Enabled = true }, true},
		{"webhook without url", func(c *Config) { c.Notify.Webhook.Enabled = true }, true},
		{"kafka without brokers", func(c *Config) {
			c.Audit.Kafka.Enabled = true
			c.Audit.Kafka.Brokers = nil
		}, true},
		{"s3 without bucket", func(c *Config) {
			c.Audit.S3.Enabled = true
			c.Audit.S3.Bucket = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
