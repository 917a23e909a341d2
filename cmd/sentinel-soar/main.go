// Package main is the entry point for the Orion Sentinel SOAR service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"orion-sentinel/internal/audit"
	"orion-sentinel/internal/blocklist"
	"orion-sentinel/internal/config"
	"orion-sentinel/internal/dedup"
	"orion-sentinel/internal/dispatch"
	"orion-sentinel/internal/eventsource"
	"orion-sentinel/internal/inventory"
	"orion-sentinel/internal/notify"
	"orion-sentinel/internal/playbook"
	"orion-sentinel/internal/schema"
	"orion-sentinel/internal/soar"
)

func main() {
	// Setup structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("SOAR_LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"playbooks_file", cfg.Playbooks.File,
		"poll_interval", cfg.Scheduler.PollInterval,
		"global_dry_run", cfg.Dispatch.GlobalDryRun,
		"dedup_backend", cfg.Dedup.Backend,
	)

	// Load playbooks
	store := playbook.NewStore(cfg.Playbooks.File)
	count, err := loadPlaybooks(store, cfg.Playbooks)
	if err != nil {
		slog.Error("failed to load playbooks", "error", err)
		os.Exit(1)
	}
	slog.Info("playbooks loaded", "count", count)

	// Reload playbooks on SIGHUP
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			n, err := store.Reload()
			if err != nil {
				slog.Error("playbook reload failed, keeping current set", "error", err)
				continue
			}
			slog.Info("playbooks reloaded", "count", n)
		}
	}()

	engine := playbook.NewEngine(store, logger)

	// Event source
	validator := schema.NewValidator()
	source := eventsource.NewLokiSource(eventsource.LokiConfig{
		URL:     cfg.Source.Loki.URL,
		Query:   cfg.Source.Loki.Query,
		Limit:   cfg.Source.Loki.Limit,
		Timeout: cfg.Source.Loki.Timeout,
	}, validator, logger)

	// Dedup window
	var window dedup.Window
	if cfg.Dedup.Backend == "redis" {
		redisCfg := dedup.DefaultRedisConfig()
		redisCfg.Addr = cfg.Dedup.Redis.Address
		redisCfg.Password = cfg.Dedup.Redis.Password
		redisCfg.DB = cfg.Dedup.Redis.DB

		client, err := dedup.NewGoRedisClient(redisCfg)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		window = dedup.NewRedisWindow(client, cfg.Dedup.Redis.KeyPrefix, cfg.Dedup.Redis.Retention)
		slog.Info("using redis dedup window", "addr", cfg.Dedup.Redis.Address)
	} else {
		window = dedup.NewLRUWindow(cfg.Dedup.Capacity)
	}

	// Action collaborators
	blocker := blocklist.NewClient(cfg.Actions.PiHole.URL, cfg.Actions.PiHole.APIKey)
	tagger := inventory.NewClient(cfg.Actions.Inventory.URL, cfg.Actions.Inventory.APIKey)

	var channels []notify.Channel
	if cfg.Notify.Telegram.Enabled {
		channels = append(channels, notify.NewTelegramChannel(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID))
	}
	if cfg.Notify.Webhook.Enabled {
		channels = append(channels, notify.NewWebhookChannel("webhook", cfg.Notify.Webhook.URL, cfg.Notify.Webhook.Headers))
	}
	if cfg.Notify.Log || len(channels) == 0 {
		channels = append(channels, notify.NewLogChannel(logger))
	}
	notifier := notify.NewDispatcher(logger, channels...)

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		GlobalDryRun:  cfg.Dispatch.GlobalDryRun,
		ActionTimeout: cfg.Dispatch.ActionTimeout,
	}, blocker, tagger, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audit sinks
	sink, closeSinks := buildAuditSinks(ctx, cfg, logger)
	defer closeSinks()

	service := soar.NewService(soar.Config{
		PollInterval: cfg.Scheduler.PollInterval,
		Lookback:     cfg.Scheduler.Lookback,
	}, source, engine, dispatcher, window, sink, logger)

	go service.RunLoop(ctx)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())
	cancel()

	metrics := dispatcher.Metrics()
	slog.Info("shutdown complete",
		"actions_executed", metrics.Executed,
		"actions_simulated", metrics.Simulated,
		"actions_failed", metrics.Failed,
	)
}

// loadPlaybooks installs the startup playbook set. Any load failure, a
// missing or malformed file alike, is fatal unless allow_empty is set;
// with allow_empty the service starts with zero playbooks and picks up a
// corrected file on the next SIGHUP reload.
func loadPlaybooks(store *playbook.Store, cfg config.PlaybooksConfig) (int, error) {
	count, err := store.Load()
	if err != nil {
		if cfg.AllowEmpty {
			slog.Warn("failed to load playbooks, starting with none",
				"file", cfg.File,
				"error", err)
			return 0, nil
		}
		return 0, err
	}
	if count == 0 && !cfg.AllowEmpty {
		return 0, fmt.Errorf("no playbooks loaded from %s", cfg.File)
	}
	return count, nil
}

// buildAuditSinks assembles the configured audit sinks behind a MultiSink.
// The structured log sink is always present. The returned func flushes and
// closes every sink that needs it.
func buildAuditSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (audit.Sink, func()) {
	sinks := []audit.Sink{audit.NewLogSink(logger)}
	var closers []func()

	if cfg.Audit.ClickHouse.Enabled {
		chSink, err := audit.NewClickHouseSink(audit.ClickHouseConfig{
			Hosts:         cfg.Audit.ClickHouse.Hosts,
			Database:      cfg.Audit.ClickHouse.Database,
			Username:      cfg.Audit.ClickHouse.Username,
			Password:      cfg.Audit.ClickHouse.Password,
			DialTimeout:   cfg.Audit.ClickHouse.DialTimeout,
			BatchSize:     cfg.Audit.ClickHouse.BatchSize,
			FlushInterval: cfg.Audit.ClickHouse.FlushInterval,
		})
		if err != nil {
			slog.Error("failed to connect to ClickHouse", "error", err)
			os.Exit(1)
		}
		if err := chSink.EnsureTable(ctx); err != nil {
			slog.Error("failed to create audit table", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, chSink)
		closers = append(closers, func() {
			if err := chSink.Close(); err != nil {
				slog.Error("clickhouse sink close error", "error", err)
			}
		})
		slog.Info("clickhouse audit sink enabled", "hosts", cfg.Audit.ClickHouse.Hosts)
	}

	if cfg.Audit.Kafka.Enabled {
		kafkaCfg := audit.DefaultKafkaConfig()
		kafkaCfg.Brokers = cfg.Audit.Kafka.Brokers
		if cfg.Audit.Kafka.Topic != "" {
			kafkaCfg.Topic = cfg.Audit.Kafka.Topic
		}
		kafkaSink := audit.NewKafkaSink(kafkaCfg)
		sinks = append(sinks, kafkaSink)
		closers = append(closers, func() {
			if err := kafkaSink.Close(); err != nil {
				slog.Error("kafka sink close error", "error", err)
			}
		})
		slog.Info("kafka audit sink enabled", "topic", kafkaCfg.Topic)
	}

	if cfg.Audit.S3.Enabled {
		archiver, err := audit.NewS3Archiver(ctx, audit.S3Config{
			Region:          cfg.Audit.S3.Region,
			Bucket:          cfg.Audit.S3.Bucket,
			Prefix:          cfg.Audit.S3.Prefix,
			Endpoint:        cfg.Audit.S3.Endpoint,
			AccessKeyID:     cfg.Audit.S3.AccessKey,
			SecretAccessKey: cfg.Audit.S3.SecretKey,
			UsePathStyle:    cfg.Audit.S3.UsePathStyle,
			FlushInterval:   cfg.Audit.S3.FlushInterval,
		}, logger)
		if err != nil {
			slog.Error("failed to initialize s3 archiver", "error", err)
			os.Exit(1)
		}
		archiver.Start()
		sinks = append(sinks, archiver)
		closers = append(closers, func() {
			if err := archiver.Close(); err != nil {
				slog.Error("s3 archiver close error", "error", err)
			}
		})
		slog.Info("s3 archive enabled", "bucket", cfg.Audit.S3.Bucket)
	}

	if cfg.Audit.Loki.Enabled {
		sinks = append(sinks, audit.NewLokiSink(cfg.Audit.Loki.URL))
		slog.Info("loki audit sink enabled", "url", cfg.Audit.Loki.URL)
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return audit.NewMultiSink(logger, sinks...), closeAll
}
