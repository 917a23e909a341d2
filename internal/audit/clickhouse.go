package audit

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"orion-sentinel/internal/playbook"
)

// ClickHouseConfig holds connection settings for the action history
// table.
type ClickHouseConfig struct {
	Hosts         []string      `yaml:"hosts"`
	Database      string        `yaml:"database"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	TLSEnabled    bool          `yaml:"tls_enabled"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DefaultClickHouseConfig returns default ClickHouse settings.
func DefaultClickHouseConfig() ClickHouseConfig {
	return ClickHouseConfig{
		Hosts:         []string{"localhost:9000"},
		Database:      "soar",
		Username:      "default",
		Password:      "",
		TLSEnabled:    false,
		DialTimeout:   10 * time.Second,
		BatchSize:     500,
		FlushInterval: 5 * time.Second,
	}
}

// ClickHouseSink batches triggered action records into the soar_actions
// table for long-term queryable history.
type ClickHouseSink struct {
	conn   driver.Conn
	config ClickHouseConfig

	buffer []*playbook.TriggeredAction
	mu     sync.Mutex

	flushTimer *time.Timer
	closed     bool

	// Metrics
	totalWritten uint64
	totalFailed  uint64
}

// NewClickHouseSink connects to ClickHouse and creates the sink.
func NewClickHouseSink(cfg ClickHouseConfig) (*ClickHouseSink, error) {
	opts := &clickhouse.Options{
		Addr: cfg.Hosts,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionZSTD,
		},
		DialTimeout: cfg.DialTimeout,
	}
	if cfg.TLSEnabled {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return newClickHouseSink(conn, cfg), nil
}

func newClickHouseSink(conn driver.Conn, cfg ClickHouseConfig) *ClickHouseSink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultClickHouseConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultClickHouseConfig().FlushInterval
	}

	s := &ClickHouseSink{
		conn:   conn,
		config: cfg,
		buffer: make([]*playbook.TriggeredAction, 0, cfg.BatchSize),
	}
	s.flushTimer = time.AfterFunc(cfg.FlushInterval, s.timerFlush)
	return s
}

// EnsureTable creates the action history table if it doesn't exist.
func (s *ClickHouseSink) EnsureTable(ctx context.Context) error {
	return s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS soar_actions (
			action_id     UUID,
			playbook_id   String,
			playbook_name String,
			event_id      String,
			event_type    String,
			action_type   String,
			timestamp     DateTime64(3),
			dry_run       UInt8,
			executed      UInt8,
			success       UInt8,
			error         String,
			parameters    String,
			result        String
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, playbook_id)
	`)
}

// Record buffers one triggered action for batched insertion.
func (s *ClickHouseSink) Record(_ context.Context, ta *playbook.TriggeredAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("clickhouse sink is closed")
	}

	s.buffer = append(s.buffer, ta)
	if len(s.buffer) >= s.config.BatchSize {
		return s.flushLocked()
	}
	return nil
}

func (s *ClickHouseSink) timerFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if len(s.buffer) > 0 {
		if err := s.flushLocked(); err != nil {
			slog.Error("audit flush failed", "error", err)
		}
	}
	s.flushTimer.Reset(s.config.FlushInterval)
}

// flushLocked flushes the buffer. Caller must hold the lock.
func (s *ClickHouseSink) flushLocked() error {
	if len(s.buffer) == 0 {
		return nil
	}

	actions := s.buffer
	s.buffer = make([]*playbook.TriggeredAction, 0, s.config.BatchSize)

	if err := s.insertBatch(actions); err != nil {
		atomic.AddUint64(&s.totalFailed, uint64(len(actions)))
		return err
	}

	atomic.AddUint64(&s.totalWritten, uint64(len(actions)))
	return nil
}

func (s *ClickHouseSink) insertBatch(actions []*playbook.TriggeredAction) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO soar_actions (
			action_id, playbook_id, playbook_name, event_id, event_type,
			action_type, timestamp, dry_run, executed, success, error,
			parameters, result
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, ta := range actions {
		parameters, _ := json.Marshal(ta.Action.Parameters)
		result, _ := json.Marshal(ta.Result)

		err := batch.Append(
			ta.ID,
			ta.PlaybookID,
			ta.PlaybookName,
			ta.Event.ID,
			ta.Event.EventType,
			string(ta.Action.Type),
			ta.Timestamp,
			boolToUint8(ta.DryRun),
			boolToUint8(ta.Executed),
			boolToUint8(ta.Succeeded()),
			ta.Error,
			string(parameters),
			string(result),
		)
		if err != nil {
			return fmt.Errorf("failed to append action: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	slog.Debug("audit batch inserted", "count", len(actions))
	return nil
}

// Flush forces a flush of the current buffer.
func (s *ClickHouseSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// Close flushes remaining records and closes the connection.
func (s *ClickHouseSink) Close() error {
	s.mu.Lock()
	s.closed = true
	err := s.flushLocked()
	s.mu.Unlock()

	s.flushTimer.Stop()

	if cerr := s.conn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Metrics returns sink counters.
func (s *ClickHouseSink) Metrics() ClickHouseMetrics {
	s.mu.Lock()
	pending := len(s.buffer)
	s.mu.Unlock()

	return ClickHouseMetrics{
		Written: atomic.LoadUint64(&s.totalWritten),
		Failed:  atomic.LoadUint64(&s.totalFailed),
		Pending: pending,
	}
}

// ClickHouseMetrics holds sink statistics.
type ClickHouseMetrics struct {
	Written uint64 `json:"written"`
	Failed  uint64 `json:"failed"`
	Pending int    `json:"pending"`
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
