package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyStore is the slice of Redis the window needs. Satisfied by
// GoRedisClient and by test fakes.
type KeyStore interface {
	SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// RedisConfig holds connection settings for the durable window.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DefaultRedisConfig returns default Redis settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// GoRedisClient wraps the go-redis client to implement KeyStore.
type GoRedisClient struct {
	client *redis.Client
}

// NewGoRedisClient creates a Redis client and verifies the connection.
func NewGoRedisClient(cfg RedisConfig) (*GoRedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &GoRedisClient{client: client}, nil
}

// SetNX sets the key if absent, with a TTL.
func (g *GoRedisClient) SetNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return g.client.SetNX(ctx, key, 1, ttl).Result()
}

// Exists checks if the key is present.
func (g *GoRedisClient) Exists(ctx context.Context, key string) (bool, error) {
	count, err := g.client.Exists(ctx, key).Result()
	return count > 0, err
}

// Close closes the Redis connection.
func (g *GoRedisClient) Close() error {
	return g.client.Close()
}

// RedisWindow is a durable Window backed by TTL-keyed Redis entries.
// At-most-once survives process restarts for the configured retention.
type RedisWindow struct {
	store     KeyStore
	keyPrefix string
	retention time.Duration
}

// NewRedisWindow creates a durable window. Retention bounds how long a
// processed event ID is remembered.
func NewRedisWindow(store KeyStore, keyPrefix string, retention time.Duration) *RedisWindow {
	if keyPrefix == "" {
		keyPrefix = "soar:processed:"
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisWindow{store: store, keyPrefix: keyPrefix, retention: retention}
}

// Seen reports whether the id was recorded within the retention period.
func (w *RedisWindow) Seen(ctx context.Context, id string) (bool, error) {
	return w.store.Exists(ctx, w.keyPrefix+id)
}

// Add records the id with the window's retention TTL.
func (w *RedisWindow) Add(ctx context.Context, id string) error {
	_, err := w.store.SetNX(ctx, w.keyPrefix+id, w.retention)
	return err
}
