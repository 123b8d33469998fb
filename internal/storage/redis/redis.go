package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/pillbox/internal/config"
	"github.com/goodtune/pillbox/internal/storage"
	"github.com/redis/go-redis/v9"
)

var savePrefs = redis.NewScript(savePrefsScript)

// Store implements the storage.Store interface using Redis.
// Each namespace is one hash; Update commits through a Lua script so a
// batch of writes lands atomically.
type Store struct {
	client *redis.Client
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// Client exposes the underlying connection so other components (the event
// publisher) can share it.
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// View runs fn against a snapshot of the namespace hash.
func (s *Store) View(ctx context.Context, namespace string, fn func(storage.Bucket) error) error {
	data, err := s.client.HGetAll(ctx, prefsKey(namespace)).Result()
	if err != nil {
		return fmt.Errorf("read namespace %s: %w", namespace, err)
	}
	return fn(newStagedBucket(data, true))
}

// Update stages writes made by fn and commits them in one script call.
// Nothing is written when fn returns an error.
func (s *Store) Update(ctx context.Context, namespace string, fn func(storage.Bucket) error) error {
	key := prefsKey(namespace)
	data, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("read namespace %s: %w", namespace, err)
	}

	staged := newStagedBucket(data, false)
	if err := fn(staged); err != nil {
		return err
	}
	if staged.empty() {
		return nil
	}

	if err := savePrefs.Run(ctx, s.client, []string{key}, staged.scriptArgs()...).Err(); err != nil {
		return fmt.Errorf("commit namespace %s: %w", namespace, err)
	}
	return nil
}
