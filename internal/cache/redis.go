package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisProvider implements Provider backed by a Redis/Valkey-compatible server.
type RedisProvider struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds connection parameters for the cache server.
type RedisConfig struct {
	URL          string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	Prefix       string
}

// NewRedisProvider creates a Provider using the supplied configuration. It performs a ping
// against the target to fail fast when credentials or connectivity are incorrect.
func NewRedisProvider(ctx context.Context, cfg RedisConfig) (*RedisProvider, error) {
	if cfg.URL == "" {
		return nil, errors.New("cache url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse cache url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping cache: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "claimwatch:"
	}
	return &RedisProvider{client: client, prefix: prefix}, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent.
func (p *RedisProvider) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := p.client.Get(ctx, p.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores bytes with the provided TTL. A zero TTL keeps the key until deleted.
func (p *RedisProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return p.client.Set(ctx, p.prefix+key, value, ttl).Err()
}

// Del removes a key from the cache.
func (p *RedisProvider) Del(ctx context.Context, key string) error {
	return p.client.Del(ctx, p.prefix+key).Err()
}

// Close releases the connection pool.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}
