package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRedisPrefix = "virem:vault:"

// RedisSink stores sealed records under a key prefix, with an optional TTL
// for sessions that should expire on their own.
type RedisSink struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSink connects a Redis client from a URL. ttl of zero means records
// never expire.
func NewRedisSink(ctx context.Context, url, prefix string, ttl time.Duration, logger *zap.Logger) (*RedisSink, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	logger.Info("Redis vault sink connected", zap.Duration("ttl", ttl))
	return &RedisSink{rdb: rdb, prefix: prefix, ttl: ttl, logger: logger}, nil
}

func (s *RedisSink) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	return data, nil
}

func (s *RedisSink) WriteBytes(ctx context.Context, key string, data []byte) error {
	if err := s.rdb.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (s *RedisSink) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Close shuts down the Redis connection.
func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
