package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/annel0/terragen/internal/logging"
	"github.com/go-redis/redis/v8"
)

// Префикс ключей, чтобы не пересекаться с другими приложениями в той же БД
const redisKeyPrefix = "terragen:"

// RedisCache реализует CacheRepo поверх Redis.
type RedisCache struct {
	client  *redis.Client
	config  CacheConfig
	metrics counters
}

// NewRedisCache подключается к Redis и проверяет соединение.
func NewRedisCache(config CacheConfig) (*RedisCache, error) {
	config.applyDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.RedisURL,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		PoolSize:     config.MaxConnections,
		PoolTimeout:  config.PoolTimeout,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Info("Redis cache initialized: %s", config.RedisURL)
	return &RedisCache{client: rdb, config: config}, nil
}

// Get получает значение по ключу из Redis.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	atomic.AddInt64(&r.metrics.total, 1)

	val, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == nil {
		atomic.AddInt64(&r.metrics.hits, 1)
		return val, nil
	}

	atomic.AddInt64(&r.metrics.misses, 1)
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}

	logging.Error("Redis Get error for key %s: %v", key, err)
	return nil, fmt.Errorf("redis get error: %w", err)
}

// Set сохраняет значение в Redis с ограничением TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := r.client.Set(ctx, redisKeyPrefix+key, value, r.config.clampTTL(ttl)).Err(); err != nil {
		logging.Error("Redis Set error for key %s: %v", key, err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Delete удаляет ключ из Redis.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		logging.Error("Redis Delete error for key %s: %v", key, err)
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

// Close закрывает клиент Redis.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// GetMetrics возвращает метрики кеша.
func (r *RedisCache) GetMetrics() CacheMetrics {
	return r.metrics.snapshot()
}
