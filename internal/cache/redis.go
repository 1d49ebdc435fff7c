package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	redisPrefix    = "magsav:photo:"
	redisScanCount = 100
)

// RedisConfig holds connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis clears rendered photos kept in Redis under magsav:photo:<key>:<WxH>.
// Whatever renders thumbnails writes them there; this side only invalidates.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the server in cfg. The connection is lazy.
func NewRedis(cfg RedisConfig) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Close closes the client.
func (r *Redis) Close() error { return r.client.Close() }

// Invalidate removes every size cached for key.
func (r *Redis) Invalidate(ctx context.Context, key string) error {
	pattern := redisPrefix + escapeGlob(key) + ":*"
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, redisScanCount).Result()
		if err != nil {
			return fmt.Errorf("redis scan %s: %w", key, err)
		}
		if len(keys) > 0 {
			if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis unlink %s: %w", key, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func redisKey(key string, size Size) string {
	return redisPrefix + key + ":" + size.String()
}

// escapeGlob quotes the characters SCAN MATCH treats specially.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
