package cache

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/magsav/pkg/types"
)

// Config selects and configures an invalidator.
type Config struct {
	Driver string
	Redis  RedisConfig
	S3     S3Config
}

// Open builds the invalidator named by cfg.Driver. An empty driver means
// memory.
func Open(ctx context.Context, cfg Config) (types.CacheInvalidator, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewPhotoCache(), nil
	case DriverNone:
		return Nop{}, nil
	case DriverRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis cache requires an address")
		}
		return NewRedis(cfg.Redis), nil
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	}
	return nil, fmt.Errorf("%w: %q", ErrDriverUnknown, cfg.Driver)
}
