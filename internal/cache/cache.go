// Package cache provides CacheInvalidator implementations for the shared
// artifacts records point to, such as equipment photos rendered at several
// sizes.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/magsav/pkg/types"
)

// Size is a rendered width and height.
type Size struct {
	W, H int
}

// String formats the size as WxH.
func (s Size) String() string { return fmt.Sprintf("%dx%d", s.W, s.H) }

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverS3     = "s3"
	DriverNone   = "none"
)

// ErrDriverUnknown is returned by Open for an unrecognised driver.
var ErrDriverUnknown = errors.New("unknown cache driver")

// Nop ignores every invalidation.
type Nop struct{}

// Invalidate implements types.CacheInvalidator.
func (Nop) Invalidate(context.Context, string) error { return nil }

// Multi invalidates every member and joins their errors. All members are
// tried even when one fails.
type Multi []types.CacheInvalidator

// Invalidate implements types.CacheInvalidator.
func (m Multi) Invalidate(ctx context.Context, key string) error {
	var errs []error
	for _, inv := range m {
		if err := inv.Invalidate(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PhotoCache keeps rendered photos in memory keyed by shared key and size.
// An embedding application fills it with Put as it renders; magsav itself
// only invalidates. The zero value is ready to use.
type PhotoCache struct {
	mu      sync.RWMutex
	entries map[string]map[Size][]byte
}

// NewPhotoCache returns an empty cache.
func NewPhotoCache() *PhotoCache {
	return &PhotoCache{}
}

// Put stores data for key at size.
func (c *PhotoCache) Put(key string, size Size, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]map[Size][]byte)
	}
	sizes, ok := c.entries[key]
	if !ok {
		sizes = make(map[Size][]byte)
		c.entries[key] = sizes
	}
	sizes[size] = data
}

// Get returns the data cached for key at size.
func (c *PhotoCache) Get(key string, size Size) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[key][size]
	return data, ok
}

// Len returns the number of cached renderings across all keys.
func (c *PhotoCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, sizes := range c.entries {
		n += len(sizes)
	}
	return n
}

// Invalidate drops every size cached for key. Other keys are untouched.
func (c *PhotoCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

var (
	_ types.CacheInvalidator = Nop{}
	_ types.CacheInvalidator = Multi(nil)
	_ types.CacheInvalidator = (*PhotoCache)(nil)
	_ types.CacheInvalidator = (*Redis)(nil)
	_ types.CacheInvalidator = (*S3)(nil)
)
