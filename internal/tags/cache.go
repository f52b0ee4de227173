// Package tags holds the valid-tag view used by writers and the catalog file loader.
package tags

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/reoverflow/internal/models"
)

// DefaultTTL bounds how long a loaded catalog is trusted.
const DefaultTTL = 2 * time.Hour

// Loader reads the tag catalog from persistent storage.
type Loader interface {
	LoadTags(ctx context.Context) ([]models.Tag, error)
}

type snapshot struct {
	tags    []models.Tag
	slugs   map[string]struct{}
	expires time.Time
}

// Cache is a time-bounded view of the valid-tag set. The whole catalog sits
// under one entry; reloads after expiry are collapsed with singleflight.
type Cache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu    sync.RWMutex
	snap  *snapshot
	group singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger used to report load failures.
func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) { c.logger = l }
}

// NewCache creates a cache over loader. A non-positive ttl uses DefaultTTL.
func NewCache(loader Loader, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		loader: loader,
		ttl:    ttl,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate reports whether every slug is in the current catalog, ignoring case.
// It fails closed: when the catalog cannot be loaded the answer is false.
func (c *Cache) Validate(ctx context.Context, slugs []string) bool {
	snap, err := c.current(ctx)
	if err != nil {
		c.logger.Warn("tags: catalog load failed, rejecting tags", slog.String("error", err.Error()))
		return false
	}
	for _, s := range slugs {
		if _, ok := snap.slugs[strings.ToLower(strings.TrimSpace(s))]; !ok {
			return false
		}
	}
	return true
}

// Tags returns the cached catalog, loading it if needed.
func (c *Cache) Tags(ctx context.Context) ([]models.Tag, error) {
	snap, err := c.current(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Tag, len(snap.tags))
	copy(out, snap.tags)
	return out, nil
}

// Invalidate drops the cached catalog; the next call reloads.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

func (c *Cache) current(ctx context.Context) (*snapshot, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if snap != nil && c.now().Before(snap.expires) {
		return snap, nil
	}

	v, err, _ := c.group.Do("tags", func() (any, error) {
		// Another caller may have refreshed while we waited for the group.
		c.mu.RLock()
		fresh := c.snap
		c.mu.RUnlock()
		if fresh != nil && c.now().Before(fresh.expires) {
			return fresh, nil
		}

		loaded, err := c.loader.LoadTags(ctx)
		if err != nil {
			return nil, err
		}
		next := &snapshot{
			tags:    loaded,
			slugs:   make(map[string]struct{}, len(loaded)),
			expires: c.now().Add(c.ttl),
		}
		for _, t := range loaded {
			next.slugs[strings.ToLower(t.Slug)] = struct{}{}
		}
		c.mu.Lock()
		c.snap = next
		c.mu.Unlock()
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}
