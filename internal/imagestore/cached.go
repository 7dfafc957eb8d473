package imagestore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultMaxEntryBytes bounds the size of a single cached image.
const DefaultMaxEntryBytes = 8 << 20

// Cached memoizes reads from an inner store. Entries for an image name are
// dropped when Watch sees that name change under the watched directory.
type Cached struct {
	inner         Store
	dir           string
	maxEntryBytes int

	mu      sync.RWMutex
	entries map[string][]byte
	ready   chan struct{}
	once    sync.Once

	// gens counts invalidations per image base name. A read only fills the
	// cache when the count is unchanged since it started.
	gens map[string]uint64
}

// NewCached wraps inner. dir is the directory Watch observes; an empty dir
// disables invalidation and Watch returns immediately.
func NewCached(inner Store, dir string, maxEntryBytes int) *Cached {
	if maxEntryBytes <= 0 {
		maxEntryBytes = DefaultMaxEntryBytes
	}
	return &Cached{
		inner:         inner,
		dir:           strings.TrimSpace(dir),
		maxEntryBytes: maxEntryBytes,
		entries:       make(map[string][]byte),
		gens:          make(map[string]uint64),
		ready:         make(chan struct{}),
	}
}

func cacheKey(name, ext string) string {
	return name + "." + strings.ToUpper(ext)
}

func (c *Cached) Read(ctx context.Context, name, ext string) ([]byte, error) {
	key := cacheKey(name, ext)
	c.mu.RLock()
	data, ok := c.entries[key]
	gen := c.gens[name]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	data, err := c.inner.Read(ctx, name, ext)
	if err != nil {
		return nil, err
	}
	if len(data) <= c.maxEntryBytes {
		c.mu.Lock()
		if c.gens[name] == gen {
			c.entries[key] = data
		}
		c.mu.Unlock()
	}
	return data, nil
}

// Len reports the number of cached images.
func (c *Cached) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Invalidate drops every cached entry for the image base name. Reads of
// that name already in flight do not repopulate the cache.
func (c *Cached) Invalidate(name string) int {
	prefix := name + "."
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[name]++
	dropped := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

// Ready is closed once Watch has registered its watcher.
func (c *Cached) Ready() <-chan struct{} {
	return c.ready
}

func (c *Cached) markReady() {
	c.once.Do(func() { close(c.ready) })
}

// Watch invalidates entries on file events under dir until ctx is done.
func (c *Cached) Watch(ctx context.Context) error {
	if c.dir == "" {
		c.markReady()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("imagestore: new watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(c.dir); err != nil {
		return fmt.Errorf("imagestore: watch %s: %w", c.dir, err)
	}
	c.markReady()
	log.Info().Str("dir", c.dir).Msg("imagestore.Cached watching")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			base := filepath.Base(event.Name)
			stem, _, _ := strings.Cut(base, ".")
			if n := c.Invalidate(stem); n > 0 {
				log.Debug().Str("file", base).Str("op", event.Op.String()).Int("dropped", n).Msg("imagestore.Cached invalidated")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("dir", c.dir).Msg("imagestore.Cached watcher error")
		}
	}
}
